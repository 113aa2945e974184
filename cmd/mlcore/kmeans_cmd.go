package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/mlcore/core/dataset"
	"github.com/YuminosukeSato/mlcore/pkg/errors"
	"github.com/YuminosukeSato/mlcore/pkg/log"
	"github.com/YuminosukeSato/mlcore/pkg/plot"
	"github.com/YuminosukeSato/mlcore/pkg/tabular"
	"github.com/YuminosukeSato/mlcore/preprocessing"
	"github.com/YuminosukeSato/mlcore/sklearn/cluster"
)

type kmeansCmdConfig struct {
	*rootCmdConfig
	dataInput   string
	output      string
	plotOutput  string
	scale       string
	clusters    int
	maxIters    int
	randomState int64
}

func kmeansCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &kmeansCmdConfig{rootCmdConfig: rootConfig}
	cmd := &cobra.Command{
		Use:   "kmeans",
		Short: "Cluster the numeric columns of a file with K-Means",
		Long: `Cluster the rows of a delimited file on all of its numeric columns.
With --output the input is written back with a "cluster" column; otherwise
inertia, iterations and cluster sizes are printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Validate(); err != nil {
				return err
			}
			return config.run(cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&config.dataInput, "data", "d", "", "path to the input file (required)")
	cmd.Flags().StringVarP(&config.output, "output", "o", "", "path to write the input rows with their cluster")
	cmd.Flags().StringVar(&config.plotOutput, "plot", "", "path of an image (png, svg, pdf) plotting the first two features by cluster")
	cmd.Flags().StringVar(&config.scale, "scale", "none", "feature scaling before clustering: none, standard or minmax")
	cmd.Flags().IntVarP(&config.clusters, "clusters", "k", 3, "number of clusters")
	cmd.Flags().IntVar(&config.maxIters, "max-iters", 100, "maximum number of iterations")
	cmd.Flags().Int64Var(&config.randomState, "random-state", 42, "seed for centroid initialisation")
	return cmd
}

func (kc *kmeansCmdConfig) Validate() error {
	if kc.dataInput == "" {
		return errors.NewConfigurationError("data", "required flag was not set", kc.dataInput)
	}
	if kc.clusters < 1 {
		return errors.NewConfigurationError("clusters", "must be at least 1", kc.clusters)
	}
	if kc.maxIters < 1 {
		return errors.NewConfigurationError("max-iters", "must be at least 1", kc.maxIters)
	}
	switch kc.scale {
	case "none", "standard", "minmax":
	default:
		return errors.NewConfigurationError("scale", `must be "none", "standard" or "minmax"`, kc.scale)
	}
	return nil
}

func (kc *kmeansCmdConfig) run(out io.Writer) error {
	logger := log.GetLoggerWithName("cmd.kmeans")

	table, err := kc.readTable(kc.dataInput)
	if err != nil {
		return err
	}
	names, rows, err := table.Features("")
	if err != nil {
		return err
	}
	logger.Info("input loaded", log.SamplesKey, len(rows), log.FeaturesKey, len(names))

	var scaler preprocessing.Scaler
	if kc.scale != "none" {
		if scaler, err = preprocessing.NewScaler(kc.scale); err != nil {
			return err
		}
		scaled, err := scaler.FitTransform(dataset.Dense(rows))
		if err != nil {
			return err
		}
		if rows, err = dataset.Rows("kmeans", scaled); err != nil {
			return err
		}
	}

	km := cluster.NewKMeans(
		cluster.WithKMeansNClusters(kc.clusters),
		cluster.WithKMeansMaxIter(kc.maxIters),
		cluster.WithKMeansRandomState(kc.randomState),
	)
	if err := km.FitRows(rows); err != nil {
		return err
	}
	labels := km.Labels()

	if kc.plotOutput != "" {
		scatter := &plot.ClusterScatter{
			Title:   fmt.Sprintf("K-Means (k=%d)", kc.clusters),
			XLabel:  names[0],
			Rows:    rows,
			Labels:  labels,
			Centers: km.ClusterCenters(),
		}
		if len(names) > 1 {
			scatter.YLabel = names[1]
		}
		if err := scatter.Save(kc.plotOutput); err != nil {
			return err
		}
		logger.Info("plot written", "path", kc.plotOutput)
	}

	if kc.output != "" {
		if err := table.WriteFile(kc.output, kc.comma, "cluster", tabular.FormatInts(labels)); err != nil {
			return err
		}
		logger.Info("clusters written", "path", kc.output)
		return nil
	}

	centers := km.ClusterCenters()
	if scaler != nil {
		original, err := scaler.InverseTransform(dataset.Dense(centers))
		if err != nil {
			return err
		}
		if centers, err = dataset.Rows("kmeans", original); err != nil {
			return err
		}
	}
	return printClusters(out, km, names, labels, centers)
}

func printClusters(out io.Writer, km *cluster.KMeans, names []string, labels []int, centers [][]float64) error {
	sizes := make([]int, km.NClusters())
	for _, l := range labels {
		sizes[l]++
	}
	state := "converged"
	if !km.Converged() {
		state = "not converged"
	}
	fmt.Fprintf(out, "inertia: %.6g\n", km.Inertia())
	fmt.Fprintf(out, "iterations: %d (%s)\n", km.NIter(), state)
	fmt.Fprintf(out, "features: %v\n", names)
	for k, n := range sizes {
		if _, err := fmt.Fprintf(out, "cluster %d: %d samples, centroid %v\n", k, n, fmtFloats(centers[k])); err != nil {
			return err
		}
	}
	return nil
}

func fmtFloats(v []float64) string {
	s := "["
	for i, x := range v {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%.4g", x)
	}
	return s + "]"
}
