package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/mlcore/core/dataset"
	"github.com/YuminosukeSato/mlcore/pkg/errors"
	"github.com/YuminosukeSato/mlcore/pkg/log"
	"github.com/YuminosukeSato/mlcore/sklearn/ensemble"
)

type forestCmdConfig struct {
	classifyCmdConfig
	nEstimators int
	maxFeatures string
	nJobs       int
	noBootstrap bool
}

func forestCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &forestCmdConfig{classifyCmdConfig: classifyCmdConfig{rootCmdConfig: rootConfig}}
	cmd := &cobra.Command{
		Use:   "forest",
		Short: "Train a random forest classifier on a file",
		Long: `Train a random forest on the numeric columns of a delimited file to predict
the target column. Trees are trained in parallel on bootstrap samples and
random feature subsets. With --output every input row is written back with a
"prediction" column; otherwise accuracies are printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Validate(); err != nil {
				return err
			}
			return config.run(cmd.Context(), cmd.OutOrStdout())
		},
	}
	config.addFlags(cmd)
	cmd.Flags().IntVarP(&config.nEstimators, "n-estimators", "n", 100, "number of trees")
	cmd.Flags().StringVar(&config.maxFeatures, "max-features", "sqrt", "features per tree: sqrt, log2, all, a fraction in (0, 1] or a count")
	cmd.Flags().IntVar(&config.nJobs, "n-jobs", 0, "number of trees trained concurrently (0 uses all CPUs)")
	cmd.Flags().BoolVar(&config.noBootstrap, "no-bootstrap", false, "train every tree on all training rows")
	return cmd
}

func (fc *forestCmdConfig) Validate() error {
	if err := fc.classifyCmdConfig.Validate(); err != nil {
		return err
	}
	if fc.nEstimators < 1 {
		return errors.NewConfigurationError("n-estimators", "must be at least 1", fc.nEstimators)
	}
	if fc.nJobs < 0 {
		return errors.NewConfigurationError("n-jobs", "must not be negative", fc.nJobs)
	}
	// the feature count is unknown until the file is read; 1 checks the syntax
	if _, err := ensemble.ParseMaxFeatures(fc.maxFeatures, 1); err != nil {
		return err
	}
	return nil
}

func (fc *forestCmdConfig) run(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := log.GetLoggerWithName("cmd.forest")
	d, err := fc.load(logger)
	if err != nil {
		return err
	}

	rf := ensemble.NewRandomForestClassifier(
		ensemble.WithNEstimators(fc.nEstimators),
		ensemble.WithMaxDepth(fc.maxDepth),
		ensemble.WithMinSamplesSplit(fc.minSamplesSplit),
		ensemble.WithMinSamplesLeaf(fc.minSamplesLeaf),
		ensemble.WithCriterion(fc.criterion),
		ensemble.WithMaxFeatures(fc.maxFeatures),
		ensemble.WithBootstrap(!fc.noBootstrap),
		ensemble.WithRandomState(fc.randomState),
		ensemble.WithNJobs(fc.nJobs),
	)
	if err := rf.FitContext(ctx, dataset.Dense(d.XTrain), dataset.Column(d.yTrain)); err != nil {
		return err
	}

	return fc.finish(out, rf, d, logger, func(out io.Writer) error {
		fmt.Fprintf(out, "trees: %d\n", len(rf.Estimators()))
		fmt.Fprintf(out, "features per tree: %d of %d\n", rf.MaxFeatures(), rf.NFeatures())
		return printImportances(out, d.names, rf.GetFeatureImportances())
	})
}
