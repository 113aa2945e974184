package main

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/mlcore/core/dataset"
	"github.com/YuminosukeSato/mlcore/core/model"
	"github.com/YuminosukeSato/mlcore/model_selection"
	"github.com/YuminosukeSato/mlcore/pkg/errors"
	"github.com/YuminosukeSato/mlcore/pkg/log"
	"github.com/YuminosukeSato/mlcore/pkg/tabular"
)

// classifyCmdConfig holds the flags shared by the tree and forest commands.
type classifyCmdConfig struct {
	*rootCmdConfig
	dataInput       string
	output          string
	target          string
	saveModel       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	criterion       string
	testSize        float64
	randomState     int64
}

func (cc *classifyCmdConfig) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&cc.dataInput, "data", "d", "", "path to the input file (required)")
	cmd.Flags().StringVarP(&cc.output, "output", "o", "", "path to write the input rows with a prediction column")
	cmd.Flags().StringVarP(&cc.target, "target", "t", "", "name of the numeric column to predict (required)")
	cmd.Flags().StringVar(&cc.saveModel, "save-model", "", "path to save the trained model (gob)")
	cmd.Flags().IntVar(&cc.maxDepth, "max-depth", 10, "maximum depth of a tree")
	cmd.Flags().IntVar(&cc.minSamplesSplit, "min-samples-split", 2, "minimum number of samples required to split a node")
	cmd.Flags().IntVar(&cc.minSamplesLeaf, "min-samples-leaf", 1, "minimum number of samples in each child of a split")
	cmd.Flags().StringVar(&cc.criterion, "criterion", "entropy", "split quality measure: entropy or gini")
	cmd.Flags().Float64Var(&cc.testSize, "test-size", 0.2, "fraction of rows held out for testing, in [0, 1)")
	cmd.Flags().Int64Var(&cc.randomState, "random-state", 42, "seed for the train/test split and the model")
}

func (cc *classifyCmdConfig) Validate() error {
	if cc.dataInput == "" {
		return errors.NewConfigurationError("data", "required flag was not set", cc.dataInput)
	}
	if cc.target == "" {
		return errors.NewConfigurationError("target", "required flag was not set", cc.target)
	}
	if cc.testSize < 0 || cc.testSize >= 1 || math.IsNaN(cc.testSize) {
		return errors.NewConfigurationError("test-size", "must be in [0, 1)", cc.testSize)
	}
	return nil
}

// labelledData is the input file split into training and test rows.
type labelledData struct {
	table         *tabular.Table
	names         []string
	X             [][]float64
	XTrain, XTest [][]float64
	yTrain, yTest []float64
}

func (cc *classifyCmdConfig) load(logger log.Logger) (*labelledData, error) {
	table, err := cc.readTable(cc.dataInput)
	if err != nil {
		return nil, err
	}
	y, err := table.Target(cc.target)
	if err != nil {
		return nil, err
	}
	names, X, err := table.Features(cc.target)
	if err != nil {
		return nil, err
	}
	d := &labelledData{table: table, names: names, X: X}
	d.XTrain, d.XTest, d.yTrain, d.yTest, err = model_selection.TrainTestSplit(X, y, cc.testSize, cc.randomState)
	if err != nil {
		return nil, err
	}
	logger.Info("input loaded",
		log.SamplesKey, len(X),
		log.FeaturesKey, len(names),
		"train_samples", len(d.XTrain),
		"test_samples", len(d.XTest),
	)
	return d, nil
}

// finish saves the model, then either writes predictions for every input row
// or prints the diagnostics produced by report.
func (cc *classifyCmdConfig) finish(out io.Writer, clf model.Classifier, d *labelledData, logger log.Logger, report func(io.Writer) error) error {
	if cc.saveModel != "" {
		if err := model.SaveModel(clf, cc.saveModel); err != nil {
			return errors.Wrapf(err, "saving model to %s", cc.saveModel)
		}
		logger.Info("model saved", "path", cc.saveModel)
	}

	if cc.output != "" {
		pred, err := clf.Predict(dataset.Dense(d.X))
		if err != nil {
			return err
		}
		values := make([]float64, len(d.X))
		for i := range values {
			values[i] = pred.At(i, 0)
		}
		if err := d.table.WriteFile(cc.output, cc.comma, "prediction", tabular.FormatFloats(values)); err != nil {
			return err
		}
		logger.Info("predictions written", "path", cc.output)
		return nil
	}

	fmt.Fprintf(out, "train accuracy: %.4f (%d samples)\n",
		clf.Score(dataset.Dense(d.XTrain), dataset.Column(d.yTrain)), len(d.XTrain))
	if len(d.XTest) > 0 {
		fmt.Fprintf(out, "test accuracy: %.4f (%d samples)\n",
			clf.Score(dataset.Dense(d.XTest), dataset.Column(d.yTest)), len(d.XTest))
	}
	return report(out)
}

// printImportances lists features by decreasing importance.
func printImportances(out io.Writer, names []string, importances []float64) error {
	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return importances[order[a]] > importances[order[b]]
	})
	fmt.Fprintln(out, "feature importances:")
	for _, j := range order {
		if _, err := fmt.Fprintf(out, "  %s: %.4f\n", names[j], importances[j]); err != nil {
			return err
		}
	}
	return nil
}
