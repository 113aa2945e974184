package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/mlcore/pkg/log"
	"github.com/YuminosukeSato/mlcore/sklearn/tree"
)

type treeCmdConfig struct {
	classifyCmdConfig
}

func treeCmd(rootConfig *rootCmdConfig) *cobra.Command {
	config := &treeCmdConfig{classifyCmdConfig{rootCmdConfig: rootConfig}}
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Train a decision tree classifier on a file",
		Long: `Train a decision tree on the numeric columns of a delimited file to predict
the target column. With --output every input row is written back with a
"prediction" column; otherwise depth, leaves and accuracies are printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Validate(); err != nil {
				return err
			}
			return config.run(cmd.OutOrStdout())
		},
	}
	config.addFlags(cmd)
	return cmd
}

func (tc *treeCmdConfig) Validate() error {
	if err := tc.classifyCmdConfig.Validate(); err != nil {
		return err
	}
	return tc.newTree().Validate()
}

func (tc *treeCmdConfig) newTree() *tree.DecisionTreeClassifier {
	return tree.NewDecisionTreeClassifier(
		tree.WithCriterion(tc.criterion),
		tree.WithMaxDepth(tc.maxDepth),
		tree.WithMinSamplesSplit(tc.minSamplesSplit),
		tree.WithMinSamplesLeaf(tc.minSamplesLeaf),
	)
}

func (tc *treeCmdConfig) run(out io.Writer) error {
	logger := log.GetLoggerWithName("cmd.tree")
	d, err := tc.load(logger)
	if err != nil {
		return err
	}

	dt := tc.newTree()
	if err := dt.FitRows(d.XTrain, d.yTrain); err != nil {
		return err
	}

	return tc.finish(out, dt, d, logger, func(out io.Writer) error {
		fmt.Fprintf(out, "depth: %d\n", dt.GetDepth())
		fmt.Fprintf(out, "leaves: %d\n", dt.GetNLeaves())
		return printImportances(out, d.names, dt.GetFeatureImportances())
	})
}
