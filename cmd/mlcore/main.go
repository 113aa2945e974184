// Command mlcore trains the mlcore estimators on delimited files.
//
//	mlcore kmeans --data points.csv --clusters 3
//	mlcore tree   --data iris.csv --target label --max-depth 5
//	mlcore forest --data iris.csv --target label --n-estimators 100
package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/mlcore/pkg/errors"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitNotFound = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and maps the outcome to an exit code.
func run(args []string, stdout, stderr io.Writer) int {
	root := cliParser()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	if errors.Is(err, fs.ErrNotExist) {
		return exitNotFound
	}
	return exitFailure
}

func cliParser() *cobra.Command {
	config := &rootCmdConfig{}
	rootCmd := &cobra.Command{
		Use:           "mlcore",
		Short:         "mlcore trains clustering and tree models on tabular data",
		Long:          `A tool to cluster delimited files with K-Means and to classify them with decision trees and random forests`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.setup(cmd)
		},
	}
	rootCmd.PersistentFlags().StringVar(&config.configPath, "config", "", "path to a YAML file with flag values; flags set on the command line win")
	rootCmd.PersistentFlags().StringVar(&config.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&config.delimiter, "delimiter", ",", `field delimiter of input and output files ("\t" for tab)`)
	rootCmd.AddCommand(versionCmd(), kmeansCmd(config), treeCmd(config), forestCmd(config))
	return rootCmd
}
