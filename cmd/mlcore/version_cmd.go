package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	// VersionMajor is the major number in mlcore's version
	VersionMajor = 0
	// VersionMinor is the minor number in mlcore's version
	VersionMinor = 1
	// VersionPatch is the patch number in mlcore's version
	VersionPatch = 0
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of mlcore",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mlcore v%d.%d.%d\n", VersionMajor, VersionMinor, VersionPatch)
		},
	}
}
