package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meaningapp/meaning/internal/api"
	"github.com/meaningapp/meaning/version"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the release, commit, commit date and Go toolchain of this binary.

The result follows --output (yaml or json). Use --short for a single line.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		if versionShort {
			fmt.Fprintln(cmd.OutOrStdout(), "meaning", info)
			return nil
		}
		return api.OutputTo(cmd.OutOrStdout(), api.GetOutputFormat(), info)
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print a single line")
}
