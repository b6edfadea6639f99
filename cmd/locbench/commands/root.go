// Package commands implements CLI command handlers for locbench.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/locbench/pkg/version"
)

const flagConfig = "config"

// NewRootCommand assembles the locbench command tree.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "locbench",
		Short: "Measure code size of benchmark task snapshots",
		Long: `locbench clones the repositories behind benchmark tasks, counts lines of
code per language at each task's base commit and reports on the results.

Commands:
  analyze   Count lines of code for every task of an eval set
  augment   Add golden patch sizes to a LOC table
  report    Summarize augmented LOC tables per benchmark`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String(flagConfig, "", "config file (default: ./locbench.yaml)")

	rootCmd.AddCommand(NewAnalyzeCommand())
	rootCmd.AddCommand(NewAugmentCommand())
	rootCmd.AddCommand(NewReportCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
