package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the top-level metanode command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "metanode",
		Short:         "Apply layered, declarative node configuration over SSH.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{
		Use:    "no-help",
		Hidden: true,
	})
	rootCmd.AddCommand(NewApplyCmd())
	return rootCmd
}
