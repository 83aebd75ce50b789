package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazuruo/mlprep/internal/cli"
	mlerrors "github.com/chazuruo/mlprep/internal/errors"
)

// Version is set at build time using ldflags
var Version = "dev"

// Commit is set at build time using ldflags
var Commit = "unknown"

// Date is set at build time using ldflags
var Date = "unknown"

func main() {
	rootCmd := &cobra.Command{
		Use:   "mlprep",
		Short: "Versioned data preparation steps for ML pipelines",
		Long: `mlprep runs the data preparation steps of an ML pipeline: fetching a raw
sample, cleaning it, and splitting it into train/validation and test sets.

Every input and output is a named, typed, versioned artifact in a local
artifact store, so downstream steps consume exactly the version produced
upstream.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	// Add global flags
	cli.AddGlobalFlags(rootCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &mlerrors.ConfigurationError{Field: "flags", Err: err}
	})

	// Add subcommands
	rootCmd.AddCommand(cli.NewInitCommand())
	rootCmd.AddCommand(cli.NewFetchCommand())
	rootCmd.AddCommand(cli.NewCleanCommand())
	rootCmd.AddCommand(cli.NewSplitCommand())
	rootCmd.AddCommand(cli.NewPipelineCommand())
	rootCmd.AddCommand(cli.NewArtifactsCommand())
	rootCmd.AddCommand(cli.NewRunsCommand())
	rootCmd.AddCommand(cli.NewVersionCommand(Version, Commit, Date))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(mlerrors.ExitCode(err))
	}
}
