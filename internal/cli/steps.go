package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	mlerrors "github.com/chazuruo/mlprep/internal/errors"
	"github.com/chazuruo/mlprep/internal/steps"
)

// FetchOptions contains the options for the fetch command.
type FetchOptions struct {
	Config  steps.FetchConfig
	DataDir string
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand() *cobra.Command {
	opts := &FetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch <sample> <artifact_name> <artifact_type> <artifact_description>",
		Short: "Register a local sample file as a raw artifact",
		Long: `Register <data_dir>/<sample> in the artifact store as a new version of
<artifact_name>.

The sample must already exist locally. Nothing is registered when the file is
missing or the artifact metadata is invalid.

Examples:
  mlprep fetch sample1.csv sample.csv raw_data "Raw file as downloaded"
  mlprep fetch sample2.csv sample.csv raw_data "Raw file" --data-dir ./samples`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Config.Sample = args[0]
			opts.Config.ArtifactName = args[1]
			opts.Config.ArtifactType = args[2]
			opts.Config.ArtifactDescription = args[3]
			ctx, cancel := signalContext()
			defer cancel()
			return runFetch(ctx, Globals, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "directory holding samples (overrides config paths.data_dir)")

	return cmd
}

func runFetch(ctx context.Context, g GlobalOptions, opts *FetchOptions, stdout, stderr io.Writer) error {
	env, err := prepare(g, stderr)
	if err != nil {
		return err
	}

	cfg := opts.Config
	cfg.DataDir = env.cfg.Paths.DataDir
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}

	step, err := steps.NewFetch(cfg, env.types)
	if err != nil {
		return err
	}
	return execute(ctx, env, step, stdout)
}

// CleanOptions contains the options for the clean command.
type CleanOptions struct {
	Config steps.CleanConfig
}

// NewCleanCommand creates the clean command.
func NewCleanCommand() *cobra.Command {
	opts := &CleanOptions{}

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Drop outliers and normalize review dates",
		Long: `Resolve the input artifact, keep rows with min_price <= price <= max_price
inside the NYC bounding box, normalize last_review, and register the result
as a new artifact.

Examples:
  mlprep clean --input_artifact sample.csv:latest \
    --output_artifact clean_sample.csv --output_type clean_data \
    --output_description "Data with outliers and null values removed" \
    --min_price 10 --max_price 350`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return runClean(ctx, Globals, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.Config.InputArtifact, "input_artifact", "", "fully-qualified name of the input artifact")
	cmd.Flags().StringVar(&opts.Config.OutputArtifact, "output_artifact", "", "name of the output artifact")
	cmd.Flags().StringVar(&opts.Config.OutputType, "output_type", "", "type of the output artifact")
	cmd.Flags().StringVar(&opts.Config.OutputDescription, "output_description", "", "description of the output artifact")
	cmd.Flags().Float64Var(&opts.Config.MinPrice, "min_price", 0, "minimum price kept")
	cmd.Flags().Float64Var(&opts.Config.MaxPrice, "max_price", 0, "maximum price kept")
	for _, name := range []string{"input_artifact", "output_artifact", "output_type", "output_description", "min_price", "max_price"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func runClean(ctx context.Context, g GlobalOptions, opts *CleanOptions, stdout, stderr io.Writer) error {
	env, err := prepare(g, stderr)
	if err != nil {
		return err
	}

	step, err := steps.NewClean(opts.Config, env.types)
	if err != nil {
		return err
	}
	return execute(ctx, env, step, stdout)
}

// SplitOptions contains the options for the split command.
type SplitOptions struct {
	Config steps.SplitConfig
}

// NewSplitCommand creates the split command.
func NewSplitCommand() *cobra.Command {
	opts := &SplitOptions{Config: steps.DefaultSplitConfig()}

	cmd := &cobra.Command{
		Use:   "split <input> <test_size>",
		Short: "Split a dataset into trainval and test artifacts",
		Long: `Partition the input artifact into trainval_data.csv and test_data.csv.

test_size is a fraction in (0, 1) or an absolute number of test rows.
With --stratify_by, per-group proportions are preserved in both partitions.

Examples:
  mlprep split clean_sample.csv:latest 0.2
  mlprep split clean_sample.csv:latest 0.2 --stratify_by neighbourhood_group --random_seed 7`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Config.Input = args[0]
			testSize, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return &mlerrors.ConfigurationError{
					Field: "test_size",
					Err:   fmt.Errorf("%q is not a number: %w", args[1], mlerrors.ErrInvalid),
				}
			}
			opts.Config.TestSize = testSize
			ctx, cancel := signalContext()
			defer cancel()
			return runSplit(ctx, Globals, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().Int64Var(&opts.Config.RandomSeed, "random_seed", steps.DefaultRandomSeed, "seed for the random number generator")
	cmd.Flags().StringVar(&opts.Config.StratifyBy, "stratify_by", steps.NoStratify, "column to use for stratification")

	return cmd
}

func runSplit(ctx context.Context, g GlobalOptions, opts *SplitOptions, stdout, stderr io.Writer) error {
	env, err := prepare(g, stderr)
	if err != nil {
		return err
	}

	step, err := steps.NewSplit(opts.Config)
	if err != nil {
		return err
	}
	return execute(ctx, env, step, stdout)
}

// execute opens the store, runs one step and prints the registered refs.
// Callers build the step first, so the store is only created for a valid config.
func execute(ctx context.Context, env *environment, step steps.Step, stdout io.Writer) error {
	if err := env.openStore(); err != nil {
		return err
	}

	res, err := steps.Execute(ctx, env.store, step, steps.Options{
		WorkDir: env.cfg.Paths.WorkDir,
		Logger:  env.logger,
	})
	if err != nil {
		return err
	}

	for _, ref := range res.Logged {
		fmt.Fprintf(stdout, "%s\t%s\n", ref.Qualified(), ref.Digest)
	}
	env.logger.Infof("Run %s finished in %s", res.RunID, res.Duration.Round(time.Millisecond))
	return nil
}
