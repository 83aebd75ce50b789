package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rodaine/table"
	"github.com/spf13/cobra"

	"github.com/chazuruo/mlprep/internal/artifact"
	"github.com/chazuruo/mlprep/internal/pipeline"
)

// PipelineOptions contains the options for the pipeline commands.
type PipelineOptions struct {
	Path  string
	Steps []string
}

// NewPipelineCommand creates the pipeline command group.
func NewPipelineCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run or validate a pipeline document",
		Long: `A pipeline document lists fetch, clean and split steps in order.
Each step runs in its own session and hands artifacts to the next only
through the artifact store.`,
	}

	cmd.AddCommand(newPipelineRunCommand())
	cmd.AddCommand(newPipelineValidateCommand())

	return cmd
}

func newPipelineRunCommand() *cobra.Command {
	opts := &PipelineOptions{}

	cmd := &cobra.Command{
		Use:   "run <pipeline.yaml>",
		Short: "Run pipeline steps in order",
		Long: `Run the steps of a pipeline document sequentially, stopping at the first
failure. Use --steps to run a subset; selected steps keep pipeline order.

Examples:
  mlprep pipeline run pipeline.yaml
  mlprep pipeline run pipeline.yaml --steps basic_cleaning,data_split`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Path = args[0]
			ctx, cancel := signalContext()
			defer cancel()
			return runPipeline(ctx, Globals, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringSliceVar(&opts.Steps, "steps", nil, "comma-separated step names to run (default all)")

	return cmd
}

func newPipelineValidateCommand() *cobra.Command {
	opts := &PipelineOptions{}

	cmd := &cobra.Command{
		Use:   "validate <pipeline.yaml>",
		Short: "Validate a pipeline document without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Path = args[0]
			return runPipelineValidate(Globals, opts, cmd.OutOrStdout())
		},
	}

	return cmd
}

func runPipeline(ctx context.Context, g GlobalOptions, opts *PipelineOptions, stdout, stderr io.Writer) error {
	env, err := prepare(g, stderr)
	if err != nil {
		return err
	}

	p, err := pipeline.LoadYAML(opts.Path, env.types)
	if err != nil {
		return err
	}
	if err := env.openStore(); err != nil {
		return err
	}

	runner := pipeline.NewRunner(env.store,
		pipeline.WithTypes(env.types),
		pipeline.WithDataDir(env.cfg.Paths.DataDir),
		pipeline.WithWorkDir(env.cfg.Paths.WorkDir),
		pipeline.WithLogger(env.logger.WithLabel("pipeline", p.Name)),
	)

	result, err := runner.Run(ctx, pipeline.Plan{Pipeline: p, Steps: opts.Steps})
	if len(result.StepResults) > 0 {
		printStepResults(stdout, result.StepResults)
	}
	return err
}

func runPipelineValidate(g GlobalOptions, opts *PipelineOptions, stdout io.Writer) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}

	p, err := pipeline.LoadYAML(opts.Path, artifact.NewTypeSet(cfg.Artifacts.ExtraTypes...))
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Pipeline %q is valid (%d steps)\n", p.Name, len(p.Steps))
	for i, step := range p.Steps {
		fmt.Fprintf(stdout, "  %d. %s (%s)\n", i+1, step.Name, step.Kind())
	}
	return nil
}

// printStepResults prints one row per step.
func printStepResults(w io.Writer, results []pipeline.StepResult) {
	tbl := table.New("STEP", "KIND", "STATUS", "RUN", "OUTPUTS", "DURATION").WithWriter(w)
	for _, sr := range results {
		status := "ok"
		switch {
		case sr.Skipped:
			status = "skipped"
		case !sr.Success:
			status = "failed"
		}

		outputs := "-"
		if len(sr.Logged) > 0 {
			outputs = ""
			for i, ref := range sr.Logged {
				if i > 0 {
					outputs += ", "
				}
				outputs += ref.String()
			}
		}

		tbl.AddRow(sr.Name, sr.Kind, status, shortID(sr.RunID), outputs, sr.Duration.Round(time.Millisecond))
	}
	tbl.Print()
}

// shortID abbreviates a run id for tables.
func shortID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
