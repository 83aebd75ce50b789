package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rodaine/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chazuruo/mlprep/internal/artifact"
	mlerrors "github.com/chazuruo/mlprep/internal/errors"
	"github.com/chazuruo/mlprep/internal/store"
)

// OutputFormat defines the output format for the list commands.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatYAML  OutputFormat = "yaml"
	FormatPlain OutputFormat = "plain"
)

func parseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatTable, FormatYAML, FormatPlain:
		return f, nil
	}
	return "", &mlerrors.ConfigurationError{
		Field: "format",
		Err:   fmt.Errorf("invalid format %q (must be table, yaml or plain): %w", s, mlerrors.ErrInvalid),
	}
}

// ListOptions contains the options for the artifacts list command.
type ListOptions struct {
	Name   string
	Type   string
	Format string
}

// NewArtifactsCommand creates the artifacts command group.
func NewArtifactsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "Inspect artifacts in the store",
	}

	cmd.AddCommand(newArtifactsListCommand())
	cmd.AddCommand(newArtifactsShowCommand())

	return cmd
}

func newArtifactsListCommand() *cobra.Command {
	opts := &ListOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List artifact versions with optional filtering",
		Long: `List every version of every artifact in the current project.

Examples:
  mlprep artifacts list
  mlprep artifacts list --name sample.csv
  mlprep artifacts list --type clean_data --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArtifactsList(cmd.Context(), Globals, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "only show versions of this artifact")
	cmd.Flags().StringVar(&opts.Type, "type", "", "only show artifacts of this type")
	cmd.Flags().StringVar(&opts.Format, "format", "table", "output format (table, yaml, plain)")

	return cmd
}

func runArtifactsList(ctx context.Context, g GlobalOptions, opts *ListOptions, stdout, stderr io.Writer) error {
	format, err := parseFormat(opts.Format)
	if err != nil {
		return err
	}

	env, err := setup(g, stderr)
	if err != nil {
		return err
	}

	refs, err := env.store.List(contextOrBackground(ctx), store.Filter{
		Name: strings.TrimSpace(opts.Name),
		Type: artifact.Type(strings.TrimSpace(opts.Type)),
	})
	if err != nil {
		return fmt.Errorf("failed to list artifacts: %w", err)
	}

	switch format {
	case FormatYAML:
		return printYAML(stdout, refs)
	case FormatPlain:
		for _, ref := range refs {
			fmt.Fprintln(stdout, ref.String())
		}
		return nil
	}

	if len(refs) == 0 {
		fmt.Fprintln(stdout, "No artifacts found.")
		return nil
	}

	tbl := table.New("NAME", "VERSION", "TYPE", "SIZE", "DIGEST", "CREATED").WithWriter(stdout)
	for _, ref := range refs {
		tbl.AddRow(ref.Name, ref.VersionTag(), ref.Type, ref.Size, shortDigest(ref.Digest), formatTimeAgo(ref.CreatedAt))
	}
	tbl.Print()
	return nil
}

func newArtifactsShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <ref>",
		Short: "Show an artifact version's manifest",
		Long: `Print the manifest of one artifact version as YAML.

The reference can be:
- A name (latest version, e.g. "sample.csv")
- A pinned version (e.g. "sample.csv:v0")
- A project-qualified ref (e.g. "nyc_airbnb/sample.csv:latest")`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArtifactsShow(cmd.Context(), Globals, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	return cmd
}

func runArtifactsShow(ctx context.Context, g GlobalOptions, ref string, stdout, stderr io.Writer) error {
	q, err := artifact.ParseQuery(ref)
	if err != nil {
		return &mlerrors.ConfigurationError{Field: "ref", Err: err}
	}

	env, err := setup(g, stderr)
	if err != nil {
		return err
	}

	found, path, err := env.store.Resolve(contextOrBackground(ctx), q)
	if err != nil {
		return err
	}

	if err := printYAML(stdout, found); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "# path: %s\n", path)
	return nil
}

// RunsOptions contains the options for the runs list command.
type RunsOptions struct {
	JobType string
	Format  string
}

// NewRunsCommand creates the runs command group.
func NewRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded runs",
	}

	opts := &RunsOptions{}
	list := &cobra.Command{
		Use:   "list",
		Short: "List runs with their status and lineage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsList(cmd.Context(), Globals, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	list.Flags().StringVar(&opts.JobType, "job-type", "", "only show runs of this job type")
	list.Flags().StringVar(&opts.Format, "format", "table", "output format (table, yaml, plain)")

	cmd.AddCommand(list)
	return cmd
}

func runRunsList(ctx context.Context, g GlobalOptions, opts *RunsOptions, stdout, stderr io.Writer) error {
	format, err := parseFormat(opts.Format)
	if err != nil {
		return err
	}

	env, err := setup(g, stderr)
	if err != nil {
		return err
	}

	all, err := env.store.ListRuns(contextOrBackground(ctx))
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	var runs []store.RunRecord
	for _, rec := range all {
		if opts.JobType == "" || rec.JobType == opts.JobType {
			runs = append(runs, rec)
		}
	}

	switch format {
	case FormatYAML:
		return printYAML(stdout, runs)
	case FormatPlain:
		for _, rec := range runs {
			fmt.Fprintf(stdout, "%s %s %s\n", rec.ID, rec.JobType, rec.Status)
		}
		return nil
	}

	if len(runs) == 0 {
		fmt.Fprintln(stdout, "No runs found.")
		return nil
	}

	tbl := table.New("RUN", "JOB TYPE", "STATUS", "STARTED", "DURATION", "USED", "LOGGED").WithWriter(stdout)
	for _, rec := range runs {
		duration := "-"
		if !rec.FinishedAt.IsZero() {
			duration = rec.Duration().Round(time.Millisecond).String()
		}
		tbl.AddRow(shortID(rec.ID), rec.JobType, rec.Status, formatTimeAgo(rec.StartedAt), duration,
			joinOrDash(rec.Used), joinOrDash(rec.Logged))
	}
	tbl.Print()
	return nil
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}

func shortDigest(digest string) string {
	if i := strings.IndexByte(digest, ':'); i >= 0 {
		digest = digest[i+1:]
	}
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

// formatTimeAgo formats a time as a human-readable "time ago" string.
func formatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
