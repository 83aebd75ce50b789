package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazuruo/mlprep/internal/config"
	mlerrors "github.com/chazuruo/mlprep/internal/errors"
	"github.com/chazuruo/mlprep/internal/store"
)

// InitOptions contains the options for the init command.
type InitOptions struct {
	ConfigPath string
	Project    string
	StoreRoot  string
	DataDir    string
	Force      bool
}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	opts := &InitOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default mlprep configuration",
		Long: `Write a configuration file with default settings and create the
artifact store for the configured project.

An existing config file is left untouched unless --force is given.

Examples:
  mlprep init
  mlprep init --project nyc_airbnb --data-dir ./data
  mlprep init --config ./mlprep.toml --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ConfigPath = Globals.ConfigPath
			opts.Project = Globals.Project
			opts.StoreRoot = Globals.StoreRoot
			return runInit(opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "directory holding samples")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing config file")

	return cmd
}

func runInit(opts *InitOptions, stdout io.Writer) error {
	path := opts.ConfigPath
	if path == "" {
		var err error
		path, err = config.DefaultConfigPath()
		if err != nil {
			return err
		}
	}

	if _, err := os.Stat(path); err == nil && !opts.Force {
		return &mlerrors.ConfigurationError{
			Field: "config",
			Err:   fmt.Errorf("config file already exists: %s (use --force to overwrite): %w", path, mlerrors.ErrAlreadyExists),
		}
	}

	cfg := config.DefaultConfig()
	if opts.Project != "" {
		cfg.Project.Name = opts.Project
	}
	if opts.StoreRoot != "" {
		cfg.Store.Root = opts.StoreRoot
	}
	if opts.DataDir != "" {
		cfg.Paths.DataDir = opts.DataDir
	}
	if err := cfg.Validate(); err != nil {
		return &mlerrors.ConfigurationError{Field: "config", Err: err}
	}

	if err := config.Write(path, cfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	st, err := store.New(config.ExpandHome(cfg.Store.Root), cfg.Project.Name)
	if err != nil {
		return fmt.Errorf("failed to create artifact store: %w", err)
	}

	fmt.Fprintf(stdout, "Wrote %s\n", path)
	fmt.Fprintf(stdout, "Artifact store ready at %s\n", st.Root())
	return nil
}
