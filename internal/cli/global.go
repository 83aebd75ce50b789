// Package cli provides Cobra command definitions for mlprep.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.arcalot.io/log/v2"

	"github.com/chazuruo/mlprep/internal/artifact"
	"github.com/chazuruo/mlprep/internal/config"
	mlerrors "github.com/chazuruo/mlprep/internal/errors"
	"github.com/chazuruo/mlprep/internal/store"
)

// GlobalOptions holds the persistent flags shared by every command.
type GlobalOptions struct {
	ConfigPath string
	LogLevel   string
	StoreRoot  string
	Project    string
}

// Globals is populated by the persistent flags on the root command.
var Globals GlobalOptions

// AddGlobalFlags adds global flags to a command.
func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&Globals.ConfigPath, "config", "",
		"config file path (default ~/.config/mlprep/config.toml)")
	cmd.PersistentFlags().StringVar(&Globals.LogLevel, "log-level", "",
		"log level: debug, info, warning or error (overrides config)")
	cmd.PersistentFlags().StringVar(&Globals.StoreRoot, "store", "",
		"artifact store root (overrides config)")
	cmd.PersistentFlags().StringVar(&Globals.Project, "project", "",
		"project namespace (overrides config)")
}

// environment is what a command needs once config and flags are resolved.
type environment struct {
	cfg    *config.Config
	logger log.Logger
	store  *store.FileSystemStore
	types  artifact.TypeSet
}

// loadConfig loads the config file and applies flag overrides.
func loadConfig(g GlobalOptions) (*config.Config, error) {
	cfg, err := config.LoadWithDefaults(g.ConfigPath)
	if err != nil {
		return nil, &mlerrors.ConfigurationError{Field: "config", Err: err}
	}

	if g.LogLevel != "" {
		cfg.Log.Level = strings.ToLower(g.LogLevel)
	}
	if g.StoreRoot != "" {
		cfg.Store.Root = config.ExpandHome(g.StoreRoot)
	}
	if g.Project != "" {
		cfg.Project.Name = g.Project
	}
	if err := cfg.Validate(); err != nil {
		return nil, &mlerrors.ConfigurationError{Field: "config", Err: err}
	}

	return cfg, nil
}

// newLogger builds the stderr logger for the configured level.
func newLogger(level string, w io.Writer) log.Logger {
	return log.New(log.Config{
		Level:       log.Level(level),
		Destination: log.DestinationStdout,
		Stdout:      w,
	}).WithLabel("source", "mlprep")
}

// prepare resolves config, logger and artifact types without touching the store.
func prepare(g GlobalOptions, stderr io.Writer) (*environment, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}

	return &environment{
		cfg:    cfg,
		logger: newLogger(cfg.Log.Level, stderr),
		types:  artifact.NewTypeSet(cfg.Artifacts.ExtraTypes...),
	}, nil
}

// openStore opens (and creates on first use) the configured artifact store.
func (env *environment) openStore() error {
	st, err := store.New(env.cfg.Store.Root, env.cfg.Project.Name, store.WithLogger(env.logger))
	if err != nil {
		return fmt.Errorf("failed to open artifact store: %w", err)
	}
	env.logger.Debugf("Using store %s (project %s)", st.Root(), st.Project())
	env.store = st
	return nil
}

// setup resolves config, logger and store for a command.
func setup(g GlobalOptions, stderr io.Writer) (*environment, error) {
	env, err := prepare(g, stderr)
	if err != nil {
		return nil, err
	}
	if err := env.openStore(); err != nil {
		return nil, err
	}
	return env, nil
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
