// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/crescent-rt/crescent/internal/config"
	"github.com/crescent-rt/crescent/internal/logging"
	"github.com/crescent-rt/crescent/internal/runtime"
	"github.com/crescent-rt/crescent/pkg/standalone"
)

type (
	// App wires CLI services and shared dependencies. It is the composition root
	// for the CLI layer: every Cobra handler receives an App and builds its
	// runtimes, bundlers and loggers through it.
	App struct {
		Config config.Provider
		stdin  io.Reader
		stdout io.Writer
		stderr io.Writer
		env    []string
		// version is stamped into built executables and checked against
		// embedded bundles.
		version string
		// standalone reads the trailer of the running executable.
		standalone func() (*standalone.Metadata, string, error)
	}

	// Dependencies defines the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
		// Env is the environment scripts inherit. Defaults to os.Environ().
		Env []string
		// Version defaults to the build's Version.
		Version string
		// Standalone returns the embedded bundle and the executable path.
		// Defaults to standalone.Current.
		Standalone func() (*standalone.Metadata, string, error)
	}

	// session is the per-invocation state derived from flags and config.
	session struct {
		cfg    *config.Config
		logger *slog.Logger
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Env == nil {
		deps.Env = os.Environ()
	}
	if deps.Version == "" {
		deps.Version = Version
	}
	if deps.Standalone == nil {
		deps.Standalone = standalone.Current
	}
	return &App{
		Config:     deps.Config,
		stdin:      deps.Stdin,
		stdout:     deps.Stdout,
		stderr:     deps.Stderr,
		env:        deps.Env,
		version:    deps.Version,
		standalone: deps.Standalone,
	}
}

// startSession loads configuration and builds the logger. Flags take precedence
// over configuration values.
func (a *App) startSession(ctx context.Context, flags *rootFlagValues) (*session, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: flags.configPath})
	if err != nil {
		return nil, err
	}

	opts := logging.Options{Level: cfg.Log.Level, Format: logging.Format(cfg.Log.Format), Prefix: config.AppName}
	if flags.logLevel != "" {
		opts.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		opts.Format = logging.Format(flags.logFormat)
	}
	if flags.verbose && flags.logLevel == "" {
		opts.Level = "debug"
	}
	logger, err := logging.New(a.stderr, opts)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, logger: logger}, nil
}

// newRuntime builds a fresh runtime: an empty module cache, alias directory
// and resolver.
func (a *App) newRuntime(s *session, args []string) (*runtime.Runtime, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return runtime.New(runtime.Options{
		Config:  s.cfg,
		Stdin:   a.stdin,
		Stdout:  a.stdout,
		Stderr:  a.stderr,
		Env:     a.env,
		WorkDir: wd,
		Args:    args,
		Version: a.version,
		Logger:  s.logger,
	}), nil
}
