// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/crescent-rt/crescent/internal/config"
	"github.com/crescent-rt/crescent/internal/issue"
	"github.com/crescent-rt/crescent/internal/logging"
	"github.com/crescent-rt/crescent/internal/runtime"
	"github.com/crescent-rt/crescent/pkg/standalone"
)

// standaloneLogLevelEnv sets the log level of standalone executables, which
// have no CLI flags of their own.
const standaloneLogLevelEnv = "CRESCENT_STANDALONE_LOG_LEVEL"

// runIfStandalone runs the bundle embedded in the running executable, as read
// by app.standalone. It
// reports handled=false when there is none and the CLI should start instead.
// A trailer that is present but unreadable is a hard failure: falling back to
// the CLI would silently run the wrong program.
func runIfStandalone(ctx context.Context, app *App, args []string) (handled bool, err error) {
	m, exe, err := app.standalone()
	switch {
	case errors.Is(err, standalone.ErrNotStandalone):
		return false, nil
	case errors.Is(err, standalone.ErrCorruptMetadata):
		return true, reportError(app.stderr, issue.NewErrorContext().
			WithOperation("read standalone metadata").
			WithResource(exe).
			WithIssue(issue.CorruptMetadataId).
			WithSuggestion("Rebuild the executable with 'crescent build'").
			Wrap(err).
			BuildError(), false)
	case err != nil:
		// The executable could not be read at all; the CLI may still work.
		return false, nil
	}
	return true, reportError(app.stderr, runStandalone(ctx, app, m, exe, args), false)
}

func runStandalone(ctx context.Context, app *App, m *standalone.Metadata, exe string, args []string) error {
	if !standalone.Compatible(m, app.version) {
		return issue.NewErrorContext().
			WithOperation("run standalone executable").
			WithResource(exe).
			WithIssue(issue.IncompatibleRuntimeId).
			WithSuggestion(fmt.Sprintf("Rebuild it with crescent %s", app.version)).
			Wrap(fmt.Errorf("built by runtime %s, running %s", m.RuntimeVersion, app.version)).
			BuildError()
	}

	logger, err := logging.New(app.stderr, logging.Options{Level: os.Getenv(standaloneLogLevelEnv), Prefix: config.AppName})
	if err != nil {
		logger = logging.Discard()
	}

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	cfg := config.DefaultConfig()
	if len(m.Extensions) > 0 {
		cfg.Extensions = m.Extensions
	}
	if m.IndexName != "" {
		cfg.IndexName = m.IndexName
	}

	return runtime.RunBundle(ctx, m, runtime.Options{
		Config:     cfg,
		Stdin:      app.stdin,
		Stdout:     app.stdout,
		Stderr:     app.stderr,
		Env:        app.env,
		WorkDir:    wd,
		Args:       args,
		Version:    app.version,
		Executable: exe,
		Logger:     logger,
	})
}
