// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/crescent-rt/crescent/internal/issue"
	"github.com/crescent-rt/crescent/internal/runtime"
	"github.com/crescent-rt/crescent/internal/watch"
	"github.com/crescent-rt/crescent/pkg/bundle"

	"github.com/spf13/cobra"
)

func newRunCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	var watchMode bool

	runCmd := &cobra.Command{
		Use:   "run <file|dir> [args...]",
		Short: "Run a script",
		Long: `Run a script, or the init script of a directory.

Arguments after the script path are passed to it as $1, $2, ... Only the
entry script sees them; modules it requires run without positional arguments.

With --watch the script is rerun whenever it, any module it requires, or an
alias file that steered resolution changes. Each rerun starts with an empty
module cache.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.startSession(cmd.Context(), rootFlags)
			if err != nil {
				return reportError(app.stderr, err, rootFlags.verbose)
			}
			if watchMode {
				return reportError(app.stderr, runWatchMode(cmd.Context(), app, s, args[0], args[1:]), rootFlags.verbose)
			}
			return reportError(app.stderr, runScript(cmd.Context(), app, s, args[0], args[1:]), rootFlags.verbose)
		},
	}
	// Everything after the script path belongs to the script.
	runCmd.Flags().SetInterspersed(false)
	runCmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "rerun the script when its files change")

	return runCmd
}

// runScript runs path once with a fresh runtime.
func runScript(ctx context.Context, app *App, s *session, path string, args []string) error {
	rt, err := app.newRuntime(s, args)
	if err != nil {
		return err
	}
	entry, err := rt.EntryPath(path)
	if err != nil {
		return scriptNotFound(path, err)
	}
	return rt.RunFile(ctx, entry)
}

// runWatchMode runs the script once, then reruns it after every change to a
// file of its static module graph. The watched set is recomputed after each
// run because an edit can add or drop requires.
func runWatchMode(ctx context.Context, app *App, s *session, path string, args []string) error {
	rt, err := app.newRuntime(s, args)
	if err != nil {
		return err
	}
	entry, err := rt.EntryPath(path)
	if err != nil {
		return scriptNotFound(path, err)
	}

	files, err := watchedFiles(rt, s, entry)
	if err != nil {
		return err
	}

	rerun := func(ctx context.Context) {
		if runErr := runScript(ctx, app, s, entry, args); runErr != nil {
			_ = reportError(app.stderr, runErr, false)
		}
	}

	fmt.Fprintf(app.stdout, "%s Watch mode: initial run of '%s'\n", accentStyle.Render("→"), path)
	rerun(ctx)
	fmt.Fprintf(app.stdout, "\n%s Watching %d file(s) for changes (Ctrl+C to stop)...\n\n", accentStyle.Render("→"), len(files))

	var w *watch.Watcher
	w, err = watch.New(watch.Config{
		Files:       files,
		Ignore:      s.cfg.Watch.Ignore,
		Debounce:    s.cfg.Watch.Debounce,
		ClearScreen: s.cfg.Watch.ClearScreen,
		BaseDir:     filepath.Dir(entry),
		Stdout:      app.stdout,
		Logger:      s.logger,
		OnChange: func(ctx context.Context, changed []string) error {
			fmt.Fprintf(app.stdout, "%s Detected %d change(s). Rerunning '%s'...\n",
				accentStyle.Render("→"), len(changed), path)
			rerun(ctx)

			next, err := app.newRuntime(s, args)
			if err != nil {
				return err
			}
			files, err := watchedFiles(next, s, entry)
			if err != nil {
				// Keep the previous set; the next save may fix the script.
				s.logger.Warn("failed to refresh watched files", "error", err)
			} else if err := w.SetFiles(files); err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "\n%s Watching for changes...\n\n", accentStyle.Render("→"))
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	return w.Run(ctx)
}

// watchedFiles lists the host paths of every file in entry's static graph
// plus the alias files consulted along the way.
func watchedFiles(rt *runtime.Runtime, s *session, entry string) ([]string, error) {
	resolver := rt.Loader().Resolver()
	bd, err := bundle.New(bundle.Options{Resolver: resolver, Logger: s.logger}).Bundle(entry)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}
	for _, key := range bd.Keys() {
		path := bd.HostPath(key)
		add(path)
		for dir := filepath.Dir(path); ; {
			if cfg := resolver.Aliases().Config(dir); cfg != nil {
				add(cfg.Path)
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	return files, nil
}

func scriptNotFound(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("find script").
		WithResource(path).
		WithIssue(issue.ScriptNotFoundId).
		WithSuggestion("Check the path, or pass a directory that contains an init script").
		Wrap(err).
		BuildError()
}
