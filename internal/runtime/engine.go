// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/crescent-rt/crescent/pkg/loader"
	"github.com/crescent-rt/crescent/pkg/location"
	"github.com/crescent-rt/crescent/pkg/types"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

type (
	// EngineOptions configures an Engine.
	EngineOptions struct {
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
		// Env is the initial environment in KEY=VALUE form. Defaults to os.Environ().
		Env []string
		// WorkDir is the shell's working directory. Defaults to the process working directory.
		WorkDir string
		// Args are the positional parameters of the entry module.
		Args   []string
		Tree   *location.Tree
		Logger *slog.Logger
	}

	// Engine executes shell chunks for a loader.
	Engine struct {
		stdin   io.Reader
		stdout  io.Writer
		stderr  io.Writer
		env     []string
		workDir string
		args    []string
		tree    *location.Tree
		logger  *slog.Logger

		loader *loader.Loader
	}

	// moduleState is the per-execution state the builtins write to.
	moduleState struct {
		mu       sync.Mutex
		value    string
		provided bool
	}
)

// NewEngine creates an Engine. Bind must be called before it executes chunks
// that use require.
func NewEngine(opts EngineOptions) *Engine {
	e := &Engine{
		stdin:   opts.Stdin,
		stdout:  opts.Stdout,
		stderr:  opts.Stderr,
		env:     opts.Env,
		workDir: opts.WorkDir,
		args:    opts.Args,
		tree:    opts.Tree,
		logger:  opts.Logger,
	}
	if e.stdout == nil {
		e.stdout = io.Discard
	}
	if e.stderr == nil {
		e.stderr = io.Discard
	}
	if e.env == nil {
		e.env = os.Environ()
	}
	if e.workDir == "" {
		if wd, err := os.Getwd(); err == nil {
			e.workDir = wd
		}
	}
	if e.tree == nil {
		e.tree = location.NewTree(location.TreeOptions{})
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e
}

// Bind attaches the loader that require delegates to.
func (e *Engine) Bind(l *loader.Loader) {
	e.loader = l
}

// Execute parses and runs one chunk. The module's value is whatever its
// first provide call recorded; a module that never calls provide has none.
func (e *Engine) Execute(ctx context.Context, chunk loader.Chunk) ([]loader.Value, error) {
	prog, err := syntax.NewParser().Parse(bytes.NewReader(chunk.Source), chunk.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}

	state := &moduleState{}
	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(e.env...)),
		interp.StdIO(e.stdin, e.stdout, e.stderr),
		interp.ExecHandlers(e.builtins(state)),
	}
	if e.workDir != "" {
		opts = append(opts, interp.Dir(e.workDir))
	}

	// Only the entry module sees the command-line arguments.
	// "--" keeps arguments like "-v" from being read as shell options.
	if len(location.Stack(ctx)) == 1 && len(e.args) > 0 {
		opts = append(opts, interp.Params(append([]string{"--"}, e.args...)...))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		if status, ok := interp.IsExitStatus(err); ok {
			if status != 0 {
				return nil, &ExitError{Code: types.ExitCode(status), Path: chunk.Name}
			}
		} else {
			return nil, err
		}
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	if !state.provided {
		return nil, nil
	}
	return []loader.Value{state.value}, nil
}

// provide records v unless a value was already provided.
func (s *moduleState) provide(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.provided {
		return
	}
	s.value, s.provided = v, true
}
