// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	goruntime "runtime"

	"github.com/crescent-rt/crescent/internal/config"
	"github.com/crescent-rt/crescent/pkg/alias"
	"github.com/crescent-rt/crescent/pkg/builtin"
	"github.com/crescent-rt/crescent/pkg/loader"
	"github.com/crescent-rt/crescent/pkg/location"
	"github.com/crescent-rt/crescent/pkg/resolve"
	"github.com/crescent-rt/crescent/pkg/standalone"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

type (
	// Options configures a Runtime.
	Options struct {
		// Config supplies extensions, index and alias file names. Defaults to
		// config.DefaultConfig().
		Config *config.Config
		// FS is the filesystem scripts are loaded from. Defaults to the OS filesystem.
		FS afero.Fs
		// StaticAliases are alias literals resolved before any alias file.
		StaticAliases map[string]string
		// Root is the directory absolute references resolve against.
		Root string

		Stdin   io.Reader
		Stdout  io.Writer
		Stderr  io.Writer
		Env     []string
		WorkDir string
		Args    []string

		// Version is reported by @crescent/version.
		Version string
		// Executable is reported by @crescent/executable; empty outside
		// standalone binaries.
		Executable string

		Logger *slog.Logger
	}

	// Runtime is one configured run: a fresh module cache plus the resolver,
	// alias directory and engine serving it.
	Runtime struct {
		fs       afero.Fs
		resolver *resolve.Resolver
		loader   *loader.Loader
		engine   *Engine
		builtins *builtin.Registry
		logger   *slog.Logger
		session  string
	}
)

// New wires a Runtime.
func New(opts Options) *Runtime {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	fs := opts.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	session := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("session", session)

	builtins := builtin.NewRegistry()
	builtins.Register("version", opts.Version)
	builtins.Register("platform", goruntime.GOOS+"/"+goruntime.GOARCH)
	builtins.Register("executable", opts.Executable)

	aliases := alias.New(alias.Options{
		FS:       fs,
		FileName: cfg.AliasFile,
		Builtins: builtins,
		Static:   opts.StaticAliases,
		Logger:   logger,
	})
	resolver := resolve.New(resolve.Options{
		FS:         fs,
		Extensions: cfg.Extensions,
		IndexName:  cfg.IndexName,
		Aliases:    aliases,
		Root:       opts.Root,
	})
	tree := location.NewTree(location.TreeOptions{
		FS:          fs,
		ProjectFile: cfg.ProjectFile,
		Logger:      logger,
	})
	engine := NewEngine(EngineOptions{
		Stdin:   opts.Stdin,
		Stdout:  opts.Stdout,
		Stderr:  opts.Stderr,
		Env:     opts.Env,
		WorkDir: opts.WorkDir,
		Args:    opts.Args,
		Tree:    tree,
		Logger:  logger,
	})
	l := loader.New(loader.Options{
		Resolver: resolver,
		Builtins: builtins,
		Executor: engine,
		Logger:   logger,
	})
	engine.Bind(l)

	return &Runtime{
		fs:       fs,
		resolver: resolver,
		loader:   l,
		engine:   engine,
		builtins: builtins,
		logger:   logger,
		session:  session,
	}
}

// Session returns the run's unique id.
func (r *Runtime) Session() string { return r.session }

// Loader returns the runtime's module loader.
func (r *Runtime) Loader() *loader.Loader { return r.loader }

// Builtins returns the built-in module table.
func (r *Runtime) Builtins() *builtin.Registry { return r.builtins }

// EntryPath resolves a command-line script argument: a file, or a directory
// holding an index file.
func (r *Runtime) EntryPath(path string) (string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		abs = filepath.Join(wd, path)
	}
	return r.resolver.Find(filepath.Clean(abs), path)
}

// RunFile runs the script at path, or the index file of the directory at path.
func (r *Runtime) RunFile(ctx context.Context, path string) error {
	entry, err := r.EntryPath(path)
	if err != nil {
		return err
	}
	return r.run(ctx, entry, nil)
}

// RunSource runs source as the entry module named path.
func (r *Runtime) RunSource(ctx context.Context, path string, source []byte) error {
	if source == nil {
		source = []byte{}
	}
	return r.run(ctx, path, source)
}

func (r *Runtime) run(ctx context.Context, entry string, source []byte) error {
	r.logger.Debug("running script", "entry", entry)
	_, err := r.loader.Main(ctx, entry, source)

	stats := r.loader.Stats()
	r.logger.Debug("run finished", "entry", entry, "modules", stats.Executed, "cached", stats.Cached)

	if err == nil {
		return nil
	}
	// The entry's own exit status is reported without the module wrapper.
	var modErr *loader.ModuleError
	var exitErr *ExitError
	if errors.As(err, &modErr) && modErr.Path == entry && errors.As(modErr.Err, &exitErr) && exitErr.Path == entry {
		return exitErr
	}
	return err
}

// BundleFS materializes a standalone bundle in memory.
func BundleFS(m *standalone.Metadata) (afero.Fs, error) {
	fs := afero.NewMemMapFs()
	for key, src := range m.Files {
		if err := fs.MkdirAll(filepath.Dir(key), 0o755); err != nil {
			return nil, fmt.Errorf("failed to materialize bundle: %w", err)
		}
		if err := afero.WriteFile(fs, key, src, 0o644); err != nil {
			return nil, fmt.Errorf("failed to materialize bundle: %w", err)
		}
	}
	return fs, nil
}

// RunBundle runs the entry of a standalone bundle. opts.FS and
// opts.StaticAliases are replaced by the bundle's contents.
func RunBundle(ctx context.Context, m *standalone.Metadata, opts Options) error {
	fs, err := BundleFS(m)
	if err != nil {
		return err
	}
	opts.FS = fs
	opts.StaticAliases = m.Aliases
	opts.Root = string(filepath.Separator)
	return New(opts).RunSource(ctx, m.EntryPath, m.Source)
}
