// SPDX-License-Identifier: MPL-2.0

// Package alias resolves "@name/rest" module references.
//
// Aliases are declared in per-directory JSON files (".crescentrc" by default):
//
//	{"aliases": {"utils": "./lib/utils", "pkgs": "../packages"}}
//
// The nearest directory whose file declares a name wins. Two names are reserved:
// "self" resolves against the caller's own directory, and "crescent" addresses
// the built-in module table.
package alias

import (
	_ "embed"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/crescent-rt/crescent/pkg/builtin"
	"github.com/crescent-rt/crescent/pkg/cueutil"

	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultFileName is the alias configuration file looked up in each directory.
	DefaultFileName = ".crescentrc"
	// Self is the reserved alias resolving relative to the calling script.
	Self = "self"
)

//go:embed alias_schema.cue
var aliasSchema []byte

type (
	// Config is one parsed alias configuration file.
	Config struct {
		// Path is the file the aliases were read from.
		Path    string
		Aliases map[string]string
	}

	configFile struct {
		Aliases map[string]string `json:"aliases"`
	}

	// Result is the outcome of an alias lookup: either a filesystem path still
	// subject to extension resolution, or a built-in key.
	Result struct {
		Path    string
		Builtin string
		// Source is the configuration file that declared the alias, empty for
		// reserved and static aliases.
		Source string
	}

	// Options configures a Directory.
	Options struct {
		FS       afero.Fs
		FileName string
		// Builtins, when set, is consulted for the reserved namespace so unknown
		// built-ins fail at resolution time.
		Builtins builtin.Lookup
		// Static maps full alias literals ("@pkgs/util") to paths. It is consulted
		// before any configuration file and is how standalone binaries carry the
		// aliases their bundle exercised.
		Static map[string]string
		Logger *slog.Logger
	}

	// Directory resolves aliases, memoizing each directory's configuration for
	// its own lifetime. It is safe for concurrent use.
	Directory struct {
		fs       afero.Fs
		fileName string
		builtins builtin.Lookup
		static   map[string]string
		logger   *slog.Logger

		mu      sync.Mutex
		configs map[string]*Config // nil value: directory has no usable config
		group   singleflight.Group
	}
)

// New creates a Directory.
func New(opts Options) *Directory {
	d := &Directory{
		fs:       opts.FS,
		fileName: opts.FileName,
		builtins: opts.Builtins,
		static:   opts.Static,
		logger:   opts.Logger,
		configs:  make(map[string]*Config),
	}
	if d.fs == nil {
		d.fs = afero.NewOsFs()
	}
	if d.fileName == "" {
		d.fileName = DefaultFileName
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}
	return d
}

// FileName returns the alias configuration file name.
func (d *Directory) FileName() string { return d.fileName }

// Split breaks an alias reference "@name/rest" into its name and remainder.
// The leading "@" is optional.
func Split(ref string) (name, rest string) {
	ref = strings.TrimPrefix(ref, "@")
	name, rest, _ = strings.Cut(ref, "/")
	return name, rest
}

// Literal composes the reference literal for name and rest.
func Literal(name, rest string) string {
	if rest == "" {
		return "@" + name
	}
	return "@" + name + "/" + rest
}

// Resolve maps an alias to a path (or built-in key) for a caller in callerDir.
func (d *Directory) Resolve(name, rest, callerDir string) (Result, error) {
	switch name {
	case Self:
		return Result{Path: join(callerDir, rest)}, nil
	case builtin.Namespace:
		key := builtin.Key(rest)
		if d.builtins != nil {
			if _, ok := d.builtins.Lookup(key); !ok {
				return Result{}, &UnknownBuiltinError{Key: key}
			}
		}
		return Result{Builtin: key}, nil
	}

	if p, ok := d.static[Literal(name, rest)]; ok {
		return Result{Path: p}, nil
	}

	for dir := filepath.Clean(callerDir); ; {
		if cfg := d.Config(dir); cfg != nil {
			if value, ok := cfg.Aliases[name]; ok {
				base := value
				if !filepath.IsAbs(base) {
					base = filepath.Join(dir, filepath.FromSlash(value))
				}
				return Result{Path: join(base, rest), Source: cfg.Path}, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return Result{}, &UnknownAliasError{Name: name, CallerDir: callerDir, FileName: d.fileName}
}

// Config returns the configuration declared directly in dir, or nil.
// Each directory is read at most once per Directory; concurrent first lookups
// of the same directory share one read.
func (d *Directory) Config(dir string) *Config {
	if cfg, ok := d.cached(dir); ok {
		return cfg
	}

	v, _, _ := d.group.Do(dir, func() (any, error) {
		if cfg, ok := d.cached(dir); ok {
			return cfg, nil
		}
		cfg := d.read(dir)
		d.mu.Lock()
		d.configs[dir] = cfg
		d.mu.Unlock()
		return cfg, nil
	})
	return v.(*Config)
}

// HighestConfigDir returns the topmost directory at or above start that holds
// an alias configuration file, or "" when none does.
func (d *Directory) HighestConfigDir(start string) string {
	highest := ""
	for dir := filepath.Clean(start); ; {
		if d.Config(dir) != nil {
			highest = dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return highest
		}
		dir = parent
	}
}

func (d *Directory) cached(dir string) (*Config, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cfg, ok := d.configs[dir]
	return cfg, ok
}

func (d *Directory) read(dir string) *Config {
	path := filepath.Join(dir, d.fileName)
	data, err := afero.ReadFile(d.fs, path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			d.logger.Debug("alias config unreadable", "path", path, "error", err)
		}
		return nil
	}

	file, err := cueutil.Decode[configFile](aliasSchema, data, "#AliasConfig", cueutil.WithFilename(path))
	if err != nil {
		d.logger.Warn("ignoring invalid alias config", "path", path, "error", err)
		return nil
	}
	return &Config{Path: path, Aliases: file.Aliases}
}

func join(base, rest string) string {
	if rest == "" {
		return filepath.Clean(base)
	}
	return filepath.Join(base, filepath.FromSlash(rest))
}
