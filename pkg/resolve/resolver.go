// SPDX-License-Identifier: MPL-2.0

// Package resolve maps module references to the files they denote.
//
// Resolution is shared by the runtime loader and the static bundler, so both
// agree on which bytes a reference loads. Relative references resolve against
// the caller's directory, absolute ones against the filesystem root, and alias
// references go through an alias.Directory. In every case the candidate path
// then goes through extension and index-file resolution:
//
//  1. the exact path, if it is a regular file
//  2. the path with each registered extension appended, in order
//  3. if the path is a directory, <dir>/<index><ext> for each extension
package resolve

import (
	"os"
	"path/filepath"

	"github.com/crescent-rt/crescent/pkg/alias"
	"github.com/crescent-rt/crescent/pkg/location"

	"github.com/spf13/afero"
)

// DefaultIndexName is the directory index file name without extension.
const DefaultIndexName = "init"

// DefaultExtensions lists the script extensions tried, in preference order.
var DefaultExtensions = []string{".sh", ".bash"}

type (
	// Options configures a Resolver.
	Options struct {
		FS         afero.Fs
		Extensions []string
		IndexName  string
		Aliases    *alias.Directory
		// Root is the directory absolute references resolve against.
		// It defaults to the filesystem root.
		Root string
		// BaseDir stands in for the caller's directory when a reference is
		// resolved with no caller. It defaults to the working directory on the
		// OS filesystem and to Root otherwise.
		BaseDir string
	}

	// Target is a resolved reference: a file path, or a built-in module key.
	Target struct {
		// Path is the cleaned, extension- and index-resolved file path.
		Path string
		// Builtin is the fully-qualified key of a built-in module.
		Builtin string
		// Alias is the alias literal that was exercised, if any.
		Alias string
	}

	// Resolver resolves module references. It holds no per-call state and is
	// safe for concurrent use as long as its alias.Directory is.
	Resolver struct {
		fs         afero.Fs
		extensions []string
		indexName  string
		aliases    *alias.Directory
		root       string
		baseDir    string
		canonical  bool
	}
)

// New creates a Resolver.
func New(opts Options) *Resolver {
	r := &Resolver{
		fs:         opts.FS,
		extensions: opts.Extensions,
		indexName:  opts.IndexName,
		aliases:    opts.Aliases,
		root:       opts.Root,
		baseDir:    opts.BaseDir,
	}
	if r.fs == nil {
		r.fs = afero.NewOsFs()
	}
	if len(r.extensions) == 0 {
		r.extensions = DefaultExtensions
	}
	if r.indexName == "" {
		r.indexName = DefaultIndexName
	}
	if r.aliases == nil {
		r.aliases = alias.New(alias.Options{FS: r.fs})
	}
	if r.root == "" {
		r.root = string(filepath.Separator)
	}
	_, r.canonical = r.fs.(*afero.OsFs)
	if r.baseDir == "" {
		r.baseDir = r.root
		if r.canonical {
			if wd, err := os.Getwd(); err == nil {
				r.baseDir = wd
			}
		}
	}
	return r
}

// FS returns the filesystem the resolver reads.
func (r *Resolver) FS() afero.Fs { return r.fs }

// Aliases returns the alias directory the resolver consults.
func (r *Resolver) Aliases() *alias.Directory { return r.aliases }

// IsBuiltin reports whether the target names a built-in module.
func (t Target) IsBuiltin() bool { return t.Builtin != "" }

// Resolve maps ref, written in the script at caller, to its target.
// An empty caller resolves relative references against the base directory.
func (r *Resolver) Resolve(ref Ref, caller string) (Target, error) {
	callerDir := r.baseDir
	if caller != "" {
		callerDir = filepath.Dir(caller)
	}

	if ref.Kind() == KindLocation {
		path, err := r.Find(filepath.Clean(ref.String()), ref.String())
		return Target{Path: path}, err
	}

	raw := ref.String()
	switch ref.Form() {
	case FormRelative:
		path, err := r.Find(filepath.Join(callerDir, filepath.FromSlash(raw)), raw)
		return Target{Path: path}, err
	case FormAbsolute:
		path, err := r.Find(filepath.Join(r.root, filepath.FromSlash(raw)), raw)
		return Target{Path: path}, err
	case FormAlias:
		name, rest := alias.Split(raw)
		res, err := r.aliases.Resolve(name, rest, callerDir)
		if err != nil {
			return Target{}, err
		}
		if res.Builtin != "" {
			return Target{Builtin: res.Builtin, Alias: raw}, nil
		}
		path, err := r.Find(res.Path, raw)
		return Target{Path: path, Alias: raw}, err
	default:
		return Target{}, &InvalidReferenceError{Ref: raw}
	}
}

// ResolveString parses and resolves a string reference in one step.
func (r *Resolver) ResolveString(ref, caller string) (Target, error) {
	parsed, err := ParseRef(ref)
	if err != nil {
		return Target{}, err
	}
	return r.Resolve(parsed, caller)
}

// Find runs extension and index resolution for a candidate path. ref is only
// used for error messages.
func (r *Resolver) Find(path, ref string) (string, error) {
	path = filepath.Clean(path)
	tried := make([]string, 0, 1+2*len(r.extensions))

	isDir := false
	if info, err := r.fs.Stat(path); err == nil {
		if !info.IsDir() {
			return r.canonicalize(path), nil
		}
		isDir = true
	}
	tried = append(tried, path)

	for _, ext := range r.extensions {
		candidate := path + ext
		if r.isFile(candidate) {
			return r.canonicalize(candidate), nil
		}
		tried = append(tried, candidate)
	}

	if isDir {
		for _, ext := range r.extensions {
			candidate := filepath.Join(path, r.indexName+ext)
			if r.isFile(candidate) {
				return r.canonicalize(candidate), nil
			}
			tried = append(tried, candidate)
		}
	}

	return "", &ModuleNotFoundError{Ref: ref, Path: path, Tried: tried, IsDir: isDir}
}

// Display renders path relative to the caller's directory for diagnostics.
func Display(path, caller string) string {
	if caller == "" {
		return filepath.ToSlash(path)
	}
	return location.RelativeRef(caller, path)
}

func (r *Resolver) isFile(path string) bool {
	info, err := r.fs.Stat(path)
	return err == nil && !info.IsDir()
}

// canonicalize resolves symlinks on the OS filesystem so that every spelling of
// a file maps to one cache key. In-memory filesystems have no links.
func (r *Resolver) canonicalize(path string) string {
	if !r.canonical {
		return path
	}
	if real, err := filepath.EvalSymlinks(path); err == nil {
		return real
	}
	return path
}
