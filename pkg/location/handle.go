// SPDX-License-Identifier: MPL-2.0

// Package location implements location handles: values that stand for a place
// in the module tree and navigate it by name instead of by path string.
//
// A handle is either static (a fixed path) or dynamic (whatever module is
// executing right now). Dynamic handles read the explicit location stack that
// the loader threads through each module's context with Push.
package location

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// ErrNoLocation is returned when a dynamic handle is used outside any module.
var ErrNoLocation = errors.New("no module is executing")

type (
	// TreeOptions configures a Tree.
	TreeOptions struct {
		FS          afero.Fs
		ProjectFile string
		Logger      *slog.Logger
	}

	// Tree creates handles and remembers the project files it has read.
	// It is safe for concurrent use.
	Tree struct {
		fs          afero.Fs
		projectFile string
		logger      *slog.Logger

		mu       sync.Mutex
		projects map[string]*project // keyed by directory; nil when absent
	}

	// Handle is a location in the module tree.
	Handle struct {
		tree *Tree
		path string
		// dynamic handles resolve their path from the context location stack.
		dynamic bool
	}
)

// NewTree creates a Tree.
func NewTree(opts TreeOptions) *Tree {
	t := &Tree{
		fs:          opts.FS,
		projectFile: opts.ProjectFile,
		logger:      opts.Logger,
		projects:    make(map[string]*project),
	}
	if t.fs == nil {
		t.fs = afero.NewOsFs()
	}
	if t.projectFile == "" {
		t.projectFile = DefaultProjectFile
	}
	if t.logger == nil {
		t.logger = slog.New(slog.DiscardHandler)
	}
	return t
}

// Here returns the dynamic handle for the currently executing module.
func (t *Tree) Here() Handle { return Handle{tree: t, dynamic: true} }

// At returns a static handle for path.
func (t *Tree) At(path string) Handle { return Handle{tree: t, path: filepath.Clean(path)} }

// Path resolves the handle to a filesystem path.
func (h Handle) Path(ctx context.Context) (string, error) {
	if !h.dynamic {
		return h.path, nil
	}
	if p, ok := Current(ctx); ok {
		return p, nil
	}
	return "", ErrNoLocation
}

// String returns the static path, or "[dynamic]".
func (h Handle) String() string {
	if h.dynamic {
		return "[dynamic]"
	}
	return h.path
}

// Name returns the last element of the handle's path.
func (h Handle) Name(ctx context.Context) (string, error) {
	p, err := h.Path(ctx)
	if err != nil {
		return "", err
	}
	return filepath.Base(p), nil
}

// Parent returns the handle of the enclosing directory. ok is false at the root.
func (h Handle) Parent(ctx context.Context) (parent Handle, ok bool, err error) {
	p, err := h.Path(ctx)
	if err != nil {
		return Handle{}, false, err
	}
	dir := filepath.Dir(p)
	if dir == p {
		return Handle{}, false, nil
	}
	return h.tree.At(dir), true, nil
}

// Child returns the handle named name below this one. When the handle is a file
// its directory is used as the base. A project file above the base may map the
// name to a path elsewhere; otherwise the child is a plain path join.
func (h Handle) Child(ctx context.Context, name string) (Handle, error) {
	p, err := h.Path(ctx)
	if err != nil {
		return Handle{}, err
	}

	base := p
	if info, err := h.tree.fs.Stat(p); err == nil && !info.IsDir() {
		base = filepath.Dir(p)
	}

	if proj := h.tree.projectFor(base); proj != nil {
		if mapped, ok := proj.lookup(base, name); ok {
			return h.tree.At(mapped), nil
		}
	}
	return h.tree.At(filepath.Join(base, name)), nil
}

// RequirePath renders a "./" or "../" reference from the executing module to
// this handle, suitable for require.
func (h Handle) RequirePath(ctx context.Context) (string, error) {
	p, err := h.Path(ctx)
	if err != nil {
		return "", err
	}
	current, ok := Current(ctx)
	if !ok {
		return "./" + filepath.ToSlash(strings.TrimPrefix(p, string(filepath.Separator))), nil
	}
	return RelativeRef(current, p), nil
}

// RelativeRef renders target as a reference relative to the directory of from,
// always starting with "./" or "../".
func RelativeRef(from, target string) string {
	rel, err := filepath.Rel(filepath.Dir(from), target)
	if err != nil {
		return filepath.ToSlash(target)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return rel
	}
	return "./" + rel
}

// projectFor finds the nearest project file at or above dir.
func (t *Tree) projectFor(dir string) *project {
	for {
		if p := t.projectIn(dir); p != nil {
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}

func (t *Tree) projectIn(dir string) *project {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p, ok := t.projects[dir]; ok {
		return p
	}

	var p *project
	path := filepath.Join(dir, t.projectFile)
	data, err := afero.ReadFile(t.fs, path)
	switch {
	case err == nil:
		p, err = parseProject(dir, data, path)
		if err != nil {
			t.logger.Warn("ignoring invalid project file", "path", path, "error", err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		t.logger.Debug("project file unreadable", "path", path, "error", err)
	}
	t.projects[dir] = p
	return p
}
