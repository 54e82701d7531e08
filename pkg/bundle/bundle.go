// SPDX-License-Identifier: MPL-2.0

// Package bundle collects a script and everything it statically requires into a
// host-independent file set.
//
// The walk never executes code. Each file is scanned for require call sites, each
// reference is resolved with the same rules the runtime loader uses, and every
// resolved file is visited once. Cycles and diamonds are plain graphs here.
//
// Bundle keys are slash-prefixed paths relative to a single project root: the
// highest directory holding an alias configuration above the entry (or the
// entry's own directory), widened to the common ancestor of every file found.
package bundle

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/crescent-rt/crescent/internal/dag"
	"github.com/crescent-rt/crescent/pkg/alias"
	"github.com/crescent-rt/crescent/pkg/resolve"

	"github.com/spf13/afero"
)

type (
	// Options configures a Bundler.
	Options struct {
		Resolver *resolve.Resolver
		Logger   *slog.Logger
	}

	// Bundler performs static dependency discovery. A Bundler memoizes alias
	// configuration for its lifetime and is meant for a single goroutine.
	Bundler struct {
		resolver *resolve.Resolver
		fs       afero.Fs
		logger   *slog.Logger
	}

	// Bundle is the discovered file set.
	Bundle struct {
		// Root is the host directory keys are relative to. It is not embedded
		// in standalone binaries.
		Root string
		// Entry is the entry file's key.
		Entry string
		// Files maps keys to file contents.
		Files map[string][]byte
		// Aliases maps each alias literal exercised during the walk to the key
		// of the file it led to.
		Aliases map[string]string
		// Edges maps a key to the keys it requires, in discovery order.
		Edges map[string][]string
		// Conflicts lists alias literals that led to different files from
		// different directories. Aliases keeps the first; a standalone
		// binary would load it for every caller.
		Conflicts []AliasConflict

		order []string
	}

	// AliasConflict is one alias literal resolved to two files.
	AliasConflict struct {
		Alias   string
		Kept    string
		Ignored string
	}
)

// New creates a Bundler.
func New(opts Options) *Bundler {
	b := &Bundler{resolver: opts.Resolver, logger: opts.Logger}
	if b.resolver == nil {
		b.resolver = resolve.New(resolve.Options{})
	}
	if b.logger == nil {
		b.logger = slog.New(slog.DiscardHandler)
	}
	b.fs = b.resolver.FS()
	return b
}

// Bundle walks the dependency graph of entry.
func (b *Bundler) Bundle(entry string) (*Bundle, error) {
	entryPath, err := b.resolver.Find(entry, entry)
	if err != nil {
		return nil, &IOError{Path: entry, Err: err}
	}

	var (
		visited   = make(map[string]bool)
		files     = make(map[string][]byte)
		aliases   = make(map[string]string)
		conflicts []AliasConflict
		edges     = make(map[string][]string)
		order     []string
		queue     = []string{entryPath}
	)

	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		if visited[path] {
			continue
		}
		visited[path] = true

		src, err := afero.ReadFile(b.fs, path)
		if err != nil {
			return nil, &IOError{Path: path, Err: err}
		}
		files[path] = src
		order = append(order, path)

		for _, ref := range Scan(src) {
			target, err := b.resolver.ResolveString(ref, path)
			if err != nil {
				b.logger.Debug("skipping unresolved reference", "file", path, "ref", ref, "error", err)
				continue
			}
			if target.IsBuiltin() {
				continue
			}
			if target.Alias != "" {
				if c, ok := b.recordAlias(aliases, target); !ok && !slices.Contains(conflicts, c) {
					conflicts = append(conflicts, c)
				}
			}
			if !slices.Contains(edges[path], target.Path) {
				edges[path] = append(edges[path], target.Path)
			}
			if !visited[target.Path] {
				queue = append(queue, target.Path)
			}
		}
	}

	root := b.initialRoot(entryPath)
	for _, path := range order {
		root = commonAncestor(root, filepath.Dir(path))
	}

	out := &Bundle{
		Root:    root,
		Files:   make(map[string][]byte, len(files)),
		Aliases: make(map[string]string, len(aliases)),
		Edges:   make(map[string][]string, len(edges)),
	}
	keyOf := func(path string) (string, error) {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", &IOError{Path: path, Err: fmt.Errorf("not under project root %s", root)}
		}
		return "/" + filepath.ToSlash(rel), nil
	}

	for _, path := range order {
		key, err := keyOf(path)
		if err != nil {
			return nil, err
		}
		out.Files[key] = files[path]
		out.order = append(out.order, key)
		for _, dep := range edges[path] {
			depKey, err := keyOf(dep)
			if err != nil {
				return nil, err
			}
			out.Edges[key] = append(out.Edges[key], depKey)
		}
	}
	for literal, path := range aliases {
		key, err := keyOf(path)
		if err != nil {
			return nil, err
		}
		out.Aliases[literal] = key
	}
	for _, c := range conflicts {
		kept, err := keyOf(c.Kept)
		if err != nil {
			return nil, err
		}
		ignored, err := keyOf(c.Ignored)
		if err != nil {
			return nil, err
		}
		out.Conflicts = append(out.Conflicts, AliasConflict{Alias: c.Alias, Kept: kept, Ignored: ignored})
	}
	out.Entry, _ = keyOf(entryPath)

	b.logger.Debug("bundle complete", "entry", out.Entry, "root", root, "files", len(out.Files), "aliases", len(out.Aliases))
	return out, nil
}

// Keys returns the bundle's keys in discovery order, entry first.
func (bd *Bundle) Keys() []string {
	if len(bd.order) == len(bd.Files) {
		return append([]string(nil), bd.order...)
	}
	keys := make([]string, 0, len(bd.Files))
	for k := range bd.Files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HostPath maps a key back to the file it was read from.
func (bd *Bundle) HostPath(key string) string {
	return filepath.Join(bd.Root, filepath.FromSlash(strings.TrimPrefix(key, "/")))
}

// Order lists the bundle's keys with every file after the files it requires.
// When the graph has a cycle the discovery order is returned together with the
// *dag.CycleError.
func (bd *Bundle) Order() ([]string, error) {
	g := dag.New()
	keys := bd.Keys()
	for _, k := range keys {
		g.AddNode(k)
	}
	for _, k := range keys {
		for _, dep := range bd.Edges[k] {
			g.AddEdge(dep, k)
		}
	}
	order, err := g.TopologicalSort()
	if err != nil {
		return keys, err
	}
	return order, nil
}

// CheckStatic reports the first alias conflict as an *AliasConflictError.
// Bundles with conflicts still describe the tree but cannot be embedded.
func (bd *Bundle) CheckStatic() error {
	if len(bd.Conflicts) == 0 {
		return nil
	}
	c := bd.Conflicts[0]
	return &AliasConflictError{Alias: c.Alias, Kept: c.Kept, Ignored: c.Ignored}
}

// recordAlias adds the literal that led to target. It returns false with the
// conflict when the literal already led to another file.
func (b *Bundler) recordAlias(aliases map[string]string, target resolve.Target) (AliasConflict, bool) {
	if name, _ := alias.Split(target.Alias); name == alias.Self {
		return AliasConflict{}, true
	}
	if existing, ok := aliases[target.Alias]; ok && existing != target.Path {
		b.logger.Warn("alias resolves differently across directories; keeping first",
			"alias", target.Alias, "kept", existing, "ignored", target.Path)
		return AliasConflict{Alias: target.Alias, Kept: existing, Ignored: target.Path}, false
	}
	aliases[target.Alias] = target.Path
	return AliasConflict{}, true
}

func (b *Bundler) initialRoot(entryPath string) string {
	dir := filepath.Dir(entryPath)
	if highest := b.resolver.Aliases().HighestConfigDir(dir); highest != "" {
		return highest
	}
	return dir
}

// commonAncestor returns the deepest directory containing both a and b.
func commonAncestor(a, b string) string {
	for {
		rel, err := filepath.Rel(a, b)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return a
		}
		parent := filepath.Dir(a)
		if parent == a {
			return a
		}
		a = parent
	}
}
