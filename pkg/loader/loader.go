// SPDX-License-Identifier: MPL-2.0

// Package loader executes required modules exactly once per resolved path.
//
// A Loader owns a success cache and a table of in-flight loads. The first caller
// to require a path registers a flight and starts one producer goroutine that
// reads and executes the module; every concurrent caller of the same path waits
// on the flight's done channel and receives the identical result. Failures are
// delivered to all waiters but never cached, so a later require retries.
//
// Require cycles are reported as ErrCyclicRequire. While a module waits for
// another, the loader records a wait-for edge; an edge that would close a cycle
// is rejected instead of deadlocking.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/crescent-rt/crescent/internal/dag"
	"github.com/crescent-rt/crescent/pkg/alias"
	"github.com/crescent-rt/crescent/pkg/builtin"
	"github.com/crescent-rt/crescent/pkg/location"
	"github.com/crescent-rt/crescent/pkg/resolve"

	"github.com/spf13/afero"
)

type (
	// Value is whatever a module produced; the loader treats it as opaque.
	Value = any

	// Chunk is one unit of source handed to the Executor. Name is the module's
	// resolved path, so nested relative requires resolve against it.
	Chunk struct {
		Name   string
		Source []byte
	}

	// Executor runs a chunk to completion and returns the values its top level
	// produced. The context carries the location stack with the chunk on top.
	Executor interface {
		Execute(ctx context.Context, chunk Chunk) ([]Value, error)
	}

	// ExecutorFunc adapts a function to Executor.
	ExecutorFunc func(ctx context.Context, chunk Chunk) ([]Value, error)

	// Options configures a Loader.
	Options struct {
		Resolver *resolve.Resolver
		Builtins builtin.Lookup
		Executor Executor
		Logger   *slog.Logger
	}

	// Stats is a snapshot of the loader's bookkeeping.
	Stats struct {
		Cached   int
		Pending  int
		Executed int
	}

	// Loader loads modules. It is safe for concurrent use.
	Loader struct {
		fs       afero.Fs
		resolver *resolve.Resolver
		builtins builtin.Lookup
		executor Executor
		logger   *slog.Logger

		mu       sync.Mutex
		cache    map[string]Value
		pending  map[string]*flight
		waits    map[waitEdge]int
		executed int
	}

	// flight is one in-progress load. done is closed exactly once, by the
	// producer, after value and err are set.
	flight struct {
		done  chan struct{}
		value Value
		err   error
	}

	// waitEdge records that module "from" is blocked on the load of "to".
	waitEdge struct {
		from, to string
	}
)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, chunk Chunk) ([]Value, error) {
	return f(ctx, chunk)
}

// New creates a Loader.
func New(opts Options) *Loader {
	l := &Loader{
		resolver: opts.Resolver,
		builtins: opts.Builtins,
		executor: opts.Executor,
		logger:   opts.Logger,
		cache:    make(map[string]Value),
		pending:  make(map[string]*flight),
		waits:    make(map[waitEdge]int),
	}
	if l.resolver == nil {
		l.resolver = resolve.New(resolve.Options{})
	}
	if l.logger == nil {
		l.logger = slog.New(slog.DiscardHandler)
	}
	l.fs = l.resolver.FS()
	return l
}

// Resolver returns the resolver the loader uses.
func (l *Loader) Resolver() *resolve.Resolver { return l.resolver }

// Require loads the module ref denotes for the module executing in ctx and
// returns its value. Resolution errors are returned immediately.
func (l *Loader) Require(ctx context.Context, ref resolve.Ref) (Value, error) {
	caller, _ := location.Current(ctx)

	target, err := l.resolver.Resolve(ref, caller)
	if err != nil {
		return nil, err
	}

	if target.IsBuiltin() {
		if l.builtins != nil {
			if v, ok := l.builtins.Lookup(target.Builtin); ok {
				return v, nil
			}
		}
		return nil, &alias.UnknownBuiltinError{Key: target.Builtin}
	}

	return l.load(ctx, target.Path, caller, nil)
}

// Main runs the entry module at path through the same single-flight machinery.
// source, when non-nil, is executed instead of the file's bytes; callers use it
// to pass source with a shebang line already stripped.
func (l *Loader) Main(ctx context.Context, path string, source []byte) (Value, error) {
	caller, _ := location.Current(ctx)
	return l.load(ctx, path, caller, source)
}

// Stats returns a snapshot of the cache and flight tables.
func (l *Loader) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{Cached: len(l.cache), Pending: len(l.pending), Executed: l.executed}
}

func (l *Loader) load(ctx context.Context, path, caller string, source []byte) (Value, error) {
	l.mu.Lock()

	if v, ok := l.cache[path]; ok {
		l.mu.Unlock()
		l.logger.Debug("module cache hit", "path", path)
		return v, nil
	}

	if caller != "" {
		if chain := l.cycleLocked(caller, path); chain != nil {
			l.mu.Unlock()
			return nil, &CyclicRequireError{Chain: chain}
		}
		l.waits[waitEdge{caller, path}]++
		defer l.release(waitEdge{caller, path})
	}

	f, inFlight := l.pending[path]
	if !inFlight {
		f = &flight{done: make(chan struct{})}
		l.pending[path] = f
		go l.produce(context.WithoutCancel(ctx), path, source, f)
	} else {
		l.logger.Debug("waiting for in-flight module", "path", path, "caller", caller)
	}
	l.mu.Unlock()

	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// produce is the single writer of a flight.
func (l *Loader) produce(ctx context.Context, path string, source []byte, f *flight) {
	start := time.Now()
	value, err := l.execute(ctx, path, source)

	l.mu.Lock()
	if err == nil {
		l.cache[path] = value
	}
	delete(l.pending, path)
	f.value, f.err = value, err
	l.mu.Unlock()
	close(f.done)

	if err != nil {
		l.logger.Debug("module failed", "path", path, "error", err)
		return
	}
	l.logger.Debug("module loaded", "path", path, "duration", time.Since(start))
}

func (l *Loader) execute(ctx context.Context, path string, source []byte) (value Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ModuleError{Path: path, Op: "execute", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if source == nil {
		source, err = afero.ReadFile(l.fs, path)
		if err != nil {
			return nil, &ModuleError{Path: path, Op: "read", Err: err}
		}
	}

	l.mu.Lock()
	l.executed++
	l.mu.Unlock()

	values, err := l.executor.Execute(location.Push(ctx, path), Chunk{Name: path, Source: source})
	if err != nil {
		return nil, &ModuleError{Path: path, Op: "execute", Err: err}
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values[0], nil
}

// cycleLocked returns the cycle that "caller waits for path" would close.
func (l *Loader) cycleLocked(caller, path string) []string {
	if caller == path {
		return []string{caller, path}
	}
	if len(l.waits) == 0 {
		return nil
	}

	edges := make([]waitEdge, 0, len(l.waits))
	for e := range l.waits {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].from != edges[j].from {
			return edges[i].from < edges[j].from
		}
		return edges[i].to < edges[j].to
	})

	g := dag.New()
	for _, e := range edges {
		g.AddEdge(e.from, e.to)
	}
	return g.CycleThrough(caller, path)
}

func (l *Loader) release(e waitEdge) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.waits[e]--; l.waits[e] <= 0 {
		delete(l.waits, e)
	}
}
