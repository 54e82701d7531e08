// SPDX-License-Identifier: MPL-2.0

// Package watch reruns a script when any file of its module graph changes.
//
// A Watcher is given the exact set of files to observe (the entry script, every
// module it statically requires, and the alias files that steered resolution)
// and watches their parent directories. Events within the debounce window are
// coalesced so the callback fires once with the full set of changed paths. The
// callback may replace the file set, because an edit can add or remove requires.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is the delay before firing OnChange after the last event.
// Editors that write a temp file and rename it produce several events.
const defaultDebounce = 300 * time.Millisecond

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("watch: Run called more than once")

// defaultIgnores are never reported, whatever the configuration says.
var defaultIgnores = []string{
	"**/.git/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
}

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Files are the paths whose changes trigger OnChange.
		Files []string

		// Patterns are extra doublestar globs, relative to BaseDir, that also
		// trigger OnChange (for example "**/*.sh" to pick up new modules).
		// When set, every non-ignored directory under BaseDir is watched.
		Patterns []string

		// Ignore are additional doublestar globs merged with the defaults.
		Ignore []string

		// Debounce is the quiet period after the last event before the callback
		// fires. Zero or negative values fall back to defaultDebounce.
		Debounce time.Duration

		// ClearScreen writes an ANSI clear sequence to Stdout before each callback.
		ClearScreen bool

		// BaseDir anchors Patterns and the relative paths passed to OnChange.
		// Defaults to the working directory.
		BaseDir string

		// OnChange receives the deduplicated, sorted changed paths relative to BaseDir.
		OnChange func(ctx context.Context, changed []string) error

		Stdout io.Writer
		Logger *slog.Logger
	}

	// Watcher monitors a module graph. Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		ignores  []string
		stdout   io.Writer
		logger   *slog.Logger
		debounce time.Duration
		baseDir  string
		started  atomic.Bool

		mu    sync.Mutex
		files map[string]struct{}
		dirs  map[string]struct{}
	}
)

// New validates cfg and registers the directories to watch.
func New(cfg Config) (*Watcher, error) {
	baseDir := cfg.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("watch: determine working directory: %w", err)
		}
		baseDir = wd
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve base directory: %w", err)
	}

	if err := validatePatterns(cfg.Patterns, "watch"); err != nil {
		return nil, err
	}
	if err := validatePatterns(cfg.Ignore, "ignore"); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		ignores:  append(slices.Clone(defaultIgnores), cfg.Ignore...),
		stdout:   stdout,
		logger:   logger,
		debounce: debounce,
		baseDir:  absBase,
		files:    make(map[string]struct{}),
		dirs:     make(map[string]struct{}),
	}

	if err := w.SetFiles(cfg.Files); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	if len(cfg.Patterns) > 0 {
		if err := w.addTree(); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// SetFiles replaces the watched file set. Directories of new files are added;
// directories no longer needed stay watched until Run returns.
func (w *Watcher) SetFiles(files []string) error {
	set := make(map[string]struct{}, len(files))
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("watch: resolve %q: %w", f, err)
		}
		set[abs] = struct{}{}
	}

	w.mu.Lock()
	w.files = set
	w.mu.Unlock()

	for f := range set {
		if err := w.addDir(filepath.Dir(f)); err != nil {
			return err
		}
	}
	return nil
}

// Files returns the watched file set, sorted.
func (w *Watcher) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Sorted(maps.Keys(w.files))
}

// Run blocks until ctx is cancelled, dispatching debounced callbacks. It
// returns nil on cancellation and an error when the watcher breaks.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	// fire may run after cancellation (time.AfterFunc), and skips while a
	// previous callback is still running, rescheduling so changes are not lost.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			w.logger.Debug("previous run still in progress, rescheduling")
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		if w.cfg.ClearScreen {
			fmt.Fprint(w.stdout, "\033[2J\033[H")
		}
		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.logger.Error("rerun failed", "error", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("failed to close watcher", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			rel, relevant := w.relevant(evt.Name)
			if !relevant {
				continue
			}
			if evt.Has(fsnotify.Create) && len(w.cfg.Patterns) > 0 {
				w.maybeAddDir(evt.Name)
			}
			w.logger.Debug("change detected", "path", rel, "op", evt.Op.String())

			mu.Lock()
			pending[rel] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if stopsWatching(err) {
				return fmt.Errorf("watch: stopped by fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "error", err)
		}
	}
}

// stopsWatching reports whether a watcher error leaves it unable to deliver
// further events, so reruns would silently stop.
func stopsWatching(err error) bool {
	return slices.ContainsFunc(stopErrnos, func(errno syscall.Errno) bool {
		return errors.Is(err, errno)
	})
}

// relevant reports whether an event path should trigger a rerun, and its
// path relative to BaseDir.
func (w *Watcher) relevant(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	rel, err := filepath.Rel(w.baseDir, abs)
	if err != nil {
		rel = abs
	}
	if w.isIgnored(rel) {
		return rel, false
	}

	w.mu.Lock()
	_, tracked := w.files[abs]
	w.mu.Unlock()

	return rel, tracked || w.matchesPatterns(rel)
}

func (w *Watcher) addDir(dir string) error {
	w.mu.Lock()
	_, seen := w.dirs[dir]
	if !seen {
		w.dirs[dir] = struct{}{}
	}
	w.mu.Unlock()
	if seen {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("watch: add directory %q: %w", dir, err)
	}
	return nil
}

// addTree watches every non-ignored directory under BaseDir.
func (w *Watcher) addTree() error {
	walkErr := filepath.WalkDir(w.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("skipping inaccessible path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.baseDir, path)
		if relErr != nil {
			return nil //nolint:nilerr // paths outside BaseDir are not watched
		}
		if rel != "." && (w.isIgnored(rel) || w.isIgnored(rel+"/")) {
			return filepath.SkipDir
		}
		return w.addDir(path)
	})
	if walkErr != nil {
		return fmt.Errorf("watch: walk directory tree: %w", walkErr)
	}
	return nil
}

// maybeAddDir extends the watch to directories created after startup.
func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.addDir(path); err != nil {
		w.logger.Warn("failed to watch new directory", "path", path, "error", err)
	}
}

func (w *Watcher) isIgnored(rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pat := range w.ignores {
		if matched, err := doublestar.Match(pat, normalized); err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Watcher) matchesPatterns(rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pat := range w.cfg.Patterns {
		if matched, err := doublestar.Match(pat, normalized); err == nil && matched {
			return true
		}
	}
	return false
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}

func validatePatterns(patterns []string, label string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid %s pattern %q", label, pat)
		}
	}
	return nil
}
