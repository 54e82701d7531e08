// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"testing"
	"time"
)

const callbackTimeout = 5 * time.Second

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// startWatcher runs w until the test ends and fails the test if Run errors.
func startWatcher(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errCh; err != nil {
			t.Errorf("Run() error: %v", err)
		}
	})
	// Let the event loop start before the test writes files.
	time.Sleep(50 * time.Millisecond)
}

func waitChange(t *testing.T, ch <-chan []string) []string {
	t.Helper()
	select {
	case changed := <-ch:
		return changed
	case <-time.After(callbackTimeout):
		t.Fatal("timed out waiting for callback")
		return nil
	}
}

func TestWatcher_TrackedFilesOnly(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	main := filepath.Join(dir, "main.sh")
	lib := filepath.Join(dir, "lib", "util.sh")
	writeFile(t, main, "require ./lib/util")
	writeFile(t, lib, "provide x")

	changes := make(chan []string, 10)
	w, err := New(Config{
		BaseDir:  dir,
		Files:    []string{main, lib},
		Debounce: 50 * time.Millisecond,
		OnChange: func(_ context.Context, changed []string) error {
			changes <- changed
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	startWatcher(t, w)

	// Untracked sibling: no callback.
	writeFile(t, filepath.Join(dir, "notes.txt"), "x")
	time.Sleep(200 * time.Millisecond)
	select {
	case changed := <-changes:
		t.Fatalf("untracked file triggered callback: %v", changed)
	default:
	}

	writeFile(t, lib, "provide y")
	changed := waitChange(t, changes)
	if !slices.Equal(changed, []string{filepath.Join("lib", "util.sh")}) {
		t.Errorf("changed = %v, want [lib/util.sh]", changed)
	}
}

func TestWatcher_Debounce(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	files := []string{filepath.Join(dir, "a.sh"), filepath.Join(dir, "b.sh"), filepath.Join(dir, "c.sh")}
	for _, f := range files {
		writeFile(t, f, "")
	}

	changes := make(chan []string, 10)
	w, err := New(Config{
		BaseDir:  dir,
		Files:    files,
		Debounce: 150 * time.Millisecond,
		OnChange: func(_ context.Context, changed []string) error {
			changes <- changed
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	startWatcher(t, w)

	for _, f := range files {
		writeFile(t, f, "echo changed")
		time.Sleep(10 * time.Millisecond)
	}

	changed := waitChange(t, changes)
	if !slices.Equal(changed, []string{"a.sh", "b.sh", "c.sh"}) {
		t.Errorf("changed = %v, want all three files in one callback", changed)
	}
}

func TestWatcher_SetFilesFromCallback(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	main := filepath.Join(dir, "main.sh")
	added := filepath.Join(dir, "extra", "new.sh")
	writeFile(t, main, "")
	writeFile(t, added, "")

	changes := make(chan []string, 10)
	var w *Watcher
	w, err := New(Config{
		BaseDir:  dir,
		Files:    []string{main},
		Debounce: 50 * time.Millisecond,
		OnChange: func(_ context.Context, changed []string) error {
			// The edited entry now requires ./extra/new.
			if err := w.SetFiles([]string{main, added}); err != nil {
				return err
			}
			changes <- changed
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	startWatcher(t, w)

	writeFile(t, main, "require ./extra/new")
	waitChange(t, changes)

	if got := w.Files(); !slices.Contains(got, added) {
		t.Fatalf("Files() = %v, want it to contain %s", got, added)
	}

	writeFile(t, added, "provide z")
	changed := waitChange(t, changes)
	if !slices.Contains(changed, filepath.Join("extra", "new.sh")) {
		t.Errorf("changed = %v, want extra/new.sh", changed)
	}
}

func TestWatcher_PatternsAndIgnores(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	changes := make(chan []string, 10)
	w, err := New(Config{
		BaseDir:  dir,
		Patterns: []string{"**/*.sh"},
		Ignore:   []string{"**/skip.sh"},
		Debounce: 50 * time.Millisecond,
		OnChange: func(_ context.Context, changed []string) error {
			changes <- changed
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	startWatcher(t, w)

	writeFile(t, filepath.Join(dir, "skip.sh"), "")
	writeFile(t, filepath.Join(dir, "readme.md"), "")
	writeFile(t, filepath.Join(dir, "tool.sh"), "")

	changed := waitChange(t, changes)
	if slices.Contains(changed, "skip.sh") || slices.Contains(changed, "readme.md") {
		t.Errorf("ignored or unmatched file reported: %v", changed)
	}
	if !slices.Contains(changed, "tool.sh") {
		t.Errorf("changed = %v, want tool.sh", changed)
	}
}

func TestWatcher_ClearScreen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	main := filepath.Join(dir, "main.sh")
	writeFile(t, main, "")

	var stdout bytes.Buffer
	done := make(chan struct{}, 1)
	w, err := New(Config{
		BaseDir:     dir,
		Files:       []string{main},
		ClearScreen: true,
		Debounce:    50 * time.Millisecond,
		Stdout:      &stdout,
		OnChange: func(context.Context, []string) error {
			done <- struct{}{}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	startWatcher(t, w)

	writeFile(t, main, "echo hi")
	select {
	case <-done:
	case <-time.After(callbackTimeout):
		t.Fatal("timed out waiting for callback")
	}
	if !strings.HasPrefix(stdout.String(), "\033[2J\033[H") {
		t.Errorf("stdout = %q, want clear sequence", stdout.String())
	}
}

func TestWatcher_ContextCancel(t *testing.T) {
	t.Parallel()
	w, err := New(Config{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() returned error on cancel: %v", err)
		}
	case <-time.After(callbackTimeout):
		t.Fatal("Run() did not return after context cancellation")
	}
}

func TestWatcher_DoubleRun(t *testing.T) {
	t.Parallel()
	w, err := New(Config{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	startWatcher(t, w)

	if err := w.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() = %v, want ErrAlreadyRunning", err)
	}
}

func TestWatcher_InvalidPattern(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{BaseDir: t.TempDir(), Patterns: []string{"[unclosed"}}); err == nil {
		t.Error("expected error for invalid watch pattern")
	}
	if _, err := New(Config{BaseDir: t.TempDir(), Ignore: []string{"[unclosed"}}); err == nil {
		t.Error("expected error for invalid ignore pattern")
	}
}

func TestDefaultIgnores(t *testing.T) {
	t.Parallel()
	w := &Watcher{ignores: DefaultIgnores()}

	tests := []struct {
		path    string
		ignored bool
	}{
		{".git/config", true},
		{"lib/util.sh.swp", true},
		{"backup~", true},
		{"sub/.DS_Store", true},
		{"main.sh", false},
		{"lib/.crescentrc", false},
		{".gitignore", false},
	}
	for _, tt := range tests {
		if got := w.isIgnored(tt.path); got != tt.ignored {
			t.Errorf("isIgnored(%q) = %v, want %v", tt.path, got, tt.ignored)
		}
	}

	copied := DefaultIgnores()
	copied[0] = "changed"
	if DefaultIgnores()[0] == "changed" {
		t.Error("DefaultIgnores must return a copy")
	}
}

func TestStopsWatching(t *testing.T) {
	t.Parallel()

	for _, errno := range stopErrnos {
		if !stopsWatching(fmt.Errorf("fsnotify: %w", errno)) {
			t.Errorf("wrapped %v should stop the watcher", errno)
		}
	}
	for _, err := range []error{syscall.Errno(2), errors.New("queue overflow"), nil} {
		if stopsWatching(err) {
			t.Errorf("%v should not stop the watcher", err)
		}
	}
}
