// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/afero"
)

// ErrInjected is returned by FailingFs for the paths it is told to fail.
var ErrInjected = errors.New("injected read failure")

type (
	// CountingFs wraps an afero.Fs and counts Open calls per path.
	CountingFs struct {
		afero.Fs

		mu    sync.Mutex
		opens map[string]int
	}

	// FailingFs wraps an afero.Fs and fails Open for a fixed set of paths.
	FailingFs struct {
		afero.Fs

		Fail map[string]bool
	}
)

// MemFS returns an in-memory filesystem holding files keyed by absolute,
// slash-separated paths.
func MemFS(t testing.TB, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		path := filepath.FromSlash(name)
		if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", name, err)
		}
		if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return fs
}

// NewCountingFs wraps fs.
func NewCountingFs(fs afero.Fs) *CountingFs {
	return &CountingFs{Fs: fs, opens: make(map[string]int)}
}

// Open records the call and delegates.
func (c *CountingFs) Open(name string) (afero.File, error) {
	c.mu.Lock()
	c.opens[filepath.ToSlash(name)]++
	c.mu.Unlock()
	return c.Fs.Open(name)
}

// Opens returns how many times path was opened.
func (c *CountingFs) Opens(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens[path]
}

// Open fails for configured paths and delegates otherwise.
func (f *FailingFs) Open(name string) (afero.File, error) {
	if f.Fail[filepath.ToSlash(name)] {
		return nil, ErrInjected
	}
	return f.Fs.Open(name)
}
