// SPDX-License-Identifier: MPL-2.0

package bundle

import (
	"errors"
	"maps"
	"path/filepath"
	"slices"
	"testing"

	"github.com/crescent-rt/crescent/internal/dag"
	"github.com/crescent-rt/crescent/internal/testutil"
	"github.com/crescent-rt/crescent/pkg/alias"
	"github.com/crescent-rt/crescent/pkg/resolve"

	"github.com/spf13/afero"
)

func newTestBundler(fs afero.Fs) *Bundler {
	return New(Options{Resolver: resolve.New(resolve.Options{
		FS:      fs,
		Aliases: alias.New(alias.Options{FS: fs}),
	})})
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

func TestBundle_Chain(t *testing.T) {
	t.Parallel()
	fs := testutil.MemFS(t, map[string]string{
		"/proj/a.sh":       "#!/bin/sh\nrequire ./b\n",
		"/proj/b.sh":       "x=$(require ./lib/c)\n",
		"/proj/lib/c.sh":   "provide c\n",
		"/proj/unused.sh":  "provide unused\n",
		"/proj/lib/d.bash": "provide d\n",
	})

	bd, err := newTestBundler(fs).Bundle("/proj/a.sh")
	if err != nil {
		t.Fatalf("Bundle() unexpected error: %v", err)
	}
	if got := sortedKeys(bd.Files); !slices.Equal(got, []string{"/a.sh", "/b.sh", "/lib/c.sh"}) {
		t.Errorf("files = %v", got)
	}
	if bd.Entry != "/a.sh" || bd.Root != "/proj" {
		t.Errorf("entry = %q, root = %q", bd.Entry, bd.Root)
	}
	if string(bd.Files["/lib/c.sh"]) != "provide c\n" {
		t.Errorf("contents = %q", bd.Files["/lib/c.sh"])
	}
	order, err := bd.Order()
	if err != nil {
		t.Fatalf("Order() unexpected error: %v", err)
	}
	if !slices.Equal(order, []string{"/lib/c.sh", "/b.sh", "/a.sh"}) {
		t.Errorf("Order() = %v", order)
	}
	if len(bd.Aliases) != 0 {
		t.Errorf("aliases = %v, want none", bd.Aliases)
	}
}

func TestBundle_CycleTerminates(t *testing.T) {
	t.Parallel()
	fs := testutil.MemFS(t, map[string]string{
		"/proj/a.sh": "require ./b\n",
		"/proj/b.sh": "require ./a\nrequire ./a.sh\n",
	})

	bd, err := newTestBundler(fs).Bundle("/proj/a.sh")
	if err != nil {
		t.Fatalf("Bundle() unexpected error: %v", err)
	}
	if got := sortedKeys(bd.Files); !slices.Equal(got, []string{"/a.sh", "/b.sh"}) {
		t.Errorf("files = %v", got)
	}
	if got := bd.Edges["/b.sh"]; !slices.Equal(got, []string{"/a.sh"}) {
		t.Errorf("edges of b = %v, want one deduplicated edge", got)
	}

	order, err := bd.Order()
	var cycle *dag.CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("Order() error = %v, want CycleError", err)
	}
	if !slices.Equal(order, []string{"/a.sh", "/b.sh"}) {
		t.Errorf("Order() fallback = %v", order)
	}
}

func TestBundle_Diamond(t *testing.T) {
	t.Parallel()
	fs := testutil.MemFS(t, map[string]string{
		"/p/main.sh":  "require ./l\nrequire ./r\n",
		"/p/l.sh":     "require ./base\n",
		"/p/r.sh":     "require ./base\n",
		"/p/base.sh":  "",
		"/p/other.sh": "",
	})

	bd, err := newTestBundler(fs).Bundle("/p/main.sh")
	if err != nil {
		t.Fatalf("Bundle() unexpected error: %v", err)
	}
	if len(bd.Files) != 4 {
		t.Errorf("files = %v", sortedKeys(bd.Files))
	}
	if got := bd.Keys(); got[0] != "/main.sh" {
		t.Errorf("Keys() = %v, want entry first", got)
	}
}

func TestBundle_AliasOutsideEntryDir(t *testing.T) {
	t.Parallel()
	fs := testutil.MemFS(t, map[string]string{
		"/proj/src/.crescentrc":  `{"aliases": {"pkgs": "../pkgs"}}`,
		"/proj/src/A.sh":         "require @pkgs/P\nrequire @crescent/version\nrequire @self/helper\n",
		"/proj/src/helper.sh":    "",
		"/proj/pkgs/P/init.sh":   "require ./util\n",
		"/proj/pkgs/P/util.bash": "",
	})

	bd, err := newTestBundler(fs).Bundle("/proj/src/A.sh")
	if err != nil {
		t.Fatalf("Bundle() unexpected error: %v", err)
	}
	if bd.Root != "/proj" {
		t.Errorf("root = %q, want /proj", bd.Root)
	}
	wantFiles := []string{"/pkgs/P/init.sh", "/pkgs/P/util.bash", "/src/A.sh", "/src/helper.sh"}
	if got := sortedKeys(bd.Files); !slices.Equal(got, wantFiles) {
		t.Errorf("files = %v, want %v", got, wantFiles)
	}
	if bd.Entry != "/src/A.sh" {
		t.Errorf("entry = %q", bd.Entry)
	}
	if len(bd.Aliases) != 1 || bd.Aliases["@pkgs/P"] != "/pkgs/P/init.sh" {
		t.Errorf("aliases = %v, want only @pkgs/P -> /pkgs/P/init.sh", bd.Aliases)
	}
	if got := bd.HostPath("/pkgs/P/util.bash"); got != filepath.FromSlash("/proj/pkgs/P/util.bash") {
		t.Errorf("HostPath() = %q", got)
	}
}

func TestBundle_AliasConflictAcrossScopes(t *testing.T) {
	t.Parallel()
	fs := testutil.MemFS(t, map[string]string{
		"/proj/.crescentrc":     `{"aliases": {"lib": "./lib"}}`,
		"/proj/main.sh":         "require @lib/x\nrequire ./sub/main\n",
		"/proj/lib/x.sh":        "provide top\n",
		"/proj/sub/.crescentrc": `{"aliases": {"lib": "./lib"}}`,
		"/proj/sub/main.sh":     "require @lib/x\nrequire @lib/x\n",
		"/proj/sub/lib/x.sh":    "provide nested\n",
	})

	bd, err := newTestBundler(fs).Bundle("/proj/main.sh")
	if err != nil {
		t.Fatalf("Bundle() unexpected error: %v", err)
	}
	if bd.Aliases["@lib/x"] != "/lib/x.sh" {
		t.Errorf("aliases = %v, want the first discovery kept", bd.Aliases)
	}
	want := []AliasConflict{{Alias: "@lib/x", Kept: "/lib/x.sh", Ignored: "/sub/lib/x.sh"}}
	if !slices.Equal(bd.Conflicts, want) {
		t.Errorf("Conflicts = %v, want %v", bd.Conflicts, want)
	}

	err = bd.CheckStatic()
	var conflictErr *AliasConflictError
	if !errors.As(err, &conflictErr) || !errors.Is(err, ErrAliasConflict) {
		t.Fatalf("CheckStatic() = %v, want *AliasConflictError", err)
	}
	if conflictErr.Alias != "@lib/x" || conflictErr.Ignored != "/sub/lib/x.sh" {
		t.Errorf("conflict = %+v", conflictErr)
	}
}

func TestBundle_RootStartsAtHighestConfig(t *testing.T) {
	t.Parallel()
	fs := testutil.MemFS(t, map[string]string{
		"/ws/.crescentrc":      `{}`,
		"/ws/app/cmd/main.sh":  "require ./sub/x\n",
		"/ws/app/cmd/sub/x.sh": "",
	})

	bd, err := newTestBundler(fs).Bundle("/ws/app/cmd/main.sh")
	if err != nil {
		t.Fatalf("Bundle() unexpected error: %v", err)
	}
	if bd.Root != "/ws" || bd.Entry != "/app/cmd/main.sh" {
		t.Errorf("root = %q, entry = %q", bd.Root, bd.Entry)
	}
}

func TestBundle_UnresolvableReferencesIgnored(t *testing.T) {
	t.Parallel()
	fs := testutil.MemFS(t, map[string]string{
		"/p/main.sh": "if false; then require ./optional; fi\nrequire @nowhere/x\nrequire ./there\n",
		"/p/there.sh": "",
	})

	bd, err := newTestBundler(fs).Bundle("/p/main.sh")
	if err != nil {
		t.Fatalf("Bundle() unexpected error: %v", err)
	}
	if got := sortedKeys(bd.Files); !slices.Equal(got, []string{"/main.sh", "/there.sh"}) {
		t.Errorf("files = %v", got)
	}
}

func TestBundle_IOErrors(t *testing.T) {
	t.Parallel()
	base := testutil.MemFS(t, map[string]string{
		"/p/main.sh": "require ./dep\n",
		"/p/dep.sh":  "",
	})

	tests := []struct {
		name  string
		entry string
		fail  string
		path  string
	}{
		{name: "missing entry", entry: "/p/none.sh", path: "/p/none.sh"},
		{name: "unreadable dependency", entry: "/p/main.sh", fail: "/p/dep.sh", path: "/p/dep.sh"},
		{name: "unreadable entry", entry: "/p/main.sh", fail: "/p/main.sh", path: "/p/main.sh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fs := &testutil.FailingFs{Fs: base, Fail: map[string]bool{tt.fail: true}}
			bd, err := newTestBundler(fs).Bundle(tt.entry)
			if bd != nil {
				t.Errorf("partial bundle returned: %+v", bd)
			}
			var ioErr *IOError
			if !errors.As(err, &ioErr) || !errors.Is(err, ErrBundleIO) {
				t.Fatalf("error = %v, want IOError", err)
			}
			if ioErr.Path != tt.path {
				t.Errorf("IOError.Path = %q, want %q", ioErr.Path, tt.path)
			}
		})
	}
}

func TestCommonAncestor(t *testing.T) {
	t.Parallel()
	tests := []struct{ a, b, want string }{
		{"/proj/src", "/proj/src/lib", "/proj/src"},
		{"/proj/src", "/proj/pkgs/P", "/proj"},
		{"/proj", "/other", "/"},
		{"/proj/src", "/proj/src", "/proj/src"},
	}
	for _, tt := range tests {
		if got := commonAncestor(tt.a, tt.b); got != tt.want {
			t.Errorf("commonAncestor(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}
