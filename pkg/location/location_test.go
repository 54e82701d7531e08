// SPDX-License-Identifier: MPL-2.0

package location

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/crescent-rt/crescent/internal/testutil"
)

func TestStack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	if _, ok := Current(ctx); ok {
		t.Fatal("empty context must have no current location")
	}

	outer := Push(ctx, "/proj/main.sh")
	inner := Push(outer, "/proj/lib/a.sh")

	if got, _ := Current(inner); got != "/proj/lib/a.sh" {
		t.Errorf("Current(inner) = %q", got)
	}
	if got, _ := Current(outer); got != "/proj/main.sh" {
		t.Errorf("Current(outer) = %q, pushing must not affect the parent context", got)
	}
	if got := Stack(inner); !slices.Equal(got, []string{"/proj/main.sh", "/proj/lib/a.sh"}) {
		t.Errorf("Stack(inner) = %v", got)
	}
	if got := Stack(ctx); got != nil {
		t.Errorf("Stack(empty) = %v", got)
	}
}

func newTestTree(t *testing.T) *Tree {
	t.Helper()
	fs := testutil.MemFS(t, map[string]string{
		"/proj/crescent.project.json": `{"tree": {"shared": {"$path": "lib/shared", "util": {"$path": "lib/shared/util.sh"}}, "game": {"$path": "src"}}}`,
		"/proj/src/main.sh":           "",
		"/proj/src/mod/init.sh":       "",
		"/proj/lib/shared/util.sh":    "",
	})
	return NewTree(TreeOptions{FS: fs})
}

func TestHandle_Dynamic(t *testing.T) {
	t.Parallel()
	tree := newTestTree(t)
	here := tree.Here()

	if _, err := here.Path(context.Background()); !errors.Is(err, ErrNoLocation) {
		t.Fatalf("Path outside a module error = %v, want ErrNoLocation", err)
	}

	ctx := Push(context.Background(), filepath.FromSlash("/proj/src/main.sh"))
	name, err := here.Name(ctx)
	if err != nil || name != "main.sh" {
		t.Errorf("Name() = %q, %v", name, err)
	}

	parent, ok, err := here.Parent(ctx)
	if err != nil || !ok {
		t.Fatalf("Parent() ok = %v, err = %v", ok, err)
	}
	if parent.String() != filepath.FromSlash("/proj/src") {
		t.Errorf("Parent() = %s", parent)
	}
	if here.String() != "[dynamic]" {
		t.Errorf("String() = %q", here.String())
	}
}

func TestHandle_Child(t *testing.T) {
	t.Parallel()
	tree := newTestTree(t)
	ctx := Push(context.Background(), filepath.FromSlash("/proj/src/main.sh"))

	tests := []struct {
		name  string
		from  Handle
		child string
		want  string
	}{
		{name: "file uses its directory", from: tree.Here(), child: "mod", want: "/proj/src/mod"},
		{name: "project mapping at root", from: tree.At("/proj"), child: "shared", want: "/proj/lib/shared"},
		{name: "project mapping through $path", from: tree.At("/proj/lib/shared"), child: "util", want: "/proj/lib/shared/util.sh"},
		{name: "unmapped child", from: tree.At("/proj/lib/shared"), child: "other", want: "/proj/lib/shared/other"},
		{name: "outside project", from: tree.At("/elsewhere"), child: "x", want: "/elsewhere/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.from.Child(ctx, tt.child)
			if err != nil {
				t.Fatalf("Child(%q) unexpected error: %v", tt.child, err)
			}
			if got.String() != filepath.FromSlash(tt.want) {
				t.Errorf("Child(%q) = %s, want %s", tt.child, got, tt.want)
			}
		})
	}
}

func TestHandle_RequirePath(t *testing.T) {
	t.Parallel()
	tree := newTestTree(t)
	ctx := Push(context.Background(), filepath.FromSlash("/proj/src/main.sh"))

	got, err := tree.At("/proj/src/mod").RequirePath(ctx)
	if err != nil || got != "./mod" {
		t.Errorf("RequirePath() = %q, %v", got, err)
	}
	got, err = tree.At("/proj/lib/shared/util.sh").RequirePath(ctx)
	if err != nil || got != "../lib/shared/util.sh" {
		t.Errorf("RequirePath() = %q, %v", got, err)
	}
}

func TestHandle_ParentAtRoot(t *testing.T) {
	t.Parallel()
	tree := newTestTree(t)
	_, ok, err := tree.At(string(filepath.Separator)).Parent(context.Background())
	if err != nil || ok {
		t.Errorf("Parent() at root ok = %v, err = %v", ok, err)
	}
}
