// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	goruntime "runtime"
	"strings"
	"testing"

	"github.com/crescent-rt/crescent/internal/testutil"
	"github.com/crescent-rt/crescent/pkg/alias"
	"github.com/crescent-rt/crescent/pkg/loader"
	"github.com/crescent-rt/crescent/pkg/resolve"
	"github.com/crescent-rt/crescent/pkg/standalone"
	"github.com/crescent-rt/crescent/pkg/types"
)

type runResult struct {
	stdout string
	stderr string
	err    error
	rt     *Runtime
}

// runTree runs /proj/main.sh from an in-memory tree.
func runTree(t *testing.T, files map[string]string, args ...string) runResult {
	t.Helper()
	var stdout, stderr testutil.SyncBuffer
	rt := New(Options{
		FS:      testutil.MemFS(t, files),
		Stdout:  &stdout,
		Stderr:  &stderr,
		Env:     []string{},
		Args:    args,
		Version: "1.2.3",
	})
	err := rt.RunFile(context.Background(), "/proj/main.sh")
	return runResult{stdout: stdout.String(), stderr: stderr.String(), err: err, rt: rt}
}

func TestRun_RequireValue(t *testing.T) {
	t.Parallel()
	res := runTree(t, map[string]string{
		"/proj/main.sh": `echo "got $(require ./lib)"`,
		"/proj/lib.sh":  `provide hello world`,
	})
	if res.err != nil {
		t.Fatalf("RunFile() unexpected error: %v\nstderr: %s", res.err, res.stderr)
	}
	if res.stdout != "got hello world\n" {
		t.Errorf("stdout = %q", res.stdout)
	}
}

func TestRun_ModuleRunsOnce(t *testing.T) {
	t.Parallel()
	res := runTree(t, map[string]string{
		"/proj/main.sh": `
a=$(require ./lib)
b=$(require ./lib/../lib.sh)
echo "$a $b"
`,
		"/proj/lib.sh": `
echo ran
provide x
`,
	})
	if res.err != nil {
		t.Fatalf("RunFile() unexpected error: %v", res.err)
	}
	if strings.Count(res.stdout, "ran") != 1 {
		t.Errorf("lib ran %d times, want 1:\n%s", strings.Count(res.stdout, "ran"), res.stdout)
	}
	if !strings.HasSuffix(res.stdout, "x x\n") {
		t.Errorf("stdout = %q", res.stdout)
	}
	if got := res.rt.Loader().Stats().Executed; got != 2 {
		t.Errorf("Executed = %d, want 2 (main and lib)", got)
	}
}

func TestRun_ConcurrentBackgroundRequires(t *testing.T) {
	t.Parallel()
	res := runTree(t, map[string]string{
		"/proj/main.sh": `
require ./slow &
require ./slow &
require ./slow
wait
`,
		"/proj/slow.sh": `echo ran`,
	})
	if res.err != nil {
		t.Fatalf("RunFile() unexpected error: %v", res.err)
	}
	if n := strings.Count(res.stdout, "ran"); n != 1 {
		t.Errorf("slow ran %d times, want 1", n)
	}
}

func TestRun_ProvideFirstWins(t *testing.T) {
	t.Parallel()
	res := runTree(t, map[string]string{
		"/proj/main.sh": `require ./lib`,
		"/proj/lib.sh":  "provide first\nprovide second\n",
	})
	if res.err != nil {
		t.Fatalf("RunFile() unexpected error: %v", res.err)
	}
	if res.stdout != "first\n" {
		t.Errorf("stdout = %q, want first", res.stdout)
	}
}

func TestRun_NoValuePrintsNothing(t *testing.T) {
	t.Parallel()
	res := runTree(t, map[string]string{
		"/proj/main.sh": `v=$(require ./lib); echo "[$v]"`,
		"/proj/lib.sh":  `x=1`,
	})
	if res.err != nil {
		t.Fatalf("RunFile() unexpected error: %v", res.err)
	}
	if res.stdout != "[]\n" {
		t.Errorf("stdout = %q", res.stdout)
	}
}

func TestRun_ExitStatus(t *testing.T) {
	t.Parallel()
	res := runTree(t, map[string]string{"/proj/main.sh": "echo before\nexit 3\necho after\n"})

	var exitErr *ExitError
	if !errors.As(res.err, &exitErr) {
		t.Fatalf("expected *ExitError, got %T: %v", res.err, res.err)
	}
	if exitErr.Code != 3 || ExitCodeOf(res.err) != 3 {
		t.Errorf("exit code = %d, want 3", exitErr.Code)
	}
	if res.stdout != "before\n" {
		t.Errorf("stdout = %q", res.stdout)
	}
}

func TestRun_FailingModuleHaltsCaller(t *testing.T) {
	t.Parallel()
	res := runTree(t, map[string]string{
		"/proj/main.sh": "require ./lib\necho unreachable\n",
		"/proj/lib.sh":  "exit 4\n",
	})
	if res.err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(res.stdout, "unreachable") {
		t.Error("caller kept running after a failed require")
	}
	var modErr *loader.ModuleError
	if !errors.As(res.err, &modErr) {
		t.Fatalf("expected *loader.ModuleError, got %T", res.err)
	}
	var reqErr *RequireError
	if !errors.As(res.err, &reqErr) || reqErr.Ref != "./lib" || reqErr.Caller != "/proj/main.sh" {
		t.Errorf("RequireError = %+v", reqErr)
	}
	if got := ExitCodeOf(res.err); got != 4 {
		t.Errorf("ExitCodeOf() = %d, want 4", got)
	}
}

func TestRun_ResolutionErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		script string
		target error
	}{
		{name: "missing module", script: "require ./nope", target: resolve.ErrModuleNotFound},
		{name: "unknown alias", script: "require @nowhere/x", target: alias.ErrUnknownAlias},
		{name: "unknown builtin", script: "require @crescent/nope", target: alias.ErrUnknownBuiltinModule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := runTree(t, map[string]string{"/proj/main.sh": tt.script})
			if !errors.Is(res.err, tt.target) {
				t.Errorf("error = %v, want %v", res.err, tt.target)
			}
			if ExitCodeOf(res.err) != types.ExitFailure {
				t.Errorf("ExitCodeOf() = %d, want 1", ExitCodeOf(res.err))
			}
		})
	}
}

func TestRun_UsageErrorsAreStatuses(t *testing.T) {
	t.Parallel()
	res := runTree(t, map[string]string{
		"/proj/main.sh": `
require; echo "require=$?"
require util; echo "bare=$?"
provide; echo "provide=$?"
script sideways; echo "script=$?"
`,
	})
	if res.err != nil {
		t.Fatalf("RunFile() unexpected error: %v", res.err)
	}
	want := "require=2\nbare=2\nprovide=2\nscript=2\n"
	if res.stdout != want {
		t.Errorf("stdout = %q, want %q", res.stdout, want)
	}
	if !strings.Contains(res.stderr, "usage: require") {
		t.Errorf("stderr = %q", res.stderr)
	}
}

func TestRun_CyclicRequire(t *testing.T) {
	t.Parallel()
	res := runTree(t, map[string]string{
		"/proj/main.sh": "require ./a",
		"/proj/a.sh":    "require ./b",
		"/proj/b.sh":    "require ./a",
	})
	if !errors.Is(res.err, loader.ErrCyclicRequire) {
		t.Fatalf("expected ErrCyclicRequire, got %v", res.err)
	}
	var cyc *loader.CyclicRequireError
	if !errors.As(res.err, &cyc) {
		t.Fatal("expected *loader.CyclicRequireError in chain")
	}
	want := []string{"/proj/b.sh", "/proj/a.sh", "/proj/b.sh"}
	if strings.Join(cyc.Chain, " ") != strings.Join(want, " ") {
		t.Errorf("Chain = %v, want %v", cyc.Chain, want)
	}
}

func TestRun_Builtins(t *testing.T) {
	t.Parallel()
	res := runTree(t, map[string]string{
		"/proj/main.sh": `
require @crescent/version
require @crescent/platform
echo "[$(require @crescent/executable)]"
`,
	})
	if res.err != nil {
		t.Fatalf("RunFile() unexpected error: %v", res.err)
	}
	want := "1.2.3\n" + goruntime.GOOS + "/" + goruntime.GOARCH + "\n[]\n"
	if res.stdout != want {
		t.Errorf("stdout = %q, want %q", res.stdout, want)
	}
}

func TestRun_Aliases(t *testing.T) {
	t.Parallel()
	res := runTree(t, map[string]string{
		"/proj/.crescentrc":           `{"aliases": {"lib": "./vendor/lib"}}`,
		"/proj/main.sh":               `require @lib/strings; require @self/local`,
		"/proj/local.sh":              `provide local`,
		"/proj/vendor/lib/strings.sh": `provide strings`,
	})
	if res.err != nil {
		t.Fatalf("RunFile() unexpected error: %v", res.err)
	}
	if res.stdout != "strings\nlocal\n" {
		t.Errorf("stdout = %q", res.stdout)
	}
}

func TestRun_PositionalArgsOnlyForEntry(t *testing.T) {
	t.Parallel()
	res := runTree(t, map[string]string{
		"/proj/main.sh": `echo "$#:$1:$2"; require ./lib`,
		"/proj/lib.sh":  `provide "lib sees $#"`,
	}, "-v", "x")
	if res.err != nil {
		t.Fatalf("RunFile() unexpected error: %v", res.err)
	}
	if res.stdout != "2:-v:x\nlib sees 0\n" {
		t.Errorf("stdout = %q", res.stdout)
	}
}

func TestRun_ScriptBuiltin(t *testing.T) {
	t.Parallel()
	res := runTree(t, map[string]string{
		"/proj/main.sh": `
script
script name
script parent
script parent child lib requirepath
require -l "$(script parent child lib path)"
`,
		"/proj/lib/init.sh": `provide "lib at $(script)"`,
	})
	if res.err != nil {
		t.Fatalf("RunFile() unexpected error: %v\nstderr: %s", res.err, res.stderr)
	}
	want := "/proj/main.sh\nmain.sh\n/proj\n./lib\nlib at /proj/lib/init.sh\n"
	if res.stdout != want {
		t.Errorf("stdout = %q, want %q", res.stdout, want)
	}
}

func TestRun_DirectoryEntry(t *testing.T) {
	t.Parallel()
	var stdout testutil.SyncBuffer
	rt := New(Options{
		FS:     testutil.MemFS(t, map[string]string{"/proj/tool/init.sh": `echo tool`}),
		Stdout: &stdout,
	})
	if err := rt.RunFile(context.Background(), "/proj/tool"); err != nil {
		t.Fatalf("RunFile(dir) unexpected error: %v", err)
	}
	if stdout.String() != "tool\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
	if _, err := rt.EntryPath("/proj/missing"); !errors.Is(err, resolve.ErrModuleNotFound) {
		t.Errorf("EntryPath(missing) = %v, want ErrModuleNotFound", err)
	}
}

func TestRun_SessionIDsAreUnique(t *testing.T) {
	t.Parallel()
	a, b := New(Options{}), New(Options{})
	if a.Session() == "" || a.Session() == b.Session() {
		t.Errorf("sessions %q and %q should be distinct and non-empty", a.Session(), b.Session())
	}
}

func TestRunBundle(t *testing.T) {
	t.Parallel()
	m := &standalone.Metadata{
		EntryPath: "/src/main.sh",
		Source:    []byte("require ./util\nrequire @pkgs/x\necho \"args=$*\"\n"),
		Files: map[string][]byte{
			"/src/main.sh": []byte("#!/usr/bin/env crescent\nignored"),
			"/src/util.sh": []byte("provide util"),
			"/pkgs/x.sh":   []byte("provide x"),
		},
		Aliases: map[string]string{"@pkgs/x": "/pkgs/x.sh"},
	}
	var stdout testutil.SyncBuffer
	err := RunBundle(context.Background(), m, Options{Stdout: &stdout, Args: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("RunBundle() unexpected error: %v", err)
	}
	if stdout.String() != "util\nx\nargs=a b\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestExitCodeOf(t *testing.T) {
	t.Parallel()
	if ExitCodeOf(nil) != types.ExitSuccess {
		t.Error("nil error should map to success")
	}
	if ExitCodeOf(errors.New("x")) != types.ExitFailure {
		t.Error("plain error should map to failure")
	}
	if ExitCodeOf(&ExitError{Code: 7}) != 7 {
		t.Error("ExitError code not propagated")
	}
	if got := (&ExitError{Code: 2, Path: "/a.sh"}).Error(); got != "/a.sh: exit status 2" {
		t.Errorf("Error() = %q", got)
	}
}
