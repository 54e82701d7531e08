// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/crescent-rt/crescent/internal/config"
	"github.com/crescent-rt/crescent/internal/issue"
	"github.com/crescent-rt/crescent/internal/testutil"
	"github.com/crescent-rt/crescent/pkg/standalone"
)

const testExecutable = "/opt/tools/greet"

// standaloneApp returns an App whose running executable carries m, or fails
// with readErr.
func standaloneApp(version string, m *standalone.Metadata, readErr error) (*App, *testutil.SyncBuffer, *testutil.SyncBuffer) {
	var stdout, stderr testutil.SyncBuffer
	app := NewApp(Dependencies{
		Config:  staticConfig{cfg: config.DefaultConfig()},
		Stdin:   strings.NewReader(""),
		Stdout:  &stdout,
		Stderr:  &stderr,
		Env:     []string{},
		Version: version,
		Standalone: func() (*standalone.Metadata, string, error) {
			return m, testExecutable, readErr
		},
	})
	return app, &stdout, &stderr
}

func TestRunIfStandalone_Startup(t *testing.T) {
	t.Parallel()

	bundle := &standalone.Metadata{
		EntryPath:      "/main.sh",
		Source:         []byte("echo \"hello $1\"\n"),
		Files:          map[string][]byte{"/main.sh": []byte("echo \"hello $1\"\n")},
		Aliases:        map[string]string{},
		RuntimeVersion: "1.2.0",
	}

	tests := []struct {
		name        string
		meta        *standalone.Metadata
		readErr     error
		wantHandled bool
		wantIssue   issue.Id
		wantStdout  string
		wantStderr  string
	}{
		{
			name:    "plain executable starts the CLI",
			readErr: standalone.ErrNotStandalone,
		},
		{
			name:    "unreadable executable starts the CLI",
			readErr: errors.New("failed to read executable: permission denied"),
		},
		{
			name:        "corrupt trailer is a hard failure",
			readErr:     &standalone.CorruptMetadataError{Reason: "payload is not valid metadata"},
			wantHandled: true,
			wantIssue:   issue.CorruptMetadataId,
			wantStderr:  "corrupt standalone metadata",
		},
		{
			name: "incompatible runtime refuses to run",
			meta: &standalone.Metadata{
				EntryPath:      "/main.sh",
				Source:         []byte("echo never\n"),
				RuntimeVersion: "2.0.0",
			},
			wantHandled: true,
			wantIssue:   issue.IncompatibleRuntimeId,
			wantStderr:  "built by runtime 2.0.0, running 1.4.1",
		},
		{
			name:        "compatible bundle runs with the arguments",
			meta:        bundle,
			wantHandled: true,
			wantStdout:  "hello world\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			app, stdout, stderr := standaloneApp("1.4.1", tt.meta, tt.readErr)

			handled, err := runIfStandalone(context.Background(), app, []string{"world"})
			if handled != tt.wantHandled {
				t.Fatalf("handled = %v, want %v (err = %v)", handled, tt.wantHandled, err)
			}
			if tt.wantIssue != 0 {
				if id, ok := classifyError(err); !ok || id != tt.wantIssue {
					t.Errorf("classifyError() = %v, %v; want %v", id, ok, tt.wantIssue)
				}
				if exitCodeOf(err) == 0 {
					t.Error("failure mapped to exit code 0")
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if stdout.String() != tt.wantStdout {
				t.Errorf("stdout = %q, want %q", stdout.String(), tt.wantStdout)
			}
			if tt.wantStderr != "" && !strings.Contains(stderr.String(), tt.wantStderr) {
				t.Errorf("stderr = %q, want it to contain %q", stderr.String(), tt.wantStderr)
			}
		})
	}
}

func TestRunIfStandalone_ExitStatus(t *testing.T) {
	t.Parallel()
	app, _, stderr := standaloneApp("dev", &standalone.Metadata{
		EntryPath: "/main.sh",
		Source:    []byte("exit 4\n"),
	}, nil)

	handled, err := runIfStandalone(context.Background(), app, nil)
	if !handled || exitCodeOf(err) != 4 {
		t.Fatalf("handled = %v, exit code = %v; want true, 4", handled, exitCodeOf(err))
	}
	if stderr.String() != "" {
		t.Errorf("a script exit status should be silent, stderr = %q", stderr.String())
	}
}

// The embedded resolver settings win over the defaults: with .bash first,
// "./lib" must pick lib.bash, and "./pkg" must find pkg/main.sh as its index.
func TestRunIfStandalone_EmbeddedResolution(t *testing.T) {
	t.Parallel()
	app, stdout, stderr := standaloneApp("dev", &standalone.Metadata{
		EntryPath: "/main.bash",
		Source:    []byte("require ./lib\nrequire ./pkg\n"),
		Files: map[string][]byte{
			"/main.bash":   []byte("require ./lib\nrequire ./pkg\n"),
			"/lib.bash":    []byte("provide bash\n"),
			"/lib.sh":      []byte("provide sh\n"),
			"/pkg/main.sh": []byte("provide pkg-index\n"),
			"/pkg/init.sh": []byte("provide pkg-init\n"),
		},
		Aliases:    map[string]string{},
		Extensions: []string{".bash", ".sh"},
		IndexName:  "main",
	}, nil)

	handled, err := runIfStandalone(context.Background(), app, nil)
	if !handled || err != nil {
		t.Fatalf("handled = %v, err = %v; stderr = %q", handled, err, stderr.String())
	}
	if stdout.String() != "bash\npkg-index\n" {
		t.Errorf("stdout = %q, want the .bash module and the configured index", stdout.String())
	}
}
