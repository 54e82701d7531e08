// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// OS name constants for runtime.GOOS comparisons.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// ErrInvalidTarget is returned for target strings that are not "os-arch".
var ErrInvalidTarget = errors.New("invalid target")

// Target is an operating system and architecture pair, written "os-arch".
type Target struct {
	OS   string
	Arch string
}

// Host returns the target of the running process.
func Host() Target {
	return Target{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// ParseTarget parses "os-arch". The empty string is the host.
func ParseTarget(s string) (Target, error) {
	if s == "" {
		return Host(), nil
	}
	goos, goarch, ok := strings.Cut(s, "-")
	if !ok || goos == "" || goarch == "" || strings.Contains(goarch, "-") {
		return Target{}, fmt.Errorf("%w %q (want os-arch, for example linux-amd64)", ErrInvalidTarget, s)
	}
	return Target{OS: goos, Arch: goarch}, nil
}

func (t Target) String() string { return t.OS + "-" + t.Arch }

// IsHost reports whether t is the running process's platform.
func (t Target) IsHost() bool { return t == Host() }

// ExecutableName appends the platform's executable suffix to name unless it
// already has it.
func (t Target) ExecutableName(name string) string {
	if t.OS == Windows && !strings.HasSuffix(strings.ToLower(name), ".exe") {
		return name + ".exe"
	}
	return name
}
