// SPDX-License-Identifier: MPL-2.0

package standalone

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/mod/semver"
)

// FromExecutable reads the binary at path, following symlinks, and decodes its
// trailer. The error is ErrNotStandalone for ordinary binaries.
func FromExecutable(path string) (*Metadata, error) {
	if real, err := filepath.EvalSymlinks(path); err == nil {
		path = real
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read executable %s: %w", path, err)
	}
	return Decode(b)
}

// Current decodes the trailer of the running executable.
func Current() (*Metadata, string, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, "", fmt.Errorf("failed to locate running executable: %w", err)
	}
	m, err := FromExecutable(exe)
	return m, exe, err
}

// WriteExecutable writes host plus the trailer for m to path with mode 0755.
// The file is written next to path and renamed into place, so path is never left
// partially written.
func WriteExecutable(path string, host []byte, m *Metadata) error {
	trailer, err := Trailer(m)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(host); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if _, err := tmp.Write(trailer); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := tmp.Chmod(0o755); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set output file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move output file into place: %w", err)
	}
	return nil
}

// Compatible reports whether a binary built by the runtime version in m can be
// run by version. Versions that are not valid semver, or that are missing, are
// accepted; otherwise the major versions must match.
func Compatible(m *Metadata, version string) bool {
	built, running := canonical(m.RuntimeVersion), canonical(version)
	if !semver.IsValid(built) || !semver.IsValid(running) {
		return true
	}
	return semver.Major(built) == semver.Major(running)
}

func canonical(v string) string {
	if v != "" && v[0] != 'v' {
		return "v" + v
	}
	return v
}
