// SPDX-License-Identifier: MPL-2.0

// Package types holds small value types shared by crescent's packages.
package types

import (
	"errors"
	"fmt"
	"strconv"
)

const (
	// ExitSuccess is the status of a script that finished normally.
	ExitSuccess ExitCode = 0
	// ExitFailure is the status for runtime errors (unresolvable require,
	// cyclic require, corrupt bundle, ...).
	ExitFailure ExitCode = 1
	// ExitUsage is the status for command-line and builtin usage errors.
	ExitUsage ExitCode = 2
)

// ErrInvalidExitCode is the sentinel error wrapped by InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

type (
	// ExitCode represents a process exit status code.
	// Exit codes are in the range 0-255 on POSIX systems.
	// The zero value (0) means success.
	ExitCode int

	// InvalidExitCodeError is returned when an ExitCode is outside the
	// valid range (0-255).
	InvalidExitCodeError struct {
		Value ExitCode
	}
)

// Error implements the error interface.
func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("invalid exit code %d (must be in range 0-255)", e.Value)
}

// Unwrap returns ErrInvalidExitCode so callers can use errors.Is for programmatic detection.
func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// Validate returns an error if the ExitCode is outside the valid range (0-255).
func (c ExitCode) Validate() error {
	if c < 0 || c > 255 {
		return &InvalidExitCodeError{Value: c}
	}
	return nil
}

// IsSuccess returns true if the exit code indicates successful execution.
func (c ExitCode) IsSuccess() bool { return c == 0 }

// Signal reports the signal number for shell-style 128+n statuses.
func (c ExitCode) Signal() (int, bool) {
	if c > 128 && c <= 255 {
		return int(c) - 128, true
	}
	return 0, false
}

// String returns the decimal string representation of the ExitCode.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }
