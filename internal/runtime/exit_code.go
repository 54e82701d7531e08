// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"fmt"

	"github.com/crescent-rt/crescent/pkg/types"
)

// ExitError reports that a script finished with a non-zero exit status.
type ExitError struct {
	Code types.ExitCode
	// Path is the script that exited.
	Path string
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("exit status %s", e.Code)
	}
	return fmt.Sprintf("%s: exit status %s", e.Path, e.Code)
}

// ExitCodeOf returns the process exit code for err: 0 for nil, the script's
// status when err carries an ExitError, and 1 otherwise.
func ExitCodeOf(err error) types.ExitCode {
	if err == nil {
		return types.ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return types.ExitFailure
}

// RequireError is the error a require builtin halts its module with.
type RequireError struct {
	Ref    string
	Caller string
	Err    error
}

// Error implements the error interface.
func (e *RequireError) Error() string {
	return fmt.Sprintf("require %s: %v", e.Ref, e.Err)
}

// Unwrap returns the load error.
func (e *RequireError) Unwrap() error { return e.Err }
