// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/crescent-rt/crescent/internal/config"
	"github.com/crescent-rt/crescent/internal/issue"
	"github.com/crescent-rt/crescent/internal/runtime"
	"github.com/crescent-rt/crescent/pkg/alias"
	"github.com/crescent-rt/crescent/pkg/bundle"
	"github.com/crescent-rt/crescent/pkg/loader"
	"github.com/crescent-rt/crescent/pkg/resolve"
	"github.com/crescent-rt/crescent/pkg/standalone"
	"github.com/crescent-rt/crescent/pkg/types"
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE
// handlers. The error it wraps has already been reported to the user.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCodeOf maps an error to the process exit status. Script statuses,
// including those of nested modules, propagate unchanged.
func exitCodeOf(err error) types.ExitCode {
	if err == nil {
		return types.ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return runtime.ExitCodeOf(err)
}

// classifyError maps a failure to its issue catalog entry. Ids attached to an
// ActionableError win over sentinel matching.
func classifyError(err error) (issue.Id, bool) {
	if id, ok := issue.IssueOf(err); ok {
		return id, true
	}
	var modErr *loader.ModuleError
	switch {
	case errors.Is(err, loader.ErrCyclicRequire):
		return issue.CyclicRequireId, true
	case errors.Is(err, alias.ErrUnknownAlias):
		return issue.UnknownAliasId, true
	case errors.Is(err, alias.ErrUnknownBuiltinModule):
		return issue.UnknownBuiltinId, true
	case errors.Is(err, resolve.ErrInvalidReferenceForm):
		return issue.InvalidReferenceId, true
	case errors.Is(err, resolve.ErrModuleNotFound):
		return issue.ModuleNotFoundId, true
	case errors.Is(err, bundle.ErrBundleIO):
		return issue.BundleIOId, true
	case errors.Is(err, bundle.ErrAliasConflict):
		return issue.AliasConflictId, true
	case errors.Is(err, standalone.ErrCorruptMetadata):
		return issue.CorruptMetadataId, true
	case errors.Is(err, standalone.ErrNotStandalone):
		return issue.NotStandaloneId, true
	case errors.Is(err, config.ErrInvalidConfig):
		return issue.ConfigLoadFailedId, true
	case errors.As(err, &modErr):
		return issue.ModuleFailedId, true
	}
	return 0, false
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

// reportError renders err on w and returns it wrapped in an ExitError so the
// root handler does not print it again. A script's own exit status is not an
// error worth reporting: its output already explains it.
func reportError(w io.Writer, err error, verbose bool) error {
	if err == nil {
		return nil
	}
	var scriptExit *runtime.ExitError
	if errors.As(err, &scriptExit) && !isWrappedModuleFailure(err) {
		return &ExitError{Code: scriptExit.Code, Err: err}
	}

	fmt.Fprintf(w, "%s %s\n", errorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))
	if verbose {
		if id, ok := classifyError(err); ok {
			if rendered, renderErr := issue.Get(id).Render("dark"); renderErr == nil {
				fmt.Fprint(w, rendered)
			}
		}
	}
	return &ExitError{Code: exitCodeOf(err), Err: err}
}

// isWrappedModuleFailure reports whether err is a required module's failure,
// as opposed to the entry script's own exit.
func isWrappedModuleFailure(err error) bool {
	var modErr *loader.ModuleError
	return errors.As(err, &modErr)
}
