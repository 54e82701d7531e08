// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidExtension is returned for extensions without a leading dot.
	ErrInvalidExtension = errors.New("invalid extension")
	// ErrInvalidFileName is returned for file names that are empty or contain separators.
	ErrInvalidFileName = errors.New("invalid file name")
)

type (
	// Config is crescent's effective configuration.
	Config struct {
		// Extensions are tried, in order, after the exact referenced path.
		Extensions []string `json:"extensions" mapstructure:"extensions"`
		// IndexName is the base name loaded when a reference names a directory.
		IndexName string `json:"index_name" mapstructure:"index_name"`
		// AliasFile is the per-directory alias configuration file name.
		AliasFile string `json:"alias_file" mapstructure:"alias_file"`
		// ProjectFile is the project description file name used by `script`.
		ProjectFile string `json:"project_file" mapstructure:"project_file"`
		// Log configures diagnostics.
		Log LogConfig `json:"log" mapstructure:"log"`
		// Watch configures `run --watch`.
		Watch WatchConfig `json:"watch" mapstructure:"watch"`
	}

	// LogConfig configures the process logger.
	LogConfig struct {
		Level  string `json:"level" mapstructure:"level"`
		Format string `json:"format" mapstructure:"format"`
	}

	// WatchConfig configures file watching.
	WatchConfig struct {
		Debounce    time.Duration `json:"debounce" mapstructure:"debounce"`
		ClearScreen bool          `json:"clear_screen" mapstructure:"clear_screen"`
		Ignore      []string      `json:"ignore" mapstructure:"ignore"`
	}

	// InvalidConfigError collects field-level validation errors.
	// It wraps ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Extensions:  []string{".sh", ".bash"},
		IndexName:   "init",
		AliasFile:   ".crescentrc",
		ProjectFile: "crescent.project.json",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
			Ignore:   []string{"**/.git/**", "**/*.swp", "**/*~"},
		},
	}
}

// Validate checks constraints that survive environment overrides, which
// bypass the CUE schema.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Extensions) == 0 {
		errs = append(errs, fmt.Errorf("extensions: %w: at least one extension is required", ErrInvalidExtension))
	}
	for i, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 || strings.ContainsAny(ext, `/\`) {
			errs = append(errs, fmt.Errorf("extensions[%d]: %w %q (must start with a dot)", i, ErrInvalidExtension, ext))
		}
	}
	for _, f := range []struct{ field, name string }{
		{"index_name", c.IndexName},
		{"alias_file", c.AliasFile},
		{"project_file", c.ProjectFile},
	} {
		if strings.TrimSpace(f.name) == "" || strings.ContainsAny(f.name, `/\`) {
			errs = append(errs, fmt.Errorf("%s: %w %q", f.field, ErrInvalidFileName, f.name))
		}
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce: must not be negative, got %s", c.Watch.Debounce))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }
