// SPDX-License-Identifier: MPL-2.0

// Package logging builds the process logger: a log/slog front end backed by a
// charmbracelet/log handler so diagnostics match the CLI's styling.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/log"
)

// ErrInvalidLevel is returned for level names ParseLevel does not know.
var ErrInvalidLevel = errors.New("invalid log level")

type (
	// Format selects the handler's output encoding.
	Format string

	// Options configures New.
	Options struct {
		Level  string
		Format Format
		Prefix string
		// Timestamps adds a time field to every record.
		Timestamps bool
	}
)

const (
	// FormatText is human-readable, styled output.
	FormatText Format = "text"
	// FormatJSON emits one JSON object per record.
	FormatJSON Format = "json"
	// FormatLogfmt emits key=value pairs.
	FormatLogfmt Format = "logfmt"
)

// ParseLevel maps a level name (debug, info, warn, error) to a log.Level.
func ParseLevel(name string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return log.DebugLevel, nil
	case "", "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("%w: %q (want debug, info, warn or error)", ErrInvalidLevel, name)
	}
}

// New returns a slog.Logger writing to w.
func New(w io.Writer, opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	formatter := log.TextFormatter
	switch opts.Format {
	case FormatJSON:
		formatter = log.JSONFormatter
	case FormatLogfmt:
		formatter = log.LogfmtFormatter
	case "", FormatText:
	default:
		return nil, fmt.Errorf("unknown log format %q (want text, json or logfmt)", opts.Format)
	}

	handler := log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          opts.Prefix,
		ReportTimestamp: opts.Timestamps,
		Formatter:       formatter,
	})
	return slog.New(handler), nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
