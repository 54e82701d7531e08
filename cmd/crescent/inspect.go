// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"cmp"
	"fmt"

	"github.com/crescent-rt/crescent/internal/issue"
	"github.com/crescent-rt/crescent/pkg/standalone"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/exp/slices"

	"github.com/spf13/cobra"
)

type (
	// inspectSummary is the TOML document printed by `crescent inspect`.
	inspectSummary struct {
		Entry          string            `toml:"entry"`
		RuntimeVersion string            `toml:"runtime_version"`
		Compatible     bool              `toml:"compatible"`
		Extensions     []string          `toml:"extensions,omitempty"`
		IndexName      string            `toml:"index_name,omitempty"`
		Files          []inspectFile     `toml:"files"`
		Aliases        map[string]string `toml:"aliases,omitempty"`
	}

	inspectFile struct {
		Key   string `toml:"key"`
		Bytes int    `toml:"bytes"`
	}
)

func newInspectCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <executable>",
		Short: "Show what a standalone executable contains",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := standalone.FromExecutable(args[0])
			if err != nil {
				return reportError(app.stderr, issue.NewErrorContext().
					WithOperation("read standalone metadata").
					WithResource(args[0]).
					WithSuggestion("Only executables produced by 'crescent build' can be inspected").
					Wrap(err).
					BuildError(), rootFlags.verbose)
			}
			out, err := toml.Marshal(summarize(m, app.version))
			if err != nil {
				return reportError(app.stderr, fmt.Errorf("failed to encode summary: %w", err), rootFlags.verbose)
			}
			_, err = app.stdout.Write(out)
			return err
		},
	}
}

func summarize(m *standalone.Metadata, version string) inspectSummary {
	s := inspectSummary{
		Entry:          m.EntryPath,
		RuntimeVersion: m.RuntimeVersion,
		Compatible:     standalone.Compatible(m, version),
		Extensions:     m.Extensions,
		IndexName:      m.IndexName,
		Aliases:        m.Aliases,
	}
	for key, src := range m.Files {
		s.Files = append(s.Files, inspectFile{Key: key, Bytes: len(src)})
	}
	slices.SortFunc(s.Files, func(a, b inspectFile) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return s
}
