// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/crescent-rt/crescent/internal/dag"
	"github.com/crescent-rt/crescent/pkg/bundle"

	"golang.org/x/exp/slices"

	"github.com/spf13/cobra"
)

func newDepsCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "deps <file|dir>",
		Short: "List a script's modules in load order",
		Long: `List every file a script statically requires, dependencies first, and
the aliases used to reach them. This is exactly the file set 'crescent build'
embeds.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.startSession(cmd.Context(), rootFlags)
			if err != nil {
				return reportError(app.stderr, err, rootFlags.verbose)
			}
			rt, err := app.newRuntime(s, nil)
			if err != nil {
				return reportError(app.stderr, err, rootFlags.verbose)
			}
			entry, err := rt.EntryPath(args[0])
			if err != nil {
				return reportError(app.stderr, scriptNotFound(args[0], err), rootFlags.verbose)
			}
			bd, err := bundle.New(bundle.Options{Resolver: rt.Loader().Resolver(), Logger: s.logger}).Bundle(entry)
			if err != nil {
				return reportError(app.stderr, err, rootFlags.verbose)
			}
			renderDeps(app.stdout, bd, rootFlags.verbose)
			return nil
		},
	}
}

// renderDeps prints the bundle's files dependencies-first, then its alias map.
func renderDeps(w io.Writer, bd *bundle.Bundle, verbose bool) {
	order, err := bd.Order()

	fmt.Fprintln(w, titleStyle.Render("Modules")+subtitleStyle.Render(" ("+bd.Root+")"))
	var cycleErr *dag.CycleError
	if errors.As(err, &cycleErr) {
		fmt.Fprintf(w, "%s cyclic requires among %v; listed in discovery order\n", warningStyle.Render("!"), cycleErr.Cycle)
	}
	for i, key := range order {
		line := fmt.Sprintf("%3d. %s", i+1, pathStyle.Render(key))
		if key == bd.Entry {
			line += subtitleStyle.Render(" (entry)")
		}
		fmt.Fprintln(w, line)
		if verbose {
			for _, dep := range bd.Edges[key] {
				fmt.Fprintf(w, "       %s %s\n", verboseStyle.Render("requires"), accentStyle.Render(dep))
			}
		}
	}

	if len(bd.Aliases) == 0 {
		return
	}
	literals := make([]string, 0, len(bd.Aliases))
	for literal := range bd.Aliases {
		literals = append(literals, literal)
	}
	slices.Sort(literals)

	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Aliases"))
	for _, literal := range literals {
		fmt.Fprintf(w, "  %s -> %s\n", pathStyle.Render(literal), bd.Aliases[literal])
	}
	for _, c := range bd.Conflicts {
		fmt.Fprintf(w, "%s %s also leads to %s; a build would fail\n", warningStyle.Render("!"), c.Alias, c.Ignored)
	}
}
