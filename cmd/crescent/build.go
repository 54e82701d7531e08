// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/crescent-rt/crescent/internal/issue"
	"github.com/crescent-rt/crescent/pkg/bundle"
	"github.com/crescent-rt/crescent/pkg/platform"
	"github.com/crescent-rt/crescent/pkg/standalone"

	"github.com/spf13/cobra"
)

type buildFlagValues struct {
	output string
	target string
	base   string
}

func newBuildCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	flags := &buildFlagValues{}

	buildCmd := &cobra.Command{
		Use:   "build <file|dir>",
		Short: "Build a standalone executable",
		Long: `Build a standalone executable from a script and every module it requires.

The executable is a copy of a crescent binary with the bundled scripts
appended. Running it runs the entry script with all command-line arguments.

By default the running crescent binary is used as the base, which only works
when --target matches this host. Building for another platform needs
--base pointing at a crescent binary for that platform.`,
		Example: `  crescent build main.sh
  crescent build ./tool -o dist/tool
  crescent build main.sh --target windows-amd64 --base ./crescent.exe`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.startSession(cmd.Context(), rootFlags)
			if err != nil {
				return reportError(app.stderr, err, rootFlags.verbose)
			}
			out, err := buildStandalone(app, s, args[0], flags)
			if err != nil {
				return reportError(app.stderr, err, rootFlags.verbose)
			}
			fmt.Fprintf(app.stdout, "%s Built %s\n", successStyle.Render("✓"), out)
			return nil
		},
	}

	buildCmd.Flags().StringVarP(&flags.output, "output", "o", "", "output path (default: input name without extension)")
	buildCmd.Flags().StringVarP(&flags.target, "target", "t", "", "target platform as os-arch (default: this host)")
	buildCmd.Flags().StringVar(&flags.base, "base", "", "crescent executable to embed the bundle in (default: this executable)")

	return buildCmd
}

// buildStandalone bundles input and writes the executable, returning its path.
func buildStandalone(app *App, s *session, input string, flags *buildFlagValues) (string, error) {
	target, err := platform.ParseTarget(flags.target)
	if err != nil {
		return "", err
	}

	rt, err := app.newRuntime(s, nil)
	if err != nil {
		return "", err
	}
	entry, err := rt.EntryPath(input)
	if err != nil {
		return "", scriptNotFound(input, err)
	}
	absInput, err := filepath.Abs(input)
	if err != nil {
		return "", err
	}

	output := flags.output
	if output == "" {
		output, err = defaultOutputPath(absInput, entry, target)
		if err != nil {
			return "", err
		}
	}
	absOutput, err := filepath.Abs(output)
	if err != nil {
		return "", err
	}
	if target.OS == platform.Windows && platform.IsWindowsReservedName(filepath.Base(absOutput)) {
		return "", fmt.Errorf("output name %q is reserved on Windows", filepath.Base(absOutput))
	}
	if samePath(absOutput, absInput) || samePath(absOutput, entry) {
		return "", issue.NewErrorContext().
			WithOperation("build standalone executable").
			WithResource(output).
			WithIssue(issue.OutputOverwritesInputId).
			WithSuggestion("Pass a different path with -o").
			Wrap(fmt.Errorf("output %s would overwrite the input script", output)).
			BuildError()
	}

	bd, err := bundle.New(bundle.Options{Resolver: rt.Loader().Resolver(), Logger: s.logger}).Bundle(entry)
	if err != nil {
		return "", issue.NewErrorContext().
			WithOperation("bundle script").
			WithResource(input).
			WithIssue(issue.BundleIOId).
			WithSuggestion("Check that every required file is readable").
			Wrap(err).
			BuildError()
	}
	if err := bd.CheckStatic(); err != nil {
		return "", issue.NewErrorContext().
			WithOperation("bundle script").
			WithResource(input).
			WithIssue(issue.AliasConflictId).
			WithSuggestion("Give the alias one meaning across the tree, or use relative references").
			Wrap(err).
			BuildError()
	}

	host, err := baseExecutable(flags.base, target)
	if err != nil {
		return "", err
	}

	bd.Files[bd.Entry] = stripShebang(bd.Files[bd.Entry])
	m := &standalone.Metadata{
		Source:         bd.Files[bd.Entry],
		EntryPath:      bd.Entry,
		Files:          bd.Files,
		Aliases:        bd.Aliases,
		RuntimeVersion: app.version,
		Extensions:     s.cfg.Extensions,
		IndexName:      s.cfg.IndexName,
	}
	s.logger.Debug("writing standalone executable", "output", absOutput, "target", target.String(), "files", len(m.Files))

	if err := os.MkdirAll(filepath.Dir(absOutput), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := standalone.WriteExecutable(absOutput, host, m); err != nil {
		return "", err
	}
	return output, nil
}

// defaultOutputPath names the executable after the input: the file without its
// extension next to it, or the directory's name in the working directory.
func defaultOutputPath(absInput, entry string, target platform.Target) (string, error) {
	var out string
	if info, err := os.Stat(absInput); err == nil && info.IsDir() {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		out = filepath.Join(wd, filepath.Base(absInput))
	} else {
		out = strings.TrimSuffix(entry, filepath.Ext(entry))
	}
	return target.ExecutableName(out), nil
}

// baseExecutable returns the host bytes to append the bundle to, with any
// trailer of an already-standalone base removed.
func baseExecutable(base string, target platform.Target) ([]byte, error) {
	if base == "" {
		if !target.IsHost() {
			return nil, fmt.Errorf("building for %s needs --base: a crescent executable for that platform", target)
		}
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to locate running executable: %w", err)
		}
		base = exe
	}
	b, err := os.ReadFile(base)
	if err != nil {
		return nil, fmt.Errorf("failed to read base executable: %w", err)
	}
	return standalone.Host(b), nil
}

// stripShebang blanks a leading "#!" line but keeps its newline, so line
// numbers in errors match the original file.
func stripShebang(src []byte) []byte {
	if !bytes.HasPrefix(src, []byte("#!")) {
		return src
	}
	if i := bytes.IndexByte(src, '\n'); i >= 0 {
		return src[i:]
	}
	return []byte{}
}

// samePath compares two absolute paths, following symlinks where they exist.
func samePath(a, b string) bool {
	if a == b {
		return true
	}
	ra, errA := filepath.EvalSymlinks(a)
	rb, errB := filepath.EvalSymlinks(b)
	return errA == nil && errB == nil && ra == rb
}
