// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlagValues holds the persistent flags shared by every subcommand.
type rootFlagValues struct {
	configPath string
	logLevel   string
	logFormat  string
	verbose    bool
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlagValues{}

	rootCmd := &cobra.Command{
		Use:   "crescent",
		Short: "A modular shell script runtime",
		Long: titleStyle.Render("crescent") + subtitleStyle.Render(" - A modular shell script runtime") + `

crescent runs POSIX shell scripts that load each other as modules.
A module is evaluated once per run; every 'require' of it returns the
value it declared with 'provide'. Scripts and everything they require
can be packed into a single standalone executable.

` + subtitleStyle.Render("Examples:") + `
  crescent run main.sh             Run a script
  crescent run ./tool -- --flag    Run the init script of a directory
  crescent run --watch main.sh     Rerun whenever a required file changes
  crescent deps main.sh            List a script's modules in load order
  crescent build main.sh -o tool   Build a standalone executable
  crescent inspect ./tool          Show what a standalone executable contains`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/crescent/config.cue)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "log format: text, json or logfmt (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newRunCommand(app, flags))
	rootCmd.AddCommand(newBuildCommand(app, flags))
	rootCmd.AddCommand(newDepsCommand(app, flags))
	rootCmd.AddCommand(newInspectCommand(app, flags))
	rootCmd.AddCommand(newConfigCommand(app, flags))

	rootCmd.SetIn(app.stdin)
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version != "dev" {
		return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev (built from source)"
}

// Execute runs the embedded bundle of a standalone executable, or the CLI
// otherwise, and exits the process with the resulting status.
func Execute() {
	os.Exit(Main(context.Background(), os.Args[1:]))
}

// Main is Execute without the process exit.
func Main(ctx context.Context, args []string) int {
	app := NewApp(Dependencies{})

	if handled, err := runIfStandalone(ctx, app, args); handled {
		return int(exitCodeOf(err))
	}

	rootCmd := NewRootCommand(app)
	rootCmd.SetArgs(args)
	if err := fang.Execute(
		ctx,
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(handleError),
	); err != nil {
		return int(exitCodeOf(err))
	}
	return 0
}

// handleError prints errors that no command has reported yet. ExitErrors are
// either already rendered or carry a script's own exit status.
func handleError(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}
