// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/crescent-rt/crescent/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `crescent config` command tree.
func newConfigCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage crescent configuration",
		Long: `Manage crescent configuration.

Configuration is stored in:
  - Linux: ~/.config/crescent/config.cue
  - macOS: ~/Library/Application Support/crescent/config.cue
  - Windows: %APPDATA%\crescent\config.cue

Every setting can be overridden with a CRESCENT_ environment variable,
for example CRESCENT_LOG_LEVEL=debug or CRESCENT_WATCH_DEBOUNCE=1s.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: rootFlags.configPath})
			if err != nil {
				return reportError(app.stderr, err, rootFlags.verbose)
			}
			showConfig(app, cfg, configFilePath(rootFlags.configPath))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.CreateDefaultConfig()
			if err != nil {
				return reportError(app.stderr, err, rootFlags.verbose)
			}
			fmt.Fprintf(app.stdout, "%s Configuration at %s\n", successStyle.Render("✓"), path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: rootFlags.configPath})
			if err != nil {
				return reportError(app.stderr, err, rootFlags.verbose)
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

// configFilePath reports the file configuration is read from, or "" when
// only defaults and the environment apply.
func configFilePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return ""
	}
	return path
}

func showConfig(app *App, cfg *config.Config, path string) {
	keyStyle := pathStyle
	valueStyle := successStyle
	w := app.stdout

	fmt.Fprintln(w, titleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if path != "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), path)
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), subtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("extensions"), valueStyle.Render(strings.Join(cfg.Extensions, ", ")))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("index_name"), valueStyle.Render(cfg.IndexName))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("alias_file"), valueStyle.Render(cfg.AliasFile))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("project_file"), valueStyle.Render(cfg.ProjectFile))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("log"))
	fmt.Fprintf(w, "  level: %s\n", valueStyle.Render(cfg.Log.Level))
	fmt.Fprintf(w, "  format: %s\n", valueStyle.Render(cfg.Log.Format))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("watch"))
	fmt.Fprintf(w, "  debounce: %s\n", valueStyle.Render(cfg.Watch.Debounce.String()))
	fmt.Fprintf(w, "  clear_screen: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.Watch.ClearScreen)))
	if len(cfg.Watch.Ignore) == 0 {
		fmt.Fprintf(w, "  ignore: %s\n", subtitleStyle.Render("(none)"))
	} else {
		fmt.Fprintf(w, "  ignore:\n")
		for _, pattern := range cfg.Watch.Ignore {
			fmt.Fprintf(w, "    - %s\n", valueStyle.Render(pattern))
		}
	}
}
