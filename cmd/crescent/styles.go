// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/charmbracelet/lipgloss"

// Palette for CLI output on dark terminals.
const (
	colorPrimary   = lipgloss.Color("#7C3AED")
	colorMuted     = lipgloss.Color("#6B7280")
	colorSuccess   = lipgloss.Color("#10B981")
	colorError     = lipgloss.Color("#EF4444")
	colorWarning   = lipgloss.Color("#F59E0B")
	colorHighlight = lipgloss.Color("#3B82F6")
	colorVerbose   = lipgloss.Color("#9CA3AF")
)

var (
	// titleStyle heads a listing such as "Modules (root)".
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	subtitleStyle = lipgloss.NewStyle().Foreground(colorMuted)
	successStyle  = lipgloss.NewStyle().Foreground(colorSuccess)
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	warningStyle  = lipgloss.NewStyle().Foreground(colorWarning)
	// pathStyle marks script paths, bundle keys and config keys.
	pathStyle    = lipgloss.NewStyle().Foreground(colorHighlight)
	verboseStyle = lipgloss.NewStyle().Foreground(colorVerbose)
	// accentStyle marks require edge targets and watch-mode status arrows.
	accentStyle = lipgloss.NewStyle().Foreground(colorHighlight).Italic(true)
)
