// SPDX-License-Identifier: MPL-2.0

// Package config handles crescent's application configuration using Viper with
// CUE as the file format.
//
// Configuration is loaded from ~/.config/crescent/config.cue (XDG on Linux,
// ~/Library/Application Support/crescent/config.cue on macOS,
// %APPDATA%\crescent\config.cue on Windows) or from an explicit --config path,
// validated against the embedded config_schema.cue, and overridden by CRESCENT_
// environment variables (CRESCENT_LOG_LEVEL, CRESCENT_INDEX_NAME, ...).
package config
