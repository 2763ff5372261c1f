package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	appName        = "sheetsync"
	configFileName = "config.toml"
)

// DefaultConfigDir is where config.toml lives when neither --config nor
// SHEETSYNC_CONFIG names a file: $XDG_CONFIG_HOME/sheetsync (~/.config)
// on Linux, ~/Library/Application Support/sheetsync on macOS.
func DefaultConfigDir() string {
	return appDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir holds the run journal and its lock file:
// $XDG_DATA_HOME/sheetsync (~/.local/share) on Linux. macOS keeps config
// and data in the same directory.
func DefaultDataDir() string {
	return appDir("XDG_DATA_HOME", ".local", "share")
}

// DefaultConfigPath is DefaultConfigDir/config.toml, or "" when the home
// directory is unknown.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}

func appDir(xdgVar string, homeRel ...string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", appName)
	}

	return xdgDir(os.Getenv(xdgVar), home, homeRel...)
}

// xdgDir applies the XDG base-directory rule: a set variable wins,
// otherwise the directory sits under home.
func xdgDir(xdg, home string, homeRel ...string) string {
	if xdg != "" {
		return filepath.Join(xdg, appName)
	}

	parts := append([]string{home}, homeRel...)

	return filepath.Join(append(parts, appName)...)
}
