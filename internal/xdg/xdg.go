// Package xdg resolves the XDG Base Directory locations querygate keeps its files in:
// the config file under the config dir and the audit database under the state dir.
// Directories are created on first use with private permissions (0700).
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "querygate"

// ConfigDir returns $XDG_CONFIG_HOME/querygate, falling back to ~/.config/querygate.
func ConfigDir() (string, error) {
	return appDir("XDG_CONFIG_HOME", ".config")
}

// StateDir returns $XDG_STATE_HOME/querygate, falling back to ~/.local/state/querygate.
func StateDir() (string, error) {
	return appDir("XDG_STATE_HOME", ".local", "state")
}

// appDir resolves the base from env, or from the home-relative fallback when env
// is unset or relative, which XDG Base Directory says to ignore.
func appDir(env string, fallback ...string) (string, error) {
	base := os.Getenv(env)
	if base == "" || !filepath.IsAbs(base) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(append([]string{home}, fallback...)...)
	}
	dir := filepath.Join(base, appName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}
