// Package util provides filesystem path helpers shared across confsync.
package util

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

const appDir = "confsync"

// HomeDir returns the user's home directory.
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return home
}

// ConfigDir returns the confsync configuration directory
// (e.g. ~/.config/confsync).
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, appDir)
}

// DataDir returns the confsync data directory, holding the sync state file
// and the cross-process lock (e.g. ~/.local/share/confsync).
func DataDir() string {
	return filepath.Join(xdg.DataHome, appDir)
}

// CacheDir returns the confsync cache directory, holding repository mirrors
// (e.g. ~/.cache/confsync).
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, appDir)
}

// SettingsPath returns the path of the global settings document.
func SettingsPath() string {
	return filepath.Join(ConfigDir(), "settings.yaml")
}

// StatePath returns the path of the sync state file.
func StatePath() string {
	return filepath.Join(DataDir(), "state.json")
}

// LockPath returns the path of the cross-process sync lock file.
func LockPath() string {
	return filepath.Join(DataDir(), "sync.lock")
}

// MirrorsDir returns the directory holding local repository mirrors.
func MirrorsDir() string {
	return filepath.Join(CacheDir(), "repos")
}

// ExpandPath expands a leading ~ to the home directory and resolves
// relative paths against baseDir. Empty input returns empty.
func ExpandPath(path, baseDir string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		return HomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(HomeDir(), path[2:])
	}
	if !filepath.IsAbs(path) && baseDir != "" {
		return filepath.Join(baseDir, path)
	}
	return path
}

// PathExists reports whether a path exists on the filesystem.
func PathExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
