package util

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestExpandPath(t *testing.T) {
	home := HomeDir()

	tests := []struct {
		name    string
		path    string
		baseDir string
		want    string
	}{
		{"empty", "", "/base", ""},
		{"bare tilde", "~", "", home},
		{"tilde prefix", "~/.config/nvim", "", filepath.Join(home, ".config", "nvim")},
		{"relative with base", "configs/tool", "/base", filepath.Join("/base", "configs", "tool")},
		{"relative without base", "configs/tool", "", "configs/tool"},
		{"absolute untouched", "/etc/app", "/base", "/etc/app"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandPath(tt.path, tt.baseDir); got != tt.want {
				t.Errorf("ExpandPath(%q, %q) = %q, want %q", tt.path, tt.baseDir, got, tt.want)
			}
		})
	}
}

func TestPathExists(t *testing.T) {
	dir := t.TempDir()

	if !PathExists(dir) {
		t.Error("PathExists() = false for an existing directory")
	}
	if PathExists(filepath.Join(dir, "absent")) {
		t.Error("PathExists() = true for a missing path")
	}
	if PathExists("") {
		t.Error("PathExists(\"\") = true, want false")
	}
}

func TestAppPaths(t *testing.T) {
	if !strings.HasSuffix(ConfigDir(), "confsync") {
		t.Errorf("ConfigDir() = %q, want confsync suffix", ConfigDir())
	}
	if filepath.Base(SettingsPath()) != "settings.yaml" {
		t.Errorf("SettingsPath() = %q", SettingsPath())
	}
	if filepath.Base(StatePath()) != "state.json" {
		t.Errorf("StatePath() = %q", StatePath())
	}
	if filepath.Base(LockPath()) != "sync.lock" {
		t.Errorf("LockPath() = %q", LockPath())
	}
	if filepath.Base(MirrorsDir()) != "repos" {
		t.Errorf("MirrorsDir() = %q", MirrorsDir())
	}
}
