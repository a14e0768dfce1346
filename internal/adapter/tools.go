package adapter

import (
	"path/filepath"
	"runtime"
)

// BuiltinSpecs returns the declarative mapping table for every tool shipped
// with confsync. Repository layout convention: <tool>/<scope>/... where the
// relative path under the scope directory is preserved at the destination.
func BuiltinSpecs() []ToolSpec {
	return []ToolSpec{
		{
			ID:            "claude",
			Name:          "Claude Code",
			UserTarget:    ".claude",
			ProjectTarget: ".claude",
			DetectPaths:   []string{"~/.claude"},
			Binaries:      []string{"claude"},
			Extensions:    []string{".md", ".json"},
		},
		{
			ID:             "codex",
			Name:           "OpenAI Codex CLI",
			UserTarget:     ".codex",
			ProjectTarget:  ".codex",
			DetectPaths:    []string{"~/.codex"},
			IndicatorFiles: []string{"~/.codex/config.toml"},
			Binaries:       []string{"codex"},
			Extensions:     []string{".toml", ".md", ".json"},
		},
		{
			ID:            "cursor",
			Name:          "Cursor",
			UserTarget:    ".cursor",
			ProjectTarget: ".cursor",
			DetectPaths:   []string{"~/.cursor"},
			Binaries:      []string{"cursor"},
		},
		{
			ID:            "vscode",
			Name:          "Visual Studio Code",
			UserTarget:    vscodeUserDir(),
			ProjectTarget: ".vscode",
			DetectPaths:   []string{"~/" + vscodeUserDir()},
			Binaries:      []string{"code"},
			Extensions:    []string{".json"},
		},
		{
			ID:            "zed",
			Name:          "Zed",
			UserTarget:    filepath.Join(".config", "zed"),
			ProjectTarget: ".zed",
			DetectPaths:   []string{"~/.config/zed"},
			Binaries:      []string{"zed"},
			Extensions:    []string{".json"},
		},
		{
			ID:          "nvim",
			Name:        "Neovim",
			UserTarget:  filepath.Join(".config", "nvim"),
			DetectPaths: []string{"~/.config/nvim"},
			Binaries:    []string{"nvim"},
			Extensions:  []string{".lua", ".vim"},
		},
		{
			ID:             "helix",
			Name:           "Helix",
			UserTarget:     filepath.Join(".config", "helix"),
			DetectPaths:    []string{"~/.config/helix"},
			IndicatorFiles: []string{"~/.config/helix/config.toml"},
			Binaries:       []string{"hx"},
			Extensions:     []string{".toml"},
		},
		{
			ID:          "tmux",
			Name:        "tmux",
			UserTarget:  filepath.Join(".config", "tmux"),
			DetectPaths: []string{"~/.config/tmux", "~/.tmux.conf"},
			Binaries:    []string{"tmux"},
			Extensions:  []string{".conf"},
		},
		{
			ID:          "git",
			Name:        "Git",
			UserTarget:  filepath.Join(".config", "git"),
			DetectPaths: []string{"~/.config/git", "~/.gitconfig"},
			Binaries:    []string{"git"},
		},
		{
			ID:          "zsh",
			Name:        "Zsh",
			UserTarget:  "",
			DetectPaths: []string{"~/.zshrc"},
			Binaries:    []string{"zsh"},
		},
		{
			ID:             "starship",
			Name:           "Starship",
			UserTarget:     ".config",
			IndicatorFiles: []string{"~/.config/starship.toml"},
			Binaries:       []string{"starship"},
			Extensions:     []string{".toml"},
		},
		{
			ID:          "alacritty",
			Name:        "Alacritty",
			UserTarget:  filepath.Join(".config", "alacritty"),
			DetectPaths: []string{"~/.config/alacritty"},
			Binaries:    []string{"alacritty"},
			Extensions:  []string{".toml", ".yml", ".yaml"},
		},
		{
			ID:          "wezterm",
			Name:        "WezTerm",
			UserTarget:  filepath.Join(".config", "wezterm"),
			DetectPaths: []string{"~/.config/wezterm", "~/.wezterm.lua"},
			Binaries:    []string{"wezterm"},
			Extensions:  []string{".lua"},
		},
		{
			ID:          "ghostty",
			Name:        "Ghostty",
			UserTarget:  filepath.Join(".config", "ghostty"),
			DetectPaths: []string{"~/.config/ghostty"},
			Binaries:    []string{"ghostty"},
		},
	}
}

// RegisterBuiltins registers the standard adapters on a registry.
func RegisterBuiltins(r *Registry) {
	for _, spec := range BuiltinSpecs() {
		r.Register(NewFileAdapter(spec))
	}
}

// vscodeUserDir is the platform-specific user settings directory for VS
// Code, relative to home.
func vscodeUserDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join("Library", "Application Support", "Code", "User")
	case "windows":
		return filepath.Join("AppData", "Roaming", "Code", "User")
	default:
		return filepath.Join(".config", "Code", "User")
	}
}
