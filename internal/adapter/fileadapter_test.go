package adapter

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/confsync/confsync/internal/config"
	"github.com/confsync/confsync/internal/fsutil"
)

// writeSourceTree lays out a repository mirror fragment for one tool.
func writeSourceTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatalf("failed to create source dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write source file: %v", err)
		}
	}
}

func TestPathMappingsUserScope(t *testing.T) {
	sourceRoot := t.TempDir()
	home := t.TempDir()
	writeSourceTree(t, sourceRoot, map[string]string{
		"claude/user/settings.json":   `{}`,
		"claude/user/agents/helper.md": "# helper",
	})

	a := NewFileAdapter(ToolSpec{ID: "claude", Name: "Claude Code", UserTarget: ".claude"})
	ctx := DeployContext{
		SourceRoot:   sourceRoot,
		UserHome:     home,
		OverrideMode: config.OverrideModeOverwrite,
	}

	mappings, err := a.PathMappings(ScopeUser, ctx)
	if err != nil {
		t.Fatalf("PathMappings() error = %v", err)
	}
	if len(mappings) != 2 {
		t.Fatalf("got %d mappings, want 2", len(mappings))
	}

	targets := []string{mappings[0].TargetPath, mappings[1].TargetPath}
	sort.Strings(targets)
	wantNested := filepath.Join(home, ".claude", "agents", "helper.md")
	wantTop := filepath.Join(home, ".claude", "settings.json")
	if targets[0] != wantNested || targets[1] != wantTop {
		t.Errorf("targets = %v, want [%s %s]", targets, wantNested, wantTop)
	}

	for _, m := range mappings {
		if m.Scope != ScopeUser {
			t.Errorf("scope = %q, want user", m.Scope)
		}
		if m.Action != ActionCreate {
			t.Errorf("action for missing destination = %q, want create", m.Action)
		}
	}
}

func TestPathMappingsProjectScope(t *testing.T) {
	sourceRoot := t.TempDir()
	project := t.TempDir()
	writeSourceTree(t, sourceRoot, map[string]string{
		"claude/project/CLAUDE.md": "# notes",
	})

	a := NewFileAdapter(ToolSpec{ID: "claude", Name: "Claude Code", UserTarget: ".claude", ProjectTarget: ".claude"})

	mappings, err := a.PathMappings(ScopeProject, DeployContext{
		SourceRoot:  sourceRoot,
		ProjectPath: project,
	})
	if err != nil {
		t.Fatalf("PathMappings() error = %v", err)
	}
	if len(mappings) != 1 {
		t.Fatalf("got %d mappings, want 1", len(mappings))
	}
	want := filepath.Join(project, ".claude", "CLAUDE.md")
	if mappings[0].TargetPath != want {
		t.Errorf("target = %q, want %q", mappings[0].TargetPath, want)
	}

	// No project path means no project-scope work.
	mappings, err = a.PathMappings(ScopeProject, DeployContext{SourceRoot: sourceRoot})
	if err != nil {
		t.Fatalf("PathMappings() error = %v", err)
	}
	if len(mappings) != 0 {
		t.Errorf("got %d mappings without a project path, want 0", len(mappings))
	}
}

func TestPathMappingsNoProjectTarget(t *testing.T) {
	sourceRoot := t.TempDir()
	writeSourceTree(t, sourceRoot, map[string]string{
		"nvim/project/init.lua": "-- lua",
	})

	// nvim has no project scope.
	a := NewFileAdapter(ToolSpec{ID: "nvim", Name: "Neovim", UserTarget: ".config/nvim"})

	mappings, err := a.PathMappings(ScopeProject, DeployContext{
		SourceRoot:  sourceRoot,
		ProjectPath: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("PathMappings() error = %v", err)
	}
	if len(mappings) != 0 {
		t.Errorf("got %d mappings for a tool without project scope, want 0", len(mappings))
	}
}

func TestPathMappingsMissingSourceDir(t *testing.T) {
	a := NewFileAdapter(ToolSpec{ID: "zed", Name: "Zed", UserTarget: ".config/zed"})

	mappings, err := a.PathMappings(ScopeUser, DeployContext{
		SourceRoot: t.TempDir(),
		UserHome:   t.TempDir(),
	})
	if err != nil {
		t.Fatalf("PathMappings() error = %v", err)
	}
	if mappings != nil {
		t.Errorf("got %v for a tool absent from the repository, want nil", mappings)
	}
}

func TestPathMappingsHonorsOverrides(t *testing.T) {
	sourceRoot := t.TempDir()
	home := t.TempDir()
	writeSourceTree(t, sourceRoot, map[string]string{
		"nvim/user/init.lua": "-- lua",
	})

	a := NewFileAdapter(ToolSpec{ID: "nvim", Name: "Neovim", UserTarget: ".config/nvim"})
	mappings, err := a.PathMappings(ScopeUser, DeployContext{
		SourceRoot: sourceRoot,
		UserHome:   home,
		Overrides:  map[string]string{"nvim.user_dir": "custom/nvim"},
	})
	if err != nil {
		t.Fatalf("PathMappings() error = %v", err)
	}
	if len(mappings) != 1 {
		t.Fatalf("got %d mappings, want 1", len(mappings))
	}
	want := filepath.Join(home, "custom", "nvim", "init.lua")
	if mappings[0].TargetPath != want {
		t.Errorf("target = %q, want override-derived %q", mappings[0].TargetPath, want)
	}
}

func TestDecideAction(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "existing.json")
	if err := os.WriteFile(existing, []byte(`{}`), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	missing := filepath.Join(dir, "missing.json")

	tests := []struct {
		name   string
		target string
		ctx    DeployContext
		want   Action
	}{
		{"missing destination", missing, DeployContext{OverrideMode: config.OverrideModeSkip}, ActionCreate},
		{"existing overwrite mode", existing, DeployContext{OverrideMode: config.OverrideModeOverwrite}, ActionOverwrite},
		{"existing skip mode", existing, DeployContext{OverrideMode: config.OverrideModeSkip}, ActionSkip},
		{"existing ask mode", existing, DeployContext{OverrideMode: config.OverrideModeAsk}, ActionOverwrite},
		{"force beats skip", existing, DeployContext{OverrideMode: config.OverrideModeSkip, Force: true}, ActionOverwrite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decideAction(tt.target, tt.ctx); got != tt.want {
				t.Errorf("decideAction() = %q, want %q", got, tt.want)
			}
		})
	}
}

// failingWriter fails Copy for selected destinations.
type failingWriter struct {
	failOn map[string]bool
	copies int
}

func (w *failingWriter) Write(string, []byte) error { return nil }
func (w *failingWriter) EnsureDir(string) error     { return nil }
func (w *failingWriter) Hash(string) (string, error) {
	return "", errors.New("not implemented")
}

func (w *failingWriter) Copy(_, dest string) error {
	if w.failOn[dest] {
		return errors.New("disk full")
	}
	w.copies++
	return nil
}

func TestDeployContinuesPastFailures(t *testing.T) {
	a := NewFileAdapter(ToolSpec{ID: "claude", Name: "Claude Code"})
	mappings := []PathMapping{
		{SourcePath: "s1", TargetPath: "t1", Action: ActionCreate},
		{SourcePath: "s2", TargetPath: "t2", Action: ActionOverwrite},
		{SourcePath: "s3", TargetPath: "t3", Action: ActionSkip},
		{SourcePath: "s4", TargetPath: "t4", Action: ActionCreate},
	}
	writer := &failingWriter{failOn: map[string]bool{"t2": true}}

	result := a.Deploy(mappings, writer)

	if result.Deployed != 2 {
		t.Errorf("Deployed = %d, want 2", result.Deployed)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
	if len(result.Errors) != 1 || result.Errors[0].Path != "t2" {
		t.Errorf("Errors = %v, want one error for t2", result.Errors)
	}
	if writer.copies != 2 {
		t.Errorf("writer ran %d copies, want 2", writer.copies)
	}
}

func TestDeployAtomicWriterIntegration(t *testing.T) {
	sourceRoot := t.TempDir()
	home := t.TempDir()
	writeSourceTree(t, sourceRoot, map[string]string{
		"helix/user/config.toml": "theme = \"gruvbox\"\n",
	})

	a := NewFileAdapter(ToolSpec{ID: "helix", Name: "Helix", UserTarget: ".config/helix"})
	ctx := DeployContext{
		SourceRoot:   sourceRoot,
		UserHome:     home,
		OverrideMode: config.OverrideModeOverwrite,
	}

	mappings, err := a.PathMappings(ScopeUser, ctx)
	if err != nil {
		t.Fatalf("PathMappings() error = %v", err)
	}
	result := a.Deploy(mappings, fsutil.NewAtomicWriter())
	if len(result.Errors) != 0 {
		t.Fatalf("Deploy() errors = %v", result.Errors)
	}
	if result.Deployed != 1 {
		t.Fatalf("Deployed = %d, want 1", result.Deployed)
	}

	got, err := os.ReadFile(filepath.Join(home, ".config", "helix", "config.toml"))
	if err != nil {
		t.Fatalf("destination missing: %v", err)
	}
	if string(got) != "theme = \"gruvbox\"\n" {
		t.Errorf("content = %q", got)
	}
}

func TestDetectEnvOverride(t *testing.T) {
	location := t.TempDir()
	t.Setenv("CONFSYNC_TOOL_CLAUDE_PATH", location)

	a := NewFileAdapter(ToolSpec{ID: "claude", Name: "Claude Code"})
	result, err := a.Detect()
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if !result.Installed {
		t.Fatal("Detect() should honor the environment override")
	}
	if result.Location != location {
		t.Errorf("Location = %q, want %q", result.Location, location)
	}
}

func TestDetectByPath(t *testing.T) {
	configDir := t.TempDir()

	a := NewFileAdapter(ToolSpec{
		ID:          "zed",
		Name:        "Zed",
		DetectPaths: []string{configDir},
	})
	result, err := a.Detect()
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if !result.Installed || result.Location != configDir {
		t.Errorf("Detect() = %+v, want installed at %q", result, configDir)
	}
}

func TestDetectNotInstalled(t *testing.T) {
	a := NewFileAdapter(ToolSpec{
		ID:          "ghost",
		Name:        "Ghost Tool",
		DetectPaths: []string{filepath.Join(t.TempDir(), "absent")},
		Binaries:    []string{"confsync-test-nonexistent-binary"},
	})
	result, err := a.Detect()
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if result.Installed {
		t.Error("Detect() = installed, want not installed")
	}
	if result.Reason == "" {
		t.Error("not-installed result should carry a reason")
	}
}

func TestEnvOverrideKey(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"claude", "CONFSYNC_TOOL_CLAUDE_PATH"},
		{"vscode", "CONFSYNC_TOOL_VSCODE_PATH"},
		{"my-tool.2", "CONFSYNC_TOOL_MY_TOOL_2_PATH"},
	}
	for _, tt := range tests {
		if got := envOverrideKey(tt.id); got != tt.want {
			t.Errorf("envOverrideKey(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
