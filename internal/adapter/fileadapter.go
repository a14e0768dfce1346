package adapter

import (
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/confsync/confsync/internal/config"
	"github.com/confsync/confsync/internal/fsutil"
	"github.com/confsync/confsync/internal/logging"
	"github.com/confsync/confsync/internal/util"
)

// ToolSpec declares where one tool's files come from and go to. All
// built-in adapters are instances of this declaration; only the table
// entries differ.
type ToolSpec struct {
	// ID is the stable identifier (also the default source directory).
	ID string
	// Name is the human-readable tool name.
	Name string
	// SourceDir is the tool's directory inside the repository; defaults
	// to ID.
	SourceDir string
	// UserTarget is the user-scope destination, relative to home. An
	// empty string targets the home directory itself.
	UserTarget string
	// ProjectTarget is the project-scope destination, relative to the
	// project root. Empty means the tool has no project scope.
	ProjectTarget string
	// DetectPaths are filesystem locations whose existence indicates an
	// installation ("~" is expanded).
	DetectPaths []string
	// IndicatorFiles are files whose existence strongly indicates an
	// installation.
	IndicatorFiles []string
	// Binaries are executable names probed on PATH.
	Binaries []string
	// Extensions is the validation allow-list. Empty accepts everything.
	Extensions []string
}

// fileAdapter implements Adapter for a declarative ToolSpec.
type fileAdapter struct {
	spec ToolSpec
}

// NewFileAdapter creates the standard file-deploying adapter for a spec.
func NewFileAdapter(spec ToolSpec) Adapter {
	if spec.SourceDir == "" {
		spec.SourceDir = spec.ID
	}
	return &fileAdapter{spec: spec}
}

func (a *fileAdapter) ID() string   { return a.spec.ID }
func (a *fileAdapter) Name() string { return a.spec.Name }

// Detect probes, in order of confidence: an environment override, the
// tool's configuration paths, indicator files, and finally executables on
// PATH.
func (a *fileAdapter) Detect() (DetectResult, error) {
	if envPath := os.Getenv(envOverrideKey(a.spec.ID)); envPath != "" {
		expanded := util.ExpandPath(envPath, "")
		if util.PathExists(expanded) {
			return DetectResult{Installed: true, Location: expanded}, nil
		}
	}

	for _, p := range a.spec.DetectPaths {
		expanded := util.ExpandPath(p, "")
		if util.PathExists(expanded) {
			return DetectResult{Installed: true, Location: expanded}, nil
		}
	}

	for _, p := range a.spec.IndicatorFiles {
		expanded := util.ExpandPath(p, "")
		if util.PathExists(expanded) {
			return DetectResult{Installed: true, Location: filepath.Dir(expanded)}, nil
		}
	}

	for _, bin := range a.spec.Binaries {
		if loc, err := exec.LookPath(bin); err == nil {
			return DetectResult{Installed: true, Location: loc}, nil
		}
	}

	return DetectResult{
		Installed: false,
		Reason:    fmt.Sprintf("no configuration directory or executable found for %s", a.spec.Name),
	}, nil
}

// PathMappings walks the tool's scope subtree in the mirror and resolves
// each file to a destination, deciding the action from destination
// existence and the override policy.
func (a *fileAdapter) PathMappings(scope Scope, ctx DeployContext) ([]PathMapping, error) {
	sourceBase := filepath.Join(ctx.SourceRoot, a.spec.SourceDir, string(scope))
	if !util.PathExists(sourceBase) {
		return nil, nil
	}

	targetBase, ok := a.targetBase(scope, ctx)
	if !ok {
		return nil, nil
	}

	var mappings []PathMapping
	err := filepath.WalkDir(sourceBase, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(sourceBase, path)
		if err != nil {
			return err
		}
		target := filepath.Join(targetBase, rel)

		mappings = append(mappings, PathMapping{
			SourcePath: path,
			TargetPath: target,
			Scope:      scope,
			Action:     decideAction(target, ctx),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate %s sources: %w", a.spec.ID, err)
	}
	return mappings, nil
}

// targetBase resolves the destination root for a scope, honoring free-form
// profile overrides.
func (a *fileAdapter) targetBase(scope Scope, ctx DeployContext) (string, bool) {
	switch scope {
	case ScopeUser:
		dir := a.spec.UserTarget
		if o := ctx.Overrides[a.spec.ID+".user_dir"]; o != "" {
			dir = o
		}
		return filepath.Join(ctx.UserHome, dir), true
	case ScopeProject:
		if ctx.ProjectPath == "" {
			return "", false
		}
		dir := a.spec.ProjectTarget
		if o := ctx.Overrides[a.spec.ID+".project_dir"]; o != "" {
			dir = o
		}
		if dir == "" {
			return "", false
		}
		return filepath.Join(ctx.ProjectPath, dir), true
	default:
		return "", false
	}
}

// Validate applies the extension allow-list, then format well-formedness
// checks for known extensions.
func (a *fileAdapter) Validate(files []string) ValidationResult {
	return ValidateFiles(files, a.spec.Extensions)
}

// Deploy copies every non-skip mapping via the atomic writer, counting
// successes and skips and collecting per-file errors without aborting the
// batch.
func (a *fileAdapter) Deploy(mappings []PathMapping, writer fsutil.Writer) DeployResult {
	var result DeployResult

	for _, m := range mappings {
		if m.Action == ActionSkip {
			result.Skipped++
			continue
		}
		if err := writer.Copy(m.SourcePath, m.TargetPath); err != nil {
			logging.Warn("deploy failed",
				logging.Tool(a.spec.ID),
				logging.Path(m.TargetPath),
				logging.Err(err),
			)
			result.Errors = append(result.Errors, FileError{Path: m.TargetPath, Err: err})
			continue
		}
		result.Deployed++
	}
	return result
}

// Preview renders mappings as read-only preview items.
func (a *fileAdapter) Preview(mappings []PathMapping) []PreviewItem {
	items := make([]PreviewItem, 0, len(mappings))
	for _, m := range mappings {
		items = append(items, PreviewItem{
			SourcePath: m.SourcePath,
			TargetPath: m.TargetPath,
			Scope:      m.Scope,
			Action:     m.Action,
		})
	}
	return items
}

// decideAction compares destination existence against the override policy.
// Interactive confirmation for "ask" is a presentation concern; the engine
// treats it as overwrite and reports the conflict.
func decideAction(target string, ctx DeployContext) Action {
	if !util.PathExists(target) {
		return ActionCreate
	}
	if ctx.Force {
		return ActionOverwrite
	}
	if ctx.OverrideMode == config.OverrideModeSkip {
		return ActionSkip
	}
	// overwrite and ask both overwrite here
	return ActionOverwrite
}

func envOverrideKey(id string) string {
	return "CONFSYNC_TOOL_" + sanitizeEnv(id) + "_PATH"
}

func sanitizeEnv(id string) string {
	out := make([]rune, 0, len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
			out = append(out, r-('a'-'A'))
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
