// Package adapter defines the per-tool capability contract
// (detect/map/validate/deploy/preview), the registry that selects
// implementations by identifier, and the declarative file adapter behind
// all built-in tools.
//
// This is the system's extension point: new destination tools register new
// adapters without touching the orchestrator.
package adapter

import (
	"github.com/confsync/confsync/internal/config"
	"github.com/confsync/confsync/internal/fsutil"
)

// Scope is where files are deployed: the invoking user's home directory or
// the current project's working directory.
type Scope string

const (
	// ScopeUser deploys under the user's home directory.
	ScopeUser Scope = "user"
	// ScopeProject deploys under the project working directory.
	ScopeProject Scope = "project"
)

// IsValid returns true if the scope is recognized.
func (s Scope) IsValid() bool {
	return s == ScopeUser || s == ScopeProject
}

// AllScopes returns both scopes in deployment order.
func AllScopes() []Scope {
	return []Scope{ScopeUser, ScopeProject}
}

// Action is the planned file operation, decided by comparing destination
// existence against the override policy.
type Action string

const (
	// ActionCreate writes a destination that does not exist yet.
	ActionCreate Action = "create"
	// ActionOverwrite replaces an existing destination.
	ActionOverwrite Action = "overwrite"
	// ActionSkip preserves an existing destination.
	ActionSkip Action = "skip"
)

// PathMapping is one planned file operation, computed fresh per sync call.
type PathMapping struct {
	// SourcePath is the absolute path inside the local mirror.
	SourcePath string
	// TargetPath is the absolute destination path.
	TargetPath string
	// Scope is the deployment scope this mapping belongs to.
	Scope Scope
	// Action is the planned operation.
	Action Action
}

// DetectResult reports whether a tool is installed. It is produced fresh by
// each detection and never persisted.
type DetectResult struct {
	Installed bool
	// Location is where the tool was found, when installed.
	Location string
	// Reason explains non-installation or a probe failure.
	Reason string
}

// DeployContext carries the resolved paths and policy one sync call deploys
// against.
type DeployContext struct {
	// SourceRoot is the local repository mirror root.
	SourceRoot string
	// UserHome is the invoking user's home directory.
	UserHome string
	// ProjectPath is the resolved project root for project-scope mappings.
	ProjectPath string
	// Platform is the runtime OS (GOOS).
	Platform string
	// OverrideMode is the effective destination-conflict policy.
	OverrideMode config.OverrideMode
	// Force forces overwrite regardless of the configured policy.
	Force bool
	// Overrides carries free-form per-tool overrides from the project
	// profile ("<tool>.user_dir", "<tool>.project_dir").
	Overrides map[string]string
}

// FileError is a per-file deployment or validation failure.
type FileError struct {
	Path string
	Err  error
}

// DeployResult aggregates one adapter's deployment outcome. Per-file
// failures are collected without aborting the batch.
type DeployResult struct {
	Deployed int
	Skipped  int
	Errors   []FileError
}

// PreviewItem is one planned operation rendered for a read-only preview.
type PreviewItem struct {
	SourcePath string
	TargetPath string
	Scope      Scope
	Action     Action
}

// InvalidFile is a source file rejected by validation.
type InvalidFile struct {
	Path   string
	Reason string
}

// ValidationResult partitions candidate source files into deployable and
// rejected sets.
type ValidationResult struct {
	Valid   []string
	Invalid []InvalidFile
}

// Adapter is the per-destination-tool capability contract.
type Adapter interface {
	// ID returns the stable tool identifier used in configuration.
	ID() string

	// Name returns the human-readable tool name.
	Name() string

	// Detect probes for the tool's installation. Errors are converted by
	// the orchestrator into a non-installed result, never a sync abort.
	Detect() (DetectResult, error)

	// PathMappings enumerates planned file operations for one scope.
	PathMappings(scope Scope, ctx DeployContext) ([]PathMapping, error)

	// Validate partitions source files against the adapter's allow-list
	// and format checks.
	Validate(files []string) ValidationResult

	// Deploy copies every non-skip mapping through the writer, tolerating
	// per-file failure.
	Deploy(mappings []PathMapping, writer fsutil.Writer) DeployResult

	// Preview renders the planned operations without writing anything.
	Preview(mappings []PathMapping) []PreviewItem
}
