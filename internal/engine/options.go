package engine

import (
	"github.com/confsync/confsync/internal/adapter"
)

// ScopeSelection restricts which scopes a sync acts on.
type ScopeSelection string

const (
	// ScopeAll deploys both user and project scopes.
	ScopeAll ScopeSelection = "all"
	// ScopeUser deploys only user-scope files.
	ScopeUser ScopeSelection = "user"
	// ScopeProject deploys only project-scope files.
	ScopeProject ScopeSelection = "project"
)

// IsValid returns true if the selection is recognized.
func (s ScopeSelection) IsValid() bool {
	switch s {
	case ScopeAll, ScopeUser, ScopeProject, "":
		return true
	default:
		return false
	}
}

// scopes expands the selection into deployment order.
func (s ScopeSelection) scopes() []adapter.Scope {
	switch s {
	case ScopeUser:
		return []adapter.Scope{adapter.ScopeUser}
	case ScopeProject:
		return []adapter.Scope{adapter.ScopeProject}
	default:
		return adapter.AllScopes()
	}
}

// Options configures one engine operation.
type Options struct {
	// Tools restricts the operation to these tool identifiers. Empty
	// falls back to the configured effective tools, then to every
	// registered adapter.
	Tools []string
	// Scope restricts the deployment scopes. Empty means all.
	Scope ScopeSelection
	// DryRun counts planned operations without writing anything.
	DryRun bool
	// Force overwrites destinations regardless of the configured policy.
	Force bool
	// Branch, Tag and Commit pin the repository pull.
	Branch string
	Tag    string
	Commit string
	// ProjectPath overrides the project root (default: working directory).
	ProjectPath string
}
