package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/confsync/confsync/internal/adapter"
)

// ChangeKind classifies one diff entry.
type ChangeKind string

const (
	// ChangeAdded means the destination does not exist yet.
	ChangeAdded ChangeKind = "added"
	// ChangeModified means the destination content differs from source.
	ChangeModified ChangeKind = "modified"
)

// Change is one difference between a mapped source and its destination.
// Mappings whose hashes match are omitted entirely, so a freshly synced
// tree diffs to nothing.
type Change struct {
	Tool       string
	SourcePath string
	TargetPath string
	Scope      adapter.Scope
	Kind       ChangeKind
}

// Diff compares content hashes between every mapped source and destination
// for the effective tools, without pulling or writing.
func (e *Engine) Diff(ctx context.Context, opts Options) ([]Change, error) {
	cfg, err := e.resolveFor(opts)
	if err != nil {
		return nil, err
	}

	provider := e.providerFor(cfg, e.bus)
	dctx := e.deployContext(cfg, provider.LocalPath(), opts)

	var changes []Change
	for _, toolID := range e.effectiveTools(cfg, opts.Tools) {
		a, ok := e.registry.Get(toolID)
		if !ok {
			continue
		}
		if det := safeDetect(a); !det.Installed {
			continue
		}

		for _, scope := range opts.Scope.scopes() {
			mappings, err := a.PathMappings(scope, dctx)
			if err != nil {
				return nil, fmt.Errorf("failed to map %s: %w", toolID, err)
			}
			for _, m := range mappings {
				change, err := e.compareMapping(toolID, m)
				if err != nil {
					return nil, err
				}
				if change != nil {
					changes = append(changes, *change)
				}
			}
		}
	}
	return changes, nil
}

// compareMapping hashes source and destination and reports the difference,
// or nil when the contents are identical.
func (e *Engine) compareMapping(toolID string, m adapter.PathMapping) (*Change, error) {
	if _, err := os.Stat(m.TargetPath); os.IsNotExist(err) {
		return &Change{
			Tool:       toolID,
			SourcePath: m.SourcePath,
			TargetPath: m.TargetPath,
			Scope:      m.Scope,
			Kind:       ChangeAdded,
		}, nil
	}

	srcHash, err := e.writer.Hash(m.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to hash source %q: %w", m.SourcePath, err)
	}
	dstHash, err := e.writer.Hash(m.TargetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to hash destination %q: %w", m.TargetPath, err)
	}
	if srcHash == dstHash {
		return nil, nil
	}

	return &Change{
		Tool:       toolID,
		SourcePath: m.SourcePath,
		TargetPath: m.TargetPath,
		Scope:      m.Scope,
		Kind:       ChangeModified,
	}, nil
}
