package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/confsync/confsync/internal/fsutil"
	"github.com/confsync/confsync/internal/logging"
)

// Patch is a partial settings update. Nil sections and nil fields are left
// untouched; the repository, sync and log sections are merged
// independently so an update to one never loses siblings.
type Patch struct {
	Repository *RepositoryPatch `yaml:"repository,omitempty"`
	Sync       *SyncPatch       `yaml:"sync,omitempty"`
	Log        *LogPatch        `yaml:"log,omitempty"`
}

// RepositoryPatch is a partial update of the repository section.
type RepositoryPatch struct {
	URL    *string       `yaml:"url,omitempty"`
	Branch *string       `yaml:"branch,omitempty"`
	Auth   *AuthSettings `yaml:"auth,omitempty"`
}

// SyncPatch is a partial update of the sync section.
type SyncPatch struct {
	AutoSync        *bool          `yaml:"auto_sync,omitempty"`
	IntervalMinutes *int           `yaml:"interval_minutes,omitempty"`
	Tools           *ToolSelection `yaml:"tools,omitempty"`
	OverrideMode    *OverrideMode  `yaml:"override_mode,omitempty"`
}

// LogPatch is a partial update of the log section.
type LogPatch struct {
	Level *string `yaml:"level,omitempty"`
}

// applyTo applies the patch to an in-memory settings value.
func (p *Patch) applyTo(s *Settings) {
	if p.Repository != nil {
		if p.Repository.URL != nil {
			s.Repository.URL = *p.Repository.URL
		}
		if p.Repository.Branch != nil {
			s.Repository.Branch = *p.Repository.Branch
		}
		if p.Repository.Auth != nil {
			s.Repository.Auth = *p.Repository.Auth
		}
	}
	if p.Sync != nil {
		if p.Sync.AutoSync != nil {
			s.Sync.AutoSync = *p.Sync.AutoSync
		}
		if p.Sync.IntervalMinutes != nil {
			s.Sync.IntervalMinutes = *p.Sync.IntervalMinutes
		}
		if p.Sync.Tools != nil {
			s.Sync.Tools = *p.Sync.Tools
		}
		if p.Sync.OverrideMode != nil {
			s.Sync.OverrideMode = *p.Sync.OverrideMode
		}
	}
	if p.Log != nil && p.Log.Level != nil {
		s.Log.Level = *p.Log.Level
	}
}

// WriteSettings replaces the settings document wholesale. The write is
// atomic (temp + rename) and carries a leading comment identifying the
// file's own path.
func (r *Resolver) WriteSettings(settings *Settings) error {
	body, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	return r.writeDocument(body)
}

// UpdateSettings merges a partial update into the on-disk settings at the
// section level. Malformed existing YAML is treated as an empty base rather
// than propagating a parse error.
func (r *Resolver) UpdateSettings(patch *Patch) error {
	base := map[string]any{}

	// #nosec G304 - settingsPath is the trusted configuration location
	if data, err := os.ReadFile(r.settingsPath); err == nil {
		if err := yaml.Unmarshal(data, &base); err != nil {
			logging.Warn("settings file is malformed, updating from empty base",
				logging.Path(r.settingsPath),
				logging.Err(err),
			)
			base = map[string]any{}
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read settings %q: %w", r.settingsPath, err)
	}

	overlay, err := patchMap(patch)
	if err != nil {
		return err
	}
	deepMerge(base, overlay)

	body, err := yaml.Marshal(base)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	return r.writeDocument(body)
}

// writeDocument writes the settings body atomically with the identifying
// header comment.
func (r *Resolver) writeDocument(body []byte) error {
	header := fmt.Sprintf("# confsync settings file: %s\n", r.settingsPath)
	writer := fsutil.NewAtomicWriter()
	if err := writer.Write(r.settingsPath, append([]byte(header), body...)); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// patchMap converts a patch into a nested map through a YAML round trip so
// it can be merged with the raw on-disk document.
func patchMap(patch *Patch) (map[string]any, error) {
	if patch == nil {
		return map[string]any{}, nil
	}
	data, err := yaml.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings patch: %w", err)
	}
	overlay := map[string]any{}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("failed to normalize settings patch: %w", err)
	}
	return overlay, nil
}

// deepMerge merges src into dst, recursing into nested maps so present
// fields win and missing fields survive.
func deepMerge(dst, src map[string]any) {
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			deepMerge(dstMap, srcMap)
			continue
		}
		dst[key] = value
	}
}
