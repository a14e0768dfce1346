package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/confsync/confsync/internal/logging"
	"github.com/confsync/confsync/internal/util"
)

// ProfileFileName is the optional per-project profile, looked up in the
// project root.
const ProfileFileName = ".confsync.yaml"

// Profile is the optional per-project configuration overlay.
type Profile struct {
	// Profile is the profile name, for reporting only.
	Profile string `yaml:"profile"`
	// Repository overrides the repository URL and branch.
	Repository *RepositoryOverride `yaml:"repository,omitempty"`
	// Tools replaces the effective tool list wholesale when non-empty.
	Tools []string `yaml:"tools,omitempty"`
	// Overrides carries free-form key/value overrides for adapters.
	Overrides map[string]string `yaml:"overrides,omitempty"`
}

// RepositoryOverride is the subset of repository settings a project profile
// may replace.
type RepositoryOverride struct {
	URL    string `yaml:"url,omitempty"`
	Branch string `yaml:"branch,omitempty"`
}

// Resolved is the effective configuration for one invocation. It is an
// immutable value: reloads produce a fresh instance, never a partial
// mutation.
type Resolved struct {
	// Settings is the merged global settings document.
	Settings Settings
	// Profile is the per-project profile, if one was found.
	Profile *Profile
	// ProjectPath is the project root the profile was resolved against.
	ProjectPath string
	// EffectiveTools is the ordered set of tool identifiers to act on.
	// Empty means "all registered tools".
	EffectiveTools []string
	// RepoLocalPath is the deterministic local mirror path for the
	// repository URL.
	RepoLocalPath string
}

// Resolver loads and merges configuration sources.
type Resolver struct {
	settingsPath string
}

// NewResolver creates a resolver reading the settings document at
// settingsPath. An empty path uses the default location.
func NewResolver(settingsPath string) *Resolver {
	if settingsPath == "" {
		settingsPath = util.SettingsPath()
	}
	return &Resolver{settingsPath: settingsPath}
}

// SettingsPath returns the settings document location this resolver reads.
func (r *Resolver) SettingsPath() string {
	return r.settingsPath
}

// Resolve produces the effective configuration for projectPath. A missing
// settings file yields the documented defaults; a malformed one is treated
// as empty so a single corrupt write never bricks configuration.
func (r *Resolver) Resolve(projectPath string) (*Resolved, error) {
	return r.ResolveWithOverrides(projectPath, nil)
}

// ResolveWithOverrides resolves like Resolve and then applies an in-memory
// settings patch on top, without persisting it.
func (r *Resolver) ResolveWithOverrides(projectPath string, patch *Patch) (*Resolved, error) {
	settings := Default()

	// #nosec G304 - settingsPath is the trusted configuration location
	data, err := os.ReadFile(r.settingsPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, settings); err != nil {
			logging.Warn("settings file is malformed, using defaults",
				logging.Path(r.settingsPath),
				logging.Err(err),
			)
			settings = Default()
		}
	case os.IsNotExist(err):
		// defaults
	default:
		return nil, fmt.Errorf("failed to read settings %q: %w", r.settingsPath, err)
	}

	settings.applyEnvironment()

	if patch != nil {
		patch.applyTo(settings)
	}

	profile, err := loadProfile(projectPath)
	if err != nil {
		return nil, err
	}
	if profile != nil && profile.Repository != nil {
		if profile.Repository.URL != "" {
			settings.Repository.URL = profile.Repository.URL
		}
		if profile.Repository.Branch != "" {
			settings.Repository.Branch = profile.Repository.Branch
		}
	}

	resolved := &Resolved{
		Settings:       *settings,
		Profile:        profile,
		ProjectPath:    projectPath,
		EffectiveTools: effectiveTools(settings, profile),
		RepoLocalPath:  MirrorPath(settings.Repository.URL),
	}
	return resolved, nil
}

// effectiveTools resolves the tool list: profile list (if non-empty), then
// the explicit global list, then empty meaning "every registered tool".
func effectiveTools(settings *Settings, profile *Profile) []string {
	if profile != nil && len(profile.Tools) > 0 {
		return append([]string(nil), profile.Tools...)
	}
	if !settings.Sync.Tools.All && len(settings.Sync.Tools.Tools) > 0 {
		return append([]string(nil), settings.Sync.Tools.Tools...)
	}
	return nil
}

// loadProfile reads the optional project profile. A missing file is not an
// error; a malformed one is.
func loadProfile(projectPath string) (*Profile, error) {
	if projectPath == "" {
		return nil, nil
	}

	path := filepath.Join(projectPath, ProfileFileName)
	// #nosec G304 - path is the project profile convention location
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read project profile %q: %w", path, err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse project profile %q: %w", path, err)
	}
	return &profile, nil
}

// ConfiguredLogLevel returns the log level explicitly set for the settings
// document at settingsPath (empty means the default location), with the
// CONFSYNC_LOG_LEVEL environment variable taking precedence. It returns ""
// when no level was configured anywhere, so callers keep their own default.
func ConfiguredLogLevel(settingsPath string) string {
	if v := os.Getenv("CONFSYNC_LOG_LEVEL"); v != "" {
		return v
	}
	if settingsPath == "" {
		settingsPath = util.SettingsPath()
	}

	// #nosec G304 - settingsPath is the trusted configuration location
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return ""
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return ""
	}
	return s.Log.Level
}

// MirrorPath derives the deterministic local mirror directory for a
// repository URL. The same URL always maps to the same directory and
// distinct URLs never collide.
func MirrorPath(url string) string {
	if url == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(util.MirrorsDir(), hex.EncodeToString(sum[:])[:16])
}
