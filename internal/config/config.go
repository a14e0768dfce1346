// Package config provides the global settings document, the optional
// per-project profile and the resolver that merges them into the effective
// configuration for one invocation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// OverrideMode is the policy for handling a pre-existing destination file.
type OverrideMode string

const (
	// OverrideModeOverwrite replaces existing destination files.
	OverrideModeOverwrite OverrideMode = "overwrite"

	// OverrideModeSkip preserves existing destination files.
	OverrideModeSkip OverrideMode = "skip"

	// OverrideModeAsk defers to the presentation layer; the engine treats
	// it as overwrite and reports preserved files as conflicts.
	OverrideModeAsk OverrideMode = "ask"
)

// IsValid returns true if the override mode is recognized.
func (m OverrideMode) IsValid() bool {
	switch m {
	case OverrideModeOverwrite, OverrideModeSkip, OverrideModeAsk:
		return true
	default:
		return false
	}
}

// String returns the string representation of the mode.
func (m OverrideMode) String() string {
	return string(m)
}

// AllOverrideModes returns all supported override modes.
func AllOverrideModes() []OverrideMode {
	return []OverrideMode{OverrideModeOverwrite, OverrideModeSkip, OverrideModeAsk}
}

// Settings is the global settings document.
type Settings struct {
	// Repository configures the source-of-truth repository.
	Repository RepositorySettings `yaml:"repository"`

	// Sync configures default synchronization behavior.
	Sync SyncSettings `yaml:"sync"`

	// Log configures logging.
	Log LogSettings `yaml:"log"`
}

// RepositorySettings identifies the configuration source repository.
type RepositorySettings struct {
	URL    string       `yaml:"url"`
	Branch string       `yaml:"branch"`
	Auth   AuthSettings `yaml:"auth,omitempty"`
}

// AuthSettings holds credential locations for repository access.
type AuthSettings struct {
	// SSHKeyFile is the private key used for ssh:// and git@ remotes.
	SSHKeyFile string `yaml:"ssh_key_file,omitempty"`
	// TokenFile holds an access token for https:// remotes.
	TokenFile string `yaml:"token_file,omitempty"`
}

// SyncSettings holds synchronization behavior.
type SyncSettings struct {
	// AutoSync enables periodic background sync in long-lived hosts.
	AutoSync bool `yaml:"auto_sync"`
	// IntervalMinutes is the auto-sync period.
	IntervalMinutes int `yaml:"interval_minutes"`
	// Tools selects which tools to sync: "all" or an explicit list.
	Tools ToolSelection `yaml:"tools"`
	// OverrideMode is the destination-conflict policy.
	OverrideMode OverrideMode `yaml:"override_mode"`
}

// LogSettings holds logging preferences.
type LogSettings struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// ToolSelection is either the literal "all" or an explicit ordered list of
// tool identifiers.
type ToolSelection struct {
	All   bool
	Tools []string
}

// UnmarshalYAML accepts either the scalar "all" or a sequence of tool ids.
func (ts *ToolSelection) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		if !strings.EqualFold(strings.TrimSpace(s), "all") {
			return fmt.Errorf("sync.tools must be %q or a list, got %q", "all", s)
		}
		*ts = ToolSelection{All: true}
		return nil
	case yaml.SequenceNode:
		var tools []string
		if err := value.Decode(&tools); err != nil {
			return err
		}
		*ts = ToolSelection{Tools: tools}
		return nil
	default:
		return fmt.Errorf("sync.tools must be %q or a list", "all")
	}
}

// MarshalYAML emits "all" or the explicit list.
func (ts ToolSelection) MarshalYAML() (any, error) {
	if ts.All || len(ts.Tools) == 0 {
		return "all", nil
	}
	return ts.Tools, nil
}

// Default returns the documented default settings.
func Default() *Settings {
	return &Settings{
		Repository: RepositorySettings{
			Branch: "main",
		},
		Sync: SyncSettings{
			AutoSync:        false,
			IntervalMinutes: 30,
			Tools:           ToolSelection{All: true},
			OverrideMode:    OverrideModeOverwrite,
		},
		Log: LogSettings{
			Level: "info",
		},
	}
}

// applyEnvironment applies environment variable overrides. Environment
// variables follow the pattern CONFSYNC_<SECTION>_<KEY>.
func (s *Settings) applyEnvironment() {
	if v := os.Getenv("CONFSYNC_REPO_URL"); v != "" {
		s.Repository.URL = v
	}
	if v := os.Getenv("CONFSYNC_REPO_BRANCH"); v != "" {
		s.Repository.Branch = v
	}
	if v := os.Getenv("CONFSYNC_REPO_SSH_KEY_FILE"); v != "" {
		s.Repository.Auth.SSHKeyFile = v
	}
	if v := os.Getenv("CONFSYNC_REPO_TOKEN_FILE"); v != "" {
		s.Repository.Auth.TokenFile = v
	}
	if v := os.Getenv("CONFSYNC_SYNC_AUTO"); v != "" {
		s.Sync.AutoSync = parseBool(v)
	}
	if v := os.Getenv("CONFSYNC_SYNC_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.Sync.IntervalMinutes = n
		}
	}
	if v := os.Getenv("CONFSYNC_SYNC_TOOLS"); v != "" {
		if strings.EqualFold(v, "all") {
			s.Sync.Tools = ToolSelection{All: true}
		} else {
			s.Sync.Tools = ToolSelection{Tools: splitList(v)}
		}
	}
	if v := os.Getenv("CONFSYNC_SYNC_OVERRIDE_MODE"); v != "" {
		if mode := OverrideMode(strings.ToLower(v)); mode.IsValid() {
			s.Sync.OverrideMode = mode
		}
	}
	if v := os.Getenv("CONFSYNC_LOG_LEVEL"); v != "" {
		s.Log.Level = v
	}
}

// parseBool parses a boolean from common string representations.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// splitList splits a comma-separated list, filtering empty segments.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
