package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/confsync/confsync/internal/logging"
)

func TestRunVersion(t *testing.T) {
	err := Run(context.Background(), []string{"confsync", "--no-color", "version"})
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
}

func TestRunAppliesSettingsLogLevel(t *testing.T) {
	t.Setenv("CONFSYNC_LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600); err != nil {
		t.Fatalf("failed to write settings: %v", err)
	}

	err := Run(context.Background(), []string{"confsync", "--no-color", "--config", path, "version"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !logging.Default().Enabled(context.Background(), logging.LevelDebug) {
		t.Error("settings log level debug should enable debug logging")
	}
}

func TestRunDefaultLogLevelIsWarn(t *testing.T) {
	t.Setenv("CONFSYNC_LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "absent.yaml")
	err := Run(context.Background(), []string{"confsync", "--no-color", "--config", path, "version"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	ctx := context.Background()
	if logging.Default().Enabled(ctx, logging.LevelInfo) {
		t.Error("info logging should be off without --verbose or a configured level")
	}
	if !logging.Default().Enabled(ctx, logging.LevelWarn) {
		t.Error("warn logging should stay on by default")
	}
}

func TestRunVerboseFlagOverridesSettingsLevel(t *testing.T) {
	t.Setenv("CONFSYNC_LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: error\n"), 0o600); err != nil {
		t.Fatalf("failed to write settings: %v", err)
	}

	err := Run(context.Background(), []string{"confsync", "--no-color", "--config", path, "--verbose", "version"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !logging.Default().Enabled(context.Background(), logging.LevelInfo) {
		t.Error("--verbose should raise the level above the configured error level")
	}
}

func TestRunRejectsInvalidScope(t *testing.T) {
	err := Run(context.Background(), []string{"confsync", "--no-color", "preview", "--scope", "bogus"})
	if err == nil {
		t.Fatal("expected an error for an invalid scope")
	}
	if !strings.Contains(err.Error(), "invalid scope") {
		t.Errorf("error = %v, want invalid scope message", err)
	}
}
