package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `anthropic:
  api_key: test-key
  model: claude-sonnet-4-20250514
pool:
  max_concurrent: 6
  min_concurrent: 3
execution:
  max_retries: 5
  default_timeout: 30s
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("APIKey = %q, want %q", cfg.Anthropic.APIKey, "test-key")
	}
	if cfg.Pool.MaxConcurrent != 6 {
		t.Errorf("Pool.MaxConcurrent = %d, want 6", cfg.Pool.MaxConcurrent)
	}
	if cfg.Pool.MinConcurrent != 3 {
		t.Errorf("Pool.MinConcurrent = %d, want 3", cfg.Pool.MinConcurrent)
	}
	if cfg.Execution.MaxRetries != 5 {
		t.Errorf("Execution.MaxRetries = %d, want 5", cfg.Execution.MaxRetries)
	}
	if cfg.Execution.DefaultTimeout != 30*time.Second {
		t.Errorf("Execution.DefaultTimeout = %v, want 30s", cfg.Execution.DefaultTimeout)
	}
}

func TestLoadFromPathDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("anthropic:\n  api_key: k\n"), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	// Unset keys fall back to defaults.
	if cfg.Pool.MaxConcurrent != 4 {
		t.Errorf("Pool.MaxConcurrent = %d, want default 4", cfg.Pool.MaxConcurrent)
	}
	if cfg.Pool.MemoryFraction != 0.5 {
		t.Errorf("Pool.MemoryFraction = %v, want default 0.5", cfg.Pool.MemoryFraction)
	}
	if cfg.TUI.RefreshRate != 100*time.Millisecond {
		t.Errorf("TUI.RefreshRate = %v, want default 100ms", cfg.TUI.RefreshRate)
	}
}

func TestLoadFromPathExpandsEnv(t *testing.T) {
	t.Setenv("WEFT_TEST_KEY", "secret-from-env")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "anthropic:\n  api_key: ${WEFT_TEST_KEY}\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Anthropic.APIKey != "secret-from-env" {
		t.Errorf("APIKey = %q, want %q", cfg.Anthropic.APIKey, "secret-from-env")
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Pool.MaxConcurrent != 4 {
		t.Errorf("Pool.MaxConcurrent = %d, want 4", cfg.Pool.MaxConcurrent)
	}
	if cfg.Execution.DefaultTimeout != 10*time.Second {
		t.Errorf("Execution.DefaultTimeout = %v, want 10s", cfg.Execution.DefaultTimeout)
	}
	if cfg.Anthropic.Model == "" {
		t.Error("expected non-empty default model")
	}
}
