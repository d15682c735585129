package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RequestTimeoutSeconds != 60 {
		t.Fatalf("RequestTimeoutSeconds = %d, want 60", cfg.RequestTimeoutSeconds)
	}
	if cfg.Theme != "porcelain" {
		t.Fatalf("Theme = %q, want porcelain", cfg.Theme)
	}
}

func TestLoadConfig_FileValuesAndGapFilling(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := "endpoint: https://example.com/prod/chat\nrequest_timeout_seconds: 0\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Endpoint != "https://example.com/prod/chat" {
		t.Fatalf("Endpoint = %q", cfg.Endpoint)
	}
	if cfg.RequestTimeoutSeconds != 60 {
		t.Fatalf("zero timeout not defaulted, got %d", cfg.RequestTimeoutSeconds)
	}
}

func TestLoadConfig_EnvFallbackForCredential(t *testing.T) {
	t.Setenv("AGENTCHAT_API_KEY", "env-key")
	t.Setenv("AGENTCHAT_ENDPOINT", "https://env.example.com/chat")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.APIKey != "env-key" {
		t.Fatalf("APIKey = %q, want env fallback", cfg.APIKey)
	}
	if cfg.Endpoint != "https://env.example.com/chat" {
		t.Fatalf("Endpoint = %q, want env fallback", cfg.Endpoint)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yml")
	in := DefaultConfig()
	in.Endpoint = "https://example.com/chat"

	if err := SaveConfig(in, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	out, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if out.Endpoint != in.Endpoint {
		t.Fatalf("Endpoint = %q, want %q", out.Endpoint, in.Endpoint)
	}
}
