package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Port:            "8081",
		QueueDBPath:     filepath.Join(t.TempDir(), "kharcha.db"),
		RemoteBackend:   "memory",
		SyncCallTimeout: 10 * time.Second,
		SyncMaxAttempts: 5,
		ProbeInterval:   15 * time.Second,
		OwnerID:         "local",
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "REMOTE_BACKEND", "SYNC_MAX_ATTEMPTS", "SYNC_CALL_TIMEOUT", "STARTUP_SYNC_DELAY", "OWNER_ID", "AI_MODEL"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != "8081" {
		t.Errorf("expected default port 8081, got %s", cfg.Port)
	}
	if cfg.RemoteBackend != "memory" {
		t.Errorf("expected default backend memory, got %s", cfg.RemoteBackend)
	}
	if cfg.SyncMaxAttempts != 5 {
		t.Errorf("expected default max attempts 5, got %d", cfg.SyncMaxAttempts)
	}
	if cfg.SyncCallTimeout != 10*time.Second {
		t.Errorf("expected default call timeout 10s, got %v", cfg.SyncCallTimeout)
	}
	if cfg.StartupDelay != 500*time.Millisecond {
		t.Errorf("expected default startup delay 500ms, got %v", cfg.StartupDelay)
	}
	if cfg.OwnerID != "local" {
		t.Errorf("expected default owner local, got %s", cfg.OwnerID)
	}
	if cfg.AIModel != "llama-3.3-70b-versatile" {
		t.Errorf("unexpected default AI model %s", cfg.AIModel)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("REMOTE_BACKEND", "sheets")
	t.Setenv("SYNC_MAX_ATTEMPTS", "3")
	t.Setenv("PROBE_INTERVAL", "30s")

	cfg := Load()
	if cfg.Port != "9000" {
		t.Errorf("expected port 9000, got %s", cfg.Port)
	}
	if cfg.RemoteBackend != "sheets" {
		t.Errorf("expected backend sheets, got %s", cfg.RemoteBackend)
	}
	if cfg.SyncMaxAttempts != 3 {
		t.Errorf("expected max attempts 3, got %d", cfg.SyncMaxAttempts)
	}
	if cfg.ProbeInterval != 30*time.Second {
		t.Errorf("expected probe interval 30s, got %v", cfg.ProbeInterval)
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	cfg := validConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		keyword string
	}{
		{"bad port", func(c *Config) { c.Port = "abc" }, "port"},
		{"port out of range", func(c *Config) { c.Port = "70000" }, "port"},
		{"bad backend", func(c *Config) { c.RemoteBackend = "dynamo" }, "backend"},
		{"empty db path", func(c *Config) { c.QueueDBPath = "" }, "database path"},
		{"bad amqp scheme", func(c *Config) { c.AMQPURL = "http://broker" }, "AMQP"},
		{"sheets without spreadsheet", func(c *Config) { c.RemoteBackend = "sheets" }, "Spreadsheet"},
		{"zero attempts", func(c *Config) { c.SyncMaxAttempts = 0 }, "attempts"},
		{"excessive attempts", func(c *Config) { c.SyncMaxAttempts = 500 }, "attempts"},
		{"short call timeout", func(c *Config) { c.SyncCallTimeout = 100 * time.Millisecond }, "timeout"},
		{"short probe interval", func(c *Config) { c.ProbeInterval = 100 * time.Millisecond }, "probe"},
		{"empty owner", func(c *Config) { c.OwnerID = "" }, "owner"},
	}
	for _, tc := range cases {
		cfg := validConfig(t)
		tc.mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected validation error", tc.name)
			continue
		}
		if !strings.Contains(strings.ToLower(err.Error()), strings.ToLower(tc.keyword)) {
			t.Errorf("%s: error should mention %q, got %v", tc.name, tc.keyword, err)
		}
	}
}

func TestValidateCollectsMultipleErrors(t *testing.T) {
	cfg := validConfig(t)
	cfg.Port = "abc"
	cfg.OwnerID = ""
	cfg.RemoteBackend = "dynamo"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{"port", "owner", "backend"} {
		if !strings.Contains(strings.ToLower(msg), want) {
			t.Errorf("expected combined error to mention %q: %v", want, err)
		}
	}
}
