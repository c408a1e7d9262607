package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load with missing file: %v", err)
	}
	if cfg.Instance != "mastoxiv.page" {
		t.Errorf("instance = %q, want default", cfg.Instance)
	}
	if cfg.DefaultCategory != "cs.LG" {
		t.Errorf("default_category = %q", cfg.DefaultCategory)
	}
	if cfg.FetchMaxTrials != 2 || cfg.FetchPeriodSec != 5 || cfg.FetchRetrySec != 120 {
		t.Errorf("fetch defaults = %d/%d/%d", cfg.FetchMaxTrials, cfg.FetchPeriodSec, cfg.FetchRetrySec)
	}
	if !cfg.SkipEmptyFiles() {
		t.Error("skip_empty must default to true")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
data_dir: /var/lib/ragtoxiv
default_category: math.CO
categories: [cs.LG, math.CO]
aliases:
  econ.TH: economics
cat_max_files: 3
skip_empty: false
context_mode: title
poll_interval_secs: 30
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "/var/lib/ragtoxiv" {
		t.Errorf("data_dir = %q", cfg.DataDir)
	}
	if cfg.DefaultCategory != "math.CO" {
		t.Errorf("default_category = %q", cfg.DefaultCategory)
	}
	if len(cfg.Categories) != 2 {
		t.Errorf("categories = %v", cfg.Categories)
	}
	if cfg.Aliases["econ.TH"] != "economics" {
		t.Errorf("aliases = %v", cfg.Aliases)
	}
	if cfg.CatMaxFiles != 3 {
		t.Errorf("cat_max_files = %d", cfg.CatMaxFiles)
	}
	if cfg.SkipEmptyFiles() {
		t.Error("skip_empty: false not honored")
	}
	if cfg.ContextMode != "title" {
		t.Errorf("context_mode = %q", cfg.ContextMode)
	}
	if cfg.PollIntervalSec != 30 {
		t.Errorf("poll_interval_secs = %d", cfg.PollIntervalSec)
	}
	// Untouched keys keep their defaults.
	if cfg.Instance != "mastoxiv.page" {
		t.Errorf("instance = %q", cfg.Instance)
	}
}

func TestLoadCredentialsFromEnv(t *testing.T) {
	t.Setenv("MASTODON_ACCESS_TOKEN", "masto-secret")
	t.Setenv("OPENROUTER_API_KEY", "router-secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MastodonAccessToken != "masto-secret" {
		t.Errorf("mastodon token = %q", cfg.MastodonAccessToken)
	}
	if cfg.OpenRouterAPIKey != "router-secret" {
		t.Errorf("openrouter key = %q", cfg.OpenRouterAPIKey)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("data_dir: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad context mode", func(c *Config) { c.ContextMode = "everything" }},
		{"zero cat_max_files", func(c *Config) { c.CatMaxFiles = 0 }},
		{"zero trials", func(c *Config) { c.FetchMaxTrials = 0 }},
		{"margin swallows limit", func(c *Config) { c.PostMargin = 5000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := Defaults()
	cfg.LogDir = "/tmp/logs"
	if got := cfg.ProcessedPath(); got != filepath.Join("/tmp/logs", "processed_notifications.json") {
		t.Errorf("ProcessedPath = %q", got)
	}
	if got := cfg.InteractionDBPath(); got != filepath.Join("/tmp/logs", "interactions.db") {
		t.Errorf("InteractionDBPath = %q", got)
	}
}
