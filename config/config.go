// Package config loads application configuration from YAML with environment
// overrides for credentials.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"rag-toxiv/prompt"
)

// Config holds all application configuration. Credentials never live in the
// file; they are read from the environment on load.
type Config struct {
	DataDir         string            `yaml:"data_dir"`
	LogDir          string            `yaml:"log_dir"`
	Instance        string            `yaml:"instance"`
	Username        string            `yaml:"username"`
	DefaultCategory string            `yaml:"default_category"`
	Categories      []string          `yaml:"categories"`
	Aliases         map[string]string `yaml:"aliases"`
	CatMaxFiles     int               `yaml:"cat_max_files"`
	SkipEmpty       *bool             `yaml:"skip_empty"`
	ContextMode     string            `yaml:"context_mode"`
	LLMModel        string            `yaml:"llm_model"`
	PollIntervalSec int               `yaml:"poll_interval_secs"`
	ReplyDelaySec   int               `yaml:"reply_delay_secs"`
	FetchPeriodSec  int               `yaml:"fetch_period_secs"`
	FetchMaxTrials  int               `yaml:"fetch_max_trials"`
	FetchRetrySec   int               `yaml:"fetch_retry_secs"`
	MaxPostLength   int               `yaml:"max_post_length"`
	PostMargin      int               `yaml:"post_margin"`
	Timezone        string            `yaml:"timezone"`
	LogLevel        string            `yaml:"log_level"`

	// From the environment, not the file.
	MastodonAccessToken string `yaml:"-"`
	OpenRouterAPIKey    string `yaml:"-"`
}

// Defaults returns a Config with all default values set. The fetch limits
// follow the arXiv API terms of use: no more than one request every few
// seconds on a single connection.
func Defaults() Config {
	skipEmpty := true
	return Config{
		DataDir:         "./data",
		LogDir:          "./logs",
		Instance:        "mastoxiv.page",
		Username:        "ragtoXiv",
		DefaultCategory: "cs.LG",
		CatMaxFiles:     1,
		SkipEmpty:       &skipEmpty,
		ContextMode:     string(prompt.ModeFirstSentence),
		LLMModel:        "xiaomi/mimo-v2-flash:free",
		PollIntervalSec: 60,
		ReplyDelaySec:   5,
		FetchPeriodSec:  5,
		FetchMaxTrials:  2,
		FetchRetrySec:   120,
		MaxPostLength:   5000,
		PostMargin:      100,
		Timezone:        "UTC",
		LogLevel:        "info",
	}
}

// Load reads the YAML file at path over the defaults. A missing file is not
// an error: the defaults stand alone. Credentials come from
// MASTODON_ACCESS_TOKEN and OPENROUTER_API_KEY.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.MastodonAccessToken = os.Getenv("MASTODON_ACCESS_TOKEN")
	cfg.OpenRouterAPIKey = os.Getenv("OPENROUTER_API_KEY")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges; it does not require credentials, since the
// ingestion tool runs without them.
func (c *Config) Validate() error {
	if _, err := prompt.ParseMode(c.ContextMode); err != nil {
		return fmt.Errorf("invalid context_mode %q", c.ContextMode)
	}
	if c.CatMaxFiles < 1 {
		return fmt.Errorf("cat_max_files must be at least 1")
	}
	if c.FetchMaxTrials < 1 {
		return fmt.Errorf("fetch_max_trials must be at least 1")
	}
	if c.PostMargin >= c.MaxPostLength {
		return fmt.Errorf("post_margin must be smaller than max_post_length")
	}
	return nil
}

// SkipEmptyFiles reports the skip-empty retention default.
func (c *Config) SkipEmptyFiles() bool {
	return c.SkipEmpty == nil || *c.SkipEmpty
}

// ProcessedPath is the processed-mention ledger location under LogDir.
func (c *Config) ProcessedPath() string {
	return filepath.Join(c.LogDir, "processed_notifications.json")
}

// InteractionDBPath is the interaction log database location under LogDir.
func (c *Config) InteractionDBPath() string {
	return filepath.Join(c.LogDir, "interactions.db")
}
