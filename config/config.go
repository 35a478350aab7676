// Package config holds the application configuration surface: model
// provider selection, generation knobs, and feature toggles. Values come
// from built-in defaults, an optional YAML file, and DATACHAT_* environment
// variables, in that order.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ModelPair names the primary model and the fallback used on the final
// self-healing attempt.
type ModelPair struct {
	Primary  string `koanf:"primary"`
	Fallback string `koanf:"fallback"`
}

// Config is the full application configuration.
type Config struct {
	Provider    string               `koanf:"provider"` // "openai" or any OpenAI-compatible endpoint
	APIKey      string               `koanf:"api_key"`
	BaseURL     string               `koanf:"base_url"`
	Models      map[string]ModelPair `koanf:"models"`
	Temperature float32              `koanf:"temperature"`
	MaxTokens   int                  `koanf:"max_tokens"`

	// MaxRetries is the self-healing budget R: the primary model gets
	// attempts 1..R, the fallback model gets attempt R+1.
	MaxRetries int `koanf:"max_retries"`

	EnableSQL       bool   `koanf:"enable_sql"`
	EnableViz       bool   `koanf:"enable_viz"`
	MaxPreviewRows  int    `koanf:"max_preview_rows"`
	DataCacheDir    string `koanf:"data_cache_dir"`
	DetailedLog     bool   `koanf:"detailed_log"`
	HistoryDBPath   string `koanf:"history_db_path"`
	SQLTableName    string `koanf:"sql_table_name"`
	AnswerWordLimit int    `koanf:"answer_word_limit"`
}

// PrimaryModel returns the configured primary model name for the active
// provider.
func (c Config) PrimaryModel() string {
	return c.Models[c.Provider].Primary
}

// FallbackModel returns the configured fallback model name for the active
// provider.
func (c Config) FallbackModel() string {
	return c.Models[c.Provider].Fallback
}

func defaults() map[string]any {
	return map[string]any{
		"provider":               "openai",
		"temperature":            0.0,
		"max_tokens":             4096,
		"max_retries":            3,
		"enable_sql":             true,
		"enable_viz":             true,
		"max_preview_rows":       10,
		"sql_table_name":         "sc_data",
		"answer_word_limit":      150,
		"models.openai.primary":  "gpt-4o",
		"models.openai.fallback": "gpt-4o-mini",
	}
}

// Default returns the built-in configuration.
func Default() Config {
	cfg, _ := Load("")
	return cfg
}

// Load builds the configuration from defaults, the optional YAML file at
// path, and DATACHAT_* environment variables. A missing file at an explicit
// path is an error; an empty path skips the file layer.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("config file not found: %s", path)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("DATACHAT_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "DATACHAT_")), "__", ".")
	}), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.MaxRetries < 0 {
		return Config{}, fmt.Errorf("max_retries must not be negative, got %d", cfg.MaxRetries)
	}
	return cfg, nil
}
