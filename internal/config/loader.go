package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HANDSIGN_"

// Load builds a Config by layering defaults, an optional YAML file and env
// vars. Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) from path, or HANDSIGN_CONFIG when path is empty
//  3. env (prefix HANDSIGN_)
func Load(path string) (*Config, error) {
	base := New()
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// HANDSIGN_SAMPLE_INTERVAL_MS -> sample_interval_ms. Keys are flat so
	// underscores are kept.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	k.Delete("config")

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	cfg.applyListDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.CameraWidth < 0 || c.CameraHeight < 0:
		return fmt.Errorf("%w: camera_width and camera_height must not be negative", ErrInvalidConfig)
	case c.SampleIntervalMS <= 0:
		return fmt.Errorf("%w: sample_interval_ms must be positive", ErrInvalidConfig)
	case c.Threshold <= 0 || c.Threshold > 1:
		return fmt.Errorf("%w: threshold must be in (0, 1]", ErrInvalidConfig)
	case len(c.Classes) < 2:
		return fmt.Errorf("%w: at least two classes are required", ErrInvalidConfig)
	case c.BatchSize <= 0 || c.Epochs <= 0:
		return fmt.Errorf("%w: batch_size and epochs must be positive", ErrInvalidConfig)
	case c.LearningRate <= 0:
		return fmt.Errorf("%w: learning_rate must be positive", ErrInvalidConfig)
	case c.Storage != StorageSQLite && c.Storage != StorageFile:
		return fmt.Errorf("%w: storage must be %q or %q", ErrInvalidConfig, StorageSQLite, StorageFile)
	case !validLevel(c.LogLevel):
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json", ErrInvalidConfig)
	}
	for _, h := range c.HiddenUnits {
		if h <= 0 {
			return fmt.Errorf("%w: hidden_units must be positive", ErrInvalidConfig)
		}
	}
	seen := make(map[string]bool, len(c.Classes))
	for _, name := range c.Classes {
		if name == "" || seen[name] {
			return fmt.Errorf("%w: class names must be unique and non-empty", ErrInvalidConfig)
		}
		seen[name] = true
	}
	return nil
}

func validLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}
