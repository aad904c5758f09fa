// Package config loads sleuth settings from file, environment and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atikulmunna/sleuth/internal/insight"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SLEUTH_SCAN_MAX_ALERTS.
const EnvPrefix = "SLEUTH"

// Config is the full runtime configuration.
type Config struct {
	Detect struct {
		SampleLines int `mapstructure:"sample_lines" validate:"gte=1,lte=101"`
	} `mapstructure:"detect"`

	Scan struct {
		ContextWindow    int `mapstructure:"context_window" validate:"gte=1,lte=100"`
		MaxAlerts        int `mapstructure:"max_alerts" validate:"gte=0"`
		ProgressInterval int `mapstructure:"progress_interval" validate:"gte=0"`
	} `mapstructure:"scan"`

	Correlate struct {
		TopK      int `mapstructure:"top_k" validate:"gte=1"`
		TopValues int `mapstructure:"top_values" validate:"gte=1"`
	} `mapstructure:"correlate"`

	Insight insight.Thresholds `mapstructure:"insight"`

	Extract struct {
		CustomPatterns []Pattern     `mapstructure:"custom_patterns" validate:"dive"`
		PatternTimeout time.Duration `mapstructure:"pattern_timeout" validate:"gt=0"`
	} `mapstructure:"extract"`

	// Workers bounds how many files are analysed at once.
	Workers int `mapstructure:"workers" validate:"gte=1,lte=256"`

	Cache struct {
		Size int `mapstructure:"size" validate:"gte=0"`
	} `mapstructure:"cache"`

	Log struct {
		Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
		Format string `mapstructure:"format" validate:"oneof=console json"`
	} `mapstructure:"log"`

	Watch struct {
		Debounce time.Duration `mapstructure:"debounce" validate:"gte=0"`
	} `mapstructure:"watch"`

	Server struct {
		Addr    string `mapstructure:"addr"`
		History int    `mapstructure:"history" validate:"gte=1"`
		Pprof   bool   `mapstructure:"pprof"`
	} `mapstructure:"server"`
}

// Pattern is a user-supplied entity pattern.
type Pattern struct {
	Name    string `mapstructure:"name" validate:"required"`
	Pattern string `mapstructure:"pattern" validate:"required"`
}

// SetDefaults registers every key with its default so that environment
// overrides are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("detect.sample_lines", 101)

	v.SetDefault("scan.context_window", 5)
	v.SetDefault("scan.max_alerts", 10000)
	v.SetDefault("scan.progress_interval", 100000)

	v.SetDefault("correlate.top_k", 5)
	v.SetDefault("correlate.top_values", 10)

	th := insight.DefaultThresholds()
	v.SetDefault("insight.bulk_delete", th.BulkDelete)
	v.SetDefault("insight.hot_ip", th.HotIP)
	v.SetDefault("insight.hot_ip_candidates", th.HotIPCandidates)
	v.SetDefault("insight.evidence_items", th.EvidenceItems)
	v.SetDefault("insight.context_evidence", th.ContextEvidence)
	v.SetDefault("insight.evidence_runes", th.EvidenceRunes)

	v.SetDefault("extract.custom_patterns", []any{})
	v.SetDefault("extract.pattern_timeout", 100*time.Millisecond)

	v.SetDefault("workers", 4)
	v.SetDefault("cache.size", 128)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("watch.debounce", 500*time.Millisecond)

	v.SetDefault("server.addr", "")
	v.SetDefault("server.history", 50)
	v.SetDefault("server.pprof", false)
}

// Init points v at cfgFile, or at .sleuth.yaml in the home or working
// directory, and enables environment overrides.
func Init(v *viper.Viper, cfgFile string) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".sleuth")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
}

// Load reads the config file if one is present, then decodes and validates
// the merged settings. A missing default config file is not an error; an
// explicitly named one is.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
