// Package config handles global configuration loading using viper.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"firestige.xyz/ngcap/pkg/pcapng"
)

// GlobalConfig represents the top-level configuration.
// Maps to the `ngcap:` root key in YAML.
type GlobalConfig struct {
	Log     LogConfig     `mapstructure:"log"`
	Reader  ReaderConfig  `mapstructure:"reader"`
	Writer  WriterConfig  `mapstructure:"writer"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level      string           `mapstructure:"level"`  // trace / debug / info / warn / error
	Format     string           `mapstructure:"format"` // text / json / console
	Pattern    string           `mapstructure:"pattern"`
	TimeFormat string           `mapstructure:"time_format"`
	Outputs    LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains log output destinations besides stderr.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Reader / Writer ───

// ReaderConfig bounds and tunes the pcapng reader.
type ReaderConfig struct {
	MaxBlockSize        ByteSize `mapstructure:"max_block_size"`
	Strict              bool     `mapstructure:"strict"`
	SkipUnknownSections bool     `mapstructure:"skip_unknown_sections"`
	ReturnUnknownBlocks bool     `mapstructure:"return_unknown_blocks"`
}

// WriterConfig tunes the pcapng writer.
type WriterConfig struct {
	ByteOrder   pcapng.ByteOrder `mapstructure:"byte_order"` // little / big
	MaxNRBSize  ByteSize         `mapstructure:"max_nrb_size"`
	Application string           `mapstructure:"application"`
	BufferSize  ByteSize         `mapstructure:"buffer_size"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `ngcap: ...`.
type configRoot struct {
	Ngcap GlobalConfig `mapstructure:"ngcap"`
}

// Load loads configuration from file. An empty path yields the defaults,
// still subject to environment overrides.
// The YAML file uses `ngcap:` as root key; env vars use the NGCAP_ prefix (e.g., NGCAP_LOG_LEVEL).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `ngcap.` key prefix maps to `NGCAP_` in env vars via the key replacer
	// (e.g., key "ngcap.log.level" → env "NGCAP_LOG_LEVEL").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Ngcap

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns the validated default configuration.
func Default() *GlobalConfig {
	cfg, err := Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}

// setDefaults sets default values for configuration.
// All keys use "ngcap." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("ngcap.log.level", "info")
	v.SetDefault("ngcap.log.format", "text")
	v.SetDefault("ngcap.log.pattern", "%time [%level] %field %msg\n")
	v.SetDefault("ngcap.log.time_format", "2006-01-02 15:04:05.000")
	v.SetDefault("ngcap.log.outputs.file.enabled", false)
	v.SetDefault("ngcap.log.outputs.file.path", "/var/log/ngcap/ngcap.log")
	v.SetDefault("ngcap.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("ngcap.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("ngcap.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("ngcap.log.outputs.file.rotation.compress", true)

	// Reader defaults
	v.SetDefault("ngcap.reader.max_block_size", pcapng.MaxBlockSize)
	v.SetDefault("ngcap.reader.strict", false)
	v.SetDefault("ngcap.reader.skip_unknown_sections", false)
	v.SetDefault("ngcap.reader.return_unknown_blocks", false)

	// Writer defaults
	v.SetDefault("ngcap.writer.byte_order", "little")
	v.SetDefault("ngcap.writer.max_nrb_size", pcapng.DefaultMaxNRBSize)
	v.SetDefault("ngcap.writer.application", "ngcap")
	v.SetDefault("ngcap.writer.buffer_size", "64KiB")

	// Metrics defaults
	v.SetDefault("ngcap.metrics.enabled", false)
	v.SetDefault("ngcap.metrics.listen", ":9091")
	v.SetDefault("ngcap.metrics.path", "/metrics")
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be trace/debug/info/warn/error)", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s (must be text/json/console)", cfg.Log.Format)
	}
	if cfg.Log.Outputs.File.Enabled && cfg.Log.Outputs.File.Path == "" {
		return errors.New("log.outputs.file.path is required when file output is enabled")
	}

	// ── Reader validation ──
	if cfg.Reader.MaxBlockSize <= 0 {
		cfg.Reader.MaxBlockSize = pcapng.MaxBlockSize
	}
	if cfg.Reader.MaxBlockSize > pcapng.MaxBlockSize {
		return fmt.Errorf("reader.max_block_size %s exceeds the format maximum %s",
			cfg.Reader.MaxBlockSize, ByteSize(pcapng.MaxBlockSize))
	}

	// ── Writer validation ──
	if cfg.Writer.MaxNRBSize <= 0 {
		cfg.Writer.MaxNRBSize = pcapng.DefaultMaxNRBSize
	}
	if cfg.Writer.MaxNRBSize < 16 || cfg.Writer.MaxNRBSize > pcapng.MaxBlockSize {
		return fmt.Errorf("writer.max_nrb_size %s out of range", cfg.Writer.MaxNRBSize)
	}
	if cfg.Writer.BufferSize < 0 {
		return fmt.Errorf("writer.buffer_size %s must not be negative", cfg.Writer.BufferSize)
	}

	// ── Metrics validation ──
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return errors.New("metrics.listen is required when metrics.enabled=true")
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	return nil
}

// decodeHooks returns a combined decode hook for the custom config types.
func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		byteOrderDecodeHook(),
	)
}
