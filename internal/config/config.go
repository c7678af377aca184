package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vjranagit/chronoscope/pkg/animator"
	"github.com/vjranagit/chronoscope/pkg/archive"
)

// Generator modes
const (
	ModeUniform  = "uniform"
	ModeSmoothed = "smoothed"
)

// Config holds the application configuration
type Config struct {
	Animator  AnimatorConfig  `mapstructure:"animator"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Server    ServerConfig    `mapstructure:"server"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Log       LogConfig       `mapstructure:"log"`
	Manifest  ManifestConfig  `mapstructure:"manifest"`
}

// AnimatorConfig holds clock and window settings
type AnimatorConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	Window       time.Duration `mapstructure:"window"`
	Bucket       time.Duration `mapstructure:"bucket"`
	// Duration bounds a session; zero runs until interrupted
	Duration     time.Duration `mapstructure:"duration"`
}

// GeneratorConfig holds synthetic data settings
type GeneratorConfig struct {
	Mode string `mapstructure:"mode"`
	Seed int64  `mapstructure:"seed"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	ListenAddr string        `mapstructure:"listen_addr"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// ArchiveConfig holds archive configuration
type ArchiveConfig struct {
	Path             string `mapstructure:"path"`
	CompressionLevel int    `mapstructure:"compression_level"`
	InMemory         bool   `mapstructure:"in_memory"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

// ManifestConfig points at the infrastructure manifest
type ManifestConfig struct {
	Path string `mapstructure:"path"`
}

// NewViper returns a viper instance with defaults and environment support.
// Command line flags are bound onto it by the caller.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("chronoscope")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/chronoscope")

	v.SetEnvPrefix("CHRONOSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	applyDefaults(v)
	return v
}

// Load reads the configuration. An explicit path must exist; otherwise a
// missing file falls back to defaults.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = NewViper()
	}

	if path != "" {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns the configuration produced by defaults alone
func DefaultConfig() *Config {
	v := viper.New()
	applyDefaults(v)

	var cfg Config
	// defaults are plain values; decoding them cannot fail
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Animator.TickInterval <= 0 {
		return fmt.Errorf("animator.tick_interval must be positive, got %v", c.Animator.TickInterval)
	}
	if c.Animator.Window < 0 {
		return fmt.Errorf("animator.window cannot be negative, got %v", c.Animator.Window)
	}
	if c.Animator.Bucket <= 0 {
		return fmt.Errorf("animator.bucket must be positive, got %v", c.Animator.Bucket)
	}
	if c.Animator.Duration < 0 {
		return fmt.Errorf("animator.duration cannot be negative, got %v", c.Animator.Duration)
	}

	if c.Generator.Mode != ModeUniform && c.Generator.Mode != ModeSmoothed {
		return fmt.Errorf("generator.mode must be one of: %v, got %s", []string{ModeUniform, ModeSmoothed}, c.Generator.Mode)
	}

	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr cannot be empty")
	}

	if c.Archive.Path == "" && !c.Archive.InMemory {
		return fmt.Errorf("archive.path is required unless archive.in_memory is set")
	}
	if c.Archive.CompressionLevel < 1 || c.Archive.CompressionLevel > 4 {
		return fmt.Errorf("archive.compression_level must be between 1 and 4, got %d", c.Archive.CompressionLevel)
	}

	return nil
}

// ToArchiveConfig converts to archive.Config
func (c *Config) ToArchiveConfig() *archive.Config {
	return &archive.Config{
		Path:             c.Archive.Path,
		CompressionLevel: c.Archive.CompressionLevel,
		InMemory:         c.Archive.InMemory,
		BlockSpan:        time.Hour,
	}
}

// AnimatorOptions converts to animator options
func (c *Config) AnimatorOptions() []animator.Option {
	return []animator.Option{
		animator.WithTickInterval(c.Animator.TickInterval),
	}
}

// applyDefaults sets default configuration values
func applyDefaults(v *viper.Viper) {
	v.SetDefault("animator.tick_interval", "100ms")
	v.SetDefault("animator.window", "30s")
	v.SetDefault("animator.bucket", "5s")
	v.SetDefault("animator.duration", "0s")

	v.SetDefault("generator.mode", ModeSmoothed)
	v.SetDefault("generator.seed", 0)

	v.SetDefault("server.listen_addr", ":9464")
	v.SetDefault("server.timeout", "30s")

	v.SetDefault("archive.path", "./data")
	v.SetDefault("archive.compression_level", 3)
	v.SetDefault("archive.in_memory", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", "")

	v.SetDefault("manifest.path", "")
}
