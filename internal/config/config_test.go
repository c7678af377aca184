package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 100*time.Millisecond, cfg.Animator.TickInterval)
	assert.Equal(t, 30*time.Second, cfg.Animator.Window)
	assert.Zero(t, cfg.Animator.Duration)
	assert.Equal(t, ModeSmoothed, cfg.Generator.Mode)
	assert.Equal(t, 3, cfg.Archive.CompressionLevel)

	ac := cfg.ToArchiveConfig()
	assert.Equal(t, "./data", ac.Path)
	assert.Equal(t, time.Hour, ac.BlockSpan)
	assert.Len(t, cfg.AnimatorOptions(), 1)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chronoscope.yaml")
	doc := `
animator:
  tick_interval: 250ms
  window: 1m
generator:
  mode: uniform
  seed: 42
archive:
  in_memory: true
  path: ""
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Animator.TickInterval)
	assert.Equal(t, time.Minute, cfg.Animator.Window)
	assert.Equal(t, 5*time.Second, cfg.Animator.Bucket, "unset keys keep defaults")
	assert.Equal(t, ModeUniform, cfg.Generator.Mode)
	assert.Equal(t, int64(42), cfg.Generator.Seed)
	assert.True(t, cfg.Archive.InMemory)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CHRONOSCOPE_SERVER_LISTEN_ADDR", "127.0.0.1:9999")
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.ListenAddr)
}

func TestLoadDurationFromEnv(t *testing.T) {
	t.Setenv("CHRONOSCOPE_ANIMATOR_DURATION", "90s")
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Animator.Duration)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero tick", func(c *Config) { c.Animator.TickInterval = 0 }},
		{"negative window", func(c *Config) { c.Animator.Window = -time.Second }},
		{"zero bucket", func(c *Config) { c.Animator.Bucket = 0 }},
		{"negative duration", func(c *Config) { c.Animator.Duration = -time.Second }},
		{"unknown mode", func(c *Config) { c.Generator.Mode = "sine" }},
		{"no listen addr", func(c *Config) { c.Server.ListenAddr = "" }},
		{"no archive path", func(c *Config) { c.Archive.Path = "" }},
		{"compression too high", func(c *Config) { c.Archive.CompressionLevel = 9 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
