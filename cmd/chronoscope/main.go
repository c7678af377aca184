package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vjranagit/chronoscope/internal/config"
	"github.com/vjranagit/chronoscope/internal/logger"
	"github.com/vjranagit/chronoscope/pkg/generator"
	"github.com/vjranagit/chronoscope/pkg/registry"
)

var (
	// Version info (set by ldflags)
	version = "dev"

	// Flags
	configPath string
)

func main() {
	v := config.NewViper()

	rootCmd := &cobra.Command{
		Use:   "chronoscope",
		Short: "Animated time-indexed dashboard for infrastructure attributes",
		Long: `chronoscope keeps a time-ordered index per infrastructure attribute and
drives every view from one animation clock.

  chronoscope play [--record]   Animate synthetic data in the terminal
  chronoscope replay            Animate a recorded session
  chronoscope serve             Expose the clock and windows over HTTP`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ./chronoscope.yaml or ~/.config/chronoscope/chronoscope.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "log file path, - for stderr")
	rootCmd.PersistentFlags().String("manifest", "", "infrastructure manifest (YAML)")
	rootCmd.PersistentFlags().Duration("tick", 100*time.Millisecond, "tick interval")
	rootCmd.PersistentFlags().Duration("duration", 0, "stop after this long (0 runs until interrupted)")

	for key, name := range map[string]string{
		"log.level":              "log-level",
		"log.path":               "log-file",
		"manifest.path":          "manifest",
		"animator.tick_interval": "tick",
		"animator.duration":      "duration",
	} {
		if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding flag %s: %v\n", name, err)
			os.Exit(1)
		}
	}

	rootCmd.AddCommand(
		newPlayCmd(v),
		newReplayCmd(v),
		newServeCmd(v),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("chronoscope %s\n", version)
		},
	}
}

// setup loads configuration and initializes logging
func setup(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(v, configPath)
	if err != nil {
		return nil, err
	}

	logger.Init(cfg.Log.Level, cfg.Log.Path)
	logger.Info("configuration loaded",
		"tick_interval", cfg.Animator.TickInterval.String(),
		"window", cfg.Animator.Window.String(),
		"manifest", cfg.Manifest.Path,
	)
	return cfg, nil
}

// loadRegistry registers every attribute of the configured manifest
func loadRegistry(cfg *config.Config) (*registry.Registry, error) {
	m, err := registry.LoadManifestFile(cfg.Manifest.Path)
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	if _, err := m.Apply(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// valueFunc builds the configured synthetic value source
func valueFunc(cfg *config.Config) generator.ValueFunc {
	seed := cfg.Generator.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	if cfg.Generator.Mode == config.ModeUniform {
		return generator.Uniform(rng)
	}
	return generator.Smoothed(rng)
}

// waitContext is canceled on SIGINT/SIGTERM or once d has elapsed
func waitContext(d time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	if d <= 0 {
		return ctx, stop
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	return ctx, func() {
		cancel()
		stop()
	}
}
