package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vjranagit/chronoscope/internal/logger"
	"github.com/vjranagit/chronoscope/pkg/animator"
	"github.com/vjranagit/chronoscope/pkg/api"
	"github.com/vjranagit/chronoscope/pkg/generator"
)

// newServeCmd creates the serve subcommand
func newServeCmd(v *viper.Viper) *cobra.Command {
	var autostart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the clock and attribute windows over HTTP",
		Long: `Run the generator behind the HTTP API. Clients start, stop and seek the
clock, read windows and subscribe to one websocket frame per tick.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(v)
			if err != nil {
				return err
			}
			defer logger.Close()

			reg, err := loadRegistry(cfg)
			if err != nil {
				return err
			}

			anim := animator.New(cfg.AnimatorOptions()...)
			gen := generator.New(anim, valueFunc(cfg))
			defer gen.Close()
			for _, e := range reg.All() {
				gen.Track(e.ID.String(), e.Index)
			}

			server := api.NewServer(cfg.Server.ListenAddr, anim, reg, cfg.Animator.Window.Milliseconds())
			server.SetTimeout(cfg.Server.Timeout)

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start()
			}()

			if autostart {
				anim.Start()
			}

			ctx, cancel := waitContext(cfg.Animator.Duration)
			defer cancel()

			select {
			case <-ctx.Done():
				logger.Info("shutdown signal received, stopping server")
			case err := <-errCh:
				anim.Stop()
				return err
			}

			anim.Stop()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()
			if err := server.Stop(shutdownCtx); err != nil {
				logger.Error("server shutdown error", "error", err)
				return err
			}

			logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&autostart, "autostart", false, "start the clock immediately")
	cmd.Flags().String("listen", ":9464", "listen address")
	if err := v.BindPFlag("server.listen_addr", cmd.Flags().Lookup("listen")); err != nil {
		panic(err)
	}
	return cmd
}
