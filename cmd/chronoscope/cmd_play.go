package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vjranagit/chronoscope/internal/dashboard"
	"github.com/vjranagit/chronoscope/internal/logger"
	"github.com/vjranagit/chronoscope/pkg/animator"
	"github.com/vjranagit/chronoscope/pkg/archive"
)

// newPlayCmd creates the play subcommand
func newPlayCmd(v *viper.Viper) *cobra.Command {
	var record bool

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Animate synthetic data in the terminal",
		Long: `Generate one sample per tick for every manifest attribute and draw the
visible window. With --record the session is written to the archive on exit.`,
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
			dash := dashboard.New(anim, reg, dashboard.Options{
				Window: cfg.Animator.Window,
				Bucket: cfg.Animator.Bucket,
				Width:  40,
				Value:  valueFunc(cfg),
				Out:    os.Stdout,
			})
			defer dash.Close()

			ctx, cancel := waitContext(cfg.Animator.Duration)
			defer cancel()

			anim.Start()
			<-ctx.Done()
			anim.Stop()

			pushed, skipped := dash.Generator().Stats()
			logger.Info("playback stopped", "pushed", pushed, "skipped", skipped)

			if !record {
				return nil
			}

			arc, err := archive.Open(cfg.ToArchiveConfig())
			if err != nil {
				return err
			}
			defer arc.Close()

			saveCtx, saveCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer saveCancel()

			for _, e := range reg.All() {
				if err := arc.SaveEntry(saveCtx, e); err != nil {
					return fmt.Errorf("failed to record %s/%s: %w", e.Attribute.Node, e.Attribute.Name, err)
				}
			}
			fmt.Printf("Recorded %d attributes to %s\n", reg.Len(), cfg.Archive.Path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&record, "record", false, "record the session into the archive")
	return cmd
}
