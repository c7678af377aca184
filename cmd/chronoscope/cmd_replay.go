package main

import (
	"errors"
	"math"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vjranagit/chronoscope/internal/dashboard"
	"github.com/vjranagit/chronoscope/internal/logger"
	"github.com/vjranagit/chronoscope/pkg/animator"
	"github.com/vjranagit/chronoscope/pkg/archive"
	"github.com/vjranagit/chronoscope/pkg/registry"
)

// newReplayCmd creates the replay subcommand
func newReplayCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Animate a recorded session",
		Long: `Load every recorded attribute from the archive, jump the clock to the
first recorded sample and animate until the last one has been drawn.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(v)
			if err != nil {
				return err
			}
			defer logger.Close()

			arc, err := archive.Open(cfg.ToArchiveConfig())
			if err != nil {
				return err
			}
			defer arc.Close()

			ctx, cancel := waitContext(cfg.Animator.Duration)
			defer cancel()

			reg := registry.New()
			entries, err := arc.Restore(ctx, reg)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return errors.New("archive holds no recorded attributes")
			}

			first, last := span(entries)
			anim := animator.New(append(cfg.AnimatorOptions(), animator.WithStart(first))...)
			dash := dashboard.New(anim, reg, dashboard.Options{
				Window: cfg.Animator.Window,
				Bucket: cfg.Animator.Bucket,
				Width:  40,
				Out:    os.Stdout,
			})
			defer dash.Close()
			dash.Refresh()

			done := make(chan struct{})
			var once sync.Once
			anim.On(animator.Key{Event: animator.EventTick, Owner: anim.NewOwner()}, func(_ time.Duration, now int64) {
				if now > last {
					anim.Stop()
					once.Do(func() { close(done) })
				}
			})

			logger.Info("replaying", "attributes", len(entries), "from", first, "to", last)
			anim.Start()
			select {
			case <-ctx.Done():
			case <-done:
			}
			anim.Stop()
			return nil
		},
	}
}

// span returns the earliest and latest recorded instants
func span(entries []*registry.Entry) (first, last int64) {
	first, last = math.MaxInt64, math.MinInt64
	for _, e := range entries {
		snap := e.Index.Snapshot()
		if len(snap) == 0 {
			continue
		}
		first = min(first, snap[0].Timestamp)
		last = max(last, snap[len(snap)-1].Timestamp)
	}
	return first, last
}
