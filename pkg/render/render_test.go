package render

import (
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/chronoscope/internal/logger"
	"github.com/vjranagit/chronoscope/pkg/animator"
	"github.com/vjranagit/chronoscope/pkg/generator"
	"github.com/vjranagit/chronoscope/pkg/normalize"
	"github.com/vjranagit/chronoscope/pkg/temporal"
	"github.com/vjranagit/chronoscope/pkg/types"
	"github.com/vjranagit/chronoscope/pkg/window"
)

func samples(pairs ...float64) []types.Sample[float64] {
	out := make([]types.Sample[float64], 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, types.Sample[float64]{Timestamp: int64(pairs[i]), Value: pairs[i+1]})
	}
	return out
}

func TestResample(t *testing.T) {
	assert.Equal(t, []float64{1, 2}, resample([]float64{1, 2}, 5))
	assert.Equal(t, []float64{1.5, 3.5}, resample([]float64{1, 2, 3, 4}, 2))
	assert.Len(t, resample(make([]float64, 100), 7), 7)
}

func TestSparkline(t *testing.T) {
	s := NewSparkline(SparklineConfig{Width: 10, Height: 3}, normalize.NewValue(0, 100))
	assert.Equal(t, strings.Repeat("─", 10), s.String())

	s.Update(0, 300, samples(100, 0, 200, 50, 300, 150))
	assert.Equal(t, []float64{0, 0.5, 1}, s.Points())
	assert.NotEqual(t, strings.Repeat("─", 10), s.String())

	s.Layout(400)
	assert.Empty(t, s.Points())

	raw := NewSparkline(SparklineConfig{}, nil)
	raw.Update(0, 0, samples(0, 3, 1, 7))
	assert.Equal(t, []float64{3, 7}, raw.Points())
	assert.NotEmpty(t, raw.String())
}

func TestBar(t *testing.T) {
	attr := types.Attribute{Node: "web-1", Name: "net_in", Unit: "B/s", Type: types.ValueBytes, Min: 0, Max: 2048}
	b := NewBar(attr, 10)

	assert.Equal(t, 0, b.Fill())
	assert.Equal(t, "n/a", b.Caption())

	b.Update(0, 100, samples(50, 512, 100, 1536))
	assert.Equal(t, 8, b.Fill())
	assert.Equal(t, "1.5 KiB/s", b.Caption())
	assert.Contains(t, b.String(), "web-1/net_in")
	assert.Contains(t, b.String(), "░░")

	b.Update(0, 200, samples(150, 4096))
	assert.Equal(t, 10, b.Fill(), "values above the domain are clamped")

	b.Update(0, 300, nil)
	assert.Equal(t, 0, b.Fill())

	load := NewBar(types.Attribute{Node: "db-1", Name: "load", Unit: "%", Max: 1, Type: types.ValueNumeric}, 4)
	load.Update(0, 0, samples(0, 0.25))
	assert.Equal(t, 1, load.Fill())
	assert.Equal(t, "0.25 %", load.Caption())
}

func TestAxis(t *testing.T) {
	a := NewAxis(2*time.Second, time.Second)
	a.Layout(3000)

	// origin 1000: slots are [800,1300) -> 0, [1300,1800) -> 1, ...
	assert.Equal(t, 0, a.Slot(1000))
	assert.Equal(t, 1, a.Slot(1300))
	assert.Equal(t, 4, a.Slot(3000))
	assert.Equal(t, "─────", a.String())

	a.Update(0, 3000, samples(1000, 1, 2000, 1, 2100, 1))
	assert.Equal(t, "┴─┴──", a.String())

	// the axis follows now
	a.Update(0, 3500, samples(1500, 1))
	assert.Equal(t, 0, a.Slot(1500))
	assert.Equal(t, "┴────", a.String())
}

func TestBindingDrawsAfterGenerator(t *testing.T) {
	logger.Discard()

	mock := clock.NewMock()
	anim := animator.New(animator.WithClock(mock), animator.WithTickInterval(100*time.Millisecond), animator.WithStart(1000))
	t.Cleanup(func() { anim.Stop() })

	gen := generator.New(anim, func(string) float64 { return 1 })
	idx := temporal.NewIndex[float64]()
	gen.Track("load", idx)

	bar := NewBar(types.Attribute{Node: "n", Name: "load", Max: 1, Type: types.ValueNumeric}, 5)
	frames := make(chan string, 8)
	b := Bind(anim, idx, window.NewSelector(1000), bar, func(_ int64, frame string) {
		frames <- frame
	})
	b.Attach()
	b.Attach()
	assert.Equal(t, 2, anim.Listeners(animator.EventTick))

	require.True(t, anim.Start())
	mock.Add(100 * time.Millisecond)

	select {
	case frame := <-frames:
		assert.Contains(t, frame, "1.00")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
	assert.Equal(t, 5, bar.Fill(), "the tick's own sample is visible")
	assert.Equal(t, uint64(1), b.Frames())

	b.Detach()
	assert.Equal(t, 1, anim.Listeners(animator.EventTick))
	assert.Equal(t, 1, anim.Listeners(animator.EventStart))
}

func TestBindingRefresh(t *testing.T) {
	logger.Discard()

	anim := animator.New(animator.WithClock(clock.NewMock()), animator.WithStart(0))
	idx := temporal.NewIndex[float64]()
	require.NoError(t, idx.Push(500, 2))

	spark := NewSparkline(SparklineConfig{Width: 5, Height: 2}, nil)
	b := Bind(anim, idx, window.NewSelector(1000), spark, nil)

	anim.JumpTo(800)
	b.Refresh()
	assert.Equal(t, []float64{2}, spark.Points())

	anim.JumpTo(2000)
	b.Refresh()
	assert.Empty(t, spark.Points())
	assert.Equal(t, Renderer(spark), b.Renderer())
}
