package generator

import (
	"math/rand"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/chronoscope/internal/logger"
	"github.com/vjranagit/chronoscope/pkg/animator"
	"github.com/vjranagit/chronoscope/pkg/temporal"
)

const interval = 100 * time.Millisecond

type harness struct {
	anim  *animator.Animator
	mock  *clock.Mock
	gen   *Generator
	ticks chan int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger.Discard()

	mock := clock.NewMock()
	a := animator.New(animator.WithClock(mock), animator.WithTickInterval(interval), animator.WithStart(10_000))
	t.Cleanup(func() { a.Stop() })

	constant := func(string) float64 { return 0.5 }
	h := &harness{anim: a, mock: mock, gen: New(a, constant), ticks: make(chan int64, 16)}

	// registered after the generator, like a renderer
	a.On(animator.Key{Event: animator.EventTick, Owner: a.NewOwner()}, func(_ time.Duration, now int64) {
		h.ticks <- now
	})
	return h
}

func (h *harness) tick(t *testing.T) int64 {
	t.Helper()
	h.mock.Add(h.anim.TickInterval())
	select {
	case now := <-h.ticks:
		return now
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
		return 0
	}
}

func TestGeneratorPushesOnTick(t *testing.T) {
	h := newHarness(t)

	cpu := temporal.NewIndex[float64]()
	net := temporal.NewIndex[float64]()
	h.gen.Track("cpu", cpu)
	h.gen.Track("net", net)
	assert.Equal(t, []string{"cpu", "net"}, h.gen.Tracked())

	assert.False(t, h.gen.IsActive())
	require.True(t, h.gen.Start())
	assert.True(t, h.gen.IsActive())

	now := h.tick(t)
	assert.Equal(t, int64(10_100), now)

	// the sample is visible to listeners of the same tick
	last, ok := cpu.Last()
	require.True(t, ok)
	assert.Equal(t, now, last.Timestamp)
	assert.Equal(t, 0.5, last.Value)

	h.tick(t)
	assert.Equal(t, 2, cpu.Len())
	assert.Equal(t, 2, net.Len())

	pushed, skipped := h.gen.Stats()
	assert.Equal(t, uint64(4), pushed)
	assert.Equal(t, uint64(0), skipped)
}

func TestGeneratorMirrorsAnimatorState(t *testing.T) {
	h := newHarness(t)

	cpu := temporal.NewIndex[float64]()
	h.gen.Track("cpu", cpu)

	require.True(t, h.anim.Start())
	assert.True(t, h.gen.IsActive())
	h.tick(t)

	h.gen.Stop()
	assert.False(t, h.anim.IsRunning())
	assert.False(t, h.gen.IsActive())
	assert.Equal(t, 1, cpu.Len())
}

func TestGeneratorReset(t *testing.T) {
	h := newHarness(t)

	cpu := temporal.NewIndex[float64]()
	h.gen.Track("cpu", cpu)
	require.True(t, h.gen.Start())
	h.tick(t)

	h.gen.Reset()
	assert.Empty(t, h.gen.Tracked())
	assert.False(t, h.gen.IsActive())
	assert.Equal(t, 1, cpu.Len(), "reset keeps data")

	h.gen.Track("cpu", cpu)
	h.tick(t)
	assert.Equal(t, 1, cpu.Len(), "no generation until the next start")

	h.anim.Stop()
	require.True(t, h.anim.Start())
	h.tick(t)
	assert.Equal(t, 2, cpu.Len())
}

func TestGeneratorSkipsRejectedPush(t *testing.T) {
	h := newHarness(t)

	cpu := temporal.NewIndex[float64]()
	h.gen.Track("cpu", cpu)
	h.gen.Untrack("missing")
	require.True(t, h.gen.Start())
	h.tick(t)

	// seeking backwards makes the next tick older than the stored data
	h.anim.JumpTo(5000)
	h.tick(t)

	assert.Equal(t, 1, cpu.Len())
	_, skipped := h.gen.Stats()
	assert.Equal(t, uint64(1), skipped)
}

func TestGeneratorDT(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, interval, h.gen.DT())
	require.NoError(t, h.gen.SetDT(250*time.Millisecond))
	assert.Equal(t, 250*time.Millisecond, h.anim.TickInterval())
	assert.Error(t, h.gen.SetDT(-time.Second))
}

func TestGeneratorClose(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 2, h.anim.Listeners(animator.EventTick))
	h.gen.Close()
	assert.Equal(t, 1, h.anim.Listeners(animator.EventTick))
	assert.Equal(t, 0, h.anim.Listeners(animator.EventStart))
	assert.False(t, h.gen.IsActive())
}

func TestGeneratorSeededRunsMatch(t *testing.T) {
	names := []string{"web-1/load", "web-2/load", "db-1/load", "db-1/mem", "cache-1/hits", "lb-1/conns"}

	logger.Discard()
	run := func() map[string][]float64 {
		mock := clock.NewMock()
		a := animator.New(animator.WithClock(mock), animator.WithTickInterval(interval), animator.WithStart(10_000))
		defer a.Stop()

		g := New(a, Uniform(rand.New(rand.NewSource(99))))
		defer g.Close()
		h := &harness{anim: a, mock: mock, gen: g, ticks: make(chan int64, 16)}
		a.On(animator.Key{Event: animator.EventTick, Owner: a.NewOwner()}, func(_ time.Duration, now int64) {
			h.ticks <- now
		})

		indexes := make(map[string]*temporal.Index[float64])
		for _, name := range names {
			indexes[name] = temporal.NewIndex[float64]()
			g.Track(name, indexes[name])
		}

		require.True(t, h.anim.Start())
		for i := 0; i < 5; i++ {
			h.tick(t)
		}
		h.anim.Stop()

		out := make(map[string][]float64)
		for name, idx := range indexes {
			for _, s := range idx.Snapshot() {
				out[name] = append(out[name], s.Value)
			}
		}
		return out
	}

	first, second := run(), run()
	for _, name := range names {
		require.Len(t, first[name], 5, name)
	}
	assert.Equal(t, first, second)
}

func TestValueFuncs(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	uniform := Uniform(rng)
	smoothed := Smoothed(rng)

	for i := 0; i < 200; i++ {
		u := uniform("cpu")
		assert.GreaterOrEqual(t, u, 0.0)
		assert.Less(t, u, 1.0)

		s := smoothed("cpu")
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}
