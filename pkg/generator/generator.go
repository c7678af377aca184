// Package generator appends one sample per animator tick to every tracked
// index. It backs the synthetic demo mode and is the template for live
// ingestion.
package generator

import (
	"errors"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/VividCortex/ewma"
	"github.com/vjranagit/chronoscope/internal/logger"
	"github.com/vjranagit/chronoscope/pkg/animator"
	"github.com/vjranagit/chronoscope/pkg/temporal"
)

// ValueFunc produces the next value for the named index
type ValueFunc func(name string) float64

// Uniform returns values uniformly distributed in [0,1)
func Uniform(rng *rand.Rand) ValueFunc {
	var mu sync.Mutex
	return func(string) float64 {
		mu.Lock()
		defer mu.Unlock()
		return rng.Float64()
	}
}

// Smoothed returns an exponentially weighted random walk per index name,
// which looks more like server load than uniform noise. Values stay in [0,1].
func Smoothed(rng *rand.Rand) ValueFunc {
	var mu sync.Mutex
	averages := make(map[string]ewma.MovingAverage)

	return func(name string) float64 {
		mu.Lock()
		defer mu.Unlock()

		avg, ok := averages[name]
		if !ok {
			avg = ewma.NewMovingAverage(10)
			avg.Set(rng.Float64())
			averages[name] = avg
		}
		avg.Add(rng.Float64())
		return avg.Value()
	}
}

// Generator is a tick listener that pushes samples into tracked indices
type Generator struct {
	anim  *animator.Animator
	owner animator.OwnerID
	value ValueFunc

	mu      sync.Mutex
	active  bool
	tracked map[string]*temporal.Index[float64]
	pushed  uint64
	skipped uint64
}

// New creates a generator and subscribes it to a. Create it before any
// renderer attaches so its samples land first on every tick.
func New(a *animator.Animator, value ValueFunc) *Generator {
	if value == nil {
		value = Uniform(rand.New(rand.NewSource(time.Now().UnixNano())))
	}

	g := &Generator{
		anim:    a,
		owner:   a.NewOwner(),
		value:   value,
		tracked: make(map[string]*temporal.Index[float64]),
		active:  a.IsRunning(),
	}

	a.On(animator.Key{Event: animator.EventStart, Owner: g.owner}, g.onStart)
	a.On(animator.Key{Event: animator.EventStop, Owner: g.owner}, g.onStop)
	a.On(animator.Key{Event: animator.EventTick, Owner: g.owner}, g.onTick)

	return g
}

// Track adds idx to the working set under name, replacing any previous index
func (g *Generator) Track(name string, idx *temporal.Index[float64]) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tracked[name] = idx
}

// Untrack removes name from the working set. Its data is untouched.
func (g *Generator) Untrack(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.tracked, name)
}

// Tracked returns the names in the working set, sorted
func (g *Generator) Tracked() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.namesLocked()
}

func (g *Generator) namesLocked() []string {
	names := make([]string, 0, len(g.tracked))
	for name := range g.tracked {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start starts the animator; generation follows through the start notification
func (g *Generator) Start() bool {
	return g.anim.Start()
}

// Stop stops the animator; generation ends synchronously with it
func (g *Generator) Stop() bool {
	return g.anim.Stop()
}

// IsActive reports whether samples are produced on ticks
func (g *Generator) IsActive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Reset stops generation and empties the working set. Tracked indices keep
// their data. Generation resumes on the next animator start.
func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.active = false
	g.tracked = make(map[string]*temporal.Index[float64])
}

// SetDT changes the tick interval of the underlying animator
func (g *Generator) SetDT(d time.Duration) error {
	return g.anim.SetTickInterval(d)
}

// DT returns the tick interval
func (g *Generator) DT() time.Duration {
	return g.anim.TickInterval()
}

// Stats returns how many samples were pushed and how many were rejected
func (g *Generator) Stats() (pushed, skipped uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pushed, g.skipped
}

// Close detaches the generator from the animator
func (g *Generator) Close() {
	g.anim.Detach(g.owner)

	g.mu.Lock()
	g.active = false
	g.mu.Unlock()
}

func (g *Generator) onStart(time.Duration, int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = true
}

func (g *Generator) onStop(time.Duration, int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = false
}

func (g *Generator) onTick(_ time.Duration, now int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.active {
		return
	}

	// name order keeps a seeded value source reproducible
	for _, name := range g.namesLocked() {
		err := g.tracked[name].Push(now, g.value(name))
		if err == nil {
			g.pushed++
			continue
		}

		g.skipped++
		if errors.Is(err, temporal.ErrInvalidOrdering) {
			logger.Warn("sample rejected", "index", name, "now", now, "error", err)
			continue
		}
		logger.Error("sample push failed", "index", name, "error", err)
	}
}
