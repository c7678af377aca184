// Package animator provides the single periodic scheduler that drives the
// virtual clock of a visualization session.
//
// The animator owns one ticker. Each firing advances the virtual "now" by the
// tick interval and notifies tick listeners, in registration order, with the
// same (dt, now) pair. Start, stop and seek come from the host.
package animator

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/vjranagit/chronoscope/internal/logger"
)

// DefaultTickInterval is used when no interval is configured
const DefaultTickInterval = 100 * time.Millisecond

// State is a point-in-time view of the animator
type State struct {
	Running  bool          `json:"running"`
	Now      int64         `json:"now"`
	Interval time.Duration `json:"-"`
}

// Animator is a two-state (stopped, running) virtual clock
type Animator struct {
	clock    clock.Clock
	mu       sync.Mutex
	running  bool
	now      int64
	seeded   bool
	interval time.Duration

	// gen changes on every start, stop and reschedule; a firing from an
	// older generation is discarded
	gen    uint64
	ticker *clock.Ticker
	done   chan struct{}

	// epoch changes on start and stop only. A tick already dispatching
	// keeps going while its epoch is current.
	epoch uint64

	// firing serializes tick dispatch across schedules
	firing sync.Mutex

	// pending start/stop notifications, delivered in transition order by
	// whichever caller is draining
	pending  []transition
	draining bool

	listeners registry
	nextOwner uint64
}

type transition struct {
	event Event
	now   int64
	epoch uint64
}

// Option configures an Animator.
type Option func(*Animator)

// WithClock sets the time source. Tests pass clock.NewMock().
func WithClock(c clock.Clock) Option {
	return func(a *Animator) {
		a.clock = c
	}
}

// WithTickInterval sets the initial tick interval
func WithTickInterval(d time.Duration) Option {
	return func(a *Animator) {
		if d > 0 {
			a.interval = d
		}
	}
}

// WithStart seeds the virtual clock at instant (milliseconds)
func WithStart(instant int64) Option {
	return func(a *Animator) {
		a.now = instant
		a.seeded = true
	}
}

// New creates a stopped animator. Unless WithStart is given, now is seeded
// from the time source.
func New(opts ...Option) *Animator {
	a := &Animator{
		clock:    clock.New(),
		interval: DefaultTickInterval,
	}

	for _, opt := range opts {
		opt(a)
	}

	if !a.seeded {
		a.now = a.clock.Now().UnixMilli()
	}

	return a
}

// Start begins ticking. Returns false, and notifies nobody, if already running.
func (a *Animator) Start() bool {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return false
	}

	a.running = true
	a.epoch++
	a.gen++
	now, interval := a.now, a.interval
	drain := a.enqueueLocked(transition{event: EventStart, now: now, epoch: a.epoch})
	a.mu.Unlock()

	logger.Debug("animator started", "now", now, "interval_ms", interval.Milliseconds())
	if drain {
		a.drain()
	}
	return true
}

// Stop cancels the ticker. No tick listener starts after Stop returns,
// including for a firing that was already queued. Stopping a stopped
// animator is a no-op that still reports true.
func (a *Animator) Stop() bool {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return true
	}

	a.running = false
	a.epoch++
	a.gen++
	a.cancelLocked()
	now := a.now
	drain := a.enqueueLocked(transition{event: EventStop, now: now, epoch: a.epoch})
	a.mu.Unlock()

	logger.Debug("animator stopped", "now", now)
	if drain {
		a.drain()
	}
	return true
}

// enqueueLocked queues a transition notification and reports whether the
// caller has to deliver it (must hold lock)
func (a *Animator) enqueueLocked(t transition) bool {
	a.pending = append(a.pending, t)
	if a.draining {
		return false
	}
	a.draining = true
	return true
}

// drain delivers queued start/stop notifications one transition at a time.
// A transition made by a listener, or by another goroutine meanwhile, is
// queued and delivered here after the current one.
func (a *Animator) drain() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for len(a.pending) > 0 {
		t := a.pending[0]
		a.pending = a.pending[1:]
		listeners := a.listeners.snapshot(t.event)
		a.mu.Unlock()

		for _, fn := range listeners {
			fn(0, t.now)
		}

		a.mu.Lock()
		// the ticker starts only after start listeners ran, so no tick can
		// overtake the start notification
		if t.event == EventStart && a.running && a.epoch == t.epoch && a.ticker == nil {
			a.scheduleLocked()
		}
	}
	a.pending = nil
	a.draining = false
}

// JumpTo sets the virtual clock to instant regardless of state. No tick is
// emitted; later ticks continue from instant.
func (a *Animator) JumpTo(instant int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.now = instant
}

// SetTickInterval changes the interval. A running animator is rescheduled
// without stop or start notifications, and a tick being dispatched still
// reaches every listener.
func (a *Animator) SetTickInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", d)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.interval = d
	// before the first schedule the pending start picks up the new interval
	if a.running && a.ticker != nil {
		a.cancelLocked()
		a.gen++
		a.scheduleLocked()
	}
	return nil
}

// TickInterval returns the current interval
func (a *Animator) TickInterval() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.interval
}

// Now returns the virtual clock in milliseconds
func (a *Animator) Now() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.now
}

// IsRunning reports whether the animator is ticking
func (a *Animator) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// State returns running flag, now and interval under one lock
func (a *Animator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return State{Running: a.running, Now: a.now, Interval: a.interval}
}

// NewOwner hands out a fresh owner ID for listener keys
func (a *Animator) NewOwner() OwnerID {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextOwner++
	return OwnerID(a.nextOwner)
}

// On registers fn under key. Registering an existing key replaces its
// listener; a nil fn deregisters. Safe to call from inside a listener.
func (a *Animator) On(key Key, fn Listener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners.set(key, fn)
}

// Detach removes every listener registered by owner. Called from an
// element's teardown path.
func (a *Animator) Detach(owner OwnerID) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listeners.removeOwner(owner)
}

// Listeners returns how many listeners are registered for ev
func (a *Animator) Listeners(ev Event) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listeners.count(ev)
}

// scheduleLocked starts a ticker goroutine bound to the current generation
// (must hold lock)
func (a *Animator) scheduleLocked() {
	t := a.clock.Ticker(a.interval)
	done := make(chan struct{})
	a.ticker = t
	a.done = done

	go a.loop(t, done, a.gen)
}

// cancelLocked stops the current ticker goroutine (must hold lock)
func (a *Animator) cancelLocked() {
	if a.ticker != nil {
		a.ticker.Stop()
		a.ticker = nil
	}
	if a.done != nil {
		close(a.done)
		a.done = nil
	}
}

func (a *Animator) loop(t *clock.Ticker, done <-chan struct{}, gen uint64) {
	for {
		select {
		case <-done:
			return
		case <-t.C:
			select {
			case <-done:
				return
			default:
			}
			a.fire(gen)
		}
	}
}

// fire advances now by one interval and notifies tick listeners. A firing
// that belongs to an older generation does nothing.
func (a *Animator) fire(gen uint64) {
	a.firing.Lock()
	defer a.firing.Unlock()

	a.mu.Lock()
	if !a.running || a.gen != gen {
		a.mu.Unlock()
		return
	}

	dt := a.interval
	a.now += dt.Milliseconds()
	now := a.now
	epoch := a.epoch
	listeners := a.listeners.snapshot(EventTick)
	a.mu.Unlock()

	for _, fn := range listeners {
		// a listener may have stopped us
		if !a.live(epoch) {
			return
		}
		fn(dt, now)
	}
}

func (a *Animator) live(epoch uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running && a.epoch == epoch
}
