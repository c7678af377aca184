package render

import (
	"strings"
	"sync"
	"time"

	"github.com/vjranagit/chronoscope/pkg/normalize"
	"github.com/vjranagit/chronoscope/pkg/types"
)

// Axis draws the time axis of a window. Every slot produced by normalize.TS
// is one column, marked when it holds at least one sample.
type Axis struct {
	width  int64
	bucket int64

	mu     sync.Mutex
	origin int64
	slot   func(int64) int
	marks  map[int]bool
	last   int
}

// NewAxis creates an axis for a window of width ms split into bucket ms
func NewAxis(width, bucket time.Duration) *Axis {
	a := &Axis{width: width.Milliseconds(), bucket: bucket.Milliseconds()}
	a.Layout(0)
	return a
}

// Layout anchors the axis so that the window ending at now starts at slot 0
func (a *Axis) Layout(now int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.anchor(now)
}

func (a *Axis) anchor(now int64) {
	a.origin = now - a.width
	a.slot = normalize.TS(a.origin, a.bucket)
	a.marks = make(map[int]bool)
	a.last = a.slot(now)
}

// Update marks the slots of the visible samples
func (a *Axis) Update(_ time.Duration, now int64, data []types.Sample[float64]) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// the window slides with now, so the origin moves every tick
	a.anchor(now)
	for _, s := range data {
		a.marks[a.slot(s.Timestamp)] = true
	}
}

// Slot returns the column of ts in the current layout
func (a *Axis) Slot(ts int64) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.slot(ts)
}

// String implements Renderer
func (a *Axis) String() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	first := a.slot(a.origin)
	var sb strings.Builder
	for i := first; i <= a.last; i++ {
		if a.marks[i] {
			sb.WriteRune('┴')
		} else {
			sb.WriteRune('─')
		}
	}
	return sb.String()
}
