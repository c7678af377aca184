package render

import (
	"sync"
	"time"

	"github.com/vjranagit/chronoscope/pkg/animator"
	"github.com/vjranagit/chronoscope/pkg/temporal"
	"github.com/vjranagit/chronoscope/pkg/window"
)

// FrameFunc receives every frame produced by a binding
type FrameFunc func(now int64, frame string)

// Binding feeds a renderer from one attribute index. Once attached it lays
// the renderer out on start and updates it with the visible window on every
// tick. Bindings must be attached after the generator so that each tick sees
// the sample pushed for it.
type Binding struct {
	anim     *animator.Animator
	idx      *temporal.Index[float64]
	selector window.Selector
	renderer Renderer
	sink     FrameFunc

	mu       sync.Mutex
	owner    animator.OwnerID
	attached bool
	frames   uint64
}

// Bind creates an unattached binding. sink may be nil.
func Bind(a *animator.Animator, idx *temporal.Index[float64], sel window.Selector, r Renderer, sink FrameFunc) *Binding {
	return &Binding{
		anim:     a,
		idx:      idx,
		selector: sel,
		renderer: r,
		sink:     sink,
	}
}

// Attach registers the binding's listeners. Attaching twice is a no-op.
func (b *Binding) Attach() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return
	}
	b.owner = b.anim.NewOwner()
	b.anim.On(animator.Key{Event: animator.EventStart, Owner: b.owner}, func(_ time.Duration, now int64) {
		b.renderer.Layout(now)
	})
	b.anim.On(animator.Key{Event: animator.EventTick, Owner: b.owner}, b.draw)
	b.attached = true
}

// Detach removes the binding's listeners
func (b *Binding) Detach() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return
	}
	b.anim.Detach(b.owner)
	b.attached = false
}

// Refresh draws the window at the animator's current instant without a
// tick, e.g. after JumpTo while stopped
func (b *Binding) Refresh() {
	b.draw(0, b.anim.Now())
}

// Frames returns how many frames were drawn
func (b *Binding) Frames() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

// Renderer returns the bound renderer
func (b *Binding) Renderer() Renderer {
	return b.renderer
}

func (b *Binding) draw(dt time.Duration, now int64) {
	sel := b.selector.Selection(now)
	b.renderer.Update(dt, now, window.Visible(b.idx, sel))

	b.mu.Lock()
	b.frames++
	b.mu.Unlock()

	if b.sink != nil {
		b.sink(now, b.renderer.String())
	}
}
