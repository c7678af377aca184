// Package dashboard wires registered attributes, the generator and the
// renderers onto one animator and composes their output into frames.
package dashboard

import (
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vjranagit/chronoscope/internal/logger"
	"github.com/vjranagit/chronoscope/pkg/animator"
	"github.com/vjranagit/chronoscope/pkg/generator"
	"github.com/vjranagit/chronoscope/pkg/normalize"
	"github.com/vjranagit/chronoscope/pkg/registry"
	"github.com/vjranagit/chronoscope/pkg/render"
	"github.com/vjranagit/chronoscope/pkg/window"
)

const clearScreen = "\033[H\033[2J"

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("117"))

// Options configures a dashboard
type Options struct {
	// Window is the visible time span
	Window time.Duration
	// Bucket is the axis bucket size
	Bucket time.Duration
	// Width is the gauge width in cells
	Width int
	// Value produces synthetic samples. Nil disables generation, e.g. for replay.
	Value generator.ValueFunc
	// Out receives one frame per tick. Nil disables output.
	Out io.Writer
}

// Dashboard draws every registered attribute as a gauge above a time axis
type Dashboard struct {
	anim  *animator.Animator
	reg   *registry.Registry
	gen   *generator.Generator
	out   io.Writer
	owner animator.OwnerID

	bindings []*render.Binding
	axis     *render.Binding

	mu    sync.Mutex
	frame string
}

// New builds a dashboard over every attribute currently in reg. The
// generator is registered before any renderer so each tick draws the sample
// pushed for it.
func New(a *animator.Animator, reg *registry.Registry, opts Options) *Dashboard {
	if opts.Window <= 0 {
		opts.Window = 30 * time.Second
	}
	if opts.Bucket <= 0 {
		opts.Bucket = 5 * time.Second
	}

	d := &Dashboard{anim: a, reg: reg, out: opts.Out}
	entries := reg.All()

	if opts.Value != nil {
		d.gen = generator.New(a, opts.Value)
		for _, e := range entries {
			d.gen.Track(e.ID.String(), e.Index)
		}
	}

	sel := window.NewSelector(opts.Window.Milliseconds())
	for _, e := range entries {
		var r render.Renderer
		if normalize.Applies(e.Attribute.Type) {
			r = render.NewBar(e.Attribute, opts.Width)
		} else {
			r = render.NewSparkline(render.SparklineConfig{Width: opts.Width, Height: 2}, nil)
		}
		b := render.Bind(a, e.Index, sel, r, nil)
		b.Attach()
		d.bindings = append(d.bindings, b)
	}

	if len(entries) > 0 {
		d.axis = render.Bind(a, entries[0].Index, sel, render.NewAxis(opts.Window, opts.Bucket), nil)
		d.axis.Attach()
	}

	// composes after every renderer has updated
	d.owner = a.NewOwner()
	a.On(animator.Key{Event: animator.EventTick, Owner: d.owner}, func(time.Duration, int64) {
		d.compose()
	})

	logger.Debug("dashboard ready", "attributes", len(entries), "generating", d.gen != nil)
	return d
}

// Generator returns the generator, or nil when generation is disabled
func (d *Dashboard) Generator() *generator.Generator {
	return d.gen
}

// Refresh redraws every renderer at the animator's current instant
func (d *Dashboard) Refresh() {
	for _, b := range d.bindings {
		b.Refresh()
	}
	if d.axis != nil {
		d.axis.Refresh()
	}
	d.compose()
}

// Frame returns the last composed frame
func (d *Dashboard) Frame() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frame
}

// Close detaches every listener the dashboard registered
func (d *Dashboard) Close() {
	d.anim.Detach(d.owner)
	for _, b := range d.bindings {
		b.Detach()
	}
	if d.axis != nil {
		d.axis.Detach()
	}
	if d.gen != nil {
		d.gen.Close()
	}
}

func (d *Dashboard) compose() {
	st := d.anim.State()

	lines := []string{headerStyle.Render(time.UnixMilli(st.Now).UTC().Format(time.RFC3339))}
	for _, b := range d.bindings {
		lines = append(lines, b.Renderer().String())
	}
	if d.axis != nil {
		lines = append(lines, d.axis.Renderer().String())
	}
	frame := strings.Join(lines, "\n")

	d.mu.Lock()
	d.frame = frame
	d.mu.Unlock()

	if d.out != nil {
		if _, err := io.WriteString(d.out, clearScreen+frame+"\n"); err != nil {
			logger.Warn("failed to write frame", "error", err)
		}
	}
}
