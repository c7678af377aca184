package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/vjranagit/chronoscope/pkg/normalize"
	"github.com/vjranagit/chronoscope/pkg/types"
)

var (
	barOK       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	barWarning  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	barCritical = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Bar draws the latest visible value of an attribute as a horizontal gauge
type Bar struct {
	attr  types.Attribute
	width int
	norm  *normalize.Value

	mu     sync.Mutex
	latest types.Sample[float64]
	has    bool
}

// NewBar creates a gauge width cells wide for attr
func NewBar(attr types.Attribute, width int) *Bar {
	if width <= 0 {
		width = 20
	}
	norm := normalize.ForAttribute(attr)
	if norm == nil {
		norm = normalize.NewValue(0, 1)
	}
	return &Bar{attr: attr, width: width, norm: norm}
}

// Layout implements Renderer
func (b *Bar) Layout(int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.has = false
}

// Update keeps the last visible sample
func (b *Bar) Update(_ time.Duration, _ int64, data []types.Sample[float64]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(data) == 0 {
		b.has = false
		return
	}
	b.latest = data[len(data)-1]
	b.has = true
}

// Fill returns the number of filled cells
func (b *Bar) Fill() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.has {
		return 0
	}
	return int(math.Round(b.norm.Normalize(b.latest.Value) * float64(b.width)))
}

// Caption formats the latest raw value with its unit
func (b *Bar) Caption() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.has {
		return "n/a"
	}
	v := b.latest.Value
	if b.attr.Type == types.ValueBytes && v >= 0 {
		return humanize.IBytes(uint64(v)) + strings.TrimPrefix(b.attr.Unit, "B")
	}
	return strings.TrimSpace(strconv.FormatFloat(v, 'f', 2, 64) + " " + b.attr.Unit)
}

// String implements Renderer
func (b *Bar) String() string {
	fill := b.Fill()
	level := float64(fill) / float64(b.width)

	style := barOK
	switch {
	case level >= 0.9:
		style = barCritical
	case level >= 0.7:
		style = barWarning
	}

	gauge := style.Render(strings.Repeat("█", fill)) + strings.Repeat("░", b.width-fill)
	return fmt.Sprintf("%s/%s %s %s", b.attr.Node, b.attr.Name, gauge, b.Caption())
}
