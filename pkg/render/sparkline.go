package render

import (
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/vjranagit/chronoscope/pkg/normalize"
	"github.com/vjranagit/chronoscope/pkg/types"
)

// SparklineConfig holds configuration for sparkline rendering
type SparklineConfig struct {
	// Width is the number of plotted columns
	Width int
	// Height is the number of plot rows
	Height int
	// Color is the lipgloss color of the plot
	Color lipgloss.Color
	// Caption is shown below the plot
	Caption string
}

// DefaultSparklineConfig returns defaults for a dashboard cell
func DefaultSparklineConfig() SparklineConfig {
	return SparklineConfig{
		Width:  40,
		Height: 4,
		Color:  lipgloss.Color("117"),
	}
}

// Sparkline plots the visible window as a multi-line chart
type Sparkline struct {
	cfg  SparklineConfig
	norm *normalize.Value

	mu     sync.Mutex
	values []float64
	now    int64
}

// NewSparkline creates a sparkline. With a nil normalizer raw values are
// plotted and the vertical range follows the data.
func NewSparkline(cfg SparklineConfig, norm *normalize.Value) *Sparkline {
	if cfg.Width <= 0 {
		cfg.Width = DefaultSparklineConfig().Width
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultSparklineConfig().Height
	}
	return &Sparkline{cfg: cfg, norm: norm}
}

// Layout clears the previous run
func (s *Sparkline) Layout(now int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = nil
	s.now = now
}

// Update stores the normalized window
func (s *Sparkline) Update(_ time.Duration, now int64, data []types.Sample[float64]) {
	var values []float64
	if s.norm != nil {
		values = s.norm.NormalizeAll(data)
	} else {
		values = make([]float64, len(data))
		for i, d := range data {
			values[i] = d.Value
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = resample(values, s.cfg.Width)
	s.now = now
}

// Points returns the plotted values
func (s *Sparkline) Points() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.values...)
}

// String implements Renderer
func (s *Sparkline) String() string {
	s.mu.Lock()
	values := s.values
	s.mu.Unlock()

	if len(values) == 0 {
		return strings.Repeat("─", s.cfg.Width)
	}

	opts := []asciigraph.Option{
		asciigraph.Height(s.cfg.Height),
		asciigraph.Width(s.cfg.Width),
	}
	if s.norm != nil {
		opts = append(opts, asciigraph.LowerBound(0), asciigraph.UpperBound(1))
	}
	if s.cfg.Caption != "" {
		opts = append(opts, asciigraph.Caption(s.cfg.Caption))
	}

	graph := asciigraph.Plot(values, opts...)
	if s.cfg.Color == "" {
		return graph
	}

	style := lipgloss.NewStyle().Foreground(s.cfg.Color)
	lines := strings.Split(graph, "\n")
	for i, line := range lines {
		lines[i] = style.Render(line)
	}
	return strings.Join(lines, "\n")
}
