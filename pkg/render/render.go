// Package render turns the visible window of an attribute into terminal
// text. Renderers are driven by the animator: Layout on start, Update on
// every tick.
package render

import (
	"time"

	"github.com/vjranagit/chronoscope/pkg/types"
)

// Renderer is anything that can draw the visible samples of one attribute
type Renderer interface {
	// Layout prepares the renderer for a run starting at now
	Layout(now int64)
	// Update receives the samples visible at now
	Update(dt time.Duration, now int64, data []types.Sample[float64])
	// String returns the current frame
	String() string
}

// resample averages data down to at most width points
func resample(data []float64, width int) []float64 {
	if width <= 0 || len(data) <= width {
		return data
	}

	out := make([]float64, width)
	bucket := float64(len(data)) / float64(width)
	for i := range out {
		start := int(float64(i) * bucket)
		end := int(float64(i+1) * bucket)
		if end > len(data) {
			end = len(data)
		}
		if start >= end {
			start = end - 1
		}

		sum := 0.0
		for _, v := range data[start:end] {
			sum += v
		}
		out[i] = sum / float64(end-start)
	}
	return out
}
