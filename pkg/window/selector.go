package window

import (
	"github.com/vjranagit/chronoscope/pkg/temporal"
	"github.com/vjranagit/chronoscope/pkg/types"
)

// Selector computes the visible time range for a clock position
type Selector struct {
	// Width is the window width in milliseconds
	Width int64
}

// NewSelector creates a selector for a window of width milliseconds
func NewSelector(width int64) Selector {
	if width < 0 {
		width = 0
	}
	return Selector{Width: width}
}

// Selection returns [now-Width, now]. It is a pure function of its input;
// callers recompute it every tick.
func (s Selector) Selection(now int64) types.Selection {
	return types.Selection{
		Start: now - s.Width,
		Point: now,
		Width: s.Width,
	}
}

// Visible returns the samples of idx inside sel
func Visible[T any](idx *temporal.Index[T], sel types.Selection) []types.Sample[T] {
	return idx.Range(sel.Start, sel.Point)
}

// Bounds returns the ordinal range [lo, hi] of idx covered by sel
func Bounds[T any](idx *temporal.Index[T], sel types.Selection) (lo, hi int, ok bool) {
	return idx.Span(sel.Start, sel.Point)
}

// PointIndex returns the ordinal of the current point: the latest sample at
// or before now
func PointIndex[T any](idx *temporal.Index[T], now int64) (int, bool) {
	return idx.FloorIndex(now)
}
