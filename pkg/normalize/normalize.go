// Package normalize maps raw sample values and timestamps into bounded
// rendering coordinates.
package normalize

import (
	"math"
	"sync"

	"github.com/vjranagit/chronoscope/pkg/types"
)

// DomainSource computes a [min, max] domain on demand, e.g. from the samples
// currently stored for an attribute
type DomainSource func() (min, max float64)

// Value maps raw values into [0,1] over a domain, clamping values outside it
type Value struct {
	mu     sync.Mutex
	source DomainSource
	cached bool
	min    float64
	max    float64
}

// NewValue creates a normalizer over a fixed domain
func NewValue(min, max float64) *Value {
	return &Value{min: min, max: max, cached: true}
}

// NewValueFrom creates a normalizer whose domain comes from source. The
// domain is computed on first use and kept until Invalidate.
func NewValueFrom(source DomainSource) *Value {
	return &Value{source: source}
}

// ForAttribute returns a normalizer for attr's declared domain, or nil when
// the attribute is not numeric.
func ForAttribute(attr types.Attribute) *Value {
	if !Applies(attr.Type) {
		return nil
	}
	return NewValue(attr.Min, attr.Max)
}

// Applies reports whether value normalization makes sense for vt
func Applies(vt types.ValueType) bool {
	return vt.IsNumeric()
}

// Normalize maps raw into [0,1]. A degenerate domain maps everything to 0.
func (v *Value) Normalize(raw float64) float64 {
	min, max := v.Domain()

	if math.IsNaN(raw) || max <= min {
		return 0
	}
	if raw <= min {
		return 0
	}
	if raw >= max {
		return 1
	}
	return (raw - min) / (max - min)
}

// NormalizeAll maps every value of samples
func (v *Value) NormalizeAll(samples []types.Sample[float64]) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = v.Normalize(s.Value)
	}
	return out
}

// Domain returns the current domain, computing it from the source if needed
func (v *Value) Domain() (float64, float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.cached && v.source != nil {
		v.min, v.max = v.source()
		v.cached = true
	}
	return v.min, v.max
}

// Invalidate drops the cached domain so the next call recomputes it.
// No-op for fixed domains.
func (v *Value) Invalidate() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.source != nil {
		v.cached = false
	}
}

// SampleDomain returns a DomainSource over the min and max of samples().
// An empty set yields [0, 1].
func SampleDomain(samples func() []types.Sample[float64]) DomainSource {
	return func() (float64, float64) {
		data := samples()
		if len(data) == 0 {
			return 0, 1
		}

		lo, hi := data[0].Value, data[0].Value
		for _, s := range data[1:] {
			lo = math.Min(lo, s.Value)
			hi = math.Max(hi, s.Value)
		}
		return lo, hi
	}
}

// TS returns a function quantizing timestamps into rendering slots.
//
// Each bucket is split into two slots. Slot boundaries sit a fifth of a
// bucket before every half-bucket mark after origin, so with origin 0 and a
// 1000 ms bucket the slots are [800,1300) -> 2, [1300,1800) -> 3,
// [1800,2300) -> 4, and so on.
func TS(origin, bucketMs int64) func(ts int64) int {
	if bucketMs <= 0 {
		bucketMs = 1
	}
	return func(ts int64) int {
		return int(floorDiv(10*(ts-origin)+2*bucketMs, 5*bucketMs))
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
