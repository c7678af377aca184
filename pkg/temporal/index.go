package temporal

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/vjranagit/chronoscope/pkg/types"
)

var (
	// ErrIndexOutOfRange is returned when an ordinal is outside [0, Len())
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrInvalidOrdering is returned when a push would move time backwards
	ErrInvalidOrdering = errors.New("timestamp earlier than last sample")
)

// Index is an append-only sequence of samples ordered by timestamp.
//
// Pushes that would break the ordering are rejected, so the sequence never
// needs re-sorting and Floor/Ceiling are plain binary searches. One writer,
// any number of readers.
type Index[T any] struct {
	mu      sync.RWMutex
	samples []types.Sample[T]
}

// NewIndex creates an empty index
func NewIndex[T any]() *Index[T] {
	return &Index[T]{}
}

// Push appends a sample. ts must not be smaller than the last timestamp.
func (idx *Index[T]) Push(ts int64, value T) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if n := len(idx.samples); n > 0 && ts < idx.samples[n-1].Timestamp {
		return fmt.Errorf("failed to push sample at %d after %d: %w", ts, idx.samples[n-1].Timestamp, ErrInvalidOrdering)
	}

	idx.samples = append(idx.samples, types.Sample[T]{Timestamp: ts, Value: value})
	return nil
}

// Get returns the value at ordinal position i
func (idx *Index[T]) Get(i int) (T, error) {
	s, err := idx.At(i)
	return s.Value, err
}

// Timestamp returns the timestamp at ordinal position i
func (idx *Index[T]) Timestamp(i int) (int64, error) {
	s, err := idx.At(i)
	return s.Timestamp, err
}

// At returns the sample at ordinal position i
func (idx *Index[T]) At(i int) (types.Sample[T], error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if i < 0 || i >= len(idx.samples) {
		return types.Sample[T]{}, fmt.Errorf("position %d of %d: %w", i, len(idx.samples), ErrIndexOutOfRange)
	}
	return idx.samples[i], nil
}

// Floor returns the sample with the largest timestamp <= ts
func (idx *Index[T]) Floor(ts int64) (types.Sample[T], bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	i, ok := idx.floorLocked(ts)
	if !ok {
		return types.Sample[T]{}, false
	}
	return idx.samples[i], true
}

// Ceiling returns the sample with the smallest timestamp >= ts
func (idx *Index[T]) Ceiling(ts int64) (types.Sample[T], bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	i, ok := idx.ceilingLocked(ts)
	if !ok {
		return types.Sample[T]{}, false
	}
	return idx.samples[i], true
}

// FloorIndex is Floor returning the ordinal position
func (idx *Index[T]) FloorIndex(ts int64) (int, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.floorLocked(ts)
}

// CeilingIndex is Ceiling returning the ordinal position
func (idx *Index[T]) CeilingIndex(ts int64) (int, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.ceilingLocked(ts)
}

// floorLocked finds the highest position whose timestamp does not exceed ts.
// Among equal timestamps the earliest inserted one wins.
func (idx *Index[T]) floorLocked(ts int64) (int, bool) {
	n := len(idx.samples)
	after := sort.Search(n, func(i int) bool {
		return idx.samples[i].Timestamp > ts
	})
	if after == 0 {
		return 0, false
	}

	found := idx.samples[after-1].Timestamp
	first := sort.Search(after, func(i int) bool {
		return idx.samples[i].Timestamp >= found
	})
	return first, true
}

// ceilingLocked finds the lowest position whose timestamp is not less than ts
func (idx *Index[T]) ceilingLocked(ts int64) (int, bool) {
	n := len(idx.samples)
	i := sort.Search(n, func(i int) bool {
		return idx.samples[i].Timestamp >= ts
	})
	if i == n {
		return 0, false
	}
	return i, true
}

// Range returns a copy of the samples from Ceiling(start) through the last
// sample at or before end
func (idx *Index[T]) Range(start, end int64) []types.Sample[T] {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	lo, hi, ok := idx.spanLocked(start, end)
	if !ok {
		return nil
	}

	out := make([]types.Sample[T], hi-lo+1)
	copy(out, idx.samples[lo:hi+1])
	return out
}

// Span returns the ordinal range [lo, hi] of samples with start <= ts <= end.
// Every duplicate of end is included.
func (idx *Index[T]) Span(start, end int64) (lo, hi int, ok bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.spanLocked(start, end)
}

func (idx *Index[T]) spanLocked(start, end int64) (lo, hi int, ok bool) {
	if start > end {
		return 0, 0, false
	}

	lo, ok = idx.ceilingLocked(start)
	if !ok {
		return 0, 0, false
	}
	after := sort.Search(len(idx.samples), func(i int) bool {
		return idx.samples[i].Timestamp > end
	})
	if after <= lo {
		return 0, 0, false
	}
	return lo, after - 1, true
}

// Last returns the most recently pushed sample
func (idx *Index[T]) Last() (types.Sample[T], bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.samples) == 0 {
		return types.Sample[T]{}, false
	}
	return idx.samples[len(idx.samples)-1], true
}

// Len returns the number of stored samples
func (idx *Index[T]) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.samples)
}

// IsEmpty returns true if no samples are stored
func (idx *Index[T]) IsEmpty() bool {
	return idx.Len() == 0
}

// Clear removes all samples. Samples already handed out are copies and stay valid.
func (idx *Index[T]) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.samples = nil
}

// Snapshot returns a copy of every stored sample in order
func (idx *Index[T]) Snapshot() []types.Sample[T] {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]types.Sample[T], len(idx.samples))
	copy(out, idx.samples)
	return out
}
