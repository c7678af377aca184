package archive

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/chronoscope/internal/logger"
	"github.com/vjranagit/chronoscope/pkg/registry"
	"github.com/vjranagit/chronoscope/pkg/temporal"
	"github.com/vjranagit/chronoscope/pkg/types"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	logger.Discard()

	a, err := Open(&Config{InMemory: true, CompressionLevel: 1, BlockSpan: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestCodecRoundTrip(t *testing.T) {
	c, err := NewCodec(3)
	require.NoError(t, err)
	defer c.Close()

	timestamps := []int64{-500, 0, 0, 100, 200, 300, 450, 10_000, 10_001}
	got, err := c.DecodeTimestamps(c.EncodeTimestamps(timestamps), len(timestamps))
	require.NoError(t, err)
	assert.Equal(t, timestamps, got)

	values := []float64{0, 0.5, 0.5, -1.25, math.MaxFloat64, math.Inf(1), 1e-300}
	vals, err := c.DecodeValues(c.EncodeValues(values), len(values))
	require.NoError(t, err)
	assert.Equal(t, values, vals)

	empty, err := c.DecodeTimestamps(c.EncodeTimestamps(nil), 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = c.DecodeValues(c.EncodeValues([]float64{1}), 2)
	assert.Error(t, err)
}

func TestBlockOf(t *testing.T) {
	assert.Equal(t, int64(0), blockOf(999, 1000))
	assert.Equal(t, int64(1000), blockOf(1000, 1000))
	assert.Equal(t, int64(-1000), blockOf(-1, 1000))
	assert.Equal(t, int64(-1000), blockOf(-1000, 1000))
}

func TestArchiveSaveLoad(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	src := temporal.NewIndex[float64]()
	// spans several one-second blocks, including a duplicate instant
	for _, ts := range []int64{-200, 100, 900, 900, 1500, 4200} {
		require.NoError(t, src.Push(ts, float64(ts)/10))
	}

	id := registry.AttributeID(42)
	require.NoError(t, a.Save(ctx, id, src))

	dst := temporal.NewIndex[float64]()
	require.NoError(t, a.Load(ctx, id, dst))
	assert.Equal(t, src.Snapshot(), dst.Snapshot())

	// saving again replaces what was stored
	short := temporal.NewIndex[float64]()
	require.NoError(t, short.Push(50, 1))
	require.NoError(t, a.Save(ctx, id, short))

	again := temporal.NewIndex[float64]()
	require.NoError(t, a.Load(ctx, id, again))
	assert.Equal(t, []types.Sample[float64]{{Timestamp: 50, Value: 1}}, again.Snapshot())
}

func TestArchiveNotFound(t *testing.T) {
	a := openTestArchive(t)

	err := a.Load(context.Background(), registry.AttributeID(7), temporal.NewIndex[float64]())
	assert.ErrorIs(t, err, ErrNotFound)

	ids, err := a.Attributes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestArchiveLoadRejectsOlderData(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	src := temporal.NewIndex[float64]()
	require.NoError(t, src.Push(100, 1))
	require.NoError(t, a.Save(ctx, 1, src))

	dst := temporal.NewIndex[float64]()
	require.NoError(t, dst.Push(5000, 1))
	err := a.Load(ctx, 1, dst)
	assert.ErrorIs(t, err, temporal.ErrInvalidOrdering)
}

func TestArchiveAttributesAndRestore(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	src := registry.New()
	entries, err := registry.DefaultManifest().Apply(src)
	require.NoError(t, err)

	for i, e := range entries {
		for ts := int64(0); ts < 3000; ts += 500 {
			require.NoError(t, e.Index.Push(ts, float64(i)))
		}
		require.NoError(t, a.SaveEntry(ctx, e))
	}

	ids, err := a.Attributes(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, src.Find(nil), ids)

	dst := registry.New()
	restored, err := a.Restore(ctx, dst)
	require.NoError(t, err)
	assert.Len(t, restored, len(entries))
	assert.Equal(t, src.Len(), dst.Len())

	for _, e := range entries {
		got, err := dst.Lookup(e.ID)
		require.NoError(t, err)
		assert.Equal(t, e.Attribute, got.Attribute)
		assert.Equal(t, e.Index.Snapshot(), got.Index.Snapshot())
	}
}

func TestArchiveCanceledContext(t *testing.T) {
	a := openTestArchive(t)

	src := temporal.NewIndex[float64]()
	require.NoError(t, src.Push(1, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, a.Save(ctx, 3, src), context.Canceled)
}
