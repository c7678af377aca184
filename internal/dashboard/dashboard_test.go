package dashboard

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/chronoscope/internal/logger"
	"github.com/vjranagit/chronoscope/pkg/animator"
	"github.com/vjranagit/chronoscope/pkg/registry"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func setup(t *testing.T) (*animator.Animator, *clock.Mock, *registry.Registry) {
	t.Helper()
	logger.Discard()

	mock := clock.NewMock()
	a := animator.New(animator.WithClock(mock), animator.WithTickInterval(100*time.Millisecond), animator.WithStart(60_000))
	t.Cleanup(func() { a.Stop() })

	reg := registry.New()
	_, err := registry.DefaultManifest().Apply(reg)
	require.NoError(t, err)
	return a, mock, reg
}

func TestDashboardPlays(t *testing.T) {
	a, mock, reg := setup(t)

	out := &syncBuffer{}
	d := New(a, reg, Options{Width: 10, Value: func(string) float64 { return 0.5 }, Out: out})
	require.NotNil(t, d.Generator())

	// generator, three gauges, the axis and the composer
	assert.Equal(t, 6, a.Listeners(animator.EventTick))

	require.True(t, a.Start())
	mock.Add(100 * time.Millisecond)

	require.Eventually(t, func() bool { return d.Frame() != "" }, 2*time.Second, 5*time.Millisecond)

	frame := d.Frame()
	assert.Contains(t, frame, "1970-01-01T00:01:00Z")
	assert.Contains(t, frame, "web-1/load")
	assert.Contains(t, frame, "db-1/load")
	assert.Contains(t, frame, "0.50 %")
	assert.True(t, strings.HasPrefix(out.String(), clearScreen))

	for _, e := range reg.All() {
		assert.Equal(t, 1, e.Index.Len(), e.Attribute.Name)
	}

	d.Close()
	assert.Equal(t, 0, a.Listeners(animator.EventTick))
	assert.Equal(t, 0, a.Listeners(animator.EventStart))
}

func TestDashboardReplayRefresh(t *testing.T) {
	a, _, reg := setup(t)

	for _, e := range reg.All() {
		require.NoError(t, e.Index.Push(10_000, 0.25))
	}

	d := New(a, reg, Options{Width: 8, Window: 5 * time.Second, Bucket: time.Second})
	assert.Nil(t, d.Generator())
	assert.Equal(t, 5, a.Listeners(animator.EventTick))

	a.JumpTo(12_000)
	d.Refresh()
	assert.Contains(t, d.Frame(), "0.25 %")

	a.JumpTo(20_000)
	d.Refresh()
	assert.Contains(t, d.Frame(), "n/a", "sample left the window")
}
