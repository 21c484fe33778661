package describe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brood-studio/canvasrt/internal/clock"
)

func TestPumpDispatchesHeadOnlyWhenIdle(t *testing.T) {
	fc := clock.NewFake(0)
	var dispatched []string
	q := New(fc, func(path string) { dispatched = append(dispatched, path) })

	q.Enqueue("/a.jpg")
	q.Enqueue("/b.jpg")

	assert.True(t, q.Pump())
	assert.Equal(t, []string{"/a.jpg"}, dispatched)
	assert.False(t, q.Pump(), "no second dispatch while one is in flight")
}

func TestBumpMovesPathToHead(t *testing.T) {
	fc := clock.NewFake(0)
	q := New(fc, func(path string) {})
	q.Enqueue("/a.jpg")
	q.Enqueue("/b.jpg")
	q.Enqueue("/c.jpg")

	q.Bump("/c.jpg")

	var dispatched string
	q.Dispatch = func(path string) { dispatched = path }
	q.Pump()
	assert.Equal(t, "/c.jpg", dispatched)
}

func TestCheckTimeoutAbandonsInFlight(t *testing.T) {
	fc := clock.NewFake(0)
	q := New(fc, func(path string) {})
	q.Enqueue("/a.jpg")
	q.Pump()

	_, timedOut := q.CheckTimeout()
	assert.False(t, timedOut)

	fc.Advance(31 * time.Second)
	path, timedOut := q.CheckTimeout()
	assert.True(t, timedOut)
	assert.Equal(t, "/a.jpg", path)

	_, inFlight := q.InFlight()
	assert.False(t, inFlight)
}

func TestClearForMissingKeysDropsAndBlocksEnqueue(t *testing.T) {
	fc := clock.NewFake(0)
	q := New(fc, func(path string) {})
	q.Enqueue("/a.jpg")
	q.ClearForMissingKeys()

	assert.Equal(t, 0, q.Len())
	q.Enqueue("/b.jpg")
	assert.Equal(t, 0, q.Len(), "enqueue must be dropped while cleared")
}

func TestDisconnectKeepsQueueIntact(t *testing.T) {
	fc := clock.NewFake(0)
	q := New(fc, func(path string) {})
	q.Enqueue("/a.jpg")
	q.Enqueue("/b.jpg")
	q.Pump()
	require.Equal(t, 1, q.Len())

	q.Disconnect()
	assert.Equal(t, 2, q.Len())
	_, inFlight := q.InFlight()
	assert.False(t, inFlight)
}

func TestSchedulerBusyGatesDispatch(t *testing.T) {
	fc := clock.NewFake(0)
	q := New(fc, func(path string) {})
	q.SchedulerBusy = func() bool { return true }
	q.Enqueue("/a.jpg")

	assert.False(t, q.Pump())
}
