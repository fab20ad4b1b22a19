package flow_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cory-johannsen/sketchparty/internal/game/flow"
)

func TestSchedulerAfterFires(t *testing.T) {
	s := flow.NewScheduler()
	fired := make(chan struct{})

	s.After("room-1", 10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled callback never fired")
	}
	assert.Equal(t, 0, s.PendingCount("room-1"))
}

func TestSchedulerCancelAllSuppressesTimers(t *testing.T) {
	s := flow.NewScheduler()
	var fired atomic.Bool

	s.After("room-1", 20*time.Millisecond, func() { fired.Store(true) })
	s.CancelAll("room-1")

	time.Sleep(100 * time.Millisecond)
	assert.False(t, fired.Load(), "cancelled callback must not fire")
	assert.Equal(t, 0, s.PendingCount("room-1"))
}

func TestSchedulerCancelAllIsPerRoom(t *testing.T) {
	s := flow.NewScheduler()
	fired := make(chan struct{})

	s.After("room-1", 20*time.Millisecond, func() { close(fired) })
	s.After("room-2", time.Hour, func() {})
	s.CancelAll("room-2")

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("room-1's callback was cancelled by room-2's CancelAll")
	}
}

func TestSchedulerEveryTicksUntilCancelled(t *testing.T) {
	s := flow.NewScheduler()
	var ticks atomic.Int32

	s.Every("room-1", 10*time.Millisecond, func() { ticks.Add(1) })

	time.Sleep(100 * time.Millisecond)
	s.CancelAll("room-1")
	after := ticks.Load()
	assert.Greater(t, after, int32(2), "ticker should have fired repeatedly")

	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, ticks.Load(), after+1, "ticker must stop after CancelAll")
}

func TestSchedulerPendingCount(t *testing.T) {
	s := flow.NewScheduler()
	s.After("room-1", time.Hour, func() {})
	s.After("room-1", time.Hour, func() {})
	s.Every("room-1", time.Hour, func() {})

	assert.Equal(t, 3, s.PendingCount("room-1"))
	assert.Equal(t, 0, s.PendingCount("room-2"))

	s.CancelAll("room-1")
	assert.Equal(t, 0, s.PendingCount("room-1"))
}

func TestSchedulerShutdown(t *testing.T) {
	s := flow.NewScheduler()
	var fired atomic.Bool

	s.After("room-1", 20*time.Millisecond, func() { fired.Store(true) })
	s.After("room-2", 20*time.Millisecond, func() { fired.Store(true) })
	s.Every("room-3", 10*time.Millisecond, func() { fired.Store(true) })

	s.Shutdown()
	time.Sleep(100 * time.Millisecond)

	assert.False(t, fired.Load())
	for _, roomID := range []string{"room-1", "room-2", "room-3"} {
		assert.Equal(t, 0, s.PendingCount(roomID))
	}
}
