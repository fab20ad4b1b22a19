// Package flow drives the game state machine: start delays, round timers,
// inter-round pauses, countdown ticks, and the transitions between them.
package flow

import (
	"sync"
	"time"
)

// Scheduler owns every pending timer and ticker, grouped by room, and
// supports cancelling a room's entire schedule atomically. No other
// component reaches into timer state; once a room's work is cancelled, no
// callback for that room fires again.
type Scheduler struct {
	mu      sync.Mutex
	seq     int
	timers  map[string]map[int]*time.Timer
	tickers map[string]map[int]chan struct{}
}

// NewScheduler creates an empty Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		timers:  make(map[string]map[int]*time.Timer),
		tickers: make(map[string]map[int]chan struct{}),
	}
}

// After schedules fn to run once after d, attributed to roomID. The callback
// runs in its own goroutine and is suppressed if the room's schedule is
// cancelled first, even if the underlying timer already expired.
//
// Precondition: roomID must be non-empty; fn must be non-nil.
func (s *Scheduler) After(roomID string, d time.Duration, fn func()) {
	s.mu.Lock()
	s.seq++
	id := s.seq

	timer := time.AfterFunc(d, func() {
		s.mu.Lock()
		group, ok := s.timers[roomID]
		if ok {
			_, ok = group[id]
		}
		if ok {
			delete(group, id)
			if len(group) == 0 {
				delete(s.timers, roomID)
			}
		}
		s.mu.Unlock()
		if ok {
			fn()
		}
	})

	if s.timers[roomID] == nil {
		s.timers[roomID] = make(map[int]*time.Timer)
	}
	s.timers[roomID][id] = timer
	s.mu.Unlock()
}

// Every schedules fn to run repeatedly at interval d, attributed to roomID,
// until the room's schedule is cancelled.
//
// Precondition: roomID must be non-empty; d > 0; fn must be non-nil.
func (s *Scheduler) Every(roomID string, d time.Duration, fn func()) {
	s.mu.Lock()
	s.seq++
	id := s.seq
	stop := make(chan struct{})
	if s.tickers[roomID] == nil {
		s.tickers[roomID] = make(map[int]chan struct{})
	}
	s.tickers[roomID][id] = stop
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// CancelAll cancels every pending timer and ticker for roomID.
//
// Postcondition: No scheduled callback attributed to roomID fires after
// CancelAll returns, except one that had already started running.
func (s *Scheduler) CancelAll(roomID string) {
	s.mu.Lock()
	timers := s.timers[roomID]
	delete(s.timers, roomID)
	tickers := s.tickers[roomID]
	delete(s.tickers, roomID)
	s.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
	for _, stop := range tickers {
		close(stop)
	}
}

// Shutdown cancels every room's schedule.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	allTimers := s.timers
	allTickers := s.tickers
	s.timers = make(map[string]map[int]*time.Timer)
	s.tickers = make(map[string]map[int]chan struct{})
	s.mu.Unlock()

	for _, group := range allTimers {
		for _, t := range group {
			t.Stop()
		}
	}
	for _, group := range allTickers {
		for _, stop := range group {
			close(stop)
		}
	}
}

// PendingCount returns how many timers and tickers are scheduled for roomID.
func (s *Scheduler) PendingCount(roomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers[roomID]) + len(s.tickers[roomID])
}
