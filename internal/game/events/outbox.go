package events

import (
	"fmt"
	"sync"
)

// Envelope pairs an event with the room it belongs to, ready for one
// player's connection.
type Envelope struct {
	RoomID string
	Event  Event
}

// Outbox routes events for a single player to a buffered channel, bridging
// the game core to the connection's write pump. Events are dropped rather
// than blocking the game loop when the buffer is full.
type Outbox struct {
	playerID string
	events   chan Envelope
	mu       sync.Mutex
	closed   bool
	dropped  int
}

// NewOutbox creates an Outbox for the given player.
//
// Precondition: playerID must be non-empty.
// Postcondition: Returns an Outbox with an open events channel.
func NewOutbox(playerID string, bufferSize int) *Outbox {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Outbox{
		playerID: playerID,
		events:   make(chan Envelope, bufferSize),
	}
}

// PlayerID returns the owning player's identifier.
func (o *Outbox) PlayerID() string { return o.playerID }

// Push enqueues an envelope for delivery.
//
// Postcondition: The envelope is enqueued, or an error if the outbox is
// closed or full. A full outbox increments the drop counter.
func (o *Outbox) Push(env Envelope) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("outbox for player %s is closed", o.playerID)
	}
	select {
	case o.events <- env:
		return nil
	default:
		o.dropped++
		return fmt.Errorf("outbox for player %s is full", o.playerID)
	}
}

// Events returns the read-only delivery channel. The connection's write pump
// reads from this channel.
func (o *Outbox) Events() <-chan Envelope {
	return o.events
}

// Dropped returns how many envelopes were discarded because the buffer was full.
func (o *Outbox) Dropped() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}

// Close marks the outbox closed and closes the events channel. Safe to call
// multiple times.
//
// Postcondition: Further Push calls return an error.
func (o *Outbox) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.events)
	}
	return nil
}

// IsClosed reports whether the outbox has been closed.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
