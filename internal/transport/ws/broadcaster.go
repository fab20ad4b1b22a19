// Package ws is the WebSocket transport for the game coordinator. It
// attributes inbound packets to players, relays outbound events to room
// members, and keeps the game core free of any transport dependency.
package ws

import (
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/sketchparty/internal/game/events"
)

// outboxBuffer is the per-connection event buffer. Stroke bursts are the
// sizing driver: one second of max-rate drawing fits.
const outboxBuffer = 128

// Broadcaster is the single consumer of the coordinator's typed events. It
// implements events.Publisher by fanning envelopes out to the per-connection
// outboxes of a room's members. All methods are safe for concurrent use and
// never block: a full outbox drops the event for that member only.
type Broadcaster struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]*events.Outbox // room ID → player ID → outbox
	logger *zap.Logger
}

// NewBroadcaster creates an empty Broadcaster.
//
// Precondition: logger must be non-nil.
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		rooms:  make(map[string]map[string]*events.Outbox),
		logger: logger,
	}
}

// Attach creates and registers an outbox for the player's connection in the
// given room, replacing (and closing) any previous one.
func (b *Broadcaster) Attach(roomID, playerID string) *events.Outbox {
	outbox := events.NewOutbox(playerID, outboxBuffer)

	b.mu.Lock()
	members := b.rooms[roomID]
	if members == nil {
		members = make(map[string]*events.Outbox)
		b.rooms[roomID] = members
	}
	previous := members[playerID]
	members[playerID] = outbox
	b.mu.Unlock()

	if previous != nil {
		_ = previous.Close()
	}
	return outbox
}

// Detach removes and closes the player's outbox. Safe to call for a player
// that was never attached.
func (b *Broadcaster) Detach(roomID, playerID string) {
	b.mu.Lock()
	members := b.rooms[roomID]
	outbox := members[playerID]
	delete(members, playerID)
	if len(members) == 0 {
		delete(b.rooms, roomID)
	}
	b.mu.Unlock()

	if outbox != nil {
		_ = outbox.Close()
	}
}

// DropRoom closes every outbox of a deleted room. Wired to the registry's
// deletion notification.
func (b *Broadcaster) DropRoom(roomID string) {
	b.mu.Lock()
	members := b.rooms[roomID]
	delete(b.rooms, roomID)
	b.mu.Unlock()

	for _, outbox := range members {
		_ = outbox.Close()
	}
}

// Publish sends ev to every member of the room.
func (b *Broadcaster) Publish(roomID string, ev events.Event) {
	b.fanOut(roomID, "", ev)
}

// PublishTo sends ev to a single member of the room.
func (b *Broadcaster) PublishTo(roomID, playerID string, ev events.Event) {
	b.mu.RLock()
	outbox := b.rooms[roomID][playerID]
	b.mu.RUnlock()
	if outbox == nil {
		return
	}
	b.push(roomID, outbox, ev)
}

// PublishExcept sends ev to every member except one.
func (b *Broadcaster) PublishExcept(roomID, exceptPlayerID string, ev events.Event) {
	b.fanOut(roomID, exceptPlayerID, ev)
}

func (b *Broadcaster) fanOut(roomID, exceptPlayerID string, ev events.Event) {
	b.mu.RLock()
	members := b.rooms[roomID]
	outboxes := make([]*events.Outbox, 0, len(members))
	for playerID, outbox := range members {
		if playerID == exceptPlayerID {
			continue
		}
		outboxes = append(outboxes, outbox)
	}
	b.mu.RUnlock()

	for _, outbox := range outboxes {
		b.push(roomID, outbox, ev)
	}
}

func (b *Broadcaster) push(roomID string, outbox *events.Outbox, ev events.Event) {
	if err := outbox.Push(events.Envelope{RoomID: roomID, Event: ev}); err != nil {
		b.logger.Debug("dropping event for slow connection",
			zap.String("room_id", roomID),
			zap.String("player_id", outbox.PlayerID()),
			zap.String("event", ev.Type()),
		)
	}
}
