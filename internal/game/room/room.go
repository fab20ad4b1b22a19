// Package room owns the room and player data model and the registry that
// manages room lifecycle: creation with unique join codes, membership,
// capacity enforcement, and idle eviction. Rooms are referenced, never
// copied, by other components; all mutation of a room's fields happens under
// that room's lock.
package room

import (
	"strings"
	"time"

	"github.com/cory-johannsen/sketchparty/internal/game/events"
)

// State is the lifecycle state of a room. Only the game flow changes it.
type State int

const (
	// StateWaiting means the room is idle, accepting players, ready to start.
	StateWaiting State = iota
	// StateStarting means a game was requested and initialization is scheduled.
	StateStarting
	// StatePlaying means a round is in progress.
	StatePlaying
	// StateRoundEnd means the inter-round summary is being shown.
	StateRoundEnd
	// StateGameEnd means the final leaderboard is being shown.
	StateGameEnd
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StateWaiting:
		return "WAITING"
	case StateStarting:
		return "STARTING"
	case StatePlaying:
		return "PLAYING"
	case StateRoundEnd:
		return "ROUND_END"
	case StateGameEnd:
		return "GAME_END"
	default:
		return "UNKNOWN"
	}
}

// Player is a member of a room. Owned by its Room; mutate only under the
// room's lock.
type Player struct {
	// ID is the opaque unique player identifier.
	ID string
	// Name is the display name, unique case-insensitively within the room.
	Name string
	// Score is the accumulated score, never negative.
	Score int
	// IsDrawing marks the current drawer.
	IsDrawing bool
	// Connected tracks transport connection state.
	Connected bool
	// JoinedAt is when the player entered the room.
	JoinedAt time.Time
}

// Info returns a transport-safe snapshot of the player.
func (p *Player) Info() events.PlayerInfo {
	return events.PlayerInfo{
		ID:        p.ID,
		Name:      p.Name,
		Score:     p.Score,
		IsDrawing: p.IsDrawing,
		Connected: p.Connected,
	}
}

// Room is a single game session identified by a short join code.
//
// Invariant: len(Players) <= MaxPlayers.
// Invariant: Code is unique among live rooms and drawn from the code alphabet.
type Room struct {
	// ID is the opaque unique room identifier.
	ID string
	// Code is the 6-character join code, stored uppercase.
	Code string
	// Players is the ordered member list; join order is rotation order.
	Players []*Player
	// DrawerID is the current drawer's player ID, empty outside a round.
	DrawerID string
	// CurrentWord is the word being drawn, empty outside a round.
	CurrentWord string
	// Round is the current round number, 0 while waiting.
	Round int
	// MaxRounds is the number of rounds in a full game.
	MaxRounds int
	// State is the lifecycle state, changed only by the game flow.
	State State
	// MaxPlayers caps membership.
	MaxPlayers int
	// CreatedAt is when the room was created.
	CreatedAt time.Time
	// LastActivityAt is refreshed on join, leave, and connection changes.
	LastActivityAt time.Time

	locker chan struct{}
}

func newRoom(id, code string, maxPlayers, maxRounds int, now time.Time) *Room {
	r := &Room{
		ID:             id,
		Code:           code,
		Players:        make([]*Player, 0, maxPlayers),
		MaxRounds:      maxRounds,
		State:          StateWaiting,
		MaxPlayers:     maxPlayers,
		CreatedAt:      now,
		LastActivityAt: now,
		locker:         make(chan struct{}, 1),
	}
	return r
}

// Lock serializes mutation of this room: at most one in-flight mutator per
// room at any instant. Timer callbacks and request handlers both take it.
func (r *Room) Lock() { r.locker <- struct{}{} }

// Unlock releases the room for the next mutator.
func (r *Room) Unlock() { <-r.locker }

// Touch refreshes the activity timestamp. Caller must hold the room lock.
func (r *Room) Touch(now time.Time) { r.LastActivityAt = now }

// PlayerByID returns the member with the given ID. Caller must hold the room lock.
//
// Postcondition: Returns (player, true) if found, or (nil, false) otherwise.
func (r *Room) PlayerByID(id string) (*Player, bool) {
	for _, p := range r.Players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// HasName reports whether a member already uses name, case-insensitively.
// Caller must hold the room lock.
func (r *Room) HasName(name string) bool {
	for _, p := range r.Players {
		if strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

// ConnectedPlayers returns the connected members in rotation order. Caller
// must hold the room lock.
func (r *Room) ConnectedPlayers() []*Player {
	var out []*Player
	for _, p := range r.Players {
		if p.Connected {
			out = append(out, p)
		}
	}
	return out
}

// ConnectedCount returns the number of connected members. Caller must hold
// the room lock.
func (r *Room) ConnectedCount() int {
	n := 0
	for _, p := range r.Players {
		if p.Connected {
			n++
		}
	}
	return n
}

// Snapshot returns a transport-safe copy of the room. Caller must hold the
// room lock.
func (r *Room) Snapshot() events.RoomInfo {
	info := events.RoomInfo{
		ID:         r.ID,
		Code:       r.Code,
		State:      r.State.String(),
		Round:      r.Round,
		MaxRounds:  r.MaxRounds,
		MaxPlayers: r.MaxPlayers,
		DrawerID:   r.DrawerID,
		Players:    make([]events.PlayerInfo, 0, len(r.Players)),
	}
	for _, p := range r.Players {
		info.Players = append(info.Players, p.Info())
	}
	return info
}
