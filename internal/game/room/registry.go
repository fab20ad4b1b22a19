package room

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/sketchparty/internal/game/events"
	"github.com/cory-johannsen/sketchparty/internal/game/fault"
	"github.com/cory-johannsen/sketchparty/internal/game/rng"
)

// maxNameLength bounds display names.
const maxNameLength = 24

// Options configures a Registry.
type Options struct {
	// MaxPlayers caps membership per room.
	MaxPlayers int
	// MaxRounds is the number of rounds in a full game.
	MaxRounds int
	// IdleAfter is how long a room may sit without activity before the sweep
	// evicts it.
	IdleAfter time.Duration
	// SweepInterval is how often the idle sweep runs.
	SweepInterval time.Duration
}

// Registry owns every live room. It is the only component that creates and
// deletes rooms; other components hold *Room references obtained here.
// All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]*Room  // room ID → room
	byCode   map[string]*Room  // join code → room
	byPlayer map[string]string // player ID → room ID

	opts   Options
	src    rng.Source
	logger *zap.Logger
	pub    events.Publisher

	deleteMu  sync.Mutex
	onDeleted []func(roomID string)

	stop chan struct{}
	done chan struct{}
}

// NewRegistry creates an empty room Registry.
//
// Precondition: opts.MaxPlayers >= 2; opts.MaxRounds >= 1; src, logger, and
// pub must be non-nil.
func NewRegistry(opts Options, src rng.Source, pub events.Publisher, logger *zap.Logger) *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		byCode:   make(map[string]*Room),
		byPlayer: make(map[string]string),
		opts:     opts,
		src:      src,
		logger:   logger,
		pub:      pub,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// OnRoomDeleted registers a callback invoked (outside all locks) whenever a
// room is deleted, so dependent components release per-room resources.
func (g *Registry) OnRoomDeleted(fn func(roomID string)) {
	g.deleteMu.Lock()
	defer g.deleteMu.Unlock()
	g.onDeleted = append(g.onDeleted, fn)
}

// CreateRoom creates a room with the creator as its first, connected player.
// The join code is drawn from the code alphabet, retrying on collision until
// unused among live rooms.
//
// Postcondition: Returns the new room and creator, or a validation error for
// a bad name. The creator is connected and the room is in StateWaiting.
func (g *Registry) CreateRoom(creatorName string) (*Room, *Player, error) {
	name, err := validateName(creatorName)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	creator := &Player{
		ID:        uuid.NewString(),
		Name:      name,
		Connected: true,
		JoinedAt:  now,
	}

	g.mu.Lock()
	code := generateCode(g.src)
	for _, taken := g.byCode[code]; taken; _, taken = g.byCode[code] {
		code = generateCode(g.src)
	}
	r := newRoom(uuid.NewString(), code, g.opts.MaxPlayers, g.opts.MaxRounds, now)
	r.Players = append(r.Players, creator)
	g.rooms[r.ID] = r
	g.byCode[code] = r
	g.byPlayer[creator.ID] = r.ID
	g.mu.Unlock()

	g.logger.Info("room created",
		zap.String("room_id", r.ID),
		zap.String("code", code),
		zap.String("creator", name),
	)

	r.Lock()
	snapshot := r.Snapshot()
	r.Unlock()
	g.pub.PublishTo(r.ID, creator.ID, events.RoomCreated{Room: snapshot})
	return r, creator, nil
}

// JoinRoom adds a player to the room with the given code.
//
// Postcondition: Returns the room and new player, or an error: NotFound for
// an unknown code, Precondition for a full room or taken name, Validation
// for malformed input. No state is mutated on error.
func (g *Registry) JoinRoom(code, playerName string) (*Room, *Player, error) {
	name, err := validateName(playerName)
	if err != nil {
		return nil, nil, err
	}
	canonical, err := NormalizeCode(code)
	if err != nil {
		return nil, nil, err
	}

	g.mu.RLock()
	r, ok := g.byCode[canonical]
	g.mu.RUnlock()
	if !ok {
		return nil, nil, fault.NotFound("no room with code %s", canonical)
	}

	now := time.Now()
	player := &Player{
		ID:        uuid.NewString(),
		Name:      name,
		Connected: true,
		JoinedAt:  now,
	}

	r.Lock()
	if len(r.Players) >= r.MaxPlayers {
		r.Unlock()
		return nil, nil, fault.Precondition("room is full (%d players max)", r.MaxPlayers)
	}
	if r.HasName(name) {
		r.Unlock()
		return nil, nil, fault.Precondition("name %q is already taken", name)
	}
	r.Players = append(r.Players, player)
	r.Touch(now)
	snapshot := r.Snapshot()
	r.Unlock()

	g.mu.Lock()
	g.byPlayer[player.ID] = r.ID
	g.mu.Unlock()

	g.logger.Info("player joined",
		zap.String("room_id", r.ID),
		zap.String("player_id", player.ID),
		zap.String("name", name),
	)

	g.pub.Publish(r.ID, events.PlayerJoined{Player: player.Info()})
	g.pub.Publish(r.ID, events.RoomUpdated{Room: snapshot})
	return r, player, nil
}

// LeaveRoom removes the player from their room. If the room becomes empty it
// is deleted and the deletion callbacks fire. If the removed player was the
// drawer, the drawer and word fields are cleared; ending the round is the
// game flow's responsibility.
//
// Postcondition: Returns the room the player left, or nil if the room was
// deleted, or a NotFound error for an unknown player.
func (g *Registry) LeaveRoom(playerID string) (*Room, error) {
	r, ok := g.RoomByPlayer(playerID)
	if !ok {
		return nil, fault.NotFound("player %s is not in any room", playerID)
	}

	r.Lock()
	var removed *Player
	for i, p := range r.Players {
		if p.ID == playerID {
			removed = p
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			break
		}
	}
	if removed == nil {
		r.Unlock()
		return nil, fault.NotFound("player %s is not in room %s", playerID, r.ID)
	}
	if r.DrawerID == playerID {
		r.DrawerID = ""
		r.CurrentWord = ""
	}
	r.Touch(time.Now())
	empty := len(r.Players) == 0
	snapshot := r.Snapshot()
	r.Unlock()

	g.mu.Lock()
	delete(g.byPlayer, playerID)
	g.mu.Unlock()

	g.logger.Info("player left",
		zap.String("room_id", r.ID),
		zap.String("player_id", playerID),
		zap.Bool("room_empty", empty),
	)

	if empty {
		g.DeleteRoom(r.ID)
		return nil, nil
	}

	g.pub.Publish(r.ID, events.PlayerLeft{PlayerID: playerID, Name: removed.Name})
	g.pub.Publish(r.ID, events.RoomUpdated{Room: snapshot})
	return r, nil
}

// SetConnected updates a player's connection state and refreshes activity.
//
// Postcondition: Returns the player's room, or a NotFound error. The room
// snapshot is broadcast so members see the presence change.
func (g *Registry) SetConnected(playerID string, connected bool) (*Room, *Player, error) {
	r, ok := g.RoomByPlayer(playerID)
	if !ok {
		return nil, nil, fault.NotFound("player %s is not in any room", playerID)
	}

	r.Lock()
	p, found := r.PlayerByID(playerID)
	if !found {
		r.Unlock()
		return nil, nil, fault.NotFound("player %s is not in room %s", playerID, r.ID)
	}
	p.Connected = connected
	r.Touch(time.Now())
	snapshot := r.Snapshot()
	r.Unlock()

	g.pub.Publish(r.ID, events.RoomUpdated{Room: snapshot})
	return r, p, nil
}

// RoomByID returns the live room with the given ID.
func (g *Registry) RoomByID(roomID string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[roomID]
	return r, ok
}

// RoomByCode returns the live room with the given canonical code.
func (g *Registry) RoomByCode(code string) (*Room, bool) {
	canonical, err := NormalizeCode(code)
	if err != nil {
		return nil, false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.byCode[canonical]
	return r, ok
}

// RoomByPlayer returns the room containing the given player.
func (g *Registry) RoomByPlayer(playerID string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	roomID, ok := g.byPlayer[playerID]
	if !ok {
		return nil, false
	}
	r, ok := g.rooms[roomID]
	return r, ok
}

// Count returns the number of live rooms.
func (g *Registry) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// DeleteRoom removes a room from the registry and fires the deletion
// callbacks. Safe to call for an already-deleted room.
//
// Postcondition: The room and its code are unreachable through the registry;
// every member's player→room mapping is removed; callbacks ran outside locks.
func (g *Registry) DeleteRoom(roomID string) {
	g.mu.Lock()
	r, ok := g.rooms[roomID]
	if !ok {
		g.mu.Unlock()
		return
	}
	delete(g.rooms, roomID)
	delete(g.byCode, r.Code)
	for pid, rid := range g.byPlayer {
		if rid == roomID {
			delete(g.byPlayer, pid)
		}
	}
	g.mu.Unlock()

	g.logger.Info("room deleted", zap.String("room_id", roomID))

	g.deleteMu.Lock()
	callbacks := make([]func(string), len(g.onDeleted))
	copy(callbacks, g.onDeleted)
	g.deleteMu.Unlock()
	for _, fn := range callbacks {
		fn(roomID)
	}
}

// Sweep deletes rooms with zero connected players or whose last activity is
// older than the idle threshold. Returns the IDs of deleted rooms.
func (g *Registry) Sweep(now time.Time) []string {
	g.mu.RLock()
	candidates := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		candidates = append(candidates, r)
	}
	g.mu.RUnlock()

	var deleted []string
	for _, r := range candidates {
		r.Lock()
		idle := r.ConnectedCount() == 0 || now.Sub(r.LastActivityAt) > g.opts.IdleAfter
		r.Unlock()
		if idle {
			g.logger.Info("evicting idle room", zap.String("room_id", r.ID))
			g.DeleteRoom(r.ID)
			deleted = append(deleted, r.ID)
		}
	}
	return deleted
}

// Start runs the periodic idle sweep until ctx is cancelled or Stop is
// called. It blocks, matching the lifecycle Service contract.
func (g *Registry) Start(ctx context.Context) error {
	interval := g.opts.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(g.done)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-g.stop:
			return nil
		case now := <-ticker.C:
			g.Sweep(now)
		}
	}
}

// Stop halts the idle sweep.
func (g *Registry) Stop() {
	select {
	case <-g.stop:
	default:
		close(g.stop)
	}
	<-g.done
}

// validateName trims and validates a display name.
func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fault.Validation("player name must not be empty")
	}
	if len(name) > maxNameLength {
		return "", fault.Validation("player name must be at most %d characters", maxNameLength)
	}
	return name, nil
}
