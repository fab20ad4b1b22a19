// Package stroke gates real-time drawing events: permission checks against
// room state, payload validation, and per-connection rate limiting. It runs
// alongside the game flow but never touches its timers.
package stroke

import (
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/sketchparty/internal/game/events"
	"github.com/cory-johannsen/sketchparty/internal/game/fault"
	"github.com/cory-johannsen/sketchparty/internal/game/room"
)

// Canvas bounds and payload limits.
const (
	CanvasWidth  = 1920
	CanvasHeight = 1080
	MinBrushSize = 1
	MaxBrushSize = 50
	// MaxClockSkew is how far a client timestamp may drift from the server
	// clock before the server substitutes its own.
	MaxClockSkew = 5 * time.Second
)

// Throttle limits per connection.
const (
	// MaxEventsPerWindow caps accepted strokes per sliding window.
	MaxEventsPerWindow = 60
	// Window is the throttle window length.
	Window = time.Second
	// MinSpacing is the minimum gap between consecutive accepted strokes.
	MinSpacing = Window / MaxEventsPerWindow
)

var colorPattern = regexp.MustCompile(`^#?[0-9a-fA-F]{6}$`)

// Payload is a raw, untrusted drawing event from a client.
type Payload struct {
	X         float64
	Y         float64
	PrevX     float64
	PrevY     float64
	Color     string
	BrushSize int
	Drawing   bool
	// Timestamp is client time in milliseconds since the Unix epoch.
	Timestamp int64
}

// Status is the outcome of a stroke or clear attempt.
type Status int

const (
	// StatusBroadcast means the event was accepted and relayed.
	StatusBroadcast Status = iota
	// StatusDropped means the event was silently discarded (invalid payload
	// or throttled). Deliberately not an error: a burst must not become an
	// error storm.
	StatusDropped
	// StatusRejected means the permission check failed; the returned error
	// states the reason.
	StatusRejected
)

// throttleWindow is the per-connection rate-limit state. Created lazily on
// the first stroke; destroyed on disconnect or canvas clear.
type throttleWindow struct {
	windowStart time.Time
	count       int
	lastEvent   time.Time
}

// Gate validates and throttles drawing events before broadcast.
// All methods are safe for concurrent use.
type Gate struct {
	mu      sync.Mutex
	windows map[string]*throttleWindow // player ID → window

	registry *room.Registry
	pub      events.Publisher
	logger   *zap.Logger
	clock    func() time.Time
}

// NewGate creates a Gate over the given registry and publisher.
//
// Precondition: registry, pub, and logger must be non-nil.
func NewGate(registry *room.Registry, pub events.Publisher, logger *zap.Logger) *Gate {
	return &Gate{
		windows:  make(map[string]*throttleWindow),
		registry: registry,
		pub:      pub,
		logger:   logger,
		clock:    time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (g *Gate) SetClock(clock func() time.Time) { g.clock = clock }

// Stroke processes one drawing event. The room must be playing and the
// requester must be its connected drawer, else the event is rejected with a
// reason. Invalid payloads and throttled events are dropped without error.
//
// Postcondition: StatusBroadcast means the stroke was relayed to every other
// room member; StatusDropped and StatusRejected mean nothing was broadcast.
func (g *Gate) Stroke(playerID, roomID string, p Payload) (Status, error) {
	r, err := g.permit(playerID, roomID)
	if err != nil {
		return StatusRejected, err
	}

	data, valid := g.validate(p)
	if !valid {
		return StatusDropped, nil
	}
	if !g.admit(playerID) {
		return StatusDropped, nil
	}

	g.pub.PublishExcept(r.ID, playerID, events.StrokeUpdate{DrawerID: playerID, Stroke: data})
	return StatusBroadcast, nil
}

// ClearCanvas wipes the room's canvas. Same permission gate as a stroke; on
// success the throttle windows of every room member are flushed so the
// drawer starts the fresh canvas unthrottled.
func (g *Gate) ClearCanvas(playerID, roomID string) (Status, error) {
	r, err := g.permit(playerID, roomID)
	if err != nil {
		return StatusRejected, err
	}

	r.Lock()
	memberIDs := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		memberIDs = append(memberIDs, p.ID)
	}
	r.Unlock()

	g.mu.Lock()
	for _, id := range memberIDs {
		delete(g.windows, id)
	}
	g.mu.Unlock()

	g.pub.Publish(r.ID, events.CanvasCleared{ClearedBy: playerID})
	return StatusBroadcast, nil
}

// Disconnect discards the player's throttle window.
func (g *Gate) Disconnect(playerID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.windows, playerID)
}

// permit checks that the room exists, is playing, and that playerID is its
// connected drawer.
func (g *Gate) permit(playerID, roomID string) (*room.Room, error) {
	r, ok := g.registry.RoomByID(roomID)
	if !ok {
		return nil, fault.NotFound("no room with id %s", roomID)
	}

	r.Lock()
	defer r.Unlock()

	if r.State != room.StatePlaying {
		return nil, fault.Precondition("room is not in a drawing round")
	}
	if r.DrawerID != playerID {
		return nil, fault.Precondition("only the current drawer may draw")
	}
	p, found := r.PlayerByID(playerID)
	if !found || !p.Connected {
		return nil, fault.Precondition("drawer is not connected")
	}
	return r, nil
}

// validate range-checks the payload. A timestamp outside the allowed skew is
// replaced with the server clock rather than dropped.
func (g *Gate) validate(p Payload) (events.StrokeData, bool) {
	if p.X < 0 || p.X > CanvasWidth || p.Y < 0 || p.Y > CanvasHeight {
		return events.StrokeData{}, false
	}
	if p.PrevX < 0 || p.PrevX > CanvasWidth || p.PrevY < 0 || p.PrevY > CanvasHeight {
		return events.StrokeData{}, false
	}
	if !colorPattern.MatchString(p.Color) {
		return events.StrokeData{}, false
	}
	if p.BrushSize < MinBrushSize || p.BrushSize > MaxBrushSize {
		return events.StrokeData{}, false
	}

	now := g.clock()
	ts := p.Timestamp
	clientTime := time.UnixMilli(ts)
	if clientTime.Before(now.Add(-MaxClockSkew)) || clientTime.After(now.Add(MaxClockSkew)) {
		ts = now.UnixMilli()
	}

	return events.StrokeData{
		X:         p.X,
		Y:         p.Y,
		PrevX:     p.PrevX,
		PrevY:     p.PrevY,
		Color:     p.Color,
		BrushSize: p.BrushSize,
		Drawing:   p.Drawing,
		Timestamp: ts,
	}, true
}

// admit applies the sliding-window rate limit: at most MaxEventsPerWindow
// accepted events per Window and at least MinSpacing between events.
func (g *Gate) admit(playerID string) bool {
	now := g.clock()

	g.mu.Lock()
	defer g.mu.Unlock()

	w, ok := g.windows[playerID]
	if !ok {
		w = &throttleWindow{windowStart: now}
		g.windows[playerID] = w
	}

	if now.Sub(w.windowStart) >= Window {
		w.windowStart = now
		w.count = 0
	}
	if w.count >= MaxEventsPerWindow {
		return false
	}
	if !w.lastEvent.IsZero() && now.Sub(w.lastEvent) < MinSpacing {
		return false
	}

	w.count++
	w.lastEvent = now
	return true
}
