// Package events defines the closed set of outbound notifications the game
// coordinator emits, and the Publisher interface one broadcaster implements
// to relay them to room members. The package is a leaf: every game component
// depends on it, it depends on nothing.
package events

// Event is the closed union of outbound notifications. Only types in this
// package implement it.
type Event interface {
	// Type returns the wire name of the event, e.g. "round_started".
	Type() string
	isEvent()
}

// Publisher relays events to connected room members. Implementations must
// not block the caller; slow or full receivers drop events.
type Publisher interface {
	// Publish sends ev to every connected member of the room.
	Publish(roomID string, ev Event)
	// PublishTo sends ev to a single member of the room.
	PublishTo(roomID, playerID string, ev Event)
	// PublishExcept sends ev to every connected member except one. Used to
	// withhold the word from non-drawers' round_started copies.
	PublishExcept(roomID, exceptPlayerID string, ev Event)
}

// PlayerInfo is a transport-safe snapshot of a player.
type PlayerInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	IsDrawing bool   `json:"isDrawing"`
	Connected bool   `json:"connected"`
}

// RoomInfo is a transport-safe snapshot of a room. CurrentWord is never
// included; the word travels only in the drawer's RoundStarted event.
type RoomInfo struct {
	ID          string       `json:"id"`
	Code        string       `json:"code"`
	State       string       `json:"state"`
	Round       int          `json:"round"`
	MaxRounds   int          `json:"maxRounds"`
	MaxPlayers  int          `json:"maxPlayers"`
	DrawerID    string       `json:"drawerId,omitempty"`
	Players     []PlayerInfo `json:"players"`
}

// PlayerScore is one leaderboard row.
type PlayerScore struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}

// RoundSummary describes a finished round.
type RoundSummary struct {
	Round           int           `json:"round"`
	DrawerID        string        `json:"drawerId"`
	DrawerName      string        `json:"drawerName"`
	Word            string        `json:"word"`
	CorrectGuessers []string      `json:"correctGuessers"`
	Scores          []PlayerScore `json:"scores"`
}

// StrokeData is a validated drawing event ready for broadcast.
type StrokeData struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	PrevX     float64 `json:"prevX"`
	PrevY     float64 `json:"prevY"`
	Color     string  `json:"color"`
	BrushSize int     `json:"brushSize"`
	Drawing   bool    `json:"drawing"`
	Timestamp int64   `json:"timestamp"`
}

// RoomCreated announces a freshly created room to its creator.
type RoomCreated struct {
	Room RoomInfo `json:"room"`
}

// RoomUpdated carries a full room snapshot after membership or state changes.
type RoomUpdated struct {
	Room RoomInfo `json:"room"`
}

// PlayerJoined announces a new member.
type PlayerJoined struct {
	Player PlayerInfo `json:"player"`
}

// PlayerLeft announces a departed member.
type PlayerLeft struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

// RoundStarted announces a new round. Word is populated only on the copy
// delivered to the drawer; everyone else sees the empty string.
type RoundStarted struct {
	Round      int    `json:"round"`
	DrawerID   string `json:"drawerId"`
	DrawerName string `json:"drawerName"`
	WordLength int    `json:"wordLength"`
	Word       string `json:"word,omitempty"`
}

// RoundEnded carries the finished round's summary.
type RoundEnded struct {
	Summary RoundSummary `json:"summary"`
}

// GameEnded carries the final leaderboard, sorted by descending score.
type GameEnded struct {
	Scores []PlayerScore `json:"scores"`
}

// TimerUpdate is the once-per-second countdown broadcast while a round runs.
type TimerUpdate struct {
	SecondsRemaining int `json:"secondsRemaining"`
}

// StrokeUpdate relays an accepted drawing event.
type StrokeUpdate struct {
	DrawerID string     `json:"drawerId"`
	Stroke   StrokeData `json:"stroke"`
}

// CanvasCleared announces that the drawer wiped the canvas.
type CanvasCleared struct {
	ClearedBy string `json:"clearedBy"`
}

// CorrectGuess announces that a player guessed the word. The word itself is
// not included while the round is still running.
type CorrectGuess struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

// ScoreUpdated announces a player's new total score.
type ScoreUpdated struct {
	PlayerID string `json:"playerId"`
	Score    int    `json:"score"`
}

func (RoomCreated) Type() string   { return "room_created" }
func (RoomUpdated) Type() string   { return "room_updated" }
func (PlayerJoined) Type() string  { return "player_joined" }
func (PlayerLeft) Type() string    { return "player_left" }
func (RoundStarted) Type() string  { return "round_started" }
func (RoundEnded) Type() string    { return "round_ended" }
func (GameEnded) Type() string     { return "game_ended" }
func (TimerUpdate) Type() string   { return "timer_update" }
func (StrokeUpdate) Type() string  { return "stroke_update" }
func (CanvasCleared) Type() string { return "canvas_cleared" }
func (CorrectGuess) Type() string  { return "correct_guess" }
func (ScoreUpdated) Type() string  { return "score_updated" }

func (RoomCreated) isEvent()   {}
func (RoomUpdated) isEvent()   {}
func (PlayerJoined) isEvent()  {}
func (PlayerLeft) isEvent()    {}
func (RoundStarted) isEvent()  {}
func (RoundEnded) isEvent()    {}
func (GameEnded) isEvent()     {}
func (TimerUpdate) isEvent()   {}
func (StrokeUpdate) isEvent()  {}
func (CanvasCleared) isEvent() {}
func (CorrectGuess) isEvent()  {}
func (ScoreUpdated) isEvent()  {}

// NopPublisher discards every event. Useful in tests and as a default.
type NopPublisher struct{}

// Publish discards ev.
func (NopPublisher) Publish(roomID string, ev Event) {}

// PublishTo discards ev.
func (NopPublisher) PublishTo(roomID, playerID string, ev Event) {}

// PublishExcept discards ev.
func (NopPublisher) PublishExcept(roomID, exceptPlayerID string, ev Event) {}
