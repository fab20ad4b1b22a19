// Package roster tracks turn rotation, the per-room active round, and
// scoring. It owns the ephemeral ActiveRound records; the room registry owns
// the rooms themselves. Methods that take a *room.Room expect the caller to
// hold that room's lock.
package roster

import (
	"sync"
	"time"

	"github.com/cory-johannsen/sketchparty/internal/game/events"
	"github.com/cory-johannsen/sketchparty/internal/game/room"
	"github.com/cory-johannsen/sketchparty/internal/game/words"
)

// MinPlayers is the smallest connected-player count a game can run with.
const MinPlayers = 2

// ScoreRule fixes how points are split between guesser and drawer. One rule,
// applied at every call site.
type ScoreRule struct {
	// GuessBase is awarded for any correct guess.
	GuessBase int
	// SpeedBonusMax is the extra award for an instant guess, scaling linearly
	// down to zero as the round timer runs out.
	SpeedBonusMax int
	// DrawerAward is the flat amount the drawer earns per correct guess.
	DrawerAward int
}

// DefaultScoreRule is the standard scoring split.
var DefaultScoreRule = ScoreRule{GuessBase: 100, SpeedBonusMax: 50, DrawerAward: 25}

// ActiveRound is the live state of a room's current round. At most one
// exists per room while the room is playing.
type ActiveRound struct {
	RoomID    string
	DrawerID  string
	Word      string
	StartedAt time.Time
	Duration  time.Duration
	correct   map[string]bool // player IDs that guessed correctly
}

// GuessResult reports the outcome of one guess.
type GuessResult struct {
	// Correct is true when the guess matched the word.
	Correct bool
	// AlreadyGuessed is true when the player had already guessed correctly
	// this round; no points are awarded twice.
	AlreadyGuessed bool
	// Points is the amount awarded to the guesser (zero unless Correct).
	Points int
	// DrawerPoints is the amount awarded to the drawer (zero unless Correct).
	DrawerPoints int
	// GuesserScore and DrawerScore are the new running totals.
	GuesserScore int
	DrawerScore  int
	// ShouldEndRound is true once every connected non-drawer has guessed.
	ShouldEndRound bool
}

// Roster manages active rounds keyed by room ID.
// All methods are safe for concurrent use; lock ordering is room lock first,
// roster lock second.
type Roster struct {
	mu     sync.Mutex
	rounds map[string]*ActiveRound
	rule   ScoreRule
	clock  func() time.Time
}

// NewRoster creates an empty Roster with the given scoring rule.
func NewRoster(rule ScoreRule) *Roster {
	return &Roster{
		rounds: make(map[string]*ActiveRound),
		rule:   rule,
		clock:  time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (ro *Roster) SetClock(clock func() time.Time) { ro.clock = clock }

// NextDrawer returns the player who should draw next: the first connected
// player when there is no current drawer, otherwise the next connected
// player after the current drawer in join order, wrapping around.
// Disconnected players are never selected and do not disrupt rotation among
// the connected subset. Returns nil when fewer than MinPlayers are connected.
//
// Precondition: caller holds r's lock.
func (ro *Roster) NextDrawer(r *room.Room) *room.Player {
	if r.ConnectedCount() < MinPlayers {
		return nil
	}

	start := 0
	if r.DrawerID != "" {
		for i, p := range r.Players {
			if p.ID == r.DrawerID {
				start = i + 1
				break
			}
		}
	}
	for offset := 0; offset < len(r.Players); offset++ {
		p := r.Players[(start+offset)%len(r.Players)]
		if p.Connected && p.ID != r.DrawerID {
			return p
		}
	}
	return nil
}

// StartRound marks drawer as drawing, records the word on the room, and
// opens a fresh ActiveRound, clearing any prior round's guess set.
//
// Precondition: caller holds r's lock; drawer must be a connected member of r.
func (ro *Roster) StartRound(r *room.Room, drawer *room.Player, word string, duration time.Duration) *ActiveRound {
	for _, p := range r.Players {
		p.IsDrawing = p.ID == drawer.ID
	}
	r.DrawerID = drawer.ID
	r.CurrentWord = word

	round := &ActiveRound{
		RoomID:    r.ID,
		DrawerID:  drawer.ID,
		Word:      word,
		StartedAt: ro.clock(),
		Duration:  duration,
		correct:   make(map[string]bool),
	}

	ro.mu.Lock()
	ro.rounds[r.ID] = round
	ro.mu.Unlock()
	return round
}

// ProcessGuess evaluates one guess against the room's active round. The
// drawer's own guesses and repeat guesses are rejected without mutation.
// A correct guess awards the guesser the base amount plus a speed bonus
// proportional to the time remaining, and the drawer a flat amount.
//
// Precondition: caller holds r's lock.
// Postcondition: Returns the zero GuessResult when no round is active (a
// guess racing the round timeout observes "no active round" and mutates
// nothing).
func (ro *Roster) ProcessGuess(r *room.Room, playerID, text string) GuessResult {
	ro.mu.Lock()
	round, ok := ro.rounds[r.ID]
	ro.mu.Unlock()
	if !ok {
		return GuessResult{}
	}
	if playerID == round.DrawerID {
		return GuessResult{}
	}
	if round.correct[playerID] {
		return GuessResult{AlreadyGuessed: true, ShouldEndRound: ro.allGuessed(r, round)}
	}

	guesser, found := r.PlayerByID(playerID)
	if !found || !words.Match(text, round.Word, words.MatchOptions{}) {
		return GuessResult{}
	}

	elapsed := ro.clock().Sub(round.StartedAt)
	remaining := round.Duration - elapsed
	if remaining < 0 {
		remaining = 0
	}
	bonus := 0
	if round.Duration > 0 {
		bonus = int(float64(ro.rule.SpeedBonusMax) * float64(remaining) / float64(round.Duration))
	}

	result := GuessResult{
		Correct:      true,
		Points:       ro.rule.GuessBase + bonus,
		DrawerPoints: ro.rule.DrawerAward,
	}
	guesser.Score += result.Points
	result.GuesserScore = guesser.Score

	if drawer, ok := r.PlayerByID(round.DrawerID); ok {
		drawer.Score += result.DrawerPoints
		result.DrawerScore = drawer.Score
	}

	round.correct[playerID] = true
	result.ShouldEndRound = ro.allGuessed(r, round)
	return result
}

// ShouldEndRound reports whether every connected non-drawer has guessed
// correctly in the room's active round.
//
// Precondition: caller holds r's lock.
func (ro *Roster) ShouldEndRound(r *room.Room) bool {
	ro.mu.Lock()
	round, ok := ro.rounds[r.ID]
	ro.mu.Unlock()
	if !ok {
		return false
	}
	return ro.allGuessed(r, round)
}

// EndRound snapshots the round summary, resets every player's drawing flag,
// and discards the ActiveRound. The second of two racing callers observes no
// active round and performs no mutation.
//
// Precondition: caller holds r's lock.
// Postcondition: Returns (summary, true) exactly once per round.
func (ro *Roster) EndRound(r *room.Room) (events.RoundSummary, bool) {
	ro.mu.Lock()
	round, ok := ro.rounds[r.ID]
	if ok {
		delete(ro.rounds, r.ID)
	}
	ro.mu.Unlock()
	if !ok {
		return events.RoundSummary{}, false
	}

	summary := events.RoundSummary{
		Round:    r.Round,
		DrawerID: round.DrawerID,
		Word:     round.Word,
	}
	if drawer, found := r.PlayerByID(round.DrawerID); found {
		summary.DrawerName = drawer.Name
	}
	for _, p := range r.Players {
		if round.correct[p.ID] {
			summary.CorrectGuessers = append(summary.CorrectGuessers, p.ID)
		}
		summary.Scores = append(summary.Scores, events.PlayerScore{
			PlayerID: p.ID,
			Name:     p.Name,
			Score:    p.Score,
		})
		p.IsDrawing = false
	}
	r.DrawerID = ""
	r.CurrentWord = ""
	return summary, true
}

// DrawerOf returns the drawer of the room's active round.
//
// Postcondition: Returns (drawerID, true) while a round is active, or
// ("", false) otherwise.
func (ro *Roster) DrawerOf(roomID string) (string, bool) {
	ro.mu.Lock()
	defer ro.mu.Unlock()
	round, ok := ro.rounds[roomID]
	if !ok {
		return "", false
	}
	return round.DrawerID, true
}

// HasRound reports whether the room currently has an active round.
func (ro *Roster) HasRound(roomID string) bool {
	ro.mu.Lock()
	defer ro.mu.Unlock()
	_, ok := ro.rounds[roomID]
	return ok
}

// RemainingSeconds returns whole seconds left in the room's active round,
// or zero when no round is active.
func (ro *Roster) RemainingSeconds(roomID string) int {
	ro.mu.Lock()
	round, ok := ro.rounds[roomID]
	ro.mu.Unlock()
	if !ok {
		return 0
	}
	remaining := round.Duration - ro.clock().Sub(round.StartedAt)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Round(time.Second) / time.Second)
}

// Forget discards any active round for roomID. Called when a room is deleted.
func (ro *Roster) Forget(roomID string) {
	ro.mu.Lock()
	defer ro.mu.Unlock()
	delete(ro.rounds, roomID)
}

// allGuessed reports whether every connected non-drawer has a correct guess
// recorded. Caller must hold r's lock.
func (ro *Roster) allGuessed(r *room.Room, round *ActiveRound) bool {
	eligible := 0
	for _, p := range r.Players {
		if !p.Connected || p.ID == round.DrawerID {
			continue
		}
		eligible++
		if !round.correct[p.ID] {
			return false
		}
	}
	return eligible > 0
}
