package flow

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/sketchparty/internal/game/events"
	"github.com/cory-johannsen/sketchparty/internal/game/fault"
	"github.com/cory-johannsen/sketchparty/internal/game/room"
	"github.com/cory-johannsen/sketchparty/internal/game/roster"
	"github.com/cory-johannsen/sketchparty/internal/game/words"
)

// Options holds the fixed delays of the state machine.
type Options struct {
	// StartDelay separates a successful start request from round one.
	StartDelay time.Duration
	// RoundDuration is how long the drawer has before the round times out.
	RoundDuration time.Duration
	// InterRoundDelay separates a round's end from the next round's start.
	InterRoundDelay time.Duration
	// ViewResultsDelay is how long the final leaderboard is shown before the
	// room resets to waiting.
	ViewResultsDelay time.Duration
	// TickInterval is the countdown broadcast period while a round runs.
	TickInterval time.Duration
}

// DefaultOptions matches the standard game pacing.
var DefaultOptions = Options{
	StartDelay:       3 * time.Second,
	RoundDuration:    80 * time.Second,
	InterRoundDelay:  5 * time.Second,
	ViewResultsDelay: 10 * time.Second,
	TickInterval:     time.Second,
}

// Flow is the state machine orchestrating rooms through
// WAITING → STARTING → PLAYING → ROUND_END → (PLAYING | GAME_END) → WAITING.
// All timer callbacks re-acquire the room lock and re-check state, so a
// callback racing an explicit transition degrades to a no-op. A failure
// inside a transition ends the room's game rather than leaving it stuck.
type Flow struct {
	registry *room.Registry
	roster   *roster.Roster
	bank     *words.Bank
	sched    *Scheduler
	pub      events.Publisher
	logger   *zap.Logger
	opts     Options
}

// NewFlow wires the state machine to its collaborators and registers the
// room-deletion hook that cancels a deleted room's timers and per-room state.
//
// Precondition: all collaborators must be non-nil; opts durations must be > 0.
func NewFlow(registry *room.Registry, ros *roster.Roster, bank *words.Bank, pub events.Publisher, logger *zap.Logger, opts Options) *Flow {
	f := &Flow{
		registry: registry,
		roster:   ros,
		bank:     bank,
		sched:    NewScheduler(),
		pub:      pub,
		logger:   logger,
		opts:     opts,
	}
	registry.OnRoomDeleted(f.releaseRoom)
	return f
}

// Scheduler exposes the per-room schedule owner, mainly for tests asserting
// that deletion cancels everything.
func (f *Flow) Scheduler() *Scheduler { return f.sched }

// Shutdown cancels every room's scheduled work.
func (f *Flow) Shutdown() { f.sched.Shutdown() }

// Start begins a game in the room.
//
// Postcondition: On success the room is in StateStarting and round one is
// scheduled after the start delay. Fails with a precondition error naming
// the reason when the room is not waiting or has fewer than two connected
// players; under concurrent Start calls exactly one succeeds because only a
// waiting room accepts the transition.
func (f *Flow) Start(roomID string) error {
	r, ok := f.registry.RoomByID(roomID)
	if !ok {
		return fault.NotFound("no room with id %s", roomID)
	}

	r.Lock()
	defer r.Unlock()

	if r.State != room.StateWaiting {
		return fault.Precondition("game already in progress")
	}
	if r.ConnectedCount() < roster.MinPlayers {
		return fault.Precondition("need at least %d connected players to start", roster.MinPlayers)
	}

	r.State = room.StateStarting
	r.Touch(time.Now())
	f.logger.Info("game starting",
		zap.String("room_id", r.ID),
		zap.Int("players", r.ConnectedCount()),
	)
	f.pub.Publish(r.ID, events.RoomUpdated{Room: r.Snapshot()})

	f.sched.After(r.ID, f.opts.StartDelay, func() {
		f.safely("init", r.ID, func() { f.beginRound(r.ID) })
	})
	return nil
}

// SubmitGuess evaluates a guess against the room's active round. Outside
// StatePlaying, or when the round has already ended, the zero result is
// returned and nothing is mutated.
//
// Postcondition: On a correct guess the guesser's and drawer's scores are
// updated and broadcast; the round ends early once every connected
// non-drawer has guessed.
func (f *Flow) SubmitGuess(roomID, playerID, text string) (roster.GuessResult, error) {
	if text == "" {
		return roster.GuessResult{}, fault.Validation("guess must not be empty")
	}
	r, ok := f.registry.RoomByID(roomID)
	if !ok {
		return roster.GuessResult{}, fault.NotFound("no room with id %s", roomID)
	}

	r.Lock()
	defer r.Unlock()

	if r.State != room.StatePlaying {
		return roster.GuessResult{}, nil
	}

	result := f.roster.ProcessGuess(r, playerID, text)
	if !result.Correct {
		return result, nil
	}

	r.Touch(time.Now())
	name := ""
	if p, found := r.PlayerByID(playerID); found {
		name = p.Name
	}
	f.pub.Publish(r.ID, events.CorrectGuess{PlayerID: playerID, Name: name})
	f.pub.Publish(r.ID, events.ScoreUpdated{PlayerID: playerID, Score: result.GuesserScore})
	if drawerID, ok := f.roster.DrawerOf(r.ID); ok {
		f.pub.Publish(r.ID, events.ScoreUpdated{PlayerID: drawerID, Score: result.DrawerScore})
	}

	if result.ShouldEndRound {
		f.endRoundLocked(r, "all players guessed")
	}
	return result, nil
}

// ForceEndRound ends the room's active round immediately.
//
// Postcondition: Returns true when a round was active and is now ended;
// false (and no mutation) otherwise.
func (f *Flow) ForceEndRound(roomID string) bool {
	r, ok := f.registry.RoomByID(roomID)
	if !ok {
		return false
	}

	r.Lock()
	defer r.Unlock()

	if !f.roster.HasRound(r.ID) {
		return false
	}
	f.endRoundLocked(r, "forced")
	return true
}

// PlayerGone reacts to a player leaving or disconnecting. A departing drawer
// ends the round immediately; a departing guesser may leave every remaining
// non-drawer having already guessed, which also ends the round.
func (f *Flow) PlayerGone(roomID, playerID string) {
	r, ok := f.registry.RoomByID(roomID)
	if !ok {
		return
	}

	r.Lock()
	defer r.Unlock()

	drawerID, active := f.roster.DrawerOf(r.ID)
	if !active {
		return
	}
	if drawerID == playerID {
		f.endRoundLocked(r, "drawer left")
		return
	}
	if f.roster.ShouldEndRound(r) {
		f.endRoundLocked(r, "all remaining players guessed")
	}
}

// releaseRoom is the room-deletion hook: it cancels the room's schedule and
// drops per-room state held by the roster and word bank.
func (f *Flow) releaseRoom(roomID string) {
	f.sched.CancelAll(roomID)
	f.roster.Forget(roomID)
	f.bank.ForgetRoom(roomID)
}

// beginRound runs the round-start transition. Invalid entry states (a stale
// timer firing after a force-end or deletion) degrade to a no-op.
func (f *Flow) beginRound(roomID string) {
	r, ok := f.registry.RoomByID(roomID)
	if !ok {
		return
	}

	r.Lock()
	defer r.Unlock()

	if r.State != room.StateStarting && r.State != room.StateRoundEnd {
		return
	}

	r.Round++
	if r.Round > r.MaxRounds {
		f.endGameLocked(r)
		return
	}

	drawer := f.roster.NextDrawer(r)
	if drawer == nil {
		f.logger.Info("no eligible drawer, ending game", zap.String("room_id", r.ID))
		f.endGameLocked(r)
		return
	}

	word, err := f.bank.RandomWord(r.ID, words.SelectOptions{})
	if err != nil {
		f.logger.Error("word selection failed, ending game",
			zap.String("room_id", r.ID),
			zap.Error(err),
		)
		f.endGameLocked(r)
		return
	}

	f.roster.StartRound(r, drawer, word.Text, f.opts.RoundDuration)
	r.State = room.StatePlaying
	r.Touch(time.Now())

	f.logger.Info("round started",
		zap.String("room_id", r.ID),
		zap.Int("round", r.Round),
		zap.String("drawer_id", drawer.ID),
	)

	started := events.RoundStarted{
		Round:      r.Round,
		DrawerID:   drawer.ID,
		DrawerName: drawer.Name,
		WordLength: len(word.Text),
	}
	f.pub.PublishExcept(r.ID, drawer.ID, started)
	started.Word = word.Text
	f.pub.PublishTo(r.ID, drawer.ID, started)
	f.pub.Publish(r.ID, events.RoomUpdated{Room: r.Snapshot()})

	f.sched.After(r.ID, f.opts.RoundDuration, func() {
		f.safely("round timeout", r.ID, func() { f.timeoutRound(r.ID) })
	})
	f.sched.Every(r.ID, f.opts.TickInterval, func() {
		f.safely("countdown tick", r.ID, func() { f.tick(r.ID) })
	})
}

// timeoutRound ends the round when its timer fires. A guess that already
// ended the round wins the race; this path then observes no active round.
func (f *Flow) timeoutRound(roomID string) {
	r, ok := f.registry.RoomByID(roomID)
	if !ok {
		return
	}
	r.Lock()
	defer r.Unlock()
	f.endRoundLocked(r, "timeout")
}

// tick broadcasts the seconds remaining in the room's round.
func (f *Flow) tick(roomID string) {
	if !f.roster.HasRound(roomID) {
		return
	}
	f.pub.Publish(roomID, events.TimerUpdate{SecondsRemaining: f.roster.RemainingSeconds(roomID)})
}

// endRoundLocked runs the round-end transition: discard the active round,
// cancel the room's timers, broadcast the summary, and schedule either the
// next round or the end of the game. Idempotent: the second of two racing
// callers finds no active round and returns.
//
// Precondition: caller holds r's lock.
func (f *Flow) endRoundLocked(r *room.Room, reason string) {
	summary, ok := f.roster.EndRound(r)
	if !ok {
		return
	}
	f.sched.CancelAll(r.ID)

	r.State = room.StateRoundEnd
	r.Touch(time.Now())

	f.logger.Info("round ended",
		zap.String("room_id", r.ID),
		zap.Int("round", r.Round),
		zap.String("reason", reason),
	)
	f.pub.Publish(r.ID, events.RoundEnded{Summary: summary})
	f.pub.Publish(r.ID, events.RoomUpdated{Room: r.Snapshot()})

	if r.Round >= r.MaxRounds {
		f.sched.After(r.ID, f.opts.InterRoundDelay, func() {
			f.safely("game end", r.ID, func() { f.finishGame(r.ID) })
		})
		return
	}
	f.sched.After(r.ID, f.opts.InterRoundDelay, func() {
		f.safely("round start", r.ID, func() { f.beginRound(r.ID) })
	})
}

// finishGame runs the end transition from a scheduled callback.
func (f *Flow) finishGame(roomID string) {
	r, ok := f.registry.RoomByID(roomID)
	if !ok {
		return
	}
	r.Lock()
	defer r.Unlock()
	if r.State != room.StateRoundEnd {
		return
	}
	f.endGameLocked(r)
}

// endGameLocked cancels all outstanding timers, publishes the final
// leaderboard, and schedules the reset back to waiting.
//
// Precondition: caller holds r's lock.
func (f *Flow) endGameLocked(r *room.Room) {
	f.sched.CancelAll(r.ID)
	f.roster.Forget(r.ID)

	r.State = room.StateGameEnd
	r.DrawerID = ""
	r.CurrentWord = ""
	for _, p := range r.Players {
		p.IsDrawing = false
	}
	r.Touch(time.Now())

	scores := leaderboard(r)
	f.logger.Info("game ended",
		zap.String("room_id", r.ID),
		zap.Int("rounds_played", r.Round),
	)
	f.pub.Publish(r.ID, events.GameEnded{Scores: scores})
	f.pub.Publish(r.ID, events.RoomUpdated{Room: r.Snapshot()})

	f.sched.After(r.ID, f.opts.ViewResultsDelay, func() {
		f.safely("reset", r.ID, func() { f.resetRoom(r.ID) })
	})
}

// resetRoom returns the room to waiting after the results were shown.
// Scores reset with the round counter so the next game starts from zero.
func (f *Flow) resetRoom(roomID string) {
	r, ok := f.registry.RoomByID(roomID)
	if !ok {
		return
	}

	r.Lock()
	defer r.Unlock()

	if r.State != room.StateGameEnd || len(r.Players) == 0 {
		return
	}
	r.State = room.StateWaiting
	r.Round = 0
	for _, p := range r.Players {
		p.Score = 0
		p.IsDrawing = false
	}
	r.Touch(time.Now())
	f.pub.Publish(r.ID, events.RoomUpdated{Room: r.Snapshot()})
}

// safely isolates a scheduled callback: a panic is logged and absorbed so a
// broken room cannot take down timers or state belonging to other rooms.
func (f *Flow) safely(op, roomID string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			f.logger.Error("recovered from game flow panic",
				zap.String("op", op),
				zap.String("room_id", roomID),
				zap.Any("panic", p),
			)
		}
	}()
	fn()
}

// leaderboard returns the room's scores sorted by descending score, stable
// for ties. Caller must hold r's lock.
func leaderboard(r *room.Room) []events.PlayerScore {
	scores := make([]events.PlayerScore, 0, len(r.Players))
	for _, p := range r.Players {
		scores = append(scores, events.PlayerScore{PlayerID: p.ID, Name: p.Name, Score: p.Score})
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
	return scores
}
