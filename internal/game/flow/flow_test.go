package flow_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/sketchparty/internal/game/events"
	"github.com/cory-johannsen/sketchparty/internal/game/fault"
	"github.com/cory-johannsen/sketchparty/internal/game/flow"
	"github.com/cory-johannsen/sketchparty/internal/game/rng"
	"github.com/cory-johannsen/sketchparty/internal/game/room"
	"github.com/cory-johannsen/sketchparty/internal/game/roster"
	"github.com/cory-johannsen/sketchparty/internal/game/words"
)

// fastOptions compresses the game pacing so a full game fits in a test.
var fastOptions = flow.Options{
	StartDelay:       20 * time.Millisecond,
	RoundDuration:    150 * time.Millisecond,
	InterRoundDelay:  60 * time.Millisecond,
	ViewResultsDelay: 60 * time.Millisecond,
	TickInterval:     20 * time.Millisecond,
}

// record is one captured publish call.
type record struct {
	roomID string
	target string // PublishTo recipient, empty for broadcasts
	except string // PublishExcept exclusion, empty otherwise
	event  events.Event
}

// capturePub records every published event for later assertions.
type capturePub struct {
	mu   sync.Mutex
	recs []record
}

func (c *capturePub) Publish(roomID string, ev events.Event) {
	c.append(record{roomID: roomID, event: ev})
}

func (c *capturePub) PublishTo(roomID, playerID string, ev events.Event) {
	c.append(record{roomID: roomID, target: playerID, event: ev})
}

func (c *capturePub) PublishExcept(roomID, exceptPlayerID string, ev events.Event) {
	c.append(record{roomID: roomID, except: exceptPlayerID, event: ev})
}

func (c *capturePub) append(r record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, r)
}

func (c *capturePub) ofType(eventType string) []record {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []record
	for _, r := range c.recs {
		if r.event.Type() == eventType {
			out = append(out, r)
		}
	}
	return out
}

type fixture struct {
	flow     *flow.Flow
	registry *room.Registry
	roster   *roster.Roster
	pub      *capturePub
}

func newFixture(t *testing.T, maxRounds int) *fixture {
	t.Helper()
	pub := &capturePub{}
	registry := room.NewRegistry(room.Options{
		MaxPlayers:    8,
		MaxRounds:     maxRounds,
		IdleAfter:     time.Hour,
		SweepInterval: time.Hour,
	}, rng.NewCryptoSource(), pub, zap.NewNop())

	bank, err := words.NewBank(words.DefaultCorpus(), rng.NewCryptoSource(), 5)
	require.NoError(t, err)

	ros := roster.NewRoster(roster.DefaultScoreRule)
	f := flow.NewFlow(registry, ros, bank, pub, zap.NewNop(), fastOptions)
	t.Cleanup(f.Shutdown)

	return &fixture{flow: f, registry: registry, roster: ros, pub: pub}
}

// setup creates a room and joins additional players beyond the creator.
func (fx *fixture) setup(t *testing.T, names ...string) (*room.Room, []*room.Player) {
	t.Helper()
	r, creator, err := fx.registry.CreateRoom(names[0])
	require.NoError(t, err)
	players := []*room.Player{creator}
	for _, name := range names[1:] {
		_, p, err := fx.registry.JoinRoom(r.Code, name)
		require.NoError(t, err)
		players = append(players, p)
	}
	return r, players
}

func stateOf(r *room.Room) room.State {
	r.Lock()
	defer r.Unlock()
	return r.State
}

func waitForState(t *testing.T, r *room.Room, want room.State) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if stateOf(r) == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("room never reached %s (currently %s)", want, stateOf(r))
}

func TestStartUnknownRoom(t *testing.T) {
	fx := newFixture(t, 3)
	err := fx.flow.Start("no-such-room")
	assert.True(t, fault.IsKind(err, fault.KindNotFound))
}

func TestStartNeedsTwoConnectedPlayers(t *testing.T) {
	fx := newFixture(t, 3)
	r, _ := fx.setup(t, "alice")

	err := fx.flow.Start(r.ID)
	assert.True(t, fault.IsKind(err, fault.KindPrecondition))
	assert.Equal(t, room.StateWaiting, stateOf(r))
}

func TestStartDisconnectedPlayersDoNotCount(t *testing.T) {
	fx := newFixture(t, 3)
	r, players := fx.setup(t, "alice", "bob")
	_, _, err := fx.registry.SetConnected(players[1].ID, false)
	require.NoError(t, err)

	err = fx.flow.Start(r.ID)
	assert.True(t, fault.IsKind(err, fault.KindPrecondition))
}

func TestStartTransitionsToPlaying(t *testing.T) {
	fx := newFixture(t, 3)
	r, _ := fx.setup(t, "alice", "bob")

	require.NoError(t, fx.flow.Start(r.ID))
	assert.Equal(t, room.StateStarting, stateOf(r))

	waitForState(t, r, room.StatePlaying)

	r.Lock()
	assert.Equal(t, 1, r.Round)
	assert.NotEmpty(t, r.DrawerID)
	assert.NotEmpty(t, r.CurrentWord)
	r.Unlock()
}

func TestStartWhileRunningFails(t *testing.T) {
	fx := newFixture(t, 3)
	r, _ := fx.setup(t, "alice", "bob")

	require.NoError(t, fx.flow.Start(r.ID))
	err := fx.flow.Start(r.ID)
	assert.True(t, fault.IsKind(err, fault.KindPrecondition))
}

func TestConcurrentStartsExactlyOneSucceeds(t *testing.T) {
	fx := newFixture(t, 3)
	r, _ := fx.setup(t, "alice", "bob")

	const n = 16
	results := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- fx.flow.Start(r.ID)
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, fault.IsKind(err, fault.KindPrecondition))
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestWordGoesOnlyToDrawer(t *testing.T) {
	fx := newFixture(t, 3)
	r, _ := fx.setup(t, "alice", "bob")

	require.NoError(t, fx.flow.Start(r.ID))
	waitForState(t, r, room.StatePlaying)

	r.Lock()
	drawerID := r.DrawerID
	word := r.CurrentWord
	r.Unlock()

	started := fx.pub.ofType("round_started")
	require.Len(t, started, 2)
	for _, rec := range started {
		ev := rec.event.(events.RoundStarted)
		switch {
		case rec.target == drawerID:
			assert.Equal(t, word, ev.Word)
		case rec.except == drawerID:
			assert.Empty(t, ev.Word, "guessers must not receive the word")
			assert.Equal(t, len(word), ev.WordLength)
		default:
			t.Fatalf("unexpected round_started routing: %+v", rec)
		}
	}
}

func TestGuessEndsRoundWhenAllGuessed(t *testing.T) {
	fx := newFixture(t, 3)
	r, players := fx.setup(t, "alice", "bob")

	require.NoError(t, fx.flow.Start(r.ID))
	waitForState(t, r, room.StatePlaying)

	r.Lock()
	drawerID := r.DrawerID
	word := r.CurrentWord
	r.Unlock()

	var guesser *room.Player
	for _, p := range players {
		if p.ID != drawerID {
			guesser = p
		}
	}
	require.NotNil(t, guesser)

	result, err := fx.flow.SubmitGuess(r.ID, guesser.ID, word)
	require.NoError(t, err)
	assert.True(t, result.Correct)
	assert.True(t, result.ShouldEndRound)
	assert.Greater(t, result.Points, 0)
	assert.Equal(t, room.StateRoundEnd, stateOf(r))
}

func TestGuessEmptyText(t *testing.T) {
	fx := newFixture(t, 3)
	r, players := fx.setup(t, "alice", "bob")

	_, err := fx.flow.SubmitGuess(r.ID, players[0].ID, "")
	assert.True(t, fault.IsKind(err, fault.KindValidation))
}

func TestGuessOutsidePlayingIsIgnored(t *testing.T) {
	fx := newFixture(t, 3)
	r, players := fx.setup(t, "alice", "bob")

	result, err := fx.flow.SubmitGuess(r.ID, players[1].ID, "cat")
	require.NoError(t, err)
	assert.Equal(t, roster.GuessResult{}, result)
}

func TestRoundTimesOut(t *testing.T) {
	fx := newFixture(t, 3)
	r, _ := fx.setup(t, "alice", "bob")

	require.NoError(t, fx.flow.Start(r.ID))
	waitForState(t, r, room.StatePlaying)
	waitForState(t, r, room.StateRoundEnd)

	ended := fx.pub.ofType("round_ended")
	require.NotEmpty(t, ended)
	summary := ended[0].event.(events.RoundEnded).Summary
	assert.Equal(t, 1, summary.Round)
	assert.NotEmpty(t, summary.Word)
	assert.Empty(t, summary.CorrectGuessers)
}

func TestForceEndRound(t *testing.T) {
	fx := newFixture(t, 3)
	r, _ := fx.setup(t, "alice", "bob")

	assert.False(t, fx.flow.ForceEndRound(r.ID), "no active round yet")

	require.NoError(t, fx.flow.Start(r.ID))
	waitForState(t, r, room.StatePlaying)

	assert.True(t, fx.flow.ForceEndRound(r.ID))
	assert.Equal(t, room.StateRoundEnd, stateOf(r))
	assert.False(t, fx.flow.ForceEndRound(r.ID), "round already ended")
}

func TestDrawerLeavingEndsRound(t *testing.T) {
	fx := newFixture(t, 3)
	r, _ := fx.setup(t, "alice", "bob", "carol")

	require.NoError(t, fx.flow.Start(r.ID))
	waitForState(t, r, room.StatePlaying)

	r.Lock()
	drawerID := r.DrawerID
	r.Unlock()

	_, err := fx.registry.LeaveRoom(drawerID)
	require.NoError(t, err)
	fx.flow.PlayerGone(r.ID, drawerID)

	assert.Equal(t, room.StateRoundEnd, stateOf(r))
}

func TestGuesserLeavingCanEndRound(t *testing.T) {
	fx := newFixture(t, 3)
	r, players := fx.setup(t, "alice", "bob", "carol")

	require.NoError(t, fx.flow.Start(r.ID))
	waitForState(t, r, room.StatePlaying)

	r.Lock()
	drawerID := r.DrawerID
	word := r.CurrentWord
	r.Unlock()

	var guessers []*room.Player
	for _, p := range players {
		if p.ID != drawerID {
			guessers = append(guessers, p)
		}
	}
	require.Len(t, guessers, 2)

	// One guesser answers correctly, the other leaves: everyone remaining
	// has guessed, so the round ends.
	result, err := fx.flow.SubmitGuess(r.ID, guessers[0].ID, word)
	require.NoError(t, err)
	require.True(t, result.Correct)
	require.False(t, result.ShouldEndRound)

	_, err = fx.registry.LeaveRoom(guessers[1].ID)
	require.NoError(t, err)
	fx.flow.PlayerGone(r.ID, guessers[1].ID)

	assert.Equal(t, room.StateRoundEnd, stateOf(r))
}

func TestRoomDeletionCancelsSchedule(t *testing.T) {
	fx := newFixture(t, 3)
	r, _ := fx.setup(t, "alice", "bob")

	require.NoError(t, fx.flow.Start(r.ID))
	waitForState(t, r, room.StatePlaying)
	require.Greater(t, fx.flow.Scheduler().PendingCount(r.ID), 0)

	fx.registry.DeleteRoom(r.ID)

	assert.Equal(t, 0, fx.flow.Scheduler().PendingCount(r.ID))
	assert.False(t, fx.roster.HasRound(r.ID))
}

func TestFullGameEndsAndResets(t *testing.T) {
	fx := newFixture(t, 1)
	r, players := fx.setup(t, "alice", "bob", "carol")

	require.NoError(t, fx.flow.Start(r.ID))
	waitForState(t, r, room.StatePlaying)

	r.Lock()
	drawerID := r.DrawerID
	word := r.CurrentWord
	r.Unlock()

	// Exactly one guesser scores so the final ordering is deterministic:
	// guesser > drawer > silent player.
	var scorer, silent *room.Player
	for _, p := range players {
		if p.ID == drawerID {
			continue
		}
		if scorer == nil {
			scorer = p
		} else {
			silent = p
		}
	}
	result, err := fx.flow.SubmitGuess(r.ID, scorer.ID, word)
	require.NoError(t, err)
	require.True(t, result.Correct)

	waitForState(t, r, room.StateRoundEnd)
	waitForState(t, r, room.StateGameEnd)

	gameEnded := fx.pub.ofType("game_ended")
	require.Len(t, gameEnded, 1)
	scores := gameEnded[0].event.(events.GameEnded).Scores
	require.Len(t, scores, 3)
	assert.Equal(t, scorer.ID, scores[0].PlayerID)
	assert.Equal(t, drawerID, scores[1].PlayerID)
	assert.Equal(t, silent.ID, scores[2].PlayerID)
	assert.True(t, scores[0].Score >= scores[1].Score && scores[1].Score >= scores[2].Score)

	// After the results delay the room resets for the next game.
	waitForState(t, r, room.StateWaiting)
	r.Lock()
	assert.Equal(t, 0, r.Round)
	for _, p := range r.Players {
		assert.Zero(t, p.Score)
		assert.False(t, p.IsDrawing)
	}
	r.Unlock()
}

func TestMultiRoundRotation(t *testing.T) {
	fx := newFixture(t, 2)
	r, _ := fx.setup(t, "alice", "bob")

	require.NoError(t, fx.flow.Start(r.ID))
	waitForState(t, r, room.StatePlaying)

	r.Lock()
	firstDrawer := r.DrawerID
	r.Unlock()

	require.True(t, fx.flow.ForceEndRound(r.ID))
	waitForState(t, r, room.StatePlaying)

	r.Lock()
	secondDrawer := r.DrawerID
	assert.Equal(t, 2, r.Round)
	r.Unlock()

	assert.NotEqual(t, firstDrawer, secondDrawer, "drawer must rotate between rounds")
}
