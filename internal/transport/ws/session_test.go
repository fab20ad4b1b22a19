package ws_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/sketchparty/internal/game/flow"
	"github.com/cory-johannsen/sketchparty/internal/game/rng"
	"github.com/cory-johannsen/sketchparty/internal/game/room"
	"github.com/cory-johannsen/sketchparty/internal/game/roster"
	"github.com/cory-johannsen/sketchparty/internal/game/stroke"
	"github.com/cory-johannsen/sketchparty/internal/game/words"
	"github.com/cory-johannsen/sketchparty/internal/gameserver"
	"github.com/cory-johannsen/sketchparty/internal/transport/ws"
)

type wsFixture struct {
	server *httptest.Server
}

// newWSFixture stands up the full coordinator behind a test HTTP server with
// an aggressive tick so room events stream while requests are in flight.
func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	logger := zap.NewNop()
	bcast := ws.NewBroadcaster(logger)

	registry := room.NewRegistry(room.Options{
		MaxPlayers:    8,
		MaxRounds:     1,
		IdleAfter:     time.Hour,
		SweepInterval: time.Hour,
	}, rng.NewCryptoSource(), bcast, logger)
	registry.OnRoomDeleted(bcast.DropRoom)

	bank, err := words.NewBank(words.DefaultCorpus(), rng.NewCryptoSource(), 5)
	require.NoError(t, err)

	ros := roster.NewRoster(roster.DefaultScoreRule)
	fl := flow.NewFlow(registry, ros, bank, bcast, logger, flow.Options{
		StartDelay:       10 * time.Millisecond,
		RoundDuration:    5 * time.Second,
		InterRoundDelay:  50 * time.Millisecond,
		ViewResultsDelay: 50 * time.Millisecond,
		TickInterval:     time.Millisecond,
	})
	t.Cleanup(fl.Shutdown)

	gate := stroke.NewGate(registry, bcast, logger)
	svc := gameserver.NewService(registry, fl, gate, logger)
	handler := ws.NewHandler(svc, bcast, logger)

	srv := httptest.NewServer(http.HandlerFunc(handler.ServeWS))
	t.Cleanup(srv.Close)
	return &wsFixture{server: srv}
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func (fx *wsFixture) dial(t *testing.T) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(fx.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: t, conn: conn}
}

type testPacket struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (c *wsClient) send(packetType string, data any) {
	c.t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(map[string]any{
		"type": packetType,
		"data": json.RawMessage(raw),
	}))
}

func (c *wsClient) read() testPacket {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var p testPacket
	require.NoError(c.t, c.conn.ReadJSON(&p))
	return p
}

// await reads until a packet of the wanted type arrives, skipping room
// events interleaved on the same connection.
func (c *wsClient) await(packetType string) testPacket {
	c.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		p := c.read()
		if p.Type == packetType {
			return p
		}
	}
	c.t.Fatalf("no %s packet before deadline", packetType)
	return testPacket{}
}

type roomReply struct {
	Room struct {
		ID   string `json:"id"`
		Code string `json:"code"`
	} `json:"room"`
	Player struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"player"`
}

func (c *wsClient) createRoom(name string) roomReply {
	c.t.Helper()
	c.send("create_room", map[string]string{"name": name})
	p := c.await("room_created")
	var reply roomReply
	require.NoError(c.t, json.Unmarshal(p.Data, &reply))
	return reply
}

func (c *wsClient) joinRoom(code, name string) roomReply {
	c.t.Helper()
	c.send("join_room", map[string]string{"code": code, "name": name})
	p := c.await("room_joined")
	var reply roomReply
	require.NoError(c.t, json.Unmarshal(p.Data, &reply))
	return reply
}

// Request replies share the connection's single writer with the streamed
// room events; a flood of requests during a running round must neither
// corrupt the stream nor crash the pump.
func TestSessionRepliesInterleaveWithEventStream(t *testing.T) {
	fx := newWSFixture(t)
	alice := fx.dial(t)
	bob := fx.dial(t)

	created := alice.createRoom("alice")
	bob.joinRoom(created.Room.Code, "bob")

	alice.send("start_game", nil)
	result := alice.await("start_result")
	var start struct {
		Success bool `json:"success"`
	}
	require.NoError(t, json.Unmarshal(result.Data, &start))
	require.True(t, start.Success)

	// Timer updates are now ticking every millisecond. Each start_game is
	// rejected (a game is running) but still answered with a start_result.
	const requests = 50
	for i := 0; i < requests; i++ {
		alice.send("start_game", nil)
	}

	results := 0
	deadline := time.Now().Add(5 * time.Second)
	for results < requests && time.Now().Before(deadline) {
		if alice.read().Type == "start_result" {
			results++
		}
	}
	assert.Equal(t, requests, results, "every request gets its reply amid the event stream")
}

func TestLeaveRoomKeepsConnectionUsable(t *testing.T) {
	fx := newWSFixture(t)
	client := fx.dial(t)

	first := client.createRoom("alice")

	client.send("leave_room", nil)
	client.await("room_left")

	// The same connection hosts a fresh room after leaving.
	second := client.createRoom("alice")
	assert.NotEqual(t, first.Room.ID, second.Room.ID)
	assert.Equal(t, "alice", second.Player.Name)

	client.send("start_game", nil)
	result := client.await("start_result")
	var start struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(result.Data, &start))
	assert.False(t, start.Success, "a one-player room cannot start")
}

func TestLeaveRoomThenJoinAnother(t *testing.T) {
	fx := newWSFixture(t)
	host := fx.dial(t)
	drifter := fx.dial(t)

	hosted := host.createRoom("host")
	abandoned := drifter.createRoom("drifter")

	drifter.send("leave_room", nil)
	drifter.await("room_left")

	joined := drifter.joinRoom(hosted.Room.Code, "drifter")
	assert.Equal(t, hosted.Room.ID, joined.Room.ID)
	assert.NotEqual(t, abandoned.Player.ID, joined.Player.ID, "leaving discards the old identity")
}
