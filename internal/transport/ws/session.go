package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/sketchparty/internal/game/events"
	"github.com/cory-johannsen/sketchparty/internal/game/fault"
	"github.com/cory-johannsen/sketchparty/internal/game/stroke"
	"github.com/cory-johannsen/sketchparty/internal/gameserver"
)

const (
	// writeWait bounds a single WebSocket write.
	writeWait = 10 * time.Second
	// pongWait is how long the connection may stay silent before it is
	// considered dead; pings go out at pingPeriod.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize bounds inbound packets.
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The coordinator trusts the reverse proxy for origin policy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientPacket is one inbound JSON message.
type clientPacket struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// serverPacket is one outbound JSON message.
type serverPacket struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type createRoomData struct {
	Name string `json:"name"`
}

type joinRoomData struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type guessData struct {
	Text string `json:"text"`
}

type strokeData struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	PrevX     float64 `json:"prevX"`
	PrevY     float64 `json:"prevY"`
	Color     string  `json:"color"`
	BrushSize int     `json:"brushSize"`
	Drawing   bool    `json:"drawing"`
	Timestamp int64   `json:"timestamp"`
}

type errorData struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Handler upgrades HTTP requests to WebSocket sessions and bridges them to
// the coordinator service.
type Handler struct {
	svc    *gameserver.Service
	bcast  *Broadcaster
	logger *zap.Logger
}

// NewHandler creates a WebSocket handler.
//
// Precondition: svc, bcast, and logger must be non-nil.
func NewHandler(svc *gameserver.Service, bcast *Broadcaster, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, bcast: bcast, logger: logger}
}

// session is one live connection. A session is anonymous until its first
// create_room or join_room packet succeeds; after that every packet is
// attributed to the session's player. The write pump is the connection's
// only writer: request replies and relayed room events both go through the
// writes channel.
type session struct {
	conn     *websocket.Conn
	svc      *gameserver.Service
	bcast    *Broadcaster
	logger   *zap.Logger
	roomID   string
	playerID string
	outbox   *events.Outbox

	writes   chan serverPacket
	readDone chan struct{}
	pumpDone chan struct{}
}

// ServeWS upgrades the request and runs the session until the connection
// closes.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s := &session{
		conn:     conn,
		svc:      h.svc,
		bcast:    h.bcast,
		logger:   h.logger,
		writes:   make(chan serverPacket, outboxBuffer),
		readDone: make(chan struct{}),
		pumpDone: make(chan struct{}),
	}
	go s.writePump()
	s.readLoop()
}

// readLoop decodes inbound packets and dispatches them until the connection
// dies, then marks the player disconnected.
func (s *session) readLoop() {
	defer s.teardown()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var packet clientPacket
		if err := s.conn.ReadJSON(&packet); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket closed unexpectedly", zap.Error(err))
			}
			return
		}
		s.dispatch(packet)
	}
}

// teardown runs when the read loop exits: the player is marked disconnected
// (the game flow ends the round if they were drawing), the outbox is
// detached, and the write pump is told to finish. The player stays in the
// room for the idle sweep or an explicit leave.
func (s *session) teardown() {
	defer close(s.readDone)
	if s.playerID == "" {
		return
	}
	if _, err := s.svc.ConnectionChanged(s.playerID, false); err != nil {
		s.logger.Debug("disconnect bookkeeping failed",
			zap.String("player_id", s.playerID),
			zap.Error(err),
		)
	}
	s.bcast.Detach(s.roomID, s.playerID)
}

func (s *session) dispatch(packet clientPacket) {
	switch packet.Type {
	case "create_room":
		s.handleCreateRoom(packet.Data)
	case "join_room":
		s.handleJoinRoom(packet.Data)
	case "start_game":
		s.handleStartGame()
	case "guess":
		s.handleGuess(packet.Data)
	case "stroke":
		s.handleStroke(packet.Data)
	case "clear_canvas":
		s.handleClearCanvas()
	case "leave_room":
		s.handleLeaveRoom()
	case "force_end_round":
		s.handleForceEndRound()
	default:
		s.sendError(fault.Validation("unknown packet type %q", packet.Type))
	}
}

func (s *session) handleCreateRoom(data json.RawMessage) {
	if s.playerID != "" {
		s.sendError(fault.Precondition("already in a room"))
		return
	}
	var req createRoomData
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(fault.Validation("malformed create_room payload"))
		return
	}
	roomInfo, player, err := s.svc.CreateRoom(req.Name)
	if err != nil {
		s.sendError(err)
		return
	}
	s.enterRoom(roomInfo.ID, player.ID)
	s.send(serverPacket{Type: "room_created", Data: map[string]any{"room": roomInfo, "player": player}})
}

func (s *session) handleJoinRoom(data json.RawMessage) {
	if s.playerID != "" {
		s.sendError(fault.Precondition("already in a room"))
		return
	}
	var req joinRoomData
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(fault.Validation("malformed join_room payload"))
		return
	}
	roomInfo, player, err := s.svc.JoinRoom(req.Code, req.Name)
	if err != nil {
		s.sendError(err)
		return
	}
	s.enterRoom(roomInfo.ID, player.ID)
	s.send(serverPacket{Type: "room_joined", Data: map[string]any{"room": roomInfo, "player": player}})
}

func (s *session) handleStartGame() {
	if !s.requireRoom() {
		return
	}
	result := s.svc.StartGame(s.roomID)
	s.send(serverPacket{Type: "start_result", Data: result})
}

func (s *session) handleGuess(data json.RawMessage) {
	if !s.requireRoom() {
		return
	}
	var req guessData
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(fault.Validation("malformed guess payload"))
		return
	}
	outcome, err := s.svc.SubmitGuess(s.roomID, s.playerID, req.Text)
	if err != nil {
		s.sendError(err)
		return
	}
	s.send(serverPacket{Type: "guess_result", Data: outcome})
}

func (s *session) handleStroke(data json.RawMessage) {
	if !s.requireRoom() {
		return
	}
	var req strokeData
	if err := json.Unmarshal(data, &req); err != nil {
		// Invalid payloads are dropped, not escalated.
		return
	}
	status, err := s.svc.Stroke(s.playerID, s.roomID, stroke.Payload{
		X:         req.X,
		Y:         req.Y,
		PrevX:     req.PrevX,
		PrevY:     req.PrevY,
		Color:     req.Color,
		BrushSize: req.BrushSize,
		Drawing:   req.Drawing,
		Timestamp: req.Timestamp,
	})
	if status == stroke.StatusRejected {
		s.sendError(err)
	}
}

func (s *session) handleClearCanvas() {
	if !s.requireRoom() {
		return
	}
	status, err := s.svc.ClearCanvas(s.playerID, s.roomID)
	if status == stroke.StatusRejected {
		s.sendError(err)
	}
}

func (s *session) handleLeaveRoom() {
	if !s.requireRoom() {
		return
	}
	if _, err := s.svc.LeaveRoom(s.playerID); err != nil {
		s.sendError(err)
		return
	}
	// Closing the outbox stops the relay; the connection stays open so the
	// player can create or join another room.
	s.bcast.Detach(s.roomID, s.playerID)
	s.outbox = nil
	s.roomID = ""
	s.playerID = ""
	s.send(serverPacket{Type: "room_left", Data: nil})
}

func (s *session) handleForceEndRound() {
	if !s.requireRoom() {
		return
	}
	ended := s.svc.ForceEndRound(s.roomID)
	s.send(serverPacket{Type: "force_end_result", Data: map[string]bool{"ended": ended}})
}

// enterRoom attaches the session's outbox and starts a relay feeding its
// events to the write pump.
func (s *session) enterRoom(roomID, playerID string) {
	s.roomID = roomID
	s.playerID = playerID
	s.outbox = s.bcast.Attach(roomID, playerID)
	go s.relay(s.outbox)
}

// requireRoom sends an error when the session has not joined a room yet.
func (s *session) requireRoom() bool {
	if s.playerID == "" {
		s.sendError(fault.Precondition("join or create a room first"))
		return false
	}
	return true
}

// writePump is the only goroutine that writes to the connection. It
// serializes request replies, relayed room events, and keepalive pings, and
// exits when a write fails or the read loop ends.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
		close(s.pumpDone)
	}()

	for {
		select {
		case packet := <-s.writes:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(packet); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.readDone:
			// Flush replies queued by the final packets, then say goodbye.
			for {
				select {
				case packet := <-s.writes:
					_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := s.conn.WriteJSON(packet); err != nil {
						return
					}
				default:
					_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
					_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
			}
		}
	}
}

// relay forwards one outbox's envelopes to the write pump. It exits when the
// outbox closes: on leave, reconnect, or room deletion.
func (s *session) relay(outbox *events.Outbox) {
	for env := range outbox.Events() {
		s.send(serverPacket{Type: env.Event.Type(), Data: env.Event})
	}
}

// send hands one packet to the write pump; dropped if the pump has exited.
func (s *session) send(packet serverPacket) {
	select {
	case s.writes <- packet:
	case <-s.pumpDone:
	}
}

func (s *session) sendError(err error) {
	kind := "internal"
	var fe *fault.Error
	if errors.As(err, &fe) {
		kind = fe.Kind.String()
	}
	s.send(serverPacket{Type: "error", Data: errorData{Kind: kind, Message: fault.ReasonOf(err)}})
}
