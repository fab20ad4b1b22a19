// Package gameserver exposes the coordinator's inbound operations as one
// facade over the room registry, game flow, and stroke gate. Every public
// entry point converts unexpected internal failures into safe failed results
// so one broken room never corrupts another.
package gameserver

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/sketchparty/internal/game/events"
	"github.com/cory-johannsen/sketchparty/internal/game/fault"
	"github.com/cory-johannsen/sketchparty/internal/game/flow"
	"github.com/cory-johannsen/sketchparty/internal/game/room"
	"github.com/cory-johannsen/sketchparty/internal/game/stroke"
)

// StartResult is the outcome of a start_game request.
type StartResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// GuessOutcome is the outcome of a submit_guess request.
type GuessOutcome struct {
	IsCorrect      bool `json:"isCorrect"`
	PointsAwarded  int  `json:"pointsAwarded"`
	ShouldEndRound bool `json:"shouldEndRound"`
}

// Service is the game coordinator facade consumed by the transport layer.
// Inbound calls arrive already identity-attributed; the service performs no
// authentication beyond the opaque player ID.
type Service struct {
	registry *room.Registry
	flow     *flow.Flow
	gate     *stroke.Gate
	logger   *zap.Logger
}

// NewService wires the coordinator facade.
//
// Precondition: all collaborators must be non-nil.
func NewService(registry *room.Registry, fl *flow.Flow, gate *stroke.Gate, logger *zap.Logger) *Service {
	return &Service{
		registry: registry,
		flow:     fl,
		gate:     gate,
		logger:   logger,
	}
}

// CreateRoom creates a room with the named player as creator.
//
// Postcondition: Returns the room snapshot and the creator's info, or an
// error classified by the fault package.
func (s *Service) CreateRoom(playerName string) (events.RoomInfo, events.PlayerInfo, error) {
	var info events.RoomInfo
	var creator events.PlayerInfo
	err := s.guard("create_room", func() error {
		r, p, err := s.registry.CreateRoom(playerName)
		if err != nil {
			return err
		}
		r.Lock()
		info = r.Snapshot()
		r.Unlock()
		creator = p.Info()
		return nil
	})
	return info, creator, err
}

// JoinRoom adds the named player to the room with the given code.
func (s *Service) JoinRoom(code, playerName string) (events.RoomInfo, events.PlayerInfo, error) {
	var info events.RoomInfo
	var joined events.PlayerInfo
	err := s.guard("join_room", func() error {
		r, p, err := s.registry.JoinRoom(code, playerName)
		if err != nil {
			return err
		}
		r.Lock()
		info = r.Snapshot()
		joined = p.Info()
		r.Unlock()
		return nil
	})
	return info, joined, err
}

// LeaveRoom removes the player from their room. The returned snapshot is nil
// when the room was deleted because it became empty.
func (s *Service) LeaveRoom(playerID string) (*events.RoomInfo, error) {
	var info *events.RoomInfo
	err := s.guard("leave_room", func() error {
		r, err := s.registry.LeaveRoom(playerID)
		if err != nil {
			return err
		}
		s.gate.Disconnect(playerID)
		if r == nil {
			return nil
		}
		s.flow.PlayerGone(r.ID, playerID)
		r.Lock()
		snapshot := r.Snapshot()
		r.Unlock()
		info = &snapshot
		return nil
	})
	return info, err
}

// StartGame begins a game in the room, reporting success or the precondition
// that failed. Internal failures surface as a generic failed result.
func (s *Service) StartGame(roomID string) StartResult {
	err := s.guard("start_game", func() error {
		return s.flow.Start(roomID)
	})
	if err != nil {
		return StartResult{Success: false, Message: fault.ReasonOf(err)}
	}
	return StartResult{Success: true, Message: "game starting"}
}

// SubmitGuess evaluates a guess. Rejected guesses (wrong word, own drawing,
// repeat guess, no active round) are not errors; they return IsCorrect false.
func (s *Service) SubmitGuess(roomID, playerID, text string) (GuessOutcome, error) {
	var outcome GuessOutcome
	err := s.guard("submit_guess", func() error {
		result, err := s.flow.SubmitGuess(roomID, playerID, text)
		if err != nil {
			return err
		}
		outcome = GuessOutcome{
			IsCorrect:      result.Correct,
			PointsAwarded:  result.Points,
			ShouldEndRound: result.ShouldEndRound,
		}
		return nil
	})
	return outcome, err
}

// Stroke gates one drawing event; accepted events are broadcast to the room.
func (s *Service) Stroke(playerID, roomID string, p stroke.Payload) (stroke.Status, error) {
	status := stroke.StatusDropped
	err := s.guard("stroke", func() error {
		st, err := s.gate.Stroke(playerID, roomID, p)
		status = st
		return err
	})
	return status, err
}

// ClearCanvas gates a canvas clear; on success every member's throttle
// window is flushed and the clear is broadcast.
func (s *Service) ClearCanvas(playerID, roomID string) (stroke.Status, error) {
	status := stroke.StatusDropped
	err := s.guard("clear_canvas", func() error {
		st, err := s.gate.ClearCanvas(playerID, roomID)
		status = st
		return err
	})
	return status, err
}

// ConnectionChanged records a player's transport connect or disconnect. A
// disconnecting drawer ends the active round immediately.
func (s *Service) ConnectionChanged(playerID string, connected bool) (*events.RoomInfo, error) {
	var info *events.RoomInfo
	err := s.guard("connection_changed", func() error {
		r, _, err := s.registry.SetConnected(playerID, connected)
		if err != nil {
			return err
		}
		if !connected {
			s.gate.Disconnect(playerID)
			s.flow.PlayerGone(r.ID, playerID)
		}
		r.Lock()
		snapshot := r.Snapshot()
		r.Unlock()
		info = &snapshot
		return nil
	})
	return info, err
}

// ForceEndRound ends the room's active round; returns false when no round
// was active.
func (s *Service) ForceEndRound(roomID string) bool {
	ended := false
	_ = s.guard("force_end_round", func() error {
		ended = s.flow.ForceEndRound(roomID)
		return nil
	})
	return ended
}

// guard isolates one inbound operation: a panic inside orchestration is
// logged and converted into an internal-fault error instead of crashing the
// room's timers or leaking into other rooms.
func (s *Service) guard(op string, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("recovered from coordinator panic",
				zap.String("op", op),
				zap.Any("panic", p),
			)
			err = fault.Internal(fmt.Errorf("%v", p), "%s failed", op)
		}
	}()
	return fn()
}
