package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luannguyenhoang/XO/internal/apperror"
	"github.com/luannguyenhoang/XO/internal/entity"
)

func (that *Coordinator) handleJoinGame(_ context.Context, evt Event) error {
	log := that.logger.With("method", "handleJoinGame", "playerID", evt.ConnID)

	game, paired := that.queue.Enqueue(evt.ConnID)
	if !paired {
		that.emitter.ToConn(evt.ConnID, Message{Action: EventWaitingForPlayer})
		log.Info("player queued")
		return nil
	}

	for _, playerID := range game.Players {
		that.emitter.JoinGroup(game.ID, playerID)
	}

	that.emitter.ToGroup(game.ID, Message{Action: EventGameStarted, Payload: game.Snapshot()})

	log.Info("players paired", "gameID", game.ID)

	return nil
}

func (that *Coordinator) handleCreateRoom(_ context.Context, evt Event) error {
	room := that.rooms.CreateRoom(evt.ConnID)

	that.emitter.JoinGroup(room.Code, evt.ConnID)
	that.emitter.ToConn(evt.ConnID, Message{Action: EventRoomCreated, Payload: roomState(room)})

	return nil
}

func (that *Coordinator) handleJoinRoom(_ context.Context, evt Event) error {
	var payload RoomPayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	room, err := that.rooms.JoinRoom(payload.RoomCode, evt.ConnID)
	if err != nil {
		that.emitter.ToConn(evt.ConnID, Message{Action: EventRoomJoinFailed, Payload: ErrorPayload{Message: err.Error()}})
		return nil
	}

	that.emitter.JoinGroup(room.Code, evt.ConnID)
	that.emitter.ToGroup(room.Code, Message{Action: EventRoomUpdated, Payload: roomState(room)})

	return nil
}

func (that *Coordinator) handleStartRoomGame(_ context.Context, evt Event) error {
	log := that.logger.With("method", "handleStartRoomGame", "playerID", evt.ConnID)

	var payload RoomPayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	game, room, err := that.rooms.StartGame(payload.RoomCode, evt.ConnID)
	if err != nil {
		that.emitter.ToConn(evt.ConnID, Message{Action: EventStartGameFailed, Payload: ErrorPayload{Message: err.Error()}})
		return nil
	}

	for _, playerID := range game.Players {
		that.emitter.JoinGroup(game.ID, playerID)
	}

	that.emitter.ToGroup(room.Code, Message{Action: EventRoomUpdated, Payload: roomState(room)})
	that.emitter.ToGroup(game.ID, Message{Action: EventGameStarted, Payload: game.Snapshot()})

	log.Info("room game started", "roomCode", room.Code, "gameID", game.ID)

	return nil
}

func (that *Coordinator) handleMakeMove(ctx context.Context, evt Event) error {
	log := that.logger.With("method", "handleMakeMove", "playerID", evt.ConnID)

	var payload MovePayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	game, ok := that.matches.Get(payload.GameID)
	if !ok {
		// stale game id, the match may already be cleaned up
		return nil
	}

	if err := game.MakeTurn(evt.ConnID, payload.Position); err != nil {
		if isRuleRejection(err) {
			that.emitter.ToConn(evt.ConnID, Message{Action: EventMoveRejected, Payload: ErrorPayload{Message: err.Error()}})
			return nil
		}
		return fmt.Errorf("failed to make turn: %w", err)
	}

	that.emitter.ToGroup(game.ID, Message{Action: EventGameUpdated, Payload: game.Snapshot()})

	if game.IsFinished() {
		that.archiveResult(ctx, game)
		that.matches.ScheduleEviction(game)
		log.Info("game finished", "gameID", game.ID, "winner", game.Winner)
	}

	return nil
}

func (that *Coordinator) handleRestartGame(_ context.Context, evt Event) error {
	log := that.logger.With("method", "handleRestartGame", "playerID", evt.ConnID)

	var payload GamePayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	game, ok := that.matches.Get(payload.GameID)
	if !ok {
		return nil
	}

	if !game.HasPlayer(evt.ConnID) {
		log.Warn("restart attempt by non-participant", "gameID", game.ID)
		return nil
	}

	game, ok = that.matches.Restart(game.ID)
	if !ok {
		return nil
	}

	that.emitter.ToGroup(game.ID, Message{Action: EventGameRestarted, Payload: game.Snapshot()})

	log.Info("game restarted", "gameID", game.ID)

	return nil
}

func (that *Coordinator) handleLeaveGame(_ context.Context, evt Event) error {
	log := that.logger.With("method", "handleLeaveGame", "playerID", evt.ConnID)

	var payload GamePayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	game, ok := that.matches.Get(payload.GameID)
	if !ok {
		return nil
	}

	if !game.HasPlayer(evt.ConnID) {
		log.Warn("leave attempt by non-participant", "gameID", game.ID)
		return nil
	}

	that.emitter.LeaveGroup(game.ID, evt.ConnID)
	that.matches.Remove(game.ID)
	that.emitter.ToGroup(game.ID, Message{Action: EventPlayerLeft})
	that.emitter.RemoveGroup(game.ID)

	log.Info("player left game", "gameID", game.ID)

	return nil
}

func (that *Coordinator) handleLeaveRoom(_ context.Context, evt Event) error {
	var payload RoomPayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	room, destroyed := that.rooms.LeaveRoom(payload.RoomCode, evt.ConnID)
	if room == nil {
		return nil
	}

	that.emitter.LeaveGroup(room.Code, evt.ConnID)

	if destroyed {
		that.emitter.RemoveGroup(room.Code)
		return nil
	}

	that.emitter.ToGroup(room.Code, Message{Action: EventRoomUpdated, Payload: roomState(room)})

	return nil
}

// handleDisconnect - full cleanup: the connection loses its queue slot, its
// rooms and every match it participates in; survivors get notified.
func (that *Coordinator) handleDisconnect(_ context.Context, evt Event) error {
	log := that.logger.With("method", "handleDisconnect", "playerID", evt.ConnID)

	that.queue.Remove(evt.ConnID)

	for _, change := range that.rooms.PurgeConnection(evt.ConnID) {
		that.emitter.LeaveGroup(change.Room.Code, evt.ConnID)

		if change.Destroyed {
			that.emitter.RemoveGroup(change.Room.Code)
			continue
		}

		that.emitter.ToGroup(change.Room.Code, Message{Action: EventRoomUpdated, Payload: roomState(change.Room)})
	}

	for _, game := range that.matches.Purge(evt.ConnID) {
		that.emitter.LeaveGroup(game.ID, evt.ConnID)
		that.emitter.ToGroup(game.ID, Message{Action: EventPlayerLeft})
		that.emitter.RemoveGroup(game.ID)
	}

	log.Info("connection cleaned up")

	return nil
}

func (that *Coordinator) archiveResult(ctx context.Context, game *entity.Game) {
	if err := that.results.Record(ctx, game); err != nil {
		that.logger.Error("failed to archive game result", "gameID", game.ID, "error", err)
	}
}

// isRuleRejection - rejected-by-rule errors are reported to the requesting
// connection only and leave all state unchanged.
func isRuleRejection(err error) bool {
	return errors.Is(err, apperror.ErrNotYourTurn) ||
		errors.Is(err, apperror.ErrCellOccupied) ||
		errors.Is(err, apperror.ErrInvalidCell) ||
		errors.Is(err, apperror.ErrNotParticipant) ||
		errors.Is(err, apperror.ErrGameFinished) ||
		errors.Is(err, apperror.ErrGameIsNotStarted)
}
