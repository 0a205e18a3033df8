package coordinator

import (
	"encoding/json"

	"github.com/luannguyenhoang/XO/internal/entity"
)

// Client-to-server actions.
const (
	ActionJoinGame      = "join-game"
	ActionCreateRoom    = "create-room"
	ActionJoinRoom      = "join-room"
	ActionStartRoomGame = "start-room-game"
	ActionMakeMove      = "make-move"
	ActionRestartGame   = "restart-game"
	ActionLeaveGame     = "leave-game"
	ActionLeaveRoom     = "leave-room"
	ActionDisconnect    = "disconnect"
)

// Server-to-client events.
const (
	EventWaitingForPlayer = "waiting-for-player"
	EventGameStarted      = "game-started"
	EventGameUpdated      = "game-updated"
	EventGameRestarted    = "game-restarted"
	EventPlayerLeft       = "player-left"
	EventRoomCreated      = "room-created"
	EventRoomUpdated      = "room-updated"
	EventRoomJoinFailed   = "room-join-failed"
	EventStartGameFailed  = "start-game-failed"
	EventMoveRejected     = "move-rejected"
)

// Event is one inbound client intent, bound to the connection that sent it.
// Transport-level disconnects arrive as an Event with ActionDisconnect.
type Event struct {
	ConnID  string
	Action  string
	Payload json.RawMessage
}

// Message is the outbound envelope written to clients.
type Message struct {
	Action  string `json:"action"`
	Payload any    `json:"payload,omitempty"`
}

type MovePayload struct {
	GameID   string `json:"gameId"`
	Position int    `json:"position"`
}

type GamePayload struct {
	GameID string `json:"gameId"`
}

type RoomPayload struct {
	RoomCode string `json:"roomCode"`
}

// RoomState is the lobby view sent on room-created and room-updated.
type RoomState struct {
	RoomCode string   `json:"roomCode"`
	Players  []string `json:"players"`
	Status   string   `json:"status"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func roomState(room *entity.Room) RoomState {
	return RoomState{
		RoomCode: room.Code,
		Players:  append([]string(nil), room.Players...),
		Status:   room.Status,
	}
}
