package registry

import (
	"log/slog"
	"sync"

	"github.com/luannguyenhoang/XO/internal/apperror"
	"github.com/luannguyenhoang/XO/internal/entity"
	"github.com/luannguyenhoang/XO/internal/pkg"
)

// RoomRegistry exclusively owns invite-code rooms. It references matches by
// id but never owns them; match lifecycle stays with the MatchRegistry.
type RoomRegistry struct {
	logger  *slog.Logger
	matches *MatchRegistry

	mu    sync.Mutex
	rooms map[string]*entity.Room
}

// RoomChange reports what a removal did to one room.
type RoomChange struct {
	Room      *entity.Room
	Destroyed bool
}

func NewRoomRegistry(logger *slog.Logger, matches *MatchRegistry) *RoomRegistry {
	return &RoomRegistry{
		logger:  logger.With("component", "room_registry"),
		matches: matches,
		rooms:   make(map[string]*entity.Room),
	}
}

// CreateRoom - opens a new waiting room with a code unique among live rooms.
func (that *RoomRegistry) CreateRoom(hostID string) *entity.Room {
	that.mu.Lock()
	defer that.mu.Unlock()

	code := pkg.GenerateRoomCode()
	for {
		if _, taken := that.rooms[code]; !taken {
			break
		}
		code = pkg.GenerateRoomCode()
	}

	room := entity.NewRoom(code, hostID)
	that.rooms[code] = room

	that.logger.Info("room created", "roomCode", code, "host", hostID)

	return room
}

// JoinRoom - adds the connection to the room. Rejoining by a present id is
// idempotent and returns the room unchanged.
func (that *RoomRegistry) JoinRoom(code, playerID string) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[code]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	if room.HasPlayer(playerID) {
		return room, nil
	}

	if room.IsFull() {
		return nil, apperror.ErrRoomFull
	}

	room.Players = append(room.Players, playerID)

	return room, nil
}

// StartGame - host-only; requires exactly two players. Delegates match
// creation to the MatchRegistry and marks the room playing.
func (that *RoomRegistry) StartGame(code, requesterID string) (*entity.Game, *entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[code]
	if !ok {
		return nil, nil, apperror.ErrRoomNotFound
	}

	if room.Host != requesterID {
		return nil, nil, apperror.ErrNotRoomHost
	}

	if len(room.Players) != entity.RoomCapacity {
		return nil, nil, apperror.ErrRoomNotReady
	}

	game := that.matches.Create(room.Players[0], room.Players[1])
	room.GameID = game.ID
	room.Status = entity.RoomStatusPlaying

	that.logger.Info("room game started", "roomCode", code, "gameID", game.ID)

	return game, room, nil
}

// LeaveRoom - removes the id from the room; destroys the room when its
// player list becomes empty. An unknown code is a soft-fail.
func (that *RoomRegistry) LeaveRoom(code, playerID string) (*entity.Room, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[code]
	if !ok || !room.HasPlayer(playerID) {
		return nil, false
	}

	return room, that.removeLocked(room, playerID)
}

// PurgeConnection - disconnect path: applies leave semantics to every room
// containing the id and reports each affected room.
func (that *RoomRegistry) PurgeConnection(playerID string) []RoomChange {
	that.mu.Lock()
	defer that.mu.Unlock()

	var changes []RoomChange
	for _, room := range that.rooms {
		if !room.HasPlayer(playerID) {
			continue
		}

		destroyed := that.removeLocked(room, playerID)
		changes = append(changes, RoomChange{Room: room, Destroyed: destroyed})
	}

	return changes
}

func (that *RoomRegistry) removeLocked(room *entity.Room, playerID string) bool {
	room.RemovePlayer(playerID)

	if !room.IsEmpty() {
		return false
	}

	delete(that.rooms, room.Code)
	that.logger.Info("room destroyed", "roomCode", room.Code)

	return true
}
