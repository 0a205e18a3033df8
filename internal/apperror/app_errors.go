package apperror

import "errors"

var (
	ErrGameFinished     = errors.New("game is already finished")
	ErrGameIsNotStarted = errors.New("game is not started")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrCellOccupied     = errors.New("cell is already occupied")
	ErrInvalidCell      = errors.New("invalid cell index")
	ErrNotParticipant   = errors.New("player is not part of this game")

	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is already full")
	ErrNotRoomHost  = errors.New("only the host can start the game")
	ErrRoomNotReady = errors.New("room needs two players to start")
)
