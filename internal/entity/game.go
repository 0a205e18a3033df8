package entity

import (
	"fmt"

	"github.com/luannguyenhoang/XO/internal/apperror"
)

const (
	StatusFinished = "finished"
	StatusOngoing  = "ongoing"
	StatusWaiting  = "waiting"

	PlayerX   = "X"
	PlayerO   = "O"
	PlayerTie = "-"

	EmptyCell = ""
)

// WinCombos lists the 8 winning triples: rows first, then columns, then diagonals.
var WinCombos = [][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Game is one live match between two bound connections. Players order fixes
// mark assignment: Players[0] plays X, Players[1] plays O.
type Game struct {
	ID      string    `json:"id"`
	Board   [9]string `json:"board"`
	Turn    string    `json:"player_turn"`
	Winner  string    `json:"winner,omitempty"`
	Status  string    `json:"status"`
	Players []string  `json:"players"`

	// generation distinguishes the logical instance across restarts,
	// so a stale eviction timer never deletes a restarted game.
	generation int
}

func NewGame(id, playerA, playerB string) *Game {
	return &Game{
		ID:      id,
		Board:   [9]string{},
		Turn:    PlayerX,
		Status:  StatusOngoing,
		Players: []string{playerA, playerB},
	}
}

// MarkOf - returns the mark bound to the given connection.
func (that *Game) MarkOf(playerID string) (string, error) {
	switch {
	case len(that.Players) > 0 && that.Players[0] == playerID:
		return PlayerX, nil
	case len(that.Players) > 1 && that.Players[1] == playerID:
		return PlayerO, nil
	default:
		return "", apperror.ErrNotParticipant
	}
}

func (that *Game) HasPlayer(playerID string) bool {
	_, err := that.MarkOf(playerID)
	return err == nil
}

// MakeTurn - applies a move by the given connection. The move is rejected
// when the game is not ongoing, the cell is out of range or occupied, or the
// claimant is not the connection bound to the mark on turn.
func (that *Game) MakeTurn(playerID string, cell int) error {
	if err := that.ConfirmOngoingState(); err != nil {
		return err
	}

	mark, err := that.MarkOf(playerID)
	if err != nil {
		return err
	}

	if cell < 0 || cell >= len(that.Board) {
		return fmt.Errorf("%w: cell %d", apperror.ErrInvalidCell, cell)
	}

	if mark != that.Turn {
		return apperror.ErrNotYourTurn
	}

	if that.Board[cell] != EmptyCell {
		return apperror.ErrCellOccupied
	}

	that.Board[cell] = mark
	that.UpdateGameState()

	return nil
}

// DetermineGameResult - scans the win triples in fixed order and reports the
// winning mark, PlayerTie on a full board, or EmptyCell while play continues.
func (that *Game) DetermineGameResult() string {
	for _, combo := range WinCombos {
		a, b, c := that.Board[combo[0]], that.Board[combo[1]], that.Board[combo[2]]
		if a != EmptyCell && a == b && b == c {
			return a
		}
	}

	// the game will continue until all the squares are full
	for _, cell := range that.Board {
		if cell == EmptyCell {
			return ""
		}
	}

	return PlayerTie
}

func (that *Game) UpdateGameState() {
	switch winner := that.DetermineGameResult(); winner {
	case PlayerX, PlayerO, PlayerTie:
		that.Winner = winner
		that.Status = StatusFinished
		that.Turn = ""
	default:
		that.Turn = toggleMark(that.Turn)
	}
}

// Reset - returns the board to its initial state and keeps the same
// participants. Only the match owner calls this, never a client directly.
func (that *Game) Reset() {
	that.Board = [9]string{}
	that.Turn = PlayerX
	that.Winner = ""
	that.Status = StatusOngoing
	that.generation++
}

// Snapshot - produces a read-only value copy for transmission.
func (that *Game) Snapshot() Game {
	snapshot := *that
	snapshot.Players = append([]string(nil), that.Players...)
	return snapshot
}

func (that *Game) Generation() int {
	return that.generation
}

func (that *Game) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *Game) IsOngoing() bool {
	return that.Status == StatusOngoing
}

func (that *Game) ConfirmOngoingState() error {
	switch that.Status {
	case StatusWaiting:
		return apperror.ErrGameIsNotStarted
	case StatusFinished:
		return apperror.ErrGameFinished
	default:
		return nil
	}
}

// WinnerPlayer - resolves the winning mark back to a connection id.
// Returns an empty string for a tie or an unfinished game.
func (that *Game) WinnerPlayer() string {
	switch that.Winner {
	case PlayerX:
		return that.Players[0]
	case PlayerO:
		return that.Players[1]
	default:
		return ""
	}
}

func toggleMark(currentMark string) string {
	if currentMark == PlayerX {
		return PlayerO
	}
	return PlayerX
}
