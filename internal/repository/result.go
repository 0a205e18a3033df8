package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/luannguyenhoang/XO/internal/entity"
)

var ErrResultNotFound = errors.New("result not found")

// GameResult is the archived record of one concluded game. Live coordination
// state never touches storage; only finished outcomes are written here.
type GameResult struct {
	ID         string    `json:"id"`
	Board      [9]string `json:"board"`
	Winner     string    `json:"winner"`
	Players    []string  `json:"players"`
	FinishedAt time.Time `json:"finished_at"`
}

type ResultRepository interface {
	Record(ctx context.Context, game *entity.Game) error
	GetByID(ctx context.Context, id string) (*GameResult, error)
	Wins(ctx context.Context, playerID string) (int64, error)
	Draws(ctx context.Context, playerID string) (int64, error)
}

type dbResult struct {
	client *redis.Client
}

func NewResultRepository(client *redis.Client) ResultRepository {
	return &dbResult{
		client: client,
	}
}

// Record - archives the concluded game and bumps per-player tallies.
func (that *dbResult) Record(ctx context.Context, game *entity.Game) error {
	result := GameResult{
		ID:         game.ID,
		Board:      game.Board,
		Winner:     game.Winner,
		Players:    append([]string(nil), game.Players...),
		FinishedAt: time.Now().UTC(),
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("could not marshal result: %w", err)
	}

	resultKey := "result:" + game.ID
	if err = that.client.Set(ctx, resultKey, resultJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to set result: %w", err)
	}

	if winner := game.WinnerPlayer(); winner != "" {
		if err = that.client.Incr(ctx, winsKey(winner)).Err(); err != nil {
			return fmt.Errorf("failed to bump wins tally: %w", err)
		}
		return nil
	}

	for _, playerID := range game.Players {
		if err = that.client.Incr(ctx, drawsKey(playerID)).Err(); err != nil {
			return fmt.Errorf("failed to bump draws tally: %w", err)
		}
	}

	return nil
}

func (that *dbResult) GetByID(ctx context.Context, id string) (*GameResult, error) {
	response, err := that.client.Get(ctx, "result:"+id).Result()

	if errors.Is(err, redis.Nil) {
		return nil, ErrResultNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	var result GameResult
	if err = json.Unmarshal([]byte(response), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	return &result, nil
}

func (that *dbResult) Wins(ctx context.Context, playerID string) (int64, error) {
	return that.tally(ctx, winsKey(playerID))
}

func (that *dbResult) Draws(ctx context.Context, playerID string) (int64, error) {
	return that.tally(ctx, drawsKey(playerID))
}

func (that *dbResult) tally(ctx context.Context, key string) (int64, error) {
	count, err := that.client.Get(ctx, key).Int64()

	if errors.Is(err, redis.Nil) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("failed to get tally: %w", err)
	}

	return count, nil
}

func winsKey(playerID string) string {
	return "tally:wins:" + playerID
}

func drawsKey(playerID string) string {
	return "tally:draws:" + playerID
}
