package registry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/luannguyenhoang/XO/internal/entity"
	"github.com/luannguyenhoang/XO/internal/pkg"
)

// DefaultGrace is how long a finished match stays around for late snapshot
// delivery before the registry evicts it.
const DefaultGrace = 10 * time.Second

// MatchRegistry exclusively owns all live matches, keyed by game id.
type MatchRegistry struct {
	logger *slog.Logger
	grace  time.Duration

	mu      sync.Mutex
	matches map[string]*entity.Game
}

func NewMatchRegistry(logger *slog.Logger, grace time.Duration) *MatchRegistry {
	return &MatchRegistry{
		logger:  logger.With("component", "match_registry"),
		grace:   grace,
		matches: make(map[string]*entity.Game),
	}
}

// Create - allocates an id, builds an ongoing game for the pair and registers
// it. Participant order fixes mark assignment.
func (that *MatchRegistry) Create(playerA, playerB string) *entity.Game {
	game := entity.NewGame(pkg.GenerateGameID(), playerA, playerB)

	that.mu.Lock()
	that.matches[game.ID] = game
	that.mu.Unlock()

	that.logger.Info("game created", "gameID", game.ID)

	return game
}

func (that *MatchRegistry) Get(id string) (*entity.Game, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	game, ok := that.matches[id]
	return game, ok
}

// Remove - evicts the game from the registry; idempotent.
func (that *MatchRegistry) Remove(id string) {
	that.mu.Lock()
	delete(that.matches, id)
	that.mu.Unlock()
}

// Purge - removes every match the connection participates in and reports the
// removed games so the caller can notify survivors.
func (that *MatchRegistry) Purge(playerID string) []*entity.Game {
	that.mu.Lock()
	defer that.mu.Unlock()

	var removed []*entity.Game
	for id, game := range that.matches {
		if game.HasPlayer(playerID) {
			delete(that.matches, id)
			removed = append(removed, game)
		}
	}

	return removed
}

// Restart - resets the game back to an empty ongoing board while keeping the
// same participants. Restarts go through the registry so the generation bump
// and a pending eviction timer synchronize on the same lock.
func (that *MatchRegistry) Restart(id string) (*entity.Game, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	game, ok := that.matches[id]
	if !ok {
		return nil, false
	}

	game.Reset()

	return game, true
}

// ScheduleEviction - fire-and-forget removal of a finished game after the
// grace window. The timer captures the game's generation: if the game was
// restarted (or already replaced) by the time it fires, eviction is a no-op.
func (that *MatchRegistry) ScheduleEviction(game *entity.Game) {
	that.mu.Lock()
	generation := game.Generation()
	that.mu.Unlock()

	time.AfterFunc(that.grace, func() {
		that.mu.Lock()
		defer that.mu.Unlock()

		current, ok := that.matches[game.ID]
		if !ok || current != game || current.Generation() != generation {
			return
		}

		delete(that.matches, game.ID)
		that.logger.Info("finished game evicted", "gameID", game.ID)
	})
}
