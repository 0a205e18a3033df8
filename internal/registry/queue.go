package registry

import (
	"sync"

	"github.com/luannguyenhoang/XO/internal/entity"
)

// QuickPlayQueue is the anonymous matchmaking slot. It holds at most one
// waiting connection: the next distinct arrival pairs with it and empties
// the slot. This is a deliberate simplification, not a matchmaking pool.
type QuickPlayQueue struct {
	matches *MatchRegistry

	mu      sync.Mutex
	waiting string
}

func NewQuickPlayQueue(matches *MatchRegistry) *QuickPlayQueue {
	return &QuickPlayQueue{matches: matches}
}

// Enqueue - stores the connection when the slot is free and reports queued;
// otherwise pairs the stored connection with the arrival into a new match.
// Enqueuing the already-queued connection again keeps it queued.
func (that *QuickPlayQueue) Enqueue(playerID string) (*entity.Game, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.waiting == "" || that.waiting == playerID {
		that.waiting = playerID
		return nil, false
	}

	first := that.waiting
	that.waiting = ""

	return that.matches.Create(first, playerID), true
}

// Remove - frees the slot if this connection holds it; no-op otherwise.
func (that *QuickPlayQueue) Remove(playerID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.waiting == playerID {
		that.waiting = ""
	}
}
