package pkg

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

const (
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeLength   = 6
)

// GenerateGameID - unique per process lifetime; time-derived is enough here.
func GenerateGameID() string {
	return fmt.Sprintf("game_%d", time.Now().UnixNano())
}

// GenerateNewSessionID - identity for a freshly accepted connection.
func GenerateNewSessionID() string {
	return uuid.NewString()
}

// GenerateRoomCode - a short human-shareable code. Uniqueness against live
// rooms is the registry's job, not this function's.
func GenerateRoomCode() string {
	code := make([]byte, roomCodeLength)
	for i := range code {
		code[i] = roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))] //nolint: gosec // not a secret
	}
	return string(code)
}
