package entity

const (
	RoomStatusWaiting = "waiting"
	RoomStatusPlaying = "playing"

	RoomCapacity = 2
)

// Room is a pre-match lobby identified by a short shareable code. The host
// stays in Players until it leaves; the room dies with its last player.
type Room struct {
	Code    string   `json:"roomCode"`
	Host    string   `json:"host"`
	Players []string `json:"players"`
	GameID  string   `json:"game_id,omitempty"`
	Status  string   `json:"status"`
}

func NewRoom(code, host string) *Room {
	return &Room{
		Code:    code,
		Host:    host,
		Players: []string{host},
		Status:  RoomStatusWaiting,
	}
}

func (that *Room) HasPlayer(playerID string) bool {
	for _, id := range that.Players {
		if id == playerID {
			return true
		}
	}
	return false
}

func (that *Room) IsFull() bool {
	return len(that.Players) >= RoomCapacity
}

func (that *Room) IsEmpty() bool {
	return len(that.Players) == 0
}

// RemovePlayer - drops the id from the player list; no-op if absent.
func (that *Room) RemovePlayer(playerID string) {
	players := that.Players[:0]
	for _, id := range that.Players {
		if id != playerID {
			players = append(players, id)
		}
	}
	that.Players = players
}
