package coordinator

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luannguyenhoang/XO/internal/entity"
	"github.com/luannguyenhoang/XO/internal/registry"
)

type sentMessage struct {
	target  string
	toGroup bool
	msg     Message
}

// fakeEmitter records everything the coordinator asks the transport to do.
type fakeEmitter struct {
	mu            sync.Mutex
	sent          []sentMessage
	groups        map[string]map[string]struct{}
	removedGroups []string
}

func newFakeEmitter() *fakeEmitter {
	return &fakeEmitter{groups: make(map[string]map[string]struct{})}
}

func (that *fakeEmitter) ToConn(playerID string, msg Message) {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.sent = append(that.sent, sentMessage{target: playerID, msg: msg})
}

func (that *fakeEmitter) ToGroup(group string, msg Message) {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.sent = append(that.sent, sentMessage{target: group, toGroup: true, msg: msg})
}

func (that *fakeEmitter) JoinGroup(group, playerID string) {
	that.mu.Lock()
	defer that.mu.Unlock()
	if that.groups[group] == nil {
		that.groups[group] = make(map[string]struct{})
	}
	that.groups[group][playerID] = struct{}{}
}

func (that *fakeEmitter) LeaveGroup(group, playerID string) {
	that.mu.Lock()
	defer that.mu.Unlock()
	delete(that.groups[group], playerID)
}

func (that *fakeEmitter) RemoveGroup(group string) {
	that.mu.Lock()
	defer that.mu.Unlock()
	delete(that.groups, group)
	that.removedGroups = append(that.removedGroups, group)
}

func (that *fakeEmitter) sentTo(target string) []Message {
	that.mu.Lock()
	defer that.mu.Unlock()

	var msgs []Message
	for _, s := range that.sent {
		if s.target == target {
			msgs = append(msgs, s.msg)
		}
	}
	return msgs
}

func (that *fakeEmitter) actionsTo(target string) []string {
	var actions []string
	for _, msg := range that.sentTo(target) {
		actions = append(actions, msg.Action)
	}
	return actions
}

func (that *fakeEmitter) inGroup(group, playerID string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()
	_, ok := that.groups[group][playerID]
	return ok
}

type fakeArchive struct {
	mu       sync.Mutex
	recorded []*entity.Game
}

func (that *fakeArchive) Record(_ context.Context, game *entity.Game) error {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.recorded = append(that.recorded, game)
	return nil
}

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeEmitter, *fakeArchive, *registry.MatchRegistry) {
	t.Helper()

	logger := slog.Default()
	matches := registry.NewMatchRegistry(logger, time.Minute)
	rooms := registry.NewRoomRegistry(logger, matches)
	queue := registry.NewQuickPlayQueue(matches)
	emitter := newFakeEmitter()
	archive := &fakeArchive{}

	return New(logger, emitter, matches, rooms, queue, archive), emitter, archive, matches
}

func mustPayload(t *testing.T, v any) json.RawMessage {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func (that *Coordinator) dispatch(t *testing.T, connID, action string, payload any) {
	t.Helper()

	evt := Event{ConnID: connID, Action: action}
	if payload != nil {
		evt.Payload = mustPayload(t, payload)
	}
	that.handle(context.Background(), evt)
}

func startQuickPlayGame(t *testing.T, coord *Coordinator, emitter *fakeEmitter, matches *registry.MatchRegistry) *entity.Game {
	t.Helper()

	coord.dispatch(t, "a", ActionJoinGame, nil)
	coord.dispatch(t, "b", ActionJoinGame, nil)

	_, snapshot := gameStartedBroadcast(t, emitter)

	game, ok := matches.Get(snapshot.ID)
	require.True(t, ok)

	return game
}

// gameStartedBroadcast returns the most recent game-started group broadcast.
func gameStartedBroadcast(t *testing.T, emitter *fakeEmitter) (string, entity.Game) {
	t.Helper()

	emitter.mu.Lock()
	defer emitter.mu.Unlock()

	for i := len(emitter.sent) - 1; i >= 0; i-- {
		s := emitter.sent[i]
		if s.toGroup && s.msg.Action == EventGameStarted {
			snapshot, ok := s.msg.Payload.(entity.Game)
			require.True(t, ok)
			return s.target, snapshot
		}
	}

	t.Fatal("no game-started broadcast recorded")
	return "", entity.Game{}
}

// gameGroupOf finds the single game group the fake emitter knows about.
func gameGroupOf(t *testing.T, emitter *fakeEmitter) string {
	t.Helper()

	emitter.mu.Lock()
	defer emitter.mu.Unlock()

	require.Len(t, emitter.groups, 1)
	for group := range emitter.groups {
		return group
	}
	return ""
}

func TestCoordinator_Shutdown(t *testing.T) {
	t.Run("Enqueue after stop never blocks the caller", func(t *testing.T) {
		// Given: a coordinator whose loop has stopped
		coord, _, _, _ := newTestCoordinator(t)
		ctx, cancel := context.WithCancel(context.Background())

		stopped := make(chan struct{})
		go func() {
			coord.Run(ctx)
			close(stopped)
		}()

		cancel()
		<-stopped

		// When: more events arrive than the inbox can hold
		delivered := make(chan struct{})
		go func() {
			for i := 0; i < inboxSize+1; i++ {
				coord.Enqueue(Event{ConnID: "a", Action: ActionJoinGame})
			}
			close(delivered)
		}()

		// Then: every call returns instead of hanging on the full inbox
		select {
		case <-delivered:
		case <-time.After(time.Second):
			t.Fatal("Enqueue blocked after the coordinator stopped")
		}
	})
}

func TestCoordinator_QuickPlay(t *testing.T) {
	t.Run("First arrival waits, second starts the game", func(t *testing.T) {
		// Given: a fresh coordinator
		coord, emitter, _, matches := newTestCoordinator(t)

		// When: a joins the queue
		coord.dispatch(t, "a", ActionJoinGame, nil)

		// Then: a is told to wait
		assert.Equal(t, []string{EventWaitingForPlayer}, emitter.actionsTo("a"))

		// When: b joins
		coord.dispatch(t, "b", ActionJoinGame, nil)

		// Then: both are in the match group and game-started carries the snapshot
		group := gameGroupOf(t, emitter)
		assert.True(t, emitter.inGroup(group, "a"))
		assert.True(t, emitter.inGroup(group, "b"))

		msgs := emitter.sentTo(group)
		require.Len(t, msgs, 1)
		assert.Equal(t, EventGameStarted, msgs[0].Action)

		snapshot, ok := msgs[0].Payload.(entity.Game)
		require.True(t, ok)
		assert.Equal(t, []string{"a", "b"}, snapshot.Players)
		assert.Equal(t, entity.StatusOngoing, snapshot.Status)

		_, ok = matches.Get(snapshot.ID)
		assert.True(t, ok)
	})
}

func TestCoordinator_MakeMove(t *testing.T) {
	t.Run("Valid move broadcasts the updated snapshot", func(t *testing.T) {
		// Given: a running quick-play game between a and b
		coord, emitter, _, matches := newTestCoordinator(t)
		game := startQuickPlayGame(t, coord, emitter, matches)

		// When: a plays the center
		coord.dispatch(t, "a", ActionMakeMove, MovePayload{GameID: game.ID, Position: 4})

		// Then: the group sees game-updated with the mark applied
		msgs := emitter.sentTo(game.ID)
		require.Len(t, msgs, 2)
		assert.Equal(t, EventGameUpdated, msgs[1].Action)

		snapshot, ok := msgs[1].Payload.(entity.Game)
		require.True(t, ok)
		assert.Equal(t, entity.PlayerX, snapshot.Board[4])
		assert.Equal(t, entity.PlayerO, snapshot.Turn)
	})

	t.Run("Out-of-turn move is rejected to the offender only", func(t *testing.T) {
		// Given: a running game where it's a's turn
		coord, emitter, _, matches := newTestCoordinator(t)
		game := startQuickPlayGame(t, coord, emitter, matches)

		// When: b moves out of turn
		coord.dispatch(t, "b", ActionMakeMove, MovePayload{GameID: game.ID, Position: 0})

		// Then: b alone gets move-rejected and the board is untouched
		assert.Equal(t, []string{EventMoveRejected}, emitter.actionsTo("b"))
		assert.Len(t, emitter.sentTo(game.ID), 1) // only the original game-started
		assert.Equal(t, [9]string{}, game.Board)
	})

	t.Run("Move by a non-participant is rejected", func(t *testing.T) {
		coord, emitter, _, matches := newTestCoordinator(t)
		game := startQuickPlayGame(t, coord, emitter, matches)

		coord.dispatch(t, "mallory", ActionMakeMove, MovePayload{GameID: game.ID, Position: 0})

		assert.Equal(t, []string{EventMoveRejected}, emitter.actionsTo("mallory"))
		assert.Equal(t, [9]string{}, game.Board)
	})

	t.Run("Stale game id is silently ignored", func(t *testing.T) {
		coord, emitter, _, _ := newTestCoordinator(t)

		coord.dispatch(t, "a", ActionMakeMove, MovePayload{GameID: "game_0", Position: 0})

		assert.Empty(t, emitter.sentTo("a"))
	})

	t.Run("Winning move archives the result and keeps the grace copy", func(t *testing.T) {
		// Given: a game one move away from a's top-row win
		coord, emitter, archive, matches := newTestCoordinator(t)
		game := startQuickPlayGame(t, coord, emitter, matches)

		for _, move := range []struct {
			conn string
			cell int
		}{{"a", 0}, {"b", 3}, {"a", 1}, {"b", 4}} {
			coord.dispatch(t, move.conn, ActionMakeMove, MovePayload{GameID: game.ID, Position: move.cell})
		}

		// When: a completes the row
		coord.dispatch(t, "a", ActionMakeMove, MovePayload{GameID: game.ID, Position: 2})

		// Then: the game concluded with a as winner and the result was archived
		assert.Equal(t, entity.StatusFinished, game.Status)
		assert.Equal(t, "a", game.WinnerPlayer())
		require.Len(t, archive.recorded, 1)
		assert.Equal(t, game.ID, archive.recorded[0].ID)

		// And: the match lingers for late snapshot delivery
		_, ok := matches.Get(game.ID)
		assert.True(t, ok)
	})
}

func TestCoordinator_RestartGame(t *testing.T) {
	t.Run("Participant restart clears the board for the group", func(t *testing.T) {
		// Given: a game with one move played
		coord, emitter, _, matches := newTestCoordinator(t)
		game := startQuickPlayGame(t, coord, emitter, matches)
		coord.dispatch(t, "a", ActionMakeMove, MovePayload{GameID: game.ID, Position: 4})

		// When: b requests a restart
		coord.dispatch(t, "b", ActionRestartGame, GamePayload{GameID: game.ID})

		// Then: the group sees game-restarted with an empty board
		msgs := emitter.sentTo(game.ID)
		require.Len(t, msgs, 3)
		assert.Equal(t, EventGameRestarted, msgs[2].Action)

		snapshot, ok := msgs[2].Payload.(entity.Game)
		require.True(t, ok)
		assert.Equal(t, [9]string{}, snapshot.Board)
		assert.Equal(t, entity.PlayerX, snapshot.Turn)
	})

	t.Run("Restart by a non-participant mutates nothing", func(t *testing.T) {
		coord, emitter, _, matches := newTestCoordinator(t)
		game := startQuickPlayGame(t, coord, emitter, matches)
		coord.dispatch(t, "a", ActionMakeMove, MovePayload{GameID: game.ID, Position: 4})

		coord.dispatch(t, "mallory", ActionRestartGame, GamePayload{GameID: game.ID})

		assert.Equal(t, entity.PlayerX, game.Board[4])
		assert.Len(t, emitter.sentTo(game.ID), 2) // game-started, game-updated
	})
}

func TestCoordinator_LeaveGame(t *testing.T) {
	t.Run("Leaver is detached, peer is notified, match is deleted", func(t *testing.T) {
		// Given: a running game
		coord, emitter, _, matches := newTestCoordinator(t)
		game := startQuickPlayGame(t, coord, emitter, matches)

		// When: a leaves
		coord.dispatch(t, "a", ActionLeaveGame, GamePayload{GameID: game.ID})

		// Then: the match is gone and player-left went to the group after a left it
		_, ok := matches.Get(game.ID)
		assert.False(t, ok)
		assert.False(t, emitter.inGroup(game.ID, "a"))

		msgs := emitter.sentTo(game.ID)
		require.Len(t, msgs, 2)
		assert.Equal(t, EventPlayerLeft, msgs[1].Action)
		assert.Contains(t, emitter.removedGroups, game.ID)
	})

	t.Run("Leave by a non-participant keeps the match alive", func(t *testing.T) {
		coord, emitter, _, matches := newTestCoordinator(t)
		game := startQuickPlayGame(t, coord, emitter, matches)

		coord.dispatch(t, "mallory", ActionLeaveGame, GamePayload{GameID: game.ID})

		_, ok := matches.Get(game.ID)
		assert.True(t, ok)
		assert.Len(t, emitter.sentTo(game.ID), 1)
	})
}

func TestCoordinator_RoomFlow(t *testing.T) {
	roomCodeFrom := func(t *testing.T, emitter *fakeEmitter, host string) string {
		t.Helper()

		msgs := emitter.sentTo(host)
		require.NotEmpty(t, msgs)
		state, ok := msgs[len(msgs)-1].Payload.(RoomState)
		require.True(t, ok)
		return state.RoomCode
	}

	t.Run("Create, join, start", func(t *testing.T) {
		// Given: a fresh coordinator
		coord, emitter, _, matches := newTestCoordinator(t)

		// When: h creates a room
		coord.dispatch(t, "h", ActionCreateRoom, nil)

		// Then: h gets room-created and sits in the room group
		require.Equal(t, []string{EventRoomCreated}, emitter.actionsTo("h"))
		code := roomCodeFrom(t, emitter, "h")
		assert.True(t, emitter.inGroup(code, "h"))

		// When: p joins by code
		coord.dispatch(t, "p", ActionJoinRoom, RoomPayload{RoomCode: code})

		// Then: the room group sees the updated player list
		msgs := emitter.sentTo(code)
		require.Len(t, msgs, 1)
		assert.Equal(t, EventRoomUpdated, msgs[0].Action)
		state, ok := msgs[0].Payload.(RoomState)
		require.True(t, ok)
		assert.Equal(t, []string{"h", "p"}, state.Players)

		// When: the host starts the game
		coord.dispatch(t, "h", ActionStartRoomGame, RoomPayload{RoomCode: code})

		// Then: the room flips to playing and the match group gets game-started
		msgs = emitter.sentTo(code)
		require.Len(t, msgs, 2)
		state, ok = msgs[1].Payload.(RoomState)
		require.True(t, ok)
		assert.Equal(t, entity.RoomStatusPlaying, state.Status)

		gameID, snapshot := gameStartedBroadcast(t, emitter)
		assert.Equal(t, []string{"h", "p"}, snapshot.Players)
		assert.True(t, emitter.inGroup(gameID, "h"))
		assert.True(t, emitter.inGroup(gameID, "p"))

		_, ok = matches.Get(gameID)
		assert.True(t, ok)
	})

	t.Run("Join of a full or unknown room fails only for the requester", func(t *testing.T) {
		coord, emitter, _, _ := newTestCoordinator(t)
		coord.dispatch(t, "h", ActionCreateRoom, nil)
		code := roomCodeFrom(t, emitter, "h")
		coord.dispatch(t, "p", ActionJoinRoom, RoomPayload{RoomCode: code})

		coord.dispatch(t, "q", ActionJoinRoom, RoomPayload{RoomCode: code})
		assert.Equal(t, []string{EventRoomJoinFailed}, emitter.actionsTo("q"))

		coord.dispatch(t, "r", ActionJoinRoom, RoomPayload{RoomCode: "NOSUCH"})
		assert.Equal(t, []string{EventRoomJoinFailed}, emitter.actionsTo("r"))
	})

	t.Run("Non-host start and single-player start fail", func(t *testing.T) {
		coord, emitter, _, _ := newTestCoordinator(t)
		coord.dispatch(t, "h", ActionCreateRoom, nil)
		code := roomCodeFrom(t, emitter, "h")

		// single player
		coord.dispatch(t, "h", ActionStartRoomGame, RoomPayload{RoomCode: code})
		assert.Equal(t, []string{EventRoomCreated, EventStartGameFailed}, emitter.actionsTo("h"))

		// non-host
		coord.dispatch(t, "p", ActionJoinRoom, RoomPayload{RoomCode: code})
		coord.dispatch(t, "p", ActionStartRoomGame, RoomPayload{RoomCode: code})
		assert.Equal(t, []string{EventStartGameFailed}, emitter.actionsTo("p"))
	})

	t.Run("Leaving the room updates or destroys it", func(t *testing.T) {
		coord, emitter, _, _ := newTestCoordinator(t)
		coord.dispatch(t, "h", ActionCreateRoom, nil)
		code := roomCodeFrom(t, emitter, "h")
		coord.dispatch(t, "p", ActionJoinRoom, RoomPayload{RoomCode: code})

		// When: p leaves, the remainder gets the shrunken list
		coord.dispatch(t, "p", ActionLeaveRoom, RoomPayload{RoomCode: code})
		msgs := emitter.sentTo(code)
		state, ok := msgs[len(msgs)-1].Payload.(RoomState)
		require.True(t, ok)
		assert.Equal(t, []string{"h"}, state.Players)

		// When: the host leaves too, the room group is dropped
		coord.dispatch(t, "h", ActionLeaveRoom, RoomPayload{RoomCode: code})
		assert.Contains(t, emitter.removedGroups, code)
	})
}

func TestCoordinator_Disconnect(t *testing.T) {
	t.Run("Queued connection loses its slot", func(t *testing.T) {
		// Given: a waiting in the queue
		coord, emitter, _, _ := newTestCoordinator(t)
		coord.dispatch(t, "a", ActionJoinGame, nil)

		// When: a disconnects and b enqueues
		coord.dispatch(t, "a", ActionDisconnect, nil)
		coord.dispatch(t, "b", ActionJoinGame, nil)

		// Then: b waits instead of being paired with a ghost
		assert.Equal(t, []string{EventWaitingForPlayer}, emitter.actionsTo("b"))
	})

	t.Run("Room member disconnecting shrinks the room", func(t *testing.T) {
		// Given: a 2-player room
		coord, emitter, _, _ := newTestCoordinator(t)
		coord.dispatch(t, "h", ActionCreateRoom, nil)
		state, ok := emitter.sentTo("h")[0].Payload.(RoomState)
		require.True(t, ok)
		coord.dispatch(t, "p", ActionJoinRoom, RoomPayload{RoomCode: state.RoomCode})

		// When: p disconnects
		coord.dispatch(t, "p", ActionDisconnect, nil)

		// Then: the survivor sees the 1-player list
		msgs := emitter.sentTo(state.RoomCode)
		last, ok := msgs[len(msgs)-1].Payload.(RoomState)
		require.True(t, ok)
		assert.Equal(t, EventRoomUpdated, msgs[len(msgs)-1].Action)
		assert.Equal(t, []string{"h"}, last.Players)
	})

	t.Run("Sole room occupant disconnecting destroys the room", func(t *testing.T) {
		coord, emitter, _, _ := newTestCoordinator(t)
		coord.dispatch(t, "h", ActionCreateRoom, nil)
		state, ok := emitter.sentTo("h")[0].Payload.(RoomState)
		require.True(t, ok)

		coord.dispatch(t, "h", ActionDisconnect, nil)

		assert.Contains(t, emitter.removedGroups, state.RoomCode)
	})

	t.Run("In-match disconnect deletes the match and notifies the peer", func(t *testing.T) {
		// Given: a running game
		coord, emitter, _, matches := newTestCoordinator(t)
		game := startQuickPlayGame(t, coord, emitter, matches)

		// When: a disconnects
		coord.dispatch(t, "a", ActionDisconnect, nil)

		// Then: the match is gone and the survivor got player-left
		_, ok := matches.Get(game.ID)
		assert.False(t, ok)

		msgs := emitter.sentTo(game.ID)
		assert.Equal(t, EventPlayerLeft, msgs[len(msgs)-1].Action)
		assert.Contains(t, emitter.removedGroups, game.ID)
	})
}
