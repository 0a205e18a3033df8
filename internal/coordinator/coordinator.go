package coordinator

import (
	"context"
	"log/slog"

	"github.com/luannguyenhoang/XO/internal/entity"
	"github.com/luannguyenhoang/XO/internal/registry"
)

const inboxSize = 64

// emitter is the transport primitive the coordinator speaks to: per-connection
// identity, named multicast groups, fire-and-forget ordered delivery.
type emitter interface {
	ToConn(playerID string, msg Message)
	ToGroup(group string, msg Message)
	JoinGroup(group, playerID string)
	LeaveGroup(group, playerID string)
	RemoveGroup(group string)
}

// resultArchive receives concluded games; failures never affect game flow.
type resultArchive interface {
	Record(ctx context.Context, game *entity.Game) error
}

// Coordinator binds inbound client events to registry operations and fans the
// resulting state changes out to the right connections. Every event is handled
// to completion on a single goroutine before the next one is taken, so no
// interleaved partial mutation of match, room or queue state is possible.
type Coordinator struct {
	logger  *slog.Logger
	emitter emitter

	matches *registry.MatchRegistry
	rooms   *registry.RoomRegistry
	queue   *registry.QuickPlayQueue
	results resultArchive

	inbox    chan Event
	done     chan struct{}
	handlers map[string]func(ctx context.Context, evt Event) error
}

func New(
	logger *slog.Logger,
	emitter emitter,
	matches *registry.MatchRegistry,
	rooms *registry.RoomRegistry,
	queue *registry.QuickPlayQueue,
	results resultArchive,
) *Coordinator {
	that := &Coordinator{
		logger:  logger.With("component", "coordinator"),
		emitter: emitter,

		matches: matches,
		rooms:   rooms,
		queue:   queue,
		results: results,

		inbox:    make(chan Event, inboxSize),
		done:     make(chan struct{}),
		handlers: make(map[string]func(context.Context, Event) error),
	}

	that.handlers[ActionJoinGame] = that.handleJoinGame
	that.handlers[ActionCreateRoom] = that.handleCreateRoom
	that.handlers[ActionJoinRoom] = that.handleJoinRoom
	that.handlers[ActionStartRoomGame] = that.handleStartRoomGame
	that.handlers[ActionMakeMove] = that.handleMakeMove
	that.handlers[ActionRestartGame] = that.handleRestartGame
	that.handlers[ActionLeaveGame] = that.handleLeaveGame
	that.handlers[ActionLeaveRoom] = that.handleLeaveRoom
	that.handlers[ActionDisconnect] = that.handleDisconnect

	return that
}

// Enqueue - hands an event to the coordinator loop. Events enqueued after the
// loop stopped are dropped so read-loop goroutines never hang on shutdown.
func (that *Coordinator) Enqueue(evt Event) {
	select {
	case that.inbox <- evt:
	case <-that.done:
	}
}

// Run - drains the inbox until the context is canceled.
func (that *Coordinator) Run(ctx context.Context) {
	log := that.logger.With("method", "Run")
	log.Info("coordinator started")

	for {
		select {
		case <-ctx.Done():
			close(that.done)
			log.Info("coordinator stopped")
			return
		case evt := <-that.inbox:
			that.handle(ctx, evt)
		}
	}
}

func (that *Coordinator) handle(ctx context.Context, evt Event) {
	log := that.logger.With("method", "handle", "action", evt.Action, "playerID", evt.ConnID)

	handler, ok := that.handlers[evt.Action]
	if !ok {
		log.Warn("unknown action")
		return
	}

	if err := handler(ctx, evt); err != nil {
		log.Error("error processing event", "error", err)
	}
}
