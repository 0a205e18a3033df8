package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/luannguyenhoang/XO/internal/coordinator"
	"github.com/luannguyenhoang/XO/internal/pkg"
)

// EventSink consumes decoded client events, one per inbound frame plus a
// final disconnect event when the connection's read loop ends.
type EventSink interface {
	Enqueue(evt coordinator.Event)
}

type connection struct {
	id   string
	sock *websocket.Conn

	// guards concurrent writes; gorilla allows one writer at a time
	mu sync.Mutex
}

// Server owns the websocket listener, the connection identity map and the
// named multicast groups. It implements the coordinator's emitter.
type Server struct {
	logger *slog.Logger

	upgrader websocket.Upgrader

	mu     sync.RWMutex
	conns  map[string]*connection
	groups map[string]map[string]struct{}
}

func New(logger *slog.Logger) *Server {
	return &Server{
		logger: logger.With("component", "websocket"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns:  make(map[string]*connection),
		groups: make(map[string]map[string]struct{}),
	}
}

// Start - serves /ws until the context is canceled.
func (that *Server) Start(ctx context.Context, port string, sink EventSink) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(w, r, sink)
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// serveConnection - upgrades, assigns a connection identity and runs the read
// loop. Each decoded message is handed to the sink; the read loop ending, for
// whatever reason, is reported as a disconnect.
func (that *Server) serveConnection(w http.ResponseWriter, r *http.Request, sink EventSink) {
	log := that.logger.With("method", "serveConnection")

	sock, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	conn := &connection{
		id:   pkg.GenerateNewSessionID(),
		sock: sock,
	}

	that.mu.Lock()
	that.conns[conn.id] = conn
	that.mu.Unlock()

	log = log.With("playerID", conn.id)
	log.Info("connection established")

	defer func() {
		that.dropConnection(conn.id)
		sink.Enqueue(coordinator.Event{ConnID: conn.id, Action: coordinator.ActionDisconnect})
		log.Info("connection closed")
	}()

	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			return
		}

		var msg inboundMessage
		if err = json.Unmarshal(data, &msg); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			continue
		}

		sink.Enqueue(coordinator.Event{
			ConnID:  conn.id,
			Action:  msg.Action,
			Payload: msg.Payload,
		})
	}
}

func (that *Server) dropConnection(playerID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if conn, ok := that.conns[playerID]; ok {
		_ = conn.sock.Close()
		delete(that.conns, playerID)
	}

	for group, members := range that.groups {
		delete(members, playerID)
		if len(members) == 0 {
			delete(that.groups, group)
		}
	}
}

// ToConn - fire-and-forget delivery to one connection.
func (that *Server) ToConn(playerID string, msg coordinator.Message) {
	that.mu.RLock()
	conn, ok := that.conns[playerID]
	that.mu.RUnlock()

	if !ok {
		that.logger.Warn("connection not found", "playerID", playerID)
		return
	}

	that.write(conn, msg)
}

// ToGroup - fire-and-forget delivery to every member of a group.
func (that *Server) ToGroup(group string, msg coordinator.Message) {
	that.mu.RLock()
	members := make([]*connection, 0, len(that.groups[group]))
	for playerID := range that.groups[group] {
		if conn, ok := that.conns[playerID]; ok {
			members = append(members, conn)
		}
	}
	that.mu.RUnlock()

	for _, conn := range members {
		that.write(conn, msg)
	}
}

func (that *Server) JoinGroup(group, playerID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	members, ok := that.groups[group]
	if !ok {
		members = make(map[string]struct{})
		that.groups[group] = members
	}
	members[playerID] = struct{}{}
}

func (that *Server) LeaveGroup(group, playerID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if members, ok := that.groups[group]; ok {
		delete(members, playerID)
		if len(members) == 0 {
			delete(that.groups, group)
		}
	}
}

func (that *Server) RemoveGroup(group string) {
	that.mu.Lock()
	delete(that.groups, group)
	that.mu.Unlock()
}

func (that *Server) write(conn *connection, msg coordinator.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		that.logger.Error("failed to marshal message", "action", msg.Action, "error", err)
		return
	}

	conn.mu.Lock()
	err = conn.sock.WriteMessage(websocket.TextMessage, data)
	conn.mu.Unlock()

	if err != nil {
		that.logger.Error("failed to write message", "playerID", conn.id, "error", err)
	}
}
