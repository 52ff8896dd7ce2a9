package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zeusync/markov/internal/core/observability/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type client struct {
	id   string
	conn *websocket.Conn
}

// Room is a set of clients that see each other's messages. Writes to its
// clients happen under mu, so no connection is written concurrently.
type Room struct {
	name    string
	clients map[*client]bool
	mu      sync.Mutex
}

func (r *Room) join(c *client) {
	r.mu.Lock()
	r.clients[c] = true
	r.mu.Unlock()
}

func (r *Room) leave(c *client) {
	r.mu.Lock()
	delete(r.clients, c)
	r.mu.Unlock()
}

// broadcast sends msg to every client in the room, dropping clients that fail.
func (r *Room) broadcast(msg ChatMessage, timeout time.Duration, logger log.Log) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for c := range r.clients {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			logger.Warn("Dropping client after failed write",
				log.String("client_id", c.id),
				log.String("room", r.name),
				log.Error(err))
			_ = c.conn.Close()
			delete(r.clients, c)
		}
	}
}

func (r *Room) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for c := range r.clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = c.conn.Close()
		delete(r.clients, c)
	}
}

func (s *Server) getOrCreateRoom(roomID string) *Room {
	s.roomsMu.Lock()
	defer s.roomsMu.Unlock()

	if room, exists := s.rooms[roomID]; exists {
		return room
	}

	room := &Room{
		name:    roomID,
		clients: make(map[*client]bool),
	}
	s.rooms[roomID] = room
	return room
}

func (s *Server) roomID(r *http.Request) string {
	if roomID := r.URL.Query().Get("roomID"); roomID != "" {
		return roomID
	}
	return s.config.DefaultRoom
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := s.roomID(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", log.String("remote_addr", r.RemoteAddr), log.Error(err))
		return
	}
	conn.SetReadLimit(s.config.MaxMessageSize)

	c := &client{id: uuid.NewString(), conn: conn}
	room := s.getOrCreateRoom(roomID)
	room.join(c)
	s.clientCount.Add(1)

	s.logger.Info("Client connected",
		log.String("client_id", c.id),
		log.String("room", roomID),
		log.String("remote_addr", conn.RemoteAddr().String()),
		log.Int64("total_clients", s.clientCount.Load()))

	s.handleWebSocketChat(c, room)
}
