package server

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/zeusync/markov/internal/core/observability/log"
)

type ChatMessage struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
	Room    string `json:"room,omitempty"`
}

func (m ChatMessage) validate() error {
	if strings.TrimSpace(m.Message) == "" {
		return errors.Join(ErrInvalidMessage, errors.New("empty message"))
	}
	return nil
}

func (s *Server) handleWebSocketChat(c *client, room *Room) {
	clientLogger := s.logger.With(log.String("client_id", c.id), log.String("room", room.name))

	defer func() {
		room.leave(c)
		_ = c.conn.Close()
		s.clientCount.Add(-1)
		clientLogger.Info("Client disconnected", log.Int64("total_clients", s.clientCount.Load()))
	}()

	for {
		_, p, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				clientLogger.Warn("Failed to read message", log.Error(err))
			}
			return
		}

		var msg ChatMessage
		if err := json.Unmarshal(p, &msg); err != nil {
			clientLogger.Debug("Ignoring malformed message", log.Error(err))
			continue
		}
		if err := msg.validate(); err != nil {
			clientLogger.Debug("Ignoring message", log.Error(err))
			continue
		}
		msg.Room = room.name

		room.broadcast(msg, s.config.WriteTimeout, clientLogger)
		s.respond(room, msg, clientLogger)
	}
}

// respond hands msg to the bot and broadcasts its answer, if any.
func (s *Server) respond(room *Room, msg ChatMessage, logger log.Log) (ChatMessage, bool) {
	reply, ok, err := s.bot.Handle(room.name, msg.Sender, msg.Message)
	if err != nil {
		logger.Error("Bot failed to handle message", log.Error(err))
	}
	if !ok {
		return ChatMessage{}, false
	}

	answer := ChatMessage{Sender: s.bot.Name(), Message: reply, Room: room.name}
	room.broadcast(answer, s.config.WriteTimeout, logger)
	return answer, true
}
