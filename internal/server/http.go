package server

import (
	"encoding/json"
	"net/http"

	"github.com/zeusync/markov/internal/core/observability/log"
)

// ChatResponse is the answer to a POST /chat.
type ChatResponse struct {
	Replied bool        `json:"replied"`
	Reply   ChatMessage `json:"reply"`
}

// handleHTTPChat takes one ChatMessage, relays it to the websocket clients of
// its room and answers with the bot's reply.
func (s *Server) handleHTTPChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var msg ChatMessage
	body := http.MaxBytesReader(w, r.Body, s.config.MaxMessageSize)
	if err := json.NewDecoder(body).Decode(&msg); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := msg.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if msg.Room == "" {
		msg.Room = s.config.DefaultRoom
	}

	logger := s.logger.With(log.String("room", msg.Room), log.String("remote_addr", r.RemoteAddr))
	room := s.getOrCreateRoom(msg.Room)
	room.broadcast(msg, s.config.WriteTimeout, logger)

	reply, ok := s.respond(room, msg, logger)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ChatResponse{Replied: ok, Reply: reply}); err != nil {
		logger.Warn("Failed to write response", log.Error(err))
	}
}
