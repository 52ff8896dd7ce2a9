// Package server is the chat gateway: clients join rooms over websocket (or
// post single messages over HTTP) and the bot learns from and answers them.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/markov/internal/core/observability/log"
)

// Server represents the chat gateway.
type Server struct {
	bot *Bot

	httpServer *http.Server
	listener   net.Listener

	rooms   map[string]*Room
	roomsMu sync.Mutex

	clientCount atomic.Int64

	running atomic.Bool
	closed  atomic.Bool

	config Config
	logger log.Log
}

// Config holds server configuration
type Config struct {
	ListenAddr string
	// Token, when not empty, is required from every client.
	Token string

	MaxMessageSize int64
	WriteTimeout   time.Duration
	DefaultRoom    string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() Config {
	return Config{
		ListenAddr:     "127.0.0.1:8080",
		MaxMessageSize: 64 * 1024,
		WriteTimeout:   10 * time.Second,
		DefaultRoom:    "general",
	}
}

func NewServer(config Config, bot *Bot, logger log.Log) *Server {
	defaults := DefaultServerConfig()
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = defaults.MaxMessageSize
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.DefaultRoom == "" {
		config.DefaultRoom = defaults.DefaultRoom
	}

	s := &Server{
		bot:    bot,
		rooms:  make(map[string]*Room),
		config: config,
		logger: logger.With(log.String("component", "server")),
	}

	s.logger.Info("Server created",
		log.String("listen_addr", config.ListenAddr),
		log.Bool("auth", config.Token != ""))

	return s
}

// Handler routes /ws to the websocket chat and /chat to the HTTP chat.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/chat", s.handleHTTPChat)
	return s.authMiddleware(mux)
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(_ context.Context) error {
	if s.closed.Load() {
		return ErrServerClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerAlreadyRunning
	}

	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		s.running.Store(false)
		s.logger.Error("Failed to create listener", log.Error(err))
		return errors.Join(ErrListenerFailed, err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server stopped unexpectedly", log.Error(err))
		}
	}()

	s.logger.Info("Server listening", log.String("addr", listener.Addr().String()))
	return nil
}

// Addr is the address the server listens on once started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts the HTTP server down and disconnects every websocket client.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return ErrServerNotRunning
	}

	s.logger.Info("Stopping server")

	err := s.httpServer.Shutdown(ctx)

	// hijacked websocket connections are not closed by Shutdown
	s.roomsMu.Lock()
	for _, room := range s.rooms {
		room.closeAll()
	}
	s.roomsMu.Unlock()

	s.logger.Info("Server stopped")
	return err
}

// Close stops the server if it is running. A closed server cannot be restarted.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	if s.running.Load() {
		return s.Stop(context.Background())
	}
	return nil
}

// Stats contains server statistics
type Stats struct {
	ClientCount int64
	RoomCount   int
	Running     bool
}

func (s *Server) GetStats() Stats {
	s.roomsMu.Lock()
	rooms := len(s.rooms)
	s.roomsMu.Unlock()

	return Stats{
		ClientCount: s.clientCount.Load(),
		RoomCount:   rooms,
		Running:     s.running.Load(),
	}
}
