package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/zeusync/markov/internal/core/observability/log"
)

// authMiddleware rejects requests that do not carry the configured token, either
// as a bearer token or, for browsers opening a websocket, as ?token=.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	if s.config.Token == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
			token = bearer
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(s.config.Token)) != 1 {
			s.logger.Warn("Rejected unauthenticated request",
				log.String("remote_addr", r.RemoteAddr),
				log.String("path", r.URL.Path))
			http.Error(w, ErrUnauthorized.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
