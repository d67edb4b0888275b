package rpcbus

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"amqprpc/internal/logger"
)

// StatusServer exposes a Bus's live Stats over HTTP, grounded on
// gateway.APIServer's router/middleware shape (internal/gateway/api.go).
type StatusServer struct {
	bus     *Bus
	logger  zerolog.Logger
	server  *http.Server
	started time.Time
}

// NewStatusServer wraps bus for HTTP exposure.
func NewStatusServer(bus *Bus) *StatusServer {
	return &StatusServer{
		bus:    bus,
		logger: logger.Component("rpcbus.status"),
	}
}

// Start serves the status endpoints at address until Stop is called.
func (s *StatusServer) Start(address string) error {
	router := mux.NewRouter()
	router.Use(s.loggingMiddleware)

	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	s.started = time.Now()
	s.server = &http.Server{Addr: address, Handler: router}

	s.logger.Info().Str("address", address).Msg("rpcbus: status server listening")
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts the status server down.
func (s *StatusServer) Stop() error {
	if s.server == nil {
		return nil
	}
	return s.server.Close()
}

func (s *StatusServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("rpcbus: status request")
	})
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.bus.Stats()
	body := map[string]any{
		"pending":       stats.Pending,
		"subscriptions": stats.Subscriptions,
		"uptime":        time.Since(s.started).String(),
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	}
	s.sendJSON(w, http.StatusOK, body)
}

func (s *StatusServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *StatusServer) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("rpcbus: failed to encode status response")
	}
}
