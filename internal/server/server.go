// Package server exposes read-only status endpoints.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"CrashSentinel/internal/model"
	"CrashSentinel/internal/recorder"
)

// SignalSource returns the latest signal, nil before the first cycle.
type SignalSource interface {
	LastSignal() *model.Signal
}

// StateSource returns the persisted position.
type StateSource interface {
	State() model.PositionState
}

// Server is the read-only HTTP status server.
type Server struct {
	router   *mux.Router
	server   *http.Server
	signals  SignalSource
	state    StateSource
	history  recorder.Recorder
	started  time.Time
	maxLimit int
}

// New wires the routes. metrics may be nil.
func New(addr string, signals SignalSource, state StateSource, history recorder.Recorder, metrics http.Handler) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		signals:  signals,
		state:    state,
		history:  history,
		started:  time.Now(),
		maxLimit: 500,
	}
	s.setupRoutes(metrics)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes(metrics http.Handler) {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)

	api := s.router.PathPrefix("/").Subrouter()
	api.Use(jsonContentTypeMiddleware)
	api.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	api.HandleFunc("/signal", s.signal).Methods(http.MethodGet)
	api.HandleFunc("/state", s.positionState).Methods(http.MethodGet)
	api.HandleFunc("/history", s.recent).Methods(http.MethodGet)
	api.HandleFunc("/history/{id}/contributions", s.contributions).Methods(http.MethodGet)

	if metrics != nil {
		s.router.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("status server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down status server")
	return s.server.Shutdown(ctx)
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
	LastCycle string    `json:"last_cycle,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Timestamp: time.Now().UTC(), Uptime: time.Since(s.started).Round(time.Second).String()}
	if sig := s.signals.LastSignal(); sig != nil {
		resp.LastCycle = sig.EvaluatedAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) signal(w http.ResponseWriter, _ *http.Request) {
	sig := s.signals.LastSignal()
	if sig == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no evaluation yet"})
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

func (s *Server) positionState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.state.State())
}

func (s *Server) recent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, s.maxLimit)
	}
	rows, err := s.history.Recent(limit)
	if err != nil {
		log.Error().Err(err).Msg("read history")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
		return
	}
	if rows == nil {
		rows = []recorder.CycleRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) contributions(w http.ResponseWriter, r *http.Request) {
	rows, err := s.history.Contributions(mux.Vars(r)["id"])
	if err != nil {
		log.Error().Err(err).Msg("read contributions")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
		return
	}
	if len(rows) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown cycle"})
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

type ctxKey struct{}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)
		id, _ := r.Context().Value(ctxKey{}).(string)
		log.Debug().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
