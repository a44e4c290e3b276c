// Package api provides the HTTP/SSE surface: session creation, the
// subscribe (SSE) and initial-state (resume) endpoints, and health.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/tradelayout/strategy-engine/internal/config"
	"github.com/tradelayout/strategy-engine/internal/metrics"
	"github.com/tradelayout/strategy-engine/internal/session"
)

// Server is the HTTP/SSE API server. Grounded on the teacher's
// api.Server (internal/api/server.go): mux.Router, cors middleware, a
// *http.Server built in Start, graceful Stop — the transport carried
// forward is gorilla/mux + rs/cors; the teacher's own gorilla/websocket
// streaming is replaced by SSE per §6, and repointed instead at
// internal/broker's postback simulator.
type Server struct {
	logger     *zap.Logger
	cfg        *config.Config
	router     *mux.Router
	httpServer *http.Server

	registry *session.Registry
	runner   SessionStarter
	metrics  *metrics.Metrics
}

// SessionStarter builds and launches a new strategy session from a
// CreateSessionRequest, registering it with the Server's Registry, and
// returns its session_id. Implemented by cmd/server's wiring code, which
// owns constructing graph.Graph/gps.Store/scheduler.Session — internal/api
// itself stays free of those dependencies, matching the teacher's own
// separation between api.Server and backtester.Engine.
type SessionStarter interface {
	StartSession(ctx context.Context, req CreateSessionRequest) (sessionID string, err error)
}

// NewServer creates a Server. runner does the actual session construction;
// registry is where it's expected to register the result, shared with the
// caller so /initial-state and /subscribe can look sessions up.
func NewServer(logger *zap.Logger, cfg *config.Config, registry *session.Registry, runner SessionStarter, m *metrics.Metrics) *Server {
	s := &Server{
		logger:   logger.Named("api"),
		cfg:      cfg,
		router:   mux.NewRouter(),
		registry: registry,
		runner:   runner,
		metrics:  m,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/v1/sessions", s.handleCreateSession).Methods("POST")
	s.router.HandleFunc("/api/v1/sessions/{id}/initial-state", s.handleInitialState).Methods("GET")
	s.router.HandleFunc("/api/v1/sessions/{id}/subscribe", s.handleSubscribe).Methods("GET")
	s.router.HandleFunc("/api/v1/sessions/{id}/stop", s.handleStop).Methods("POST")
	if s.metrics != nil {
		s.router.Handle("/metrics", promHandler())
	}
}

// Handler returns the server's CORS-wrapped router. Used by Start to build
// the listening *http.Server, and by tests to drive the routes directly
// through httptest.NewServer without binding a real port.
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   s.cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)
}

// Start runs the HTTP server until it errors or Stop is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: 0, // SSE connections are long-lived; write timeout would kill the stream.
	}

	s.logger.Info("starting api server", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// promHandler exposes the default prometheus registry. cmd/server registers
// internal/metrics' collectors against prometheus.DefaultRegisterer so this
// and metrics.New share one registry without internal/api needing to hold
// its own reference to it.
func promHandler() http.Handler {
	return promhttp.Handler()
}
