package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tradelayout/strategy-engine/internal/api"
	"github.com/tradelayout/strategy-engine/internal/config"
	"github.com/tradelayout/strategy-engine/internal/gps"
	"github.com/tradelayout/strategy-engine/internal/session"
)

type stubStarter struct {
	registry *session.Registry
	store    *gps.Store
}

func (s *stubStarter) StartSession(_ context.Context, req api.CreateSessionRequest) (string, error) {
	sess := session.New(zap.NewNop(), req.UserID, req.StrategyID, time.Now(), s.store, nil, 0)
	s.registry.Register(sess, &noopRunner{}, nil)
	return sess.ID(), nil
}

type noopRunner struct{}

func (noopRunner) Status() string { return "completed" }
func (noopRunner) Stop()          {}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	registry := session.NewRegistry(zap.NewNop(), time.Hour)
	store := gps.NewStore(zap.NewNop())
	cfg := &config.Config{}
	cfg.Server.CORSOrigins = []string{"*"}
	cfg.Session.EmitInterval = 10 * time.Millisecond

	srv := api.NewServer(zap.NewNop(), cfg, registry, &stubStarter{registry: registry, store: store}, nil)
	return httptest.NewServer(srv.Handler())
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestCreateSessionAndFetchInitialState(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	body := []byte(`{"user_id":"u1","strategy_id":"s1","mode":"backtest"}`)
	resp, err := http.Post(ts.URL+"/api/v1/sessions", "application/json", bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("POST /sessions: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var created struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.SessionID == "" {
		t.Fatal("expected a non-empty session_id")
	}

	stateResp, err := http.Get(ts.URL + "/api/v1/sessions/" + created.SessionID + "/initial-state")
	if err != nil {
		t.Fatalf("GET /initial-state: %v", err)
	}
	defer stateResp.Body.Close()
	if stateResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", stateResp.StatusCode)
	}
}

func TestInitialStateNotFound(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/sessions/does-not-exist/initial-state")
	if err != nil {
		t.Fatalf("GET /initial-state: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestStopUnknownSessionReturnsNotFound(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/sessions/does-not-exist/stop", "application/json", bytes.NewBuffer(nil))
	if err != nil {
		t.Fatalf("POST /stop: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
