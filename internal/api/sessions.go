package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/tradelayout/strategy-engine/pkg/types"
)

// CreateSessionRequest is the POST /api/v1/sessions body: a strategy graph
// plus the tick source and run parameters for a backtest or live-sim run.
// cmd/server replays the ticks through a slice tick source and fills orders
// on a paper gateway in either mode; it does not attach a live tick feed or
// a real broker. Ticks may be omitted: cmd/server then resolves the day's
// ticks for the start node's symbol from its shared historical tick store,
// keyed by Date ("2006-01-02"; defaults to today when empty).
type CreateSessionRequest struct {
	UserID           string         `json:"user_id"`
	StrategyID       string         `json:"strategy_id"`
	Graph            types.GraphDef `json:"graph"`
	Mode             string         `json:"mode"` // "backtest" or "live"
	SpeedMultiplier  float64        `json:"speed_multiplier"`
	Ticks            []types.Tick   `json:"ticks"`
	Date             string         `json:"date"`
	UnderlyingSymbol string         `json:"underlying_symbol"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UserID == "" || req.StrategyID == "" {
		httpError(w, http.StatusBadRequest, "user_id and strategy_id are required")
		return
	}

	sessionID, err := s.runner.StartSession(r.Context(), req)
	if err != nil {
		s.logger.Error("start session failed", zap.Error(err))
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"session_id": sessionID,
		"status":     "running",
	})
}

func (s *Server) handleInitialState(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, ok := s.registry.Get(id)
	if !ok {
		httpError(w, http.StatusNotFound, "session not found")
		return
	}

	lastEventID := r.URL.Query().Get("last_event_id")
	lastTradeID := r.URL.Query().Get("last_trade_id")
	writeJSON(w, http.StatusOK, sess.InitialState(lastEventID, lastTradeID))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.registry.Stop(id) {
		httpError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id, "status": "stop_requested"})
}

// handleSubscribe is the SSE endpoint (§6): it writes an initial full
// snapshot (honoring last_event_id/last_trade_id for a resuming
// subscriber), then pushes one delta snapshot per emit_interval until the
// session reaches a terminal status with nothing left to send, or the
// client disconnects.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, ok := s.registry.Get(id)
	if !ok {
		httpError(w, http.StatusNotFound, "session not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	lastEventID := r.URL.Query().Get("last_event_id")
	lastTradeID := r.URL.Query().Get("last_trade_id")

	seq := 0
	initial := sess.InitialState(lastEventID, lastTradeID)
	if !writeSSEEvent(w, flusher, seq, initial) {
		return
	}
	seq++

	interval := s.cfg.Session.EmitInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			snap := sess.Emit()
			if !writeSSEEvent(w, flusher, seq, snap) {
				return
			}
			seq++
			if isTerminal(string(snap.Status)) && len(snap.Delta.Events) == 0 && len(snap.Delta.Trades) == 0 {
				return
			}
		}
	}
}

func isTerminal(status string) bool {
	switch status {
	case "stopped", "completed", "error":
		return true
	default:
		return false
	}
}

func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, seq int, payload interface{}) bool {
	body, err := marshalJSON(payload)
	if err != nil {
		return false
	}
	if _, err := w.Write([]byte("id: " + strconv.Itoa(seq) + "\ndata: " + string(body) + "\n\n")); err != nil {
		return false
	}
	flusher.Flush()
	return true
}
