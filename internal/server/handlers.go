package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"stockwatch/internal/logger"
	"stockwatch/internal/markethours"
	"stockwatch/internal/model"
	"stockwatch/internal/monitor"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// setCORS sets CORS headers for REST endpoints.
func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	setCORS(w)
	w.Header().Set("Content-Type", "application/json")
	if code != http.StatusOK {
		w.WriteHeader(code)
	}
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// registerRoutes wires all HTTP routes onto the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/stocks", s.handleStocks)
	mux.HandleFunc("/api/stocks/", s.handleStock)
	mux.HandleFunc("/api/refresh", s.handleRefresh)
	mux.HandleFunc("/api/interval", s.handleInterval)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/healthz", s.handleHealth)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}
	s.hub.HandleWSRequest(conn)
}

// handleStocks serves GET /api/stocks: every tracked ticker in configured
// order, pending entries included.
func (s *Server) handleStocks(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		setCORS(w)
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}

	entries := s.monitor.SnapshotAll()
	out := make([]StockDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryDTO(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleStock serves GET /api/stocks/{ticker}.
func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		setCORS(w)
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}

	ticker := strings.TrimPrefix(r.URL.Path, "/api/stocks/")
	if ticker == "" || strings.Contains(ticker, "/") {
		writeError(w, http.StatusBadRequest, "ticker required")
		return
	}

	entry, err := s.monitor.SnapshotFor(ticker)
	if errors.Is(err, monitor.ErrNotFound) {
		writeError(w, http.StatusNotFound, "ticker not tracked: "+ticker)
		return
	}
	writeJSON(w, http.StatusOK, entryDTO(entry))
}

// handleRefresh serves POST /api/refresh[?ticker=X]: refresh one ticker, or
// all when the parameter is absent. Responds after the refresh completes.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		setCORS(w)
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	ticker := r.URL.Query().Get("ticker")
	ctx := logger.WithTraceID(r.Context(), logger.GenerateTraceID(ticker, time.Now()))
	slog.Info("forced refresh requested", append([]any{"ticker", ticker}, logger.LogWithTrace(ctx)...)...)

	err := s.monitor.ForceRefresh(ctx, ticker)
	switch {
	case errors.Is(err, monitor.ErrNotFound):
		writeError(w, http.StatusNotFound, "ticker not tracked: "+ticker)
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	if ticker != "" {
		entry, _ := s.monitor.SnapshotFor(ticker)
		writeJSON(w, http.StatusOK, entryDTO(entry))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInterval serves POST /api/interval with body {"interval":"1h"}:
// switches the bar interval and refreshes everything at the new interval.
func (s *Server) handleInterval(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		setCORS(w)
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	var req struct {
		Interval model.Interval `json:"interval"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := s.monitor.SetInterval(req.Interval); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	slog.Info("interval switched", "interval", req.Interval)
	if err := s.monitor.ForceRefresh(r.Context(), ""); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "interval": string(req.Interval)})
}

// handleConfig serves GET /api/config: the tracked set and engine settings.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tickers":   s.tickers,
		"interval":  s.monitor.Interval(),
		"intervals": model.Intervals(),
		"params":    s.params,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"ws_clients":    s.hub.ClientCount(),
		"market_open":   markethours.IsMarketOpen(now),
		"market_status": markethours.StatusString(now),
		"uptime_sec":    int64(time.Since(s.started).Seconds()),
		"ts":            now.UTC().Format(time.RFC3339Nano),
	})
}
