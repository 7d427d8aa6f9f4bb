// Package server exposes the query API: REST endpoints over the snapshot
// cache, a refresh trigger, and a WebSocket feed of live updates.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"stockwatch/internal/indicator"
	"stockwatch/internal/monitor"
)

// Server is the public HTTP front of the engine.
type Server struct {
	monitor *monitor.Service
	hub     *Hub
	tickers []string
	params  indicator.Params
	started time.Time
	srv     *http.Server
}

// New builds the server and wires its routes.
func New(addr string, mon *monitor.Service, hub *Hub, tickers []string, params indicator.Params) *Server {
	s := &Server{
		monitor: mon,
		hub:     hub,
		tickers: tickers,
		params:  params,
		started: time.Now(),
	}
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the underlying HTTP handler (used by tests).
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("http server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "err", err)
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
