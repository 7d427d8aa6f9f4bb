package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the indicator engine.
type Metrics struct {
	RefreshTotal prometheus.Counter
	RefreshDur   prometheus.Histogram
	FetchErrors  *prometheus.CounterVec // labels: source
	TickerErrors *prometheus.CounterVec // labels: ticker

	CompositeScore *prometheus.GaugeVec // labels: ticker
	LastSuccessTS  *prometheus.GaugeVec // labels: ticker

	WSClients    prometheus.Gauge
	FanoutDrops  *prometheus.CounterVec // labels: subscriber
	ForcedTotal  prometheus.Counter
	ArchivedBars prometheus.Counter

	// Redis publisher
	PublishErrors prometheus.Counter
	BreakerState  prometheus.Gauge // 0=closed, 1=open, 2=half-open
	BreakerTrips  prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		RefreshTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockwatch_refresh_cycles_total",
			Help: "Total refresh cycles run",
		}),
		RefreshDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockwatch_refresh_duration_seconds",
			Help:    "Wall time of one full refresh cycle",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockwatch_fetch_errors_total",
			Help: "Data source fetch failures (by source)",
		}, []string{"source"}),
		TickerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockwatch_ticker_errors_total",
			Help: "Failed refreshes per ticker",
		}, []string{"ticker"}),

		CompositeScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stockwatch_composite_score",
			Help: "Latest composite indicator score per ticker (-5..+5)",
		}, []string{"ticker"}),
		LastSuccessTS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stockwatch_last_success_timestamp_seconds",
			Help: "Unix time of the last successful refresh per ticker",
		}, []string{"ticker"}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockwatch_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		FanoutDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockwatch_fanout_drops_total",
			Help: "Updates dropped by the FanOut bus per subscriber",
		}, []string{"subscriber"}),
		ForcedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockwatch_forced_refreshes_total",
			Help: "Refreshes triggered by API request",
		}),
		ArchivedBars: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockwatch_archived_bars_total",
			Help: "Bars written to the sqlite archive",
		}),

		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockwatch_publish_errors_total",
			Help: "Redis snapshot publish failures",
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockwatch_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockwatch_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
	}

	prometheus.MustRegister(
		m.RefreshTotal,
		m.RefreshDur,
		m.FetchErrors,
		m.TickerErrors,
		m.CompositeScore,
		m.LastSuccessTS,
		m.WSClients,
		m.FanoutDrops,
		m.ForcedTotal,
		m.ArchivedBars,
		m.PublishErrors,
		m.BreakerState,
		m.BreakerTrips,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	TrackedTickers int       `json:"tracked_tickers"`
	FailingTickers int       `json:"failing_tickers"`
	LastRefreshAt  time.Time `json:"last_refresh_at"`
	RedisConnected bool      `json:"redis_connected"`
	RedisEnabled   bool      `json:"redis_enabled"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	SQLiteEnabled  bool      `json:"sqlite_enabled"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetTrackedTickers(n int) {
	h.mu.Lock()
	h.TrackedTickers = n
	h.mu.Unlock()
}

func (h *HealthStatus) SetFailingTickers(n int) {
	h.mu.Lock()
	h.FailingTickers = n
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastRefreshAt(t time.Time) {
	h.mu.Lock()
	h.LastRefreshAt = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisEnabled(v bool) {
	h.mu.Lock()
	h.RedisEnabled = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteEnabled(v bool) {
	h.mu.Lock()
	h.SQLiteEnabled = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. rdb and sqlDB may be
// nil when the corresponding component is disabled.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// Determine overall status
	overallStatus := "healthy"
	httpCode := http.StatusOK

	if h.FailingTickers > 0 ||
		(h.RedisEnabled && !h.RedisConnected) ||
		(h.SQLiteEnabled && !h.SQLiteOK) {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if h.TrackedTickers > 0 && h.FailingTickers == h.TrackedTickers {
		overallStatus = "unhealthy"
	}

	refreshAge := ""
	if !h.LastRefreshAt.IsZero() {
		refreshAge = time.Since(h.LastRefreshAt).Round(time.Second).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		TrackedTickers  int     `json:"tracked_tickers"`
		FailingTickers  int     `json:"failing_tickers"`
		LastRefreshAt   string  `json:"last_refresh_at"`
		RefreshAge      string  `json:"refresh_age"`
		RedisEnabled    bool    `json:"redis_enabled"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteEnabled   bool    `json:"sqlite_enabled"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		TrackedTickers:  h.TrackedTickers,
		FailingTickers:  h.FailingTickers,
		LastRefreshAt:   h.LastRefreshAt.Format(time.RFC3339),
		RefreshAge:      refreshAge,
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		SQLiteEnabled:   h.SQLiteEnabled,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		RedisLatencyMs:  h.RedisLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
