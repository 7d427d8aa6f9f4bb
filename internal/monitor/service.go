// Package monitor runs the refresh loop: it periodically fetches bars for
// every tracked ticker, recomputes indicator snapshots, and stores the
// results in the cache. It is the only writer of the cache.
package monitor

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"stockwatch/internal/cache"
	"stockwatch/internal/indicator"
	"stockwatch/internal/markethours"
	"stockwatch/internal/metrics"
	"stockwatch/internal/model"
)

// ErrNotFound is returned for tickers outside the tracked set.
var ErrNotFound = errors.New("ticker not tracked")

// Config wires the refresh service. Prom and Health may be nil; the service
// then runs without instrumentation.
type Config struct {
	Source model.DataSource
	Cache  *cache.Cache
	Params indicator.Params

	Interval     model.Interval // bar interval, e.g. "1d"
	LookbackDays int            // 0 → interval default
	RefreshEvery time.Duration  // timer period, e.g. 5m
	FetchTimeout time.Duration  // per-ticker fetch budget

	// GateMarketHours skips timer cycles while the IDX session is closed.
	// Forced refreshes always run.
	GateMarketHours bool

	Prom   *metrics.Metrics
	Health *metrics.HealthStatus
}

// call tracks one in-flight refresh so concurrent requests for the same
// ticker coalesce onto a single fetch.
type call struct {
	done chan struct{}
	err  error
}

// Service owns the refresh cycle and answers snapshot queries.
type Service struct {
	cfg    Config
	cache  *cache.Cache
	source model.DataSource

	mu       sync.Mutex
	interval model.Interval
	lookback int
	inflight map[string]*call

	updates chan cache.Entry
}

func New(cfg Config) *Service {
	interval := cfg.Interval
	if !interval.Valid() {
		interval = model.Interval1d
	}
	lookback := cfg.LookbackDays
	if lookback <= 0 {
		lookback = interval.DefaultLookbackDays()
	}
	if min := interval.MinLookbackDays(cfg.Params.MinBars()); lookback < min {
		lookback = min
	}
	if cfg.RefreshEvery <= 0 {
		cfg.RefreshEvery = 5 * time.Minute
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	return &Service{
		cfg:      cfg,
		cache:    cfg.Cache,
		source:   cfg.Source,
		interval: interval,
		lookback: lookback,
		inflight: make(map[string]*call),
		updates:  make(chan cache.Entry, 256),
	}
}

// Updates returns the channel of refreshed entries, one per completed ticker
// refresh. Feed it to a FanOut for WebSocket and Redis consumers.
func (s *Service) Updates() <-chan cache.Entry { return s.updates }

// Run performs an immediate full refresh, then refreshes on a timer until
// ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	log.Printf("[monitor] refresh loop starting: %d tickers, every %s, source=%s",
		len(s.cache.Tickers()), s.cfg.RefreshEvery, s.source.Name())

	s.refreshAll(ctx)

	ticker := time.NewTicker(s.cfg.RefreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.cfg.GateMarketHours && !markethours.IsMarketOpen(time.Now()) {
				log.Printf("[monitor] skipping cycle: %s", markethours.StatusString(time.Now()))
				continue
			}
			s.refreshAll(ctx)
		}
	}
}

// refreshAll refreshes every tracked ticker, one goroutine per ticker. A
// failure on one ticker never blocks the others.
func (s *Service) refreshAll(ctx context.Context) {
	start := time.Now()

	var wg sync.WaitGroup
	for _, t := range s.cache.Tickers() {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			if err := s.refreshOne(ctx, ticker); err != nil {
				log.Printf("[monitor] refresh %s: %v", ticker, err)
			}
		}(t)
	}
	wg.Wait()

	if s.cfg.Prom != nil {
		s.cfg.Prom.RefreshTotal.Inc()
		s.cfg.Prom.RefreshDur.Observe(time.Since(start).Seconds())
	}
	if s.cfg.Health != nil {
		s.cfg.Health.SetLastRefreshAt(time.Now())
		s.cfg.Health.SetFailingTickers(s.failingCount())
	}
	log.Printf("[monitor] cycle done in %v", time.Since(start).Round(time.Millisecond))
}

// refreshOne refreshes a single ticker, coalescing concurrent requests. If a
// refresh for the ticker is already in flight, the caller waits for that
// result instead of triggering a second fetch.
func (s *Service) refreshOne(ctx context.Context, ticker string) error {
	s.mu.Lock()
	if c, ok := s.inflight[ticker]; ok {
		s.mu.Unlock()
		select {
		case <-c.done:
			return c.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c := &call{done: make(chan struct{})}
	s.inflight[ticker] = c
	s.mu.Unlock()

	c.err = s.doRefresh(ctx, ticker)

	s.mu.Lock()
	delete(s.inflight, ticker)
	s.mu.Unlock()
	close(c.done)
	return c.err
}

// doRefresh is the fetch-compute-store path for one ticker. Fetch and
// compute failures are recorded on the cache entry; the previous snapshot
// stays visible.
func (s *Service) doRefresh(ctx context.Context, ticker string) error {
	s.mu.Lock()
	interval, lookback := s.interval, s.lookback
	s.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	series, err := s.source.FetchSeries(fetchCtx, ticker, interval, lookback)
	if err != nil {
		s.recordFailure(ticker, err)
		return err
	}

	snap, err := indicator.ComputeSnapshot(ticker, interval, series, s.cfg.Params)
	if err != nil {
		s.recordFailure(ticker, err)
		return err
	}

	s.cache.Put(snap)
	if s.cfg.Prom != nil {
		s.cfg.Prom.CompositeScore.WithLabelValues(ticker).Set(float64(snap.Scores.Composite))
		s.cfg.Prom.LastSuccessTS.WithLabelValues(ticker).SetToCurrentTime()
	}

	if entry, ok := s.cache.Get(ticker); ok {
		select {
		case s.updates <- entry:
		default:
			// consumers are serviced by the fanout; never block the refresh
		}
	}
	return nil
}

func (s *Service) recordFailure(ticker string, err error) {
	s.cache.PutError(ticker, err)
	if s.cfg.Prom == nil {
		return
	}
	s.cfg.Prom.TickerErrors.WithLabelValues(ticker).Inc()
	var ferr *model.FetchError
	if errors.As(err, &ferr) {
		s.cfg.Prom.FetchErrors.WithLabelValues(ferr.Source).Inc()
	}
}

func (s *Service) failingCount() int {
	n := 0
	for _, e := range s.cache.List() {
		if e.LastErr != "" {
			n++
		}
	}
	return n
}

// SnapshotFor returns the cache entry for one ticker.
func (s *Service) SnapshotFor(ticker string) (cache.Entry, error) {
	e, ok := s.cache.Get(ticker)
	if !ok {
		return cache.Entry{}, ErrNotFound
	}
	return e, nil
}

// SnapshotAll returns every entry in configured ticker order.
func (s *Service) SnapshotAll() []cache.Entry {
	return s.cache.List()
}

// ForceRefresh refreshes one ticker immediately, or all tracked tickers when
// ticker is empty. It returns once the refresh completes.
func (s *Service) ForceRefresh(ctx context.Context, ticker string) error {
	if s.cfg.Prom != nil {
		s.cfg.Prom.ForcedTotal.Inc()
	}
	if ticker == "" {
		s.refreshAll(ctx)
		return nil
	}
	if !s.cache.Tracked(ticker) {
		return ErrNotFound
	}
	return s.refreshOne(ctx, ticker)
}

// Interval returns the currently active bar interval.
func (s *Service) Interval() model.Interval {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetInterval switches the bar interval for subsequent refreshes. The
// lookback window is widened if the new interval needs more history for the
// indicator set to warm up.
func (s *Service) SetInterval(iv model.Interval) error {
	if !iv.Valid() {
		return errors.New("unsupported interval: " + string(iv))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = iv
	s.lookback = s.cfg.LookbackDays
	if s.lookback <= 0 {
		s.lookback = iv.DefaultLookbackDays()
	}
	if min := iv.MinLookbackDays(s.cfg.Params.MinBars()); s.lookback < min {
		s.lookback = min
	}
	return nil
}
