// Package archiver persists daily bars to the sqlite archive on a cron
// schedule so the archive data source can serve history when the upstream
// API is unreachable.
package archiver

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"stockwatch/internal/markethours"
	"stockwatch/internal/metrics"
	"stockwatch/internal/model"
	"stockwatch/internal/store/sqlite"
)

// DefaultSchedule fires at 16:10 WIB on weekdays, twenty minutes after the
// IDX closing auction settles.
const DefaultSchedule = "0 10 16 * * 1-5"

// Config wires an Archiver.
type Config struct {
	Source  model.DataSource
	Writer  *sqlite.Writer
	Tickers []string

	// Schedule is a six-field cron expression evaluated in WIB.
	// Empty means DefaultSchedule.
	Schedule string

	// Intervals to capture per run. Empty means daily bars only.
	Intervals []model.Interval

	// LookbackDays per fetch. The upsert is idempotent, so overlapping
	// windows across runs are harmless. Zero means 30.
	LookbackDays int

	FetchTimeout time.Duration // zero means 60s

	Prom *metrics.Metrics // optional
}

// Archiver runs scheduled archive passes.
type Archiver struct {
	cfg  Config
	cron *cron.Cron
}

func New(cfg Config) (*Archiver, error) {
	if cfg.Source == nil || cfg.Writer == nil {
		return nil, fmt.Errorf("archiver: source and writer are required")
	}
	if len(cfg.Tickers) == 0 {
		return nil, fmt.Errorf("archiver: no tickers configured")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if len(cfg.Intervals) == 0 {
		cfg.Intervals = []model.Interval{model.Interval1d}
	}
	for _, iv := range cfg.Intervals {
		if !iv.Valid() {
			return nil, fmt.Errorf("archiver: invalid interval %q", iv)
		}
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 30
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 60 * time.Second
	}

	a := &Archiver{
		cfg:  cfg,
		cron: cron.New(cron.WithSeconds(), cron.WithLocation(markethours.WIB)),
	}
	if _, err := a.cron.AddFunc(cfg.Schedule, a.scheduledRun); err != nil {
		return nil, fmt.Errorf("archiver: register schedule %q: %w", cfg.Schedule, err)
	}
	return a, nil
}

// Start begins the cron loop. It returns immediately.
func (a *Archiver) Start() {
	a.cron.Start()
	log.Printf("[archiver] started, schedule=%q tickers=%d", a.cfg.Schedule, len(a.cfg.Tickers))
}

// Stop halts the scheduler and waits for an in-flight run to finish.
func (a *Archiver) Stop() {
	<-a.cron.Stop().Done()
	log.Println("[archiver] stopped")
}

func (a *Archiver) scheduledRun() {
	now := time.Now().In(markethours.WIB)
	if markethours.IsHoliday(now) {
		log.Println("[archiver] exchange holiday, skipping run")
		return
	}
	if _, err := a.RunOnce(context.Background()); err != nil {
		log.Printf("[archiver] run failed: %v", err)
	}
}

// RunOnce archives every configured ticker/interval pair and returns the
// number of bars written. Per-ticker failures are logged and counted but do
// not abort the pass; an error is returned only when every fetch failed.
func (a *Archiver) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	var written, failures int

	for _, ticker := range a.cfg.Tickers {
		for _, iv := range a.cfg.Intervals {
			n, err := a.archiveOne(ctx, ticker, iv)
			if err != nil {
				failures++
				log.Printf("[archiver] %s %s: %v", ticker, iv, err)
				continue
			}
			written += n
		}
	}

	total := len(a.cfg.Tickers) * len(a.cfg.Intervals)
	log.Printf("[archiver] pass complete: %d bars, %d/%d fetches failed, took %s",
		written, failures, total, time.Since(start).Round(time.Millisecond))
	if failures == total {
		return written, fmt.Errorf("archiver: all %d fetches failed", total)
	}
	return written, nil
}

func (a *Archiver) archiveOne(ctx context.Context, ticker string, iv model.Interval) (int, error) {
	fctx, cancel := context.WithTimeout(ctx, a.cfg.FetchTimeout)
	defer cancel()

	series, err := a.cfg.Source.FetchSeries(fctx, ticker, iv, a.cfg.LookbackDays)
	if err != nil {
		return 0, err
	}
	if err := a.cfg.Writer.UpsertSeries(ticker, iv, series); err != nil {
		return 0, err
	}
	if a.cfg.Prom != nil {
		a.cfg.Prom.ArchivedBars.Add(float64(len(series)))
	}
	return len(series), nil
}
