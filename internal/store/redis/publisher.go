// Package redis publishes indicator snapshots for external consumers
// (dashboards, alert bots). Each refresh is written three ways in one
// pipeline: SET of the latest snapshot with a TTL, XADD to a per-ticker
// history stream, and PUBLISH for live subscribers. A circuit breaker keeps
// a dead Redis from slowing the refresh loop.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"stockwatch/internal/cache"
)

const (
	// ~2 trading weeks of 5m refreshes per ticker
	streamMaxLen     = 2000
	defaultLatestTTL = 30 * time.Minute
)

// PublisherConfig configures the Redis publisher.
type PublisherConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	TTL      time.Duration // latest-key TTL; defaults to 30m
}

// Publisher writes indicator snapshots to Redis.
type Publisher struct {
	client *goredis.Client
	cb     *CircuitBreaker
	ttl    time.Duration

	// OnPublishError is called once per failed pipeline (for metrics).
	OnPublishError func()
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// Breaker returns the publisher's circuit breaker.
func (p *Publisher) Breaker() *CircuitBreaker { return p.cb }

// NewPublisher creates a Publisher and pings the server.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultLatestTTL
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{
		client: client,
		cb:     NewCircuitBreaker(5, 10*time.Second),
		ttl:    ttl,
	}, nil
}

// Run consumes refreshed entries and publishes each snapshot. Entries whose
// refresh failed carry no new snapshot and are skipped. Blocks until ctx is
// cancelled or the channel is closed.
func (p *Publisher) Run(ctx context.Context, entries <-chan cache.Entry) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-entries:
			if !ok {
				return
			}
			if e.Snapshot == nil || e.Stale() {
				continue
			}
			p.publish(ctx, e)
		}
	}
}

// publish writes one snapshot through the circuit breaker.
func (p *Publisher) publish(ctx context.Context, e cache.Entry) {
	data, err := json.Marshal(e.Snapshot)
	if err != nil {
		log.Printf("[redis] marshal snapshot for %s: %v", e.Ticker, err)
		return
	}

	err = p.cb.Execute(func() error {
		latestKey := "stockwatch:snapshot:latest:" + e.Ticker
		streamKey := "stockwatch:snapshot:" + e.Ticker
		pubsubCh := "stockwatch:pub:snapshot:" + e.Ticker

		pipe := p.client.Pipeline()

		// SET latest snapshot with TTL
		pipe.Set(ctx, latestKey, data, p.ttl)

		// XADD to history stream with auto-trimming
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: streamKey,
			MaxLen: streamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": data},
		})

		// PUBLISH for live subscribers
		pipe.Publish(ctx, pubsubCh, data)

		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		if err != ErrCircuitOpen {
			log.Printf("[redis] publish pipeline error for %s: %v", e.Ticker, err)
		}
		if p.OnPublishError != nil {
			p.OnPublishError()
		}
	}
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
