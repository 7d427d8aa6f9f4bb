// Package cache holds the latest indicator snapshot per tracked ticker.
//
// Writers replace whole entries so readers never observe a half-updated
// ticker. A failed refresh keeps the previous snapshot and records the error
// alongside it; readers can tell a stale entry from a fresh one.
package cache

import (
	"sync"
	"time"

	"stockwatch/internal/model"
)

// Entry is one ticker's slot in the cache. Snapshot is nil until the first
// successful refresh. LastErr carries the most recent refresh failure and is
// cleared on success.
type Entry struct {
	Ticker      string
	Snapshot    *model.IndicatorSnapshot
	LastSuccess time.Time
	LastErr     string
	LastErrAt   time.Time
}

// Pending reports whether the ticker has never refreshed successfully.
func (e Entry) Pending() bool { return e.Snapshot == nil }

// Stale reports whether the entry holds data older than its latest error.
func (e Entry) Stale() bool { return e.Snapshot != nil && e.LastErr != "" }

// Cache is a concurrency-safe snapshot store keyed by ticker. The tracked
// set is fixed at construction; List returns entries in configured order.
type Cache struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]Entry
}

func New(tickers []string) *Cache {
	c := &Cache{
		order:   make([]string, 0, len(tickers)),
		entries: make(map[string]Entry, len(tickers)),
	}
	for _, t := range tickers {
		if _, dup := c.entries[t]; dup {
			continue
		}
		c.order = append(c.order, t)
		c.entries[t] = Entry{Ticker: t}
	}
	return c
}

// Get returns a copy of the ticker's entry. ok is false for untracked
// tickers; a tracked ticker that has not refreshed yet returns a pending
// entry with ok true.
func (c *Cache) Get(ticker string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[ticker]
	return e, ok
}

// Put stores a fresh snapshot for a tracked ticker and clears any recorded
// error. Untracked tickers are ignored.
func (c *Cache) Put(snap *model.IndicatorSnapshot) {
	if snap == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[snap.Ticker]; !ok {
		return
	}
	c.entries[snap.Ticker] = Entry{
		Ticker:      snap.Ticker,
		Snapshot:    snap,
		LastSuccess: time.Now(),
	}
}

// PutError records a refresh failure. The previous snapshot, if any, stays
// visible so readers keep the last good data.
func (c *Cache) PutError(ticker string, err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[ticker]
	if !ok {
		return
	}
	e.LastErr = err.Error()
	e.LastErrAt = time.Now()
	c.entries[ticker] = e
}

// List returns a copy of every entry in configured ticker order.
func (c *Cache) List() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, 0, len(c.order))
	for _, t := range c.order {
		out = append(out, c.entries[t])
	}
	return out
}

// Tracked reports whether the ticker is in the configured set.
func (c *Cache) Tracked(ticker string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[ticker]
	return ok
}

// Tickers returns the configured ticker symbols in order.
func (c *Cache) Tickers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}
