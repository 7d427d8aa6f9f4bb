package datasource

import (
	"context"
	"hash/fnv"
	"math"
	"time"

	"stockwatch/internal/model"
)

// Mock generates a deterministic pseudo-random walk per ticker. The same
// ticker, interval and day count always produce the same series, so tests
// and the quote simulator get stable data without network access.
type Mock struct {
	// FailFor makes FetchSeries return a fetch error for the listed tickers.
	FailFor map[string]bool
}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) Name() string { return "mock" }

func (m *Mock) FetchSeries(ctx context.Context, ticker string, interval model.Interval, days int) (model.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, &model.FetchError{Source: m.Name(), Ticker: ticker, Reason: "cancelled", Err: err}
	}
	if m.FailFor[ticker] {
		return nil, &model.FetchError{Source: m.Name(), Ticker: ticker, Reason: "simulated failure"}
	}
	if !interval.Valid() {
		return nil, &model.FetchError{Source: m.Name(), Ticker: ticker, Reason: "unsupported interval"}
	}

	n := int(float64(days) * interval.BarsPerDay())
	if n < 1 {
		n = 1
	}
	return GenerateSeries(ticker, interval, n), nil
}

// GenerateSeries builds n deterministic bars for a ticker, newest bar ending
// at a fixed anchor date. Prices follow a seeded sine-plus-noise walk around
// a per-ticker base so different tickers do not move in lockstep.
func GenerateSeries(ticker string, interval model.Interval, n int) model.Series {
	seed := hashSeed(ticker)
	base := 500 + float64(seed%9000) // per-ticker base price, 500..9499

	step := intervalStep(interval)
	anchor := time.Date(2026, time.January, 2, 9, 0, 0, 0, time.UTC)
	start := anchor.Add(-time.Duration(n) * step)

	rng := seed
	series := make(model.Series, 0, n)
	prevClose := base
	for i := 0; i < n; i++ {
		rng = rng*6364136223846793005 + 1442695040888963407
		noise := float64(int64(rng>>33)%200-100) / 100.0 // [-1, 1)
		drift := math.Sin(float64(i)/9.0) * base * 0.01

		open := prevClose
		close := base + drift + noise*base*0.005
		high := math.Max(open, close) * 1.004
		low := math.Min(open, close) * 0.996
		vol := 10000 + (int64(rng>>17) % 90000)

		series = append(series, model.Bar{
			TS:     start.Add(time.Duration(i) * step),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: vol,
		})
		prevClose = close
	}
	return series
}

func hashSeed(ticker string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(ticker))
	return h.Sum64()
}

func intervalStep(iv model.Interval) time.Duration {
	switch iv {
	case model.Interval5m:
		return 5 * time.Minute
	case model.Interval15m:
		return 15 * time.Minute
	case model.Interval30m:
		return 30 * time.Minute
	case model.Interval1h:
		return time.Hour
	case model.Interval4h:
		return 4 * time.Hour
	case model.Interval1w:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}
