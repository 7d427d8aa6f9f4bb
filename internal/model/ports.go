package model

import "context"

// DataSource fetches historical OHLCV bars for a ticker. Implementations
// (Yahoo chart API, broker API, sqlite archive, mock) return a Series or a
// *FetchError; they never return a partial series alongside an error.
type DataSource interface {
	// Name identifies the source in errors and metrics (e.g. "yahoo").
	Name() string

	// FetchSeries returns bars covering roughly the last `days` calendar days
	// at the given interval, oldest first.
	FetchSeries(ctx context.Context, ticker string, interval Interval, days int) (Series, error)
}
