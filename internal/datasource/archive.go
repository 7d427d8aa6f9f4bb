package datasource

import (
	"context"
	"time"

	"stockwatch/internal/model"
	"stockwatch/internal/store/sqlite"
)

// Archive serves bars from the local sqlite archive. It lets the engine run
// offline against whatever the archiver has stored.
type Archive struct {
	reader *sqlite.Reader
}

func NewArchive(reader *sqlite.Reader) *Archive {
	return &Archive{reader: reader}
}

func (a *Archive) Name() string { return "archive" }

func (a *Archive) FetchSeries(ctx context.Context, ticker string, interval model.Interval, days int) (model.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, &model.FetchError{Source: a.Name(), Ticker: ticker, Reason: "cancelled", Err: err}
	}
	if !interval.Valid() {
		return nil, &model.FetchError{Source: a.Name(), Ticker: ticker, Reason: "unsupported interval"}
	}

	// The archive stores 1h bars for intraday intervals; 4h is resampled the
	// same way the network sources do it.
	stored := interval
	if interval == model.Interval4h {
		stored = model.Interval1h
	}

	after := time.Now().AddDate(0, 0, -days).Unix()
	series, err := a.reader.ReadSeries(ticker, stored, after)
	if err != nil {
		return nil, &model.FetchError{Source: a.Name(), Ticker: ticker, Reason: "read archive", Err: err}
	}
	if len(series) == 0 {
		return nil, &model.FetchError{Source: a.Name(), Ticker: ticker, Reason: "no archived bars"}
	}
	if interval == model.Interval4h {
		series = model.Resample(series, 4*time.Hour)
	}
	return series, nil
}
