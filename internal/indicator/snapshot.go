package indicator

import (
	"math"

	"stockwatch/internal/model"
)

// ComputeSnapshot runs the full indicator set over a series and returns one
// immutable snapshot for its final bar. Pure function: no I/O, no shared
// state, deterministic for the same series.
//
// The series is validated first; indicators never run on out-of-order or
// non-positive bars. Fields whose lookback exceeds the series length are
// reported as insufficient, not as computed values.
func ComputeSnapshot(ticker string, interval model.Interval, series model.Series, p Params) (*model.IndicatorSnapshot, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	last, ok := series.Last()
	if !ok {
		return nil, &model.ValidationError{Reason: "empty series"}
	}

	maShort := NewSMA(p.MAShort)
	maLong := NewSMA(p.MALong)
	rsi := NewRSI(p.RSIPeriod)
	st := NewSuperTrend(p.SuperTrendPeriod, p.SuperTrendMult)
	volOsc := NewVolumeOscillator(p.VolShort, p.VolLong)

	for _, bar := range series {
		maShort.Update(bar)
		maLong.Update(bar)
		rsi.Update(bar)
		st.Update(bar)
		volOsc.Update(bar)
	}

	snap := &model.IndicatorSnapshot{
		Ticker:   ticker,
		Interval: interval,
		AsOf:     last.TS,
		Bars:     len(series),
		Close:    last.Close,

		MAShort: readyValue(maShort),
		MALong:  readyValue(maLong),
		RSI:     readyValue(rsi),

		SuperTrend:      st.Direction(),
		SuperTrendLevel: readyValue(st),

		VolOsc:    readyValue(volOsc),
		VolOscDir: volOsc.Direction(),
	}
	snap.RSIZone = rsiZone(snap.RSI)

	if err := checkFinite(ticker, snap); err != nil {
		return nil, err
	}

	snap.Scores, snap.VolSignal = buildScorecard(scoreInput{
		Close:      snap.Close,
		MAShort:    snap.MAShort,
		MALong:     snap.MALong,
		RSI:        snap.RSI,
		SuperTrend: snap.SuperTrend,
		VolOsc:     snap.VolOsc,
	}, p)

	return snap, nil
}

func readyValue(ind Indicator) model.Value {
	if !ind.Ready() {
		return model.Value{}
	}
	return model.NewValue(ind.Value())
}

func rsiZone(rsi model.Value) model.RSIZone {
	if !rsi.Valid {
		return model.RSIInsufficient
	}
	switch {
	case rsi.Value <= 30:
		return model.RSIOversold
	case rsi.Value >= 70:
		return model.RSIOverbought
	default:
		return model.RSINeutral
	}
}

// checkFinite guards against non-finite output sneaking into the cache.
// Division-by-zero cases are already reported as insufficient upstream, so a
// hit here means genuinely degenerate input.
func checkFinite(ticker string, snap *model.IndicatorSnapshot) error {
	for _, v := range []model.Value{snap.MAShort, snap.MALong, snap.RSI, snap.SuperTrendLevel, snap.VolOsc} {
		if v.Valid && (math.IsNaN(v.Value) || math.IsInf(v.Value, 0)) {
			return &model.ComputeError{Ticker: ticker, Reason: "non-finite indicator value"}
		}
	}
	return nil
}
