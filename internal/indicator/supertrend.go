package indicator

import (
	"fmt"

	"stockwatch/internal/model"
)

// SuperTrend places trailing stop bands at mid ± mult·ATR with the usual
// carry-forward rule: the upper band only ratchets down while price stays
// below it, the lower band only ratchets up while price stays above it.
// Direction flips to bullish when the close crosses above the bearish band
// and to bearish when the close crosses below the bullish band. Ready after
// period+1 bars (the ATR warm-up).
type SuperTrend struct {
	period int
	mult   float64
	atr    *ATR

	ready     bool
	prevClose float64
	upper     float64 // final upper band
	lower     float64 // final lower band
	bullish   bool
}

// NewSuperTrend creates a SuperTrend indicator (typically period=10, mult=3).
func NewSuperTrend(period int, mult float64) *SuperTrend {
	return &SuperTrend{
		period: period,
		mult:   mult,
		atr:    NewATR(period),
	}
}

func (st *SuperTrend) Name() string {
	return fmt.Sprintf("SUPERT_%d_%.1f", st.period, st.mult)
}

func (st *SuperTrend) Update(bar model.Bar) {
	prevClose := st.prevClose
	st.prevClose = bar.Close

	st.atr.Update(bar)
	if !st.atr.Ready() {
		return
	}

	mid := (bar.High + bar.Low) / 2
	basicUpper := mid + st.mult*st.atr.Value()
	basicLower := mid - st.mult*st.atr.Value()

	if !st.ready {
		// First computable bar: seed the bands, start bullish.
		st.upper = basicUpper
		st.lower = basicLower
		st.bullish = true
		st.ready = true
		return
	}

	// Carry-forward: a band only resets when the basic band tightens or the
	// previous close already broke through it.
	if basicUpper < st.upper || prevClose > st.upper {
		st.upper = basicUpper
	}
	if basicLower > st.lower || prevClose < st.lower {
		st.lower = basicLower
	}

	// Flip only on a close crossing the opposite band.
	if st.bullish {
		if bar.Close < st.lower {
			st.bullish = false
		}
	} else {
		if bar.Close > st.upper {
			st.bullish = true
		}
	}
}

// Value returns the active trailing band: the lower band while bullish, the
// upper band while bearish.
func (st *SuperTrend) Value() float64 {
	if st.bullish {
		return st.lower
	}
	return st.upper
}

func (st *SuperTrend) Ready() bool { return st.ready }

// Direction reports the current trend direction.
func (st *SuperTrend) Direction() model.TrendDirection {
	if !st.ready {
		return model.TrendInsufficient
	}
	if st.bullish {
		return model.TrendBullish
	}
	return model.TrendBearish
}

// Bands returns the current final upper and lower bands.
func (st *SuperTrend) Bands() (upper, lower float64) {
	return st.upper, st.lower
}
