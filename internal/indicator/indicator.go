// Package indicator provides technical indicator calculations over OHLCV bars.
//
// All indicators implement the Indicator interface, receiving bars and
// producing float64 values. Updates are O(1) per bar — no history scans — so
// a full snapshot is one pass over the series.
package indicator

import "stockwatch/internal/model"

// Indicator is the interface for all technical indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA_5", "RSI_14").
	Name() string

	// Update feeds a new bar and recalculates.
	Update(bar model.Bar)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool
}

// Params holds the lookback configuration for one snapshot computation.
// Defaults follow the monitored system's documented parameterization.
type Params struct {
	MAShort int // short close moving average (default 5)
	MALong  int // long close moving average (default 10)

	RSIPeriod int // default 14

	SuperTrendPeriod int     // default 10
	SuperTrendMult   float64 // default 3.0

	VolShort int // short volume moving average (default 5)
	VolLong  int // long volume moving average (default 10)

	// Oscillator thresholds for the volume signal classification.
	OscStrong float64 // default +20
	OscWeak   float64 // default -15
}

// DefaultParams returns the standard parameter set.
func DefaultParams() Params {
	return Params{
		MAShort:          5,
		MALong:           10,
		RSIPeriod:        14,
		SuperTrendPeriod: 10,
		SuperTrendMult:   3.0,
		VolShort:         5,
		VolLong:          10,
		OscStrong:        20,
		OscWeak:          -15,
	}
}

// MinBars returns the series length needed before every indicator in the set
// is ready: the longest of the MA windows, the RSI warm-up (period+1 bars),
// and the SuperTrend warm-up (period+1 bars).
func (p Params) MinBars() int {
	min := p.MALong
	if n := p.RSIPeriod + 1; n > min {
		min = n
	}
	if n := p.SuperTrendPeriod + 1; n > min {
		min = n
	}
	if p.VolLong > min {
		min = p.VolLong
	}
	if p.MAShort > min {
		min = p.MAShort
	}
	return min
}

// Validate rejects non-positive periods and a multiplier that would collapse
// the SuperTrend bands.
func (p Params) Validate() error {
	for _, n := range []int{p.MAShort, p.MALong, p.RSIPeriod, p.SuperTrendPeriod, p.VolShort, p.VolLong} {
		if n <= 0 {
			return &model.ValidationError{Reason: "indicator period must be positive"}
		}
	}
	if p.SuperTrendMult <= 0 {
		return &model.ValidationError{Reason: "supertrend multiplier must be positive"}
	}
	return nil
}
