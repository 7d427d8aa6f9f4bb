package model

import "time"

// Value is a single indicator output. Valid is false while the series is too
// short for the indicator's lookback — "insufficient data" is a legitimate
// state, never reported as a fabricated number.
type Value struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// NewValue wraps a computed indicator value.
func NewValue(v float64) Value { return Value{Value: v, Valid: true} }

// TrendDirection is the SuperTrend direction for a bar.
type TrendDirection string

const (
	TrendBullish      TrendDirection = "bullish"
	TrendBearish      TrendDirection = "bearish"
	TrendInsufficient TrendDirection = "insufficient"
)

// OscDirection is the volume oscillator direction: up when the oscillator is
// positive, down when negative or zero.
type OscDirection string

const (
	OscUp           OscDirection = "up"
	OscDown         OscDirection = "down"
	OscInsufficient OscDirection = "insufficient"
)

// RSIZone classifies an RSI reading.
type RSIZone string

const (
	RSIOversold     RSIZone = "oversold"   // <= 30
	RSIOverbought   RSIZone = "overbought" // >= 70
	RSINeutral      RSIZone = "neutral"
	RSIInsufficient RSIZone = "insufficient"
)

// TrendVote is the majority vote across the directional indicators.
type TrendVote string

const (
	VoteBullish TrendVote = "BULLISH"
	VoteBearish TrendVote = "BEARISH"
	VoteNeutral TrendVote = "NEUTRAL"
)

// Volume signal labels, from price position vs. both moving averages combined
// with the oscillator magnitude.
const (
	VolSignalStrong       = "STRONG"
	VolSignalBearish      = "BEARISH INDICATOR"
	VolSignalAccum        = "ACCUM"
	VolSignalConfirmBear  = "CONFIRM BEARISH"
	VolSignalUp           = "UP"
	VolSignalDown         = "DOWN"
	VolSignalInsufficient = "N/A"
)

// Scorecard holds the per-indicator votes in {-1, 0, +1} plus the composite
// sum (range -5..+5) and the overall trend vote.
type Scorecard struct {
	MAShort    int       `json:"ma_short"`
	MALong     int       `json:"ma_long"`
	RSI        int       `json:"rsi"`
	SuperTrend int       `json:"supertrend"`
	Volume     int       `json:"volume"`
	Composite  int       `json:"composite"`
	Trend      TrendVote `json:"trend"`
}

// IndicatorSnapshot is the immutable, point-in-time bundle of all computed
// indicator values for one ticker. A refresh that succeeds produces a fresh
// snapshot replacing the previous one; snapshots are never mutated in place.
type IndicatorSnapshot struct {
	Ticker   string    `json:"ticker"`
	Interval Interval  `json:"interval"`
	AsOf     time.Time `json:"as_of"` // timestamp of the last bar
	Bars     int       `json:"bars"`  // series length the snapshot was computed from

	Close float64 `json:"close"`

	MAShort Value `json:"ma_short"`
	MALong  Value `json:"ma_long"`

	RSI     Value   `json:"rsi"`
	RSIZone RSIZone `json:"rsi_zone"`

	SuperTrend      TrendDirection `json:"supertrend"`
	SuperTrendLevel Value          `json:"supertrend_level"`

	VolOsc    Value        `json:"vol_osc"`
	VolOscDir OscDirection `json:"vol_osc_dir"`
	VolSignal string       `json:"vol_signal"`

	Scores Scorecard `json:"scores"`
}
