package model

import (
	"time"
)

// Bar is one OHLCV bar: a single period's open, high, low, close price and
// traded volume.
type Bar struct {
	TS     time.Time `json:"ts"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Series is an ordered sequence of bars, strictly increasing in timestamp.
type Series []Bar

// Validate checks the series invariants: strictly increasing timestamps,
// positive prices, non-negative volume. Indicators never run on a series
// that fails validation.
func (s Series) Validate() error {
	for i := range s {
		b := &s[i]
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return &ValidationError{Index: i, Reason: "non-positive price"}
		}
		if b.Volume < 0 {
			return &ValidationError{Index: i, Reason: "negative volume"}
		}
		if i > 0 && !s[i-1].TS.Before(b.TS) {
			return &ValidationError{Index: i, Reason: "timestamp not increasing"}
		}
	}
	return nil
}

// Last returns the final bar of the series.
func (s Series) Last() (Bar, bool) {
	if len(s) == 0 {
		return Bar{}, false
	}
	return s[len(s)-1], true
}

// Resample merges bars into buckets of the given duration, keyed by
// TS.Truncate(d): open of the first bar in the bucket, max high, min low,
// close of the last bar, summed volume. Used to build 4h bars from 1h data.
func Resample(s Series, d time.Duration) Series {
	if d <= 0 || len(s) == 0 {
		return s
	}
	out := make(Series, 0, len(s))
	for _, b := range s {
		key := b.TS.Truncate(d)
		if n := len(out); n > 0 && out[n-1].TS.Equal(key) {
			cur := &out[n-1]
			if b.High > cur.High {
				cur.High = b.High
			}
			if b.Low < cur.Low {
				cur.Low = b.Low
			}
			cur.Close = b.Close
			cur.Volume += b.Volume
			continue
		}
		nb := b
		nb.TS = key
		out = append(out, nb)
	}
	return out
}

// Interval identifies the bar duration of a series.
type Interval string

const (
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
	Interval1w  Interval = "1wk"
)

// Intervals lists the supported bar intervals.
func Intervals() []Interval {
	return []Interval{Interval5m, Interval15m, Interval30m, Interval1h, Interval4h, Interval1d, Interval1w}
}

// Valid reports whether the interval is a supported value.
func (iv Interval) Valid() bool {
	switch iv {
	case Interval5m, Interval15m, Interval30m, Interval1h, Interval4h, Interval1d, Interval1w:
		return true
	}
	return false
}

// DefaultLookbackDays returns the default fetch window for the interval.
func (iv Interval) DefaultLookbackDays() int {
	switch iv {
	case Interval5m:
		return 30
	case Interval15m, Interval30m, Interval1h, Interval4h:
		return 60
	case Interval1w:
		return 730
	default:
		return 180
	}
}

// BarsPerDay conservatively approximates how many bars one calendar day
// contributes at this interval, accounting for weekends and session length.
// Used to translate a minimum bar count into a lookback window.
func (iv Interval) BarsPerDay() float64 {
	switch iv {
	case Interval5m:
		return 40
	case Interval15m:
		return 14
	case Interval30m:
		return 7
	case Interval1h:
		return 4
	case Interval4h:
		return 1
	case Interval1w:
		return 1.0 / 8
	default:
		return 0.6
	}
}

// MinLookbackDays returns the smallest lookback window, in calendar days,
// expected to yield at least minBars bars at this interval.
func (iv Interval) MinLookbackDays(minBars int) int {
	per := iv.BarsPerDay()
	days := int(float64(minBars)/per) + 1
	if days < 1 {
		days = 1
	}
	return days
}
