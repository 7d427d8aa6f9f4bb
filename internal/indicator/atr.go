package indicator

import (
	"fmt"
	"math"

	"stockwatch/internal/model"
)

// ATR calculates the Average True Range with Wilder smoothing: the first
// `period` true ranges are averaged as a seed, then smoothed. True range for
// a bar needs the previous close, so ATR is ready after period+1 bars.
type ATR struct {
	period    int
	count     int
	prevClose float64
	sum       float64
	current   float64
}

// NewATR creates a new ATR indicator with the given period.
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string { return fmt.Sprintf("ATR_%d", a.period) }

func (a *ATR) Update(bar model.Bar) {
	a.count++
	if a.count == 1 {
		a.prevClose = bar.Close
		return
	}

	tr := trueRange(bar, a.prevClose)
	a.prevClose = bar.Close

	if a.count <= a.period+1 {
		// Accumulation phase: build the SMA seed
		a.sum += tr
		if a.count == a.period+1 {
			a.current = a.sum / float64(a.period)
		}
		return
	}

	// Wilder's smoothing
	p := float64(a.period)
	a.current = (a.current*(p-1) + tr) / p
}

func (a *ATR) Value() float64 { return a.current }
func (a *ATR) Ready() bool    { return a.count > a.period }

func trueRange(bar model.Bar, prevClose float64) float64 {
	tr := bar.High - bar.Low
	if v := math.Abs(bar.High - prevClose); v > tr {
		tr = v
	}
	if v := math.Abs(bar.Low - prevClose); v > tr {
		tr = v
	}
	return tr
}
