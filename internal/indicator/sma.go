package indicator

import (
	"fmt"

	"stockwatch/internal/model"
)

// SMA calculates a Simple Moving Average over a rolling window of closes.
// Uses a preallocated circular buffer for zero-allocation updates.
type SMA struct {
	period  int
	buf     []float64 // preallocated circular buffer
	idx     int       // current write position
	count   int       // total values received
	sum     float64
	current float64
}

// NewSMA creates a new SMA indicator with the given period.
func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		buf:    make([]float64, period),
	}
}

func (s *SMA) Name() string { return fmt.Sprintf("SMA_%d", s.period) }

func (s *SMA) Update(bar model.Bar) {
	s.Add(bar.Close)
}

// Add feeds a raw value into the window. Update delegates here with the bar
// close; VolumeOscillator reuses it for volume averages.
func (s *SMA) Add(v float64) {
	if s.count >= s.period {
		// Subtract the oldest value being overwritten
		s.sum -= s.buf[s.idx]
	}

	s.buf[s.idx] = v
	s.sum += v
	s.idx = (s.idx + 1) % s.period
	s.count++

	if s.count >= s.period {
		s.current = s.sum / float64(s.period)
	}
}

func (s *SMA) Value() float64 { return s.current }
func (s *SMA) Ready() bool    { return s.count >= s.period }
