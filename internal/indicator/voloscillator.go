package indicator

import (
	"fmt"

	"stockwatch/internal/model"
)

// VolumeOscillator is the percentage spread between a short and a long volume
// moving average: (shortMA − longMA) / longMA × 100. A zero long average is
// reported as not ready (insufficient data), never as a division error.
type VolumeOscillator struct {
	short *SMA
	long  *SMA
}

// NewVolumeOscillator creates a volume oscillator (typically short=5, long=10).
func NewVolumeOscillator(short, long int) *VolumeOscillator {
	return &VolumeOscillator{
		short: NewSMA(short),
		long:  NewSMA(long),
	}
}

func (v *VolumeOscillator) Name() string {
	return fmt.Sprintf("VOLOSC_%d_%d", v.short.period, v.long.period)
}

func (v *VolumeOscillator) Update(bar model.Bar) {
	vol := float64(bar.Volume)
	v.short.Add(vol)
	v.long.Add(vol)
}

func (v *VolumeOscillator) Value() float64 {
	if !v.Ready() {
		return 0
	}
	return (v.short.Value() - v.long.Value()) / v.long.Value() * 100
}

func (v *VolumeOscillator) Ready() bool {
	return v.short.Ready() && v.long.Ready() && v.long.Value() != 0
}

// Direction is up when the oscillator is positive, down when negative or zero.
func (v *VolumeOscillator) Direction() model.OscDirection {
	if !v.Ready() {
		return model.OscInsufficient
	}
	if v.Value() > 0 {
		return model.OscUp
	}
	return model.OscDown
}
