package indicator

import "stockwatch/internal/model"

// Stream feeds bars through the full indicator set and scores each one as it
// arrives. ComputeSnapshot covers the one-shot case; Stream is for callers
// that need a scorecard per bar, like the backtest engine.
type Stream struct {
	params  Params
	maShort *SMA
	maLong  *SMA
	rsi     *RSI
	st      *SuperTrend
	volOsc  *VolumeOscillator
}

func NewStream(p Params) *Stream {
	return &Stream{
		params:  p,
		maShort: NewSMA(p.MAShort),
		maLong:  NewSMA(p.MALong),
		rsi:     NewRSI(p.RSIPeriod),
		st:      NewSuperTrend(p.SuperTrendPeriod, p.SuperTrendMult),
		volOsc:  NewVolumeOscillator(p.VolShort, p.VolLong),
	}
}

// Update advances every indicator by one bar and returns the bar's scorecard.
// Indicators that are still warming up cast no vote.
func (s *Stream) Update(b model.Bar) model.Scorecard {
	s.maShort.Update(b)
	s.maLong.Update(b)
	s.rsi.Update(b)
	s.st.Update(b)
	s.volOsc.Update(b)

	sc, _ := buildScorecard(scoreInput{
		Close:      b.Close,
		MAShort:    readyValue(s.maShort),
		MALong:     readyValue(s.maLong),
		RSI:        readyValue(s.rsi),
		SuperTrend: s.st.Direction(),
		VolOsc:     readyValue(s.volOsc),
	}, s.params)
	return sc
}

// Ready reports whether every indicator in the set has warmed up.
func (s *Stream) Ready() bool {
	return s.maShort.Ready() && s.maLong.Ready() && s.rsi.Ready() &&
		s.st.Ready() && s.volOsc.Ready()
}
