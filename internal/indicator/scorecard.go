package indicator

import "stockwatch/internal/model"

// scoreInput bundles the per-bar values the scorecard is derived from.
// ComputeSnapshot and the backtest engine both feed it.
type scoreInput struct {
	Close      float64
	MAShort    model.Value
	MALong     model.Value
	RSI        model.Value
	SuperTrend model.TrendDirection
	VolOsc     model.Value
}

// buildScorecard derives the per-indicator votes, the volume signal, the
// composite score and the trend vote. Missing inputs score 0 and cast no vote.
func buildScorecard(in scoreInput, p Params) (model.Scorecard, string) {
	var sc model.Scorecard

	sc.MAShort = scoreVsMA(in.Close, in.MAShort)
	sc.MALong = scoreVsMA(in.Close, in.MALong)

	if in.RSI.Valid {
		switch rsi := in.RSI.Value; {
		case rsi > 75 || rsi <= 30:
			sc.RSI = -1
		case rsi >= 50:
			sc.RSI = 1
		}
	}

	switch in.SuperTrend {
	case model.TrendBullish:
		sc.SuperTrend = 1
	case model.TrendBearish:
		sc.SuperTrend = -1
	}

	signal := volumeSignal(in, p)
	switch signal {
	case model.VolSignalStrong, model.VolSignalAccum, model.VolSignalUp:
		sc.Volume = 1
	case model.VolSignalBearish, model.VolSignalConfirmBear, model.VolSignalDown:
		sc.Volume = -1
	}

	sc.Composite = sc.MAShort + sc.MALong + sc.RSI + sc.SuperTrend + sc.Volume
	sc.Trend = trendVote(in)
	return sc, signal
}

func scoreVsMA(close float64, ma model.Value) int {
	if !ma.Valid {
		return 0
	}
	switch {
	case close > ma.Value:
		return 1
	case close < ma.Value:
		return -1
	}
	return 0
}

// volumeSignal classifies the oscillator against the price's position
// relative to both moving averages.
func volumeSignal(in scoreInput, p Params) string {
	if !in.VolOsc.Valid || !in.MAShort.Valid || !in.MALong.Valid {
		return model.VolSignalInsufficient
	}

	osc := in.VolOsc.Value
	aboveBoth := in.Close > in.MAShort.Value && in.Close > in.MALong.Value
	belowBoth := in.Close < in.MAShort.Value && in.Close < in.MALong.Value

	switch {
	case aboveBoth && osc >= p.OscStrong:
		return model.VolSignalStrong
	case aboveBoth && osc <= p.OscWeak:
		return model.VolSignalBearish
	case belowBoth && osc >= p.OscStrong:
		return model.VolSignalAccum
	case belowBoth && osc <= p.OscWeak:
		return model.VolSignalConfirmBear
	case osc > 0:
		return model.VolSignalUp
	default:
		return model.VolSignalDown
	}
}

// trendVote takes a majority vote across the directional signals: the MA
// crossover, the SuperTrend direction, and the volume oscillator direction.
// A tie, or no castable votes, is NEUTRAL.
func trendVote(in scoreInput) model.TrendVote {
	bull, bear := 0, 0

	if in.MAShort.Valid && in.MALong.Valid && in.MAShort.Value != in.MALong.Value {
		if in.MAShort.Value > in.MALong.Value {
			bull++
		} else {
			bear++
		}
	}
	switch in.SuperTrend {
	case model.TrendBullish:
		bull++
	case model.TrendBearish:
		bear++
	}
	if in.VolOsc.Valid {
		if in.VolOsc.Value > 0 {
			bull++
		} else {
			bear++
		}
	}

	switch {
	case bull > bear:
		return model.VoteBullish
	case bear > bull:
		return model.VoteBearish
	default:
		return model.VoteNeutral
	}
}
