package indicator

import (
	"testing"

	"stockwatch/internal/model"
)

func v(x float64) model.Value { return model.NewValue(x) }

// ────────────────────────────────────────────────────────────
// Volume signal matrix
// ────────────────────────────────────────────────────────────

func TestVolumeSignal_Matrix(t *testing.T) {
	p := DefaultParams() // strong ≥ +20, weak ≤ -15

	cases := []struct {
		name   string
		close  float64
		osc    float64
		signal string
	}{
		// Close 110 sits above both MAs (100, 95); close 90 below both.
		{"above both, rising volume", 110, 25, model.VolSignalStrong},
		{"above both, fading volume", 110, -20, model.VolSignalBearish},
		{"below both, rising volume", 90, 25, model.VolSignalAccum},
		{"below both, fading volume", 90, -20, model.VolSignalConfirmBear},
		{"mixed position, positive osc", 97, 10, model.VolSignalUp},
		{"mixed position, negative osc", 97, -10, model.VolSignalDown},
		{"above both, osc inside thresholds", 110, 10, model.VolSignalUp},
		{"exactly at strong threshold", 110, 20, model.VolSignalStrong},
		{"exactly at weak threshold", 90, -15, model.VolSignalConfirmBear},
		{"zero oscillator", 110, 0, model.VolSignalDown},
	}

	for _, tc := range cases {
		in := scoreInput{
			Close:   tc.close,
			MAShort: v(100),
			MALong:  v(95),
			VolOsc:  v(tc.osc),
		}
		if got := volumeSignal(in, p); got != tc.signal {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.signal)
		}
	}
}

func TestVolumeSignal_InsufficientInputs(t *testing.T) {
	p := DefaultParams()
	full := scoreInput{Close: 110, MAShort: v(100), MALong: v(95), VolOsc: v(25)}

	noOsc := full
	noOsc.VolOsc = model.Value{}
	noMA := full
	noMA.MALong = model.Value{}

	for name, in := range map[string]scoreInput{"no osc": noOsc, "no long MA": noMA} {
		if got := volumeSignal(in, p); got != model.VolSignalInsufficient {
			t.Errorf("%s: got %s, want N/A", name, got)
		}
	}
}

// ────────────────────────────────────────────────────────────
// RSI score bands
// ────────────────────────────────────────────────────────────

func TestScorecard_RSIBands(t *testing.T) {
	cases := []struct {
		rsi   model.Value
		score int
	}{
		// Exhaustion above 75 scores -1, the inclusive [50,75] band scores
		// +1, and the oversold penalty fires at <=30. An invalid reading
		// casts no vote.
		{v(80), -1},
		{v(75.01), -1},
		{v(75), 1},
		{v(60), 1},
		{v(50), 1},
		{v(49.99), 0},
		{v(35), 0},
		{v(30), -1},
		{v(10), -1},
		{model.Value{}, 0},
	}

	for _, tc := range cases {
		sc, _ := buildScorecard(scoreInput{Close: 100, RSI: tc.rsi}, DefaultParams())
		if sc.RSI != tc.score {
			t.Errorf("rsi=%+v: got %d, want %d", tc.rsi, sc.RSI, tc.score)
		}
	}
}

// ────────────────────────────────────────────────────────────
// Trend vote
// ────────────────────────────────────────────────────────────

func TestTrendVote(t *testing.T) {
	cases := []struct {
		name string
		in   scoreInput
		want model.TrendVote
	}{
		{
			"all three bullish",
			scoreInput{MAShort: v(105), MALong: v(100), SuperTrend: model.TrendBullish, VolOsc: v(5)},
			model.VoteBullish,
		},
		{
			"all three bearish",
			scoreInput{MAShort: v(95), MALong: v(100), SuperTrend: model.TrendBearish, VolOsc: v(-5)},
			model.VoteBearish,
		},
		{
			"two to one",
			scoreInput{MAShort: v(105), MALong: v(100), SuperTrend: model.TrendBullish, VolOsc: v(-5)},
			model.VoteBullish,
		},
		{
			"tie with one abstention",
			scoreInput{MAShort: v(105), MALong: v(100), SuperTrend: model.TrendBearish},
			model.VoteNeutral,
		},
		{
			"equal MAs abstain",
			scoreInput{MAShort: v(100), MALong: v(100), SuperTrend: model.TrendBullish, VolOsc: v(-5)},
			model.VoteNeutral,
		},
		{
			"no castable votes",
			scoreInput{SuperTrend: model.TrendInsufficient},
			model.VoteNeutral,
		},
		{
			"zero oscillator votes bearish",
			scoreInput{VolOsc: v(0), SuperTrend: model.TrendInsufficient},
			model.VoteBearish,
		},
	}

	for _, tc := range cases {
		if got := trendVote(tc.in); got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

// ────────────────────────────────────────────────────────────
// Composite
// ────────────────────────────────────────────────────────────

func TestScorecard_CompositeExtremes(t *testing.T) {
	p := DefaultParams()

	// Everything bullish at once: +5.
	in := scoreInput{Close: 110, MAShort: v(105), MALong: v(100), RSI: v(60), SuperTrend: model.TrendBullish, VolOsc: v(25)}
	sc, signal := buildScorecard(in, p)
	if sc.Composite != 5 {
		t.Errorf("bull extreme: composite %d, want 5", sc.Composite)
	}
	if signal != model.VolSignalStrong {
		t.Errorf("bull extreme: signal %s, want STRONG", signal)
	}
	if sc.Trend != model.VoteBullish {
		t.Errorf("bull extreme: trend %s", sc.Trend)
	}

	// Everything bearish at once: -5.
	in = scoreInput{Close: 90, MAShort: v(95), MALong: v(100), RSI: v(20), SuperTrend: model.TrendBearish, VolOsc: v(-20)}
	sc, signal = buildScorecard(in, p)
	if sc.Composite != -5 {
		t.Errorf("bear extreme: composite %d, want -5", sc.Composite)
	}
	if signal != model.VolSignalConfirmBear {
		t.Errorf("bear extreme: signal %s, want CONFIRM BEARISH", signal)
	}
	if sc.Trend != model.VoteBearish {
		t.Errorf("bear extreme: trend %s", sc.Trend)
	}
}

func TestScorecard_EmptyInputs(t *testing.T) {
	sc, signal := buildScorecard(scoreInput{Close: 100, SuperTrend: model.TrendInsufficient}, DefaultParams())
	if sc.Composite != 0 || sc.Trend != model.VoteNeutral {
		t.Errorf("empty inputs should be all-neutral: %+v", sc)
	}
	if signal != model.VolSignalInsufficient {
		t.Errorf("signal: got %s, want N/A", signal)
	}
}
