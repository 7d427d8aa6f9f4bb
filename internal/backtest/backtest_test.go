package backtest

import (
	"strings"
	"testing"
	"time"

	"stockwatch/internal/indicator"
	"stockwatch/internal/model"
)

var day0 = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func trendSeries(n int, start, step float64) model.Series {
	s := make(model.Series, 0, n)
	for i := 0; i < n; i++ {
		c := start + step*float64(i)
		s = append(s, model.Bar{
			TS:     day0.AddDate(0, 0, i),
			Open:   c - step/2,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 5000,
		})
	}
	return s
}

func TestRun_UptrendBuysAndHolds(t *testing.T) {
	// Steady uptrend: composite stays positive once warmed up, so the
	// strategy enters on the first scored bar and never exits.
	series := trendSeries(60, 100, 1)

	res, err := Run("RATU.JK", series, Config{
		Params: indicator.DefaultParams(),
		BuyAt:  1,
		SellAt: -1,
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Trades) != 1 {
		t.Fatalf("trades: got %d, want 1", len(res.Trades))
	}
	tr := res.Trades[0]
	if !tr.ForcedExit {
		t.Error("open position should be marked to the final close")
	}
	if tr.ReturnPct <= 0 || res.TotalReturnPct <= 0 {
		t.Errorf("uptrend should profit: trade=%.2f total=%.2f", tr.ReturnPct, res.TotalReturnPct)
	}
	if res.WinRate != 100 {
		t.Errorf("win rate: got %.1f, want 100", res.WinRate)
	}
	// Entry on the first scored bar means strategy return tracks buy-and-hold.
	if diff := res.TotalReturnPct - res.BuyHoldReturnPct; diff > 0.01 || diff < -0.01 {
		t.Errorf("strategy should match buy-and-hold here: %.4f vs %.4f", res.TotalReturnPct, res.BuyHoldReturnPct)
	}
}

func TestRun_DowntrendStaysInCash(t *testing.T) {
	// Steady decline: composite is deeply negative, no entry ever fires.
	series := trendSeries(60, 200, -1)

	res, err := Run("BKSL.JK", series, Config{
		Params: indicator.DefaultParams(),
		BuyAt:  1,
		SellAt: -1,
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Trades) != 0 {
		t.Fatalf("trades in a downtrend: %+v", res.Trades)
	}
	if res.TotalReturnPct != 0 {
		t.Errorf("cash return: got %.2f, want 0", res.TotalReturnPct)
	}
	if res.BuyHoldReturnPct >= 0 {
		t.Errorf("buy-and-hold should lose in a downtrend: %.2f", res.BuyHoldReturnPct)
	}
	if res.OutperformancePct <= 0 {
		t.Errorf("staying in cash should outperform: %.2f", res.OutperformancePct)
	}
}

func TestRun_RoundTripOnTrendReversal(t *testing.T) {
	// Up 40 bars then sharply down: the strategy enters during the climb
	// and the exit threshold fires on the way down.
	series := trendSeries(40, 100, 1)
	last := series[len(series)-1].Close
	for i := 1; i <= 25; i++ {
		c := last - 3*float64(i)
		series = append(series, model.Bar{
			TS:     day0.AddDate(0, 0, 39+i),
			Open:   c + 1.5,
			High:   c + 4,
			Low:    c - 1,
			Close:  c,
			Volume: 5000,
		})
	}

	res, err := Run("IMPC.JK", series, Config{
		Params: indicator.DefaultParams(),
		BuyAt:  1,
		SellAt: -1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Trades) == 0 {
		t.Fatal("expected at least one round trip")
	}
	first := res.Trades[0]
	if first.ForcedExit {
		t.Error("reversal should trigger a threshold exit, not a forced one")
	}
	if !first.ExitTS.After(first.EntryTS) {
		t.Errorf("trade ordering: %+v", first)
	}
	// Strategy exits on the way down, so it keeps more than buy-and-hold.
	if res.OutperformancePct <= 0 {
		t.Errorf("exit on reversal should beat holding: strategy=%.2f hold=%.2f",
			res.TotalReturnPct, res.BuyHoldReturnPct)
	}
}

func TestRun_RejectsBadConfig(t *testing.T) {
	series := trendSeries(60, 100, 1)

	cases := []Config{
		{Params: indicator.DefaultParams(), BuyAt: 1, SellAt: 1},  // equal
		{Params: indicator.DefaultParams(), BuyAt: -1, SellAt: 2}, // inverted
		{Params: indicator.DefaultParams(), BuyAt: 9, SellAt: -1}, // out of range
	}
	for _, cfg := range cases {
		if _, err := Run("X.JK", series, cfg); err == nil {
			t.Errorf("config %+v should be rejected", cfg)
		}
	}
}

func TestRun_RejectsShortSeries(t *testing.T) {
	series := trendSeries(25, 100, 1)
	_, err := Run("X.JK", series, Config{Params: indicator.DefaultParams(), BuyAt: 1, SellAt: -1})
	if err == nil || !strings.Contains(err.Error(), "scored bars") {
		t.Fatalf("expected scored-bars rejection, got %v", err)
	}
}

func TestGridSearch(t *testing.T) {
	series := trendSeries(80, 100, 1)

	results, err := GridSearch("RATU.JK", series, indicator.DefaultParams())
	if err != nil {
		t.Fatal(err)
	}

	// BuyAt -2..5 with SellAt -5..BuyAt-1: 3+4+...+10 combinations.
	if len(results) != 52 {
		t.Fatalf("combinations: got %d, want 52", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].TotalReturnPct > results[i-1].TotalReturnPct {
			t.Fatalf("results not sorted at %d: %.2f > %.2f", i, results[i].TotalReturnPct, results[i-1].TotalReturnPct)
		}
	}
	for _, r := range results {
		if r.SellAt >= r.BuyAt {
			t.Errorf("invalid combo in results: buy=%d sell=%d", r.BuyAt, r.SellAt)
		}
	}
}
