// Package backtest replays the composite-score strategy over a historical
// series: all-in buy when the composite reaches the buy threshold, full exit
// when it falls to the sell threshold. It exists to pick thresholds, not to
// simulate execution costs.
package backtest

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"stockwatch/internal/indicator"
	"stockwatch/internal/model"
)

const defaultMinScoredBars = 30

// Config sets the strategy thresholds for one run.
type Config struct {
	Params indicator.Params
	BuyAt  int // enter when composite >= BuyAt
	SellAt int // exit when composite <= SellAt

	// MinScoredBars rejects series too short to trust; 0 → 30.
	MinScoredBars int
}

func (c Config) validate() error {
	if err := c.Params.Validate(); err != nil {
		return err
	}
	if c.BuyAt < -5 || c.BuyAt > 5 || c.SellAt < -5 || c.SellAt > 5 {
		return errors.New("thresholds must be within the composite range -5..+5")
	}
	if c.SellAt >= c.BuyAt {
		return fmt.Errorf("sell threshold %d must be below buy threshold %d", c.SellAt, c.BuyAt)
	}
	return nil
}

// Trade is one round trip. An end-of-series exit is marked ForcedExit.
type Trade struct {
	EntryTS    time.Time `json:"entry_ts"`
	ExitTS     time.Time `json:"exit_ts"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	ReturnPct  float64   `json:"return_pct"`
	ForcedExit bool      `json:"forced_exit,omitempty"`
}

// Result summarizes one backtest run.
type Result struct {
	Ticker string `json:"ticker"`
	BuyAt  int    `json:"buy_at"`
	SellAt int    `json:"sell_at"`

	Trades     []Trade `json:"trades"`
	ScoredBars int     `json:"scored_bars"`

	TotalReturnPct    float64 `json:"total_return_pct"`
	WinRate           float64 `json:"win_rate"`
	AvgWinPct         float64 `json:"avg_win_pct"`
	AvgLossPct        float64 `json:"avg_loss_pct"`
	BuyHoldReturnPct  float64 `json:"buy_hold_return_pct"`
	OutperformancePct float64 `json:"outperformance_pct"`
}

// Run replays the strategy over the series. Bars inside the indicator
// warm-up window are not scored and cannot trade.
func Run(ticker string, series model.Series, cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	minScored := cfg.MinScoredBars
	if minScored <= 0 {
		minScored = defaultMinScoredBars
	}

	res := &Result{Ticker: ticker, BuyAt: cfg.BuyAt, SellAt: cfg.SellAt}
	stream := indicator.NewStream(cfg.Params)

	var (
		holding    bool
		entryTS    time.Time
		entryPrice float64
		firstClose float64
		lastClose  float64
		equity     = 1.0
	)

	for _, bar := range series {
		sc := stream.Update(bar)
		if !stream.Ready() {
			continue
		}
		res.ScoredBars++
		if firstClose == 0 {
			firstClose = bar.Close
		}
		lastClose = bar.Close

		switch {
		case !holding && sc.Composite >= cfg.BuyAt:
			holding = true
			entryTS = bar.TS
			entryPrice = bar.Close

		case holding && sc.Composite <= cfg.SellAt:
			ret := bar.Close/entryPrice - 1
			equity *= 1 + ret
			res.Trades = append(res.Trades, Trade{
				EntryTS:    entryTS,
				ExitTS:     bar.TS,
				EntryPrice: entryPrice,
				ExitPrice:  bar.Close,
				ReturnPct:  ret * 100,
			})
			holding = false
		}
	}

	if res.ScoredBars < minScored {
		return nil, fmt.Errorf("only %d scored bars, need at least %d", res.ScoredBars, minScored)
	}

	// Mark an open position to the final close.
	if holding {
		ret := lastClose/entryPrice - 1
		equity *= 1 + ret
		res.Trades = append(res.Trades, Trade{
			EntryTS:    entryTS,
			ExitTS:     series[len(series)-1].TS,
			EntryPrice: entryPrice,
			ExitPrice:  lastClose,
			ReturnPct:  ret * 100,
			ForcedExit: true,
		})
	}

	res.TotalReturnPct = (equity - 1) * 100
	res.BuyHoldReturnPct = (lastClose/firstClose - 1) * 100
	res.OutperformancePct = res.TotalReturnPct - res.BuyHoldReturnPct
	fillTradeStats(res)
	return res, nil
}

func fillTradeStats(res *Result) {
	if len(res.Trades) == 0 {
		return
	}
	var wins, losses int
	var winSum, lossSum float64
	for _, tr := range res.Trades {
		if tr.ReturnPct > 0 {
			wins++
			winSum += tr.ReturnPct
		} else {
			losses++
			lossSum += tr.ReturnPct
		}
	}
	res.WinRate = float64(wins) / float64(len(res.Trades)) * 100
	if wins > 0 {
		res.AvgWinPct = winSum / float64(wins)
	}
	if losses > 0 {
		res.AvgLossPct = lossSum / float64(losses)
	}
}

// GridSearch runs the backtest over every threshold pair with BuyAt in
// -2..+5 and SellAt in -5..BuyAt-1, returning results sorted by total
// return, best first.
func GridSearch(ticker string, series model.Series, p indicator.Params) ([]Result, error) {
	var out []Result
	for buyAt := -2; buyAt <= 5; buyAt++ {
		for sellAt := -5; sellAt < buyAt; sellAt++ {
			res, err := Run(ticker, series, Config{Params: p, BuyAt: buyAt, SellAt: sellAt})
			if err != nil {
				return nil, fmt.Errorf("grid %d/%d: %w", buyAt, sellAt, err)
			}
			out = append(out, *res)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalReturnPct > out[j].TotalReturnPct
	})
	return out, nil
}
