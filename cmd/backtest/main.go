// cmd/backtest replays historical bars through the scorecard engine to
// measure how the composite-score thresholds would have traded.
//
// Usage:
//
//	go run ./cmd/backtest --tickers=RATU.JK,IMPC.JK --days=365 --grid
//	go run ./cmd/backtest --tickers=RATU.JK --buy=2 --sell=-2
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"stockwatch/internal/backtest"
	"stockwatch/internal/datasource"
	"stockwatch/internal/indicator"
	"stockwatch/internal/model"
	"stockwatch/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	tickersFlag := flag.String("tickers", "RATU.JK,IMPC.JK,BKSL.JK", "comma-separated tickers")
	intervalFlag := flag.String("interval", "1d", "bar interval (5m 15m 30m 1h 4h 1d 1wk)")
	days := flag.Int("days", 365, "lookback window in calendar days")
	sourceKind := flag.String("source", "yahoo", "bar source: yahoo, mock or archive")
	dbPath := flag.String("db", "data/bars.db", "sqlite path for --source=archive")
	proxy := flag.String("proxy", "", "HTTPS proxy for the Yahoo source")
	grid := flag.Bool("grid", false, "sweep all threshold combinations")
	top := flag.Int("top", 5, "rows to print per ticker in grid mode")
	buyAt := flag.Int("buy", 2, "enter when composite >= this (single-run mode)")
	sellAt := flag.Int("sell", -2, "exit when composite <= this (single-run mode)")
	flag.Parse()

	_ = godotenv.Load()

	interval := model.Interval(*intervalFlag)
	if !interval.Valid() {
		log.Fatalf("[backtest] unsupported interval %q", *intervalFlag)
	}
	tickers := splitTickers(*tickersFlag)
	if len(tickers) == 0 {
		log.Fatal("[backtest] no tickers given")
	}

	source := buildSource(*sourceKind, *dbPath, *proxy)
	params := indicator.DefaultParams()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	type pick struct {
		ticker string
		best   backtest.Result
	}
	var picks []pick
	var grids [][]backtest.Result

	for _, ticker := range tickers {
		series, err := source.FetchSeries(ctx, ticker, interval, *days)
		if err != nil {
			log.Printf("[backtest] %s: fetch failed: %v", ticker, err)
			continue
		}
		log.Printf("[backtest] %s: %d bars at %s", ticker, len(series), interval)

		if *grid {
			results, err := backtest.GridSearch(ticker, series, params)
			if err != nil {
				log.Printf("[backtest] %s: %v", ticker, err)
				continue
			}
			printGrid(ticker, results, *top)
			picks = append(picks, pick{ticker, results[0]})
			grids = append(grids, results)
			continue
		}

		res, err := backtest.Run(ticker, series, backtest.Config{
			Params: params,
			BuyAt:  *buyAt,
			SellAt: *sellAt,
		})
		if err != nil {
			log.Printf("[backtest] %s: %v", ticker, err)
			continue
		}
		printResult(*res)
		picks = append(picks, pick{ticker, *res})
	}

	if len(picks) == 0 {
		log.Fatal("[backtest] nothing to report")
	}

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════════════════╗")
	fmt.Println("║                   BACKTEST COMPLETE                      ║")
	fmt.Println("╠══════════════════════════════════════════════════════════╣")
	for _, p := range picks {
		fmt.Printf("║  %-10s buy>=%+d sell<=%+d  return %+8.2f%%  vs hold %+8.2f%% ║\n",
			p.ticker, p.best.BuyAt, p.best.SellAt, p.best.TotalReturnPct, p.best.BuyHoldReturnPct)
	}
	fmt.Println("╚══════════════════════════════════════════════════════════╝")

	if buy, sell, n, ok := recommend(grids); ok {
		fmt.Printf("\nRecommended thresholds: buy>=%+d sell<=%+d (profitable on %d of %d tickers)\n",
			buy, sell, n, len(grids))
	}
}

// recommend picks the threshold pair that was profitable for the most
// tickers, breaking ties by summed return across them.
func recommend(grids [][]backtest.Result) (buy, sell, count int, ok bool) {
	type key struct{ buy, sell int }
	hits := map[key]int{}
	sums := map[key]float64{}
	for _, results := range grids {
		for _, r := range results {
			if r.TotalReturnPct > 0 {
				k := key{r.BuyAt, r.SellAt}
				hits[k]++
				sums[k] += r.TotalReturnPct
			}
		}
	}
	var best key
	for k, n := range hits {
		if n > hits[best] || (n == hits[best] && sums[k] > sums[best]) {
			best = k
		}
	}
	if hits[best] == 0 {
		return 0, 0, 0, false
	}
	return best.buy, best.sell, hits[best], true
}

func printGrid(ticker string, results []backtest.Result, top int) {
	if top > len(results) {
		top = len(results)
	}
	fmt.Printf("\n%s, best %d of %d threshold pairs:\n", ticker, top, len(results))
	fmt.Println("  buy   sell   trades   win%     return%   vs hold%")
	for _, r := range results[:top] {
		fmt.Printf("  %+3d   %+3d    %4d    %5.1f   %+8.2f   %+8.2f\n",
			r.BuyAt, r.SellAt, len(r.Trades), r.WinRate, r.TotalReturnPct, r.OutperformancePct)
	}
}

func printResult(r backtest.Result) {
	fmt.Printf("\n%s: buy>=%+d sell<=%+d over %d scored bars\n", r.Ticker, r.BuyAt, r.SellAt, r.ScoredBars)
	fmt.Printf("  trades=%d win=%.1f%% avgWin=%+.2f%% avgLoss=%+.2f%%\n",
		len(r.Trades), r.WinRate, r.AvgWinPct, r.AvgLossPct)
	fmt.Printf("  return=%+.2f%% buy-and-hold=%+.2f%% outperformance=%+.2f%%\n",
		r.TotalReturnPct, r.BuyHoldReturnPct, r.OutperformancePct)
	for i, t := range r.Trades {
		mark := ""
		if t.ForcedExit {
			mark = " (open, marked to last close)"
		}
		fmt.Printf("    #%d %s -> %s  %.2f -> %.2f  %+.2f%%%s\n",
			i+1, t.EntryTS.Format("2006-01-02"), t.ExitTS.Format("2006-01-02"),
			t.EntryPrice, t.ExitPrice, t.ReturnPct, mark)
	}
}

func buildSource(kind, dbPath, proxy string) model.DataSource {
	switch kind {
	case "mock":
		return datasource.NewMock()
	case "archive":
		reader, err := sqlite.NewReader(dbPath)
		if err != nil {
			log.Fatalf("[backtest] sqlite open failed: %v", err)
		}
		return datasource.NewArchive(reader)
	case "yahoo":
		return datasource.NewYahoo(proxy)
	default:
		log.Fatalf("[backtest] unknown source %q", kind)
		return nil
	}
}

func splitTickers(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
