// cmd/quotesim — Demo quote server emulating the Yahoo Finance v8 chart API.
// Serves deterministic simulated bars so stockwatch can run end to end
// without touching the real endpoint:
//
//	go run ./cmd/quotesim -addr :9002
//	YAHOO_URL=http://localhost:9002 go run ./cmd/stockwatch
//
// Bars come from the same generator the mock source uses, so a given ticker
// always replays the same history. Flags:
//
//	-addr   listen address (default ":9002")
//	-fail   comma-separated tickers that answer with a chart API error
//	-nulls  inject a null bar every N bars (0 = never), as holidays do
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"strings"

	"stockwatch/internal/datasource"
	"stockwatch/internal/model"
)

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []quoteArrays `json:"quote"`
	} `json:"indicators"`
}

type quoteArrays struct {
	Open   []interface{} `json:"open"`
	High   []interface{} `json:"high"`
	Low    []interface{} `json:"low"`
	Close  []interface{} `json:"close"`
	Volume []interface{} `json:"volume"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type simulator struct {
	failFor   map[string]bool
	nullEvery int
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	addr := flag.String("addr", ":9002", "listen address")
	fail := flag.String("fail", "", "tickers that answer with an API error")
	nulls := flag.Int("nulls", 0, "inject a null bar every N bars (0 = never)")
	flag.Parse()

	sim := &simulator{failFor: map[string]bool{}, nullEvery: *nulls}
	for _, t := range strings.Split(*fail, ",") {
		if t = strings.TrimSpace(t); t != "" {
			sim.failFor[t] = true
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v8/finance/chart/", sim.handleChart)

	log.Printf("[quotesim] listening on %s (nulls every %d bars, %d failing tickers)",
		*addr, sim.nullEvery, len(sim.failFor))
	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.Fatalf("[quotesim] %v", err)
	}
}

func (s *simulator) handleChart(w http.ResponseWriter, r *http.Request) {
	ticker := strings.TrimPrefix(r.URL.Path, "/v8/finance/chart/")
	if ticker == "" || strings.Contains(ticker, "/") {
		http.NotFound(w, r)
		return
	}

	interval := model.Interval(r.URL.Query().Get("interval"))
	if !interval.Valid() {
		writeChartError(w, "Bad Request", "invalid interval")
		return
	}
	if s.failFor[ticker] {
		log.Printf("[quotesim] %s: simulated failure", ticker)
		writeChartError(w, "Not Found", "No data found, symbol may be delisted")
		return
	}

	days := daysForRange(r.URL.Query().Get("range"))
	n := int(float64(days) * interval.BarsPerDay())
	if n < 1 {
		n = 1
	}
	series := datasource.GenerateSeries(ticker, interval, n)

	res := chartResult{Timestamp: make([]int64, 0, len(series))}
	q := quoteArrays{}
	for i, b := range series {
		res.Timestamp = append(res.Timestamp, b.TS.Unix())
		if s.nullEvery > 0 && (i+1)%s.nullEvery == 0 {
			q.Open = append(q.Open, nil)
			q.High = append(q.High, nil)
			q.Low = append(q.Low, nil)
			q.Close = append(q.Close, nil)
			q.Volume = append(q.Volume, nil)
			continue
		}
		q.Open = append(q.Open, b.Open)
		q.High = append(q.High, b.High)
		q.Low = append(q.Low, b.Low)
		q.Close = append(q.Close, b.Close)
		q.Volume = append(q.Volume, b.Volume)
	}
	res.Indicators.Quote = []quoteArrays{q}

	var resp chartResponse
	resp.Chart.Result = []chartResult{res}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
	log.Printf("[quotesim] %s %s range=%s -> %d bars",
		ticker, interval, r.URL.Query().Get("range"), len(series))
}

func writeChartError(w http.ResponseWriter, code, desc string) {
	var resp chartResponse
	resp.Chart.Error = &chartError{Code: code, Description: desc}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// daysForRange inverts the client's range ladder.
func daysForRange(rng string) int {
	switch rng {
	case "5d":
		return 5
	case "1mo":
		return 30
	case "3mo":
		return 90
	case "6mo":
		return 180
	case "1y":
		return 365
	case "2y":
		return 730
	default:
		return 1825
	}
}
