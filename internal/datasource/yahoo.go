// Package datasource provides the OHLCV data sources the refresh loop can be
// wired to: the Yahoo Finance chart API, the SmartAPI broker feed, the local
// sqlite archive, and a deterministic mock for tests and the quote simulator.
package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"stockwatch/internal/model"
)

const defaultYahooBaseURL = "https://query1.finance.yahoo.com"

// Yahoo fetches bars from the Yahoo Finance v8 chart API. Tickers are passed
// through verbatim, so IDX symbols carry their ".JK" suffix.
type Yahoo struct {
	client  *http.Client
	baseURL string
}

// YahooOption tweaks the client. Tests point it at an httptest server.
type YahooOption func(*Yahoo)

func WithYahooBaseURL(u string) YahooOption {
	return func(y *Yahoo) { y.baseURL = u }
}

func WithYahooTimeout(d time.Duration) YahooOption {
	return func(y *Yahoo) { y.client.Timeout = d }
}

// NewYahoo creates a Yahoo chart client. proxyURL may be empty.
func NewYahoo(proxyURL string, opts ...YahooOption) *Yahoo {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	y := &Yahoo{
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		baseURL: defaultYahooBaseURL,
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

func (y *Yahoo) Name() string { return "yahoo" }

// yahooChart is the response structure from the Yahoo Finance chart API.
// Quote arrays use interface{} because Yahoo emits JSON null for bars on
// holidays and halts.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

// FetchSeries returns bars for roughly the last `days` calendar days. The 4h
// interval is not served natively by Yahoo; it is resampled from 1h bars.
func (y *Yahoo) FetchSeries(ctx context.Context, ticker string, interval model.Interval, days int) (model.Series, error) {
	if !interval.Valid() {
		return nil, &model.FetchError{Source: y.Name(), Ticker: ticker, Reason: fmt.Sprintf("unsupported interval %q", interval)}
	}

	wire := interval
	if interval == model.Interval4h {
		wire = model.Interval1h
	}

	series, err := y.fetchChart(ctx, ticker, string(wire), rangeForDays(days))
	if err != nil {
		return nil, err
	}
	if interval == model.Interval4h {
		series = model.Resample(series, 4*time.Hour)
	}
	return series, nil
}

func (y *Yahoo) fetchChart(ctx context.Context, ticker, interval, rng string) (model.Series, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		y.baseURL, url.PathEscape(ticker), interval, rng)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &model.FetchError{Source: y.Name(), Ticker: ticker, Reason: "build request", Err: err}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, &model.FetchError{Source: y.Name(), Ticker: ticker, Reason: "request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.FetchError{Source: y.Name(), Ticker: ticker, Reason: "read body", Err: err}
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, &model.FetchError{Source: y.Name(), Ticker: ticker, Reason: "unknown ticker"}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &model.FetchError{Source: y.Name(), Ticker: ticker, Reason: fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(body, 200))}
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, &model.FetchError{Source: y.Name(), Ticker: ticker, Reason: "decode", Err: err}
	}
	if chart.Chart.Error != nil {
		return nil, &model.FetchError{Source: y.Name(), Ticker: ticker, Reason: fmt.Sprintf("api error %s: %s", chart.Chart.Error.Code, chart.Chart.Error.Description)}
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, &model.FetchError{Source: y.Name(), Ticker: ticker, Reason: "no data returned"}
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make(model.Series, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) ||
			i >= len(quote.Close) || i >= len(quote.Volume) {
			break
		}
		o := toFloat(quote.Open[i])
		h := toFloat(quote.High[i])
		l := toFloat(quote.Low[i])
		c := toFloat(quote.Close[i])
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // skip null bars (holidays etc.)
		}
		bars = append(bars, model.Bar{
			TS:     time.Unix(ts, 0).UTC(),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: int64(toFloat(quote.Volume[i])),
		})
	}

	if len(bars) == 0 {
		return nil, &model.FetchError{Source: y.Name(), Ticker: ticker, Reason: "all bars null"}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].TS.Before(bars[j].TS) })
	return bars, nil
}

// rangeForDays maps a lookback in calendar days onto Yahoo's range ladder.
func rangeForDays(days int) string {
	switch {
	case days <= 5:
		return "5d"
	case days <= 30:
		return "1mo"
	case days <= 90:
		return "3mo"
	case days <= 180:
		return "6mo"
	case days <= 365:
		return "1y"
	case days <= 730:
		return "2y"
	default:
		return "5y"
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
