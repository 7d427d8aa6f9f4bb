package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stockwatch/internal/model"
)

// chartJSON renders a minimal Yahoo chart payload. nil entries become JSON
// null, the way Yahoo reports holiday bars.
func chartJSON(ts []int64, closes []any) string {
	var b strings.Builder
	b.WriteString(`{"chart":{"result":[{"timestamp":[`)
	for i, t := range ts {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", t)
	}
	b.WriteString(`],"indicators":{"quote":[{`)
	for i, field := range []string{"open", "high", "low", "close", "volume"} {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, `"%s":[`, field)
		for j, c := range closes {
			if j > 0 {
				b.WriteByte(',')
			}
			if c == nil {
				b.WriteString("null")
			} else if field == "volume" {
				b.WriteString("1000")
			} else {
				fmt.Fprintf(&b, "%v", c)
			}
		}
		b.WriteString(`]`)
	}
	b.WriteString(`}]}}],"error":null}}`)
	return b.String()
}

func yahooForTest(t *testing.T, handler http.HandlerFunc) *Yahoo {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewYahoo("", WithYahooBaseURL(srv.URL))
}

func TestYahoo_FetchSeries(t *testing.T) {
	ts := []int64{1704153600, 1704240000, 1704326400}
	y := yahooForTest(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v8/finance/chart/RATU.JK") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("interval"); got != "1d" {
			t.Errorf("interval=%s", got)
		}
		fmt.Fprint(w, chartJSON(ts, []any{100.0, 101.5, 99.25}))
	})

	series, err := y.FetchSeries(context.Background(), "RATU.JK", model.Interval1d, 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 3 {
		t.Fatalf("bars: got %d, want 3", len(series))
	}
	if series[0].TS.Unix() != ts[0] || series[2].Close != 99.25 {
		t.Errorf("bars mis-decoded: %+v", series)
	}
	if err := series.Validate(); err != nil {
		t.Errorf("fetched series should validate: %v", err)
	}
}

func TestYahoo_SkipsNullBars(t *testing.T) {
	// Middle bar is a holiday: all quote fields null.
	ts := []int64{1704153600, 1704240000, 1704326400}
	y := yahooForTest(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartJSON(ts, []any{100.0, nil, 102.0}))
	})

	series, err := y.FetchSeries(context.Background(), "RATU.JK", model.Interval1d, 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 2 {
		t.Fatalf("bars: got %d, want 2 (null bar skipped)", len(series))
	}
}

func TestYahoo_UnknownTicker(t *testing.T) {
	y := yahooForTest(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	_, err := y.FetchSeries(context.Background(), "NOPE.JK", model.Interval1d, 30)
	var ferr *model.FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected *model.FetchError, got %v", err)
	}
	if ferr.Source != "yahoo" || ferr.Ticker != "NOPE.JK" {
		t.Errorf("error fields: %+v", ferr)
	}
}

func TestYahoo_APIError(t *testing.T) {
	y := yahooForTest(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
	})

	_, err := y.FetchSeries(context.Background(), "RATU.JK", model.Interval1d, 30)
	if err == nil || !strings.Contains(err.Error(), "No data found") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestYahoo_FourHourResamplesFromHourly(t *testing.T) {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).Unix()
	var ts []int64
	closes := make([]any, 0, 8)
	for i := 0; i < 8; i++ {
		ts = append(ts, base+int64(i)*3600)
		closes = append(closes, 100.0+float64(i))
	}
	var gotInterval string
	y := yahooForTest(t, func(w http.ResponseWriter, r *http.Request) {
		gotInterval = r.URL.Query().Get("interval")
		fmt.Fprint(w, chartJSON(ts, closes))
	})

	series, err := y.FetchSeries(context.Background(), "RATU.JK", model.Interval4h, 10)
	if err != nil {
		t.Fatal(err)
	}
	if gotInterval != "1h" {
		t.Errorf("wire interval: got %s, want 1h", gotInterval)
	}
	if len(series) != 2 {
		t.Fatalf("resampled bars: got %d, want 2", len(series))
	}
	// Each 4h bucket opens with its first hourly open, takes the bucket-wide
	// high and low, and closes with its last hourly close.
	if series[0].Open != 100 || series[1].Open != 104 {
		t.Errorf("bucket opens: %v %v", series[0].Open, series[1].Open)
	}
	if series[0].High != 103 || series[1].High != 107 {
		t.Errorf("bucket highs: %v %v", series[0].High, series[1].High)
	}
	if series[0].Low != 100 || series[1].Low != 104 {
		t.Errorf("bucket lows: %v %v", series[0].Low, series[1].Low)
	}
	if series[0].Close != 103 || series[1].Close != 107 {
		t.Errorf("bucket closes: %v %v", series[0].Close, series[1].Close)
	}
	if series[0].Volume != 4000 {
		t.Errorf("bucket volume: got %d, want 4000", series[0].Volume)
	}
}

func TestYahoo_ContextCancelled(t *testing.T) {
	y := yahooForTest(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, chartJSON([]int64{1704153600}, []any{100.0}))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := y.FetchSeries(ctx, "RATU.JK", model.Interval1d, 30); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestRangeForDays(t *testing.T) {
	cases := map[int]string{3: "5d", 30: "1mo", 60: "3mo", 180: "6mo", 365: "1y", 730: "2y", 1500: "5y"}
	for days, want := range cases {
		if got := rangeForDays(days); got != want {
			t.Errorf("rangeForDays(%d): got %s, want %s", days, got, want)
		}
	}
}

func TestMock_Deterministic(t *testing.T) {
	m := NewMock()
	a, err := m.FetchSeries(context.Background(), "RATU.JK", model.Interval1d, 60)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := m.FetchSeries(context.Background(), "RATU.JK", model.Interval1d, 60)
	if len(a) == 0 || len(a) != len(b) {
		t.Fatalf("lengths: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("bar %d differs between runs", i)
		}
	}
	if err := a.Validate(); err != nil {
		t.Errorf("mock series should validate: %v", err)
	}

	other, _ := m.FetchSeries(context.Background(), "IMPC.JK", model.Interval1d, 60)
	if a[len(a)-1].Close == other[len(other)-1].Close {
		t.Error("different tickers should not share a price path")
	}
}

func TestMock_SimulatedFailure(t *testing.T) {
	m := NewMock()
	m.FailFor = map[string]bool{"BKSL.JK": true}

	var ferr *model.FetchError
	if _, err := m.FetchSeries(context.Background(), "BKSL.JK", model.Interval1d, 30); !errors.As(err, &ferr) {
		t.Fatalf("expected *model.FetchError, got %v", err)
	}
}
