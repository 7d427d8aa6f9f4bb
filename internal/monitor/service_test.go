package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stockwatch/internal/cache"
	"stockwatch/internal/datasource"
	"stockwatch/internal/indicator"
	"stockwatch/internal/model"
)

// blockingSource wraps the mock source, counting calls and optionally
// holding each fetch until released.
type blockingSource struct {
	mock    *datasource.Mock
	calls   atomic.Int64
	release chan struct{} // nil → don't block
}

func (b *blockingSource) Name() string { return "blocking" }

func (b *blockingSource) FetchSeries(ctx context.Context, ticker string, interval model.Interval, days int) (model.Series, error) {
	b.calls.Add(1)
	if b.release != nil {
		select {
		case <-b.release:
		case <-ctx.Done():
			return nil, &model.FetchError{Source: b.Name(), Ticker: ticker, Reason: "cancelled", Err: ctx.Err()}
		}
	}
	return b.mock.FetchSeries(ctx, ticker, interval, days)
}

func newService(t *testing.T, source model.DataSource, tickers ...string) *Service {
	t.Helper()
	if len(tickers) == 0 {
		tickers = []string{"RATU.JK", "IMPC.JK"}
	}
	return New(Config{
		Source:       source,
		Cache:        cache.New(tickers),
		Params:       indicator.DefaultParams(),
		Interval:     model.Interval1d,
		RefreshEvery: time.Hour,
		FetchTimeout: 2 * time.Second,
	})
}

func TestService_ForceRefreshAll(t *testing.T) {
	svc := newService(t, datasource.NewMock())

	if err := svc.ForceRefresh(context.Background(), ""); err != nil {
		t.Fatal(err)
	}

	for _, e := range svc.SnapshotAll() {
		if e.Pending() {
			t.Errorf("%s still pending after refresh", e.Ticker)
		}
		if e.Snapshot.Scores.Composite < -5 || e.Snapshot.Scores.Composite > 5 {
			t.Errorf("%s composite out of range: %d", e.Ticker, e.Snapshot.Scores.Composite)
		}
	}
}

func TestService_FailureIsolation(t *testing.T) {
	mock := datasource.NewMock()
	mock.FailFor = map[string]bool{"RATU.JK": true}
	svc := newService(t, mock)

	svc.ForceRefresh(context.Background(), "")

	ratu, err := svc.SnapshotFor("RATU.JK")
	if err != nil {
		t.Fatal(err)
	}
	if ratu.LastErr == "" || ratu.Snapshot != nil {
		t.Errorf("failed ticker should be pending with error: %+v", ratu)
	}

	impc, _ := svc.SnapshotFor("IMPC.JK")
	if impc.Pending() || impc.LastErr != "" {
		t.Errorf("healthy ticker affected by neighbour failure: %+v", impc)
	}
}

func TestService_FailedRefreshKeepsLastGood(t *testing.T) {
	mock := datasource.NewMock()
	svc := newService(t, mock)

	svc.ForceRefresh(context.Background(), "RATU.JK")
	first, _ := svc.SnapshotFor("RATU.JK")
	if first.Pending() {
		t.Fatal("first refresh should succeed")
	}

	mock.FailFor = map[string]bool{"RATU.JK": true}
	if err := svc.ForceRefresh(context.Background(), "RATU.JK"); err == nil {
		t.Fatal("expected refresh error")
	}

	after, _ := svc.SnapshotFor("RATU.JK")
	if !after.Stale() {
		t.Errorf("entry should be stale: %+v", after)
	}
	if after.Snapshot.Close != first.Snapshot.Close {
		t.Error("last good snapshot should survive the failed refresh")
	}
}

func TestService_SnapshotForUntracked(t *testing.T) {
	svc := newService(t, datasource.NewMock())

	if _, err := svc.SnapshotFor("GOTO.JK"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := svc.ForceRefresh(context.Background(), "GOTO.JK"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("force refresh: expected ErrNotFound, got %v", err)
	}
}

func TestService_CoalescesConcurrentRefreshes(t *testing.T) {
	src := &blockingSource{mock: datasource.NewMock(), release: make(chan struct{})}
	svc := newService(t, src, "RATU.JK")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.ForceRefresh(context.Background(), "RATU.JK")
		}()
	}

	// Let every goroutine reach the in-flight check before releasing.
	time.Sleep(50 * time.Millisecond)
	close(src.release)
	wg.Wait()

	if got := src.calls.Load(); got != 1 {
		t.Errorf("source calls: got %d, want 1 (coalesced)", got)
	}
}

func TestService_SetInterval(t *testing.T) {
	svc := newService(t, datasource.NewMock())

	if err := svc.SetInterval(model.Interval1h); err != nil {
		t.Fatal(err)
	}
	if svc.Interval() != model.Interval1h {
		t.Errorf("interval: got %s", svc.Interval())
	}

	if err := svc.SetInterval("3h"); err == nil {
		t.Fatal("expected rejection of unsupported interval")
	}
	if svc.Interval() != model.Interval1h {
		t.Error("failed SetInterval must not change the active interval")
	}

	svc.ForceRefresh(context.Background(), "RATU.JK")
	e, _ := svc.SnapshotFor("RATU.JK")
	if e.Snapshot.Interval != model.Interval1h {
		t.Errorf("snapshot interval: got %s, want 1h", e.Snapshot.Interval)
	}
}

func TestService_PublishesUpdates(t *testing.T) {
	svc := newService(t, datasource.NewMock(), "RATU.JK")

	svc.ForceRefresh(context.Background(), "RATU.JK")

	select {
	case e := <-svc.Updates():
		if e.Ticker != "RATU.JK" || e.Snapshot == nil {
			t.Errorf("update entry: %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no update published after refresh")
	}
}

func TestService_RunInitialRefresh(t *testing.T) {
	svc := newService(t, datasource.NewMock())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		e, _ := svc.SnapshotFor("RATU.JK")
		if !e.Pending() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	e, _ := svc.SnapshotFor("RATU.JK")
	if e.Pending() {
		t.Error("Run should refresh immediately on start")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on ctx cancel")
	}
}
