package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"niftyfeed/internal/client/fyers"
	"niftyfeed/internal/feed"
	"niftyfeed/internal/market"
	"niftyfeed/internal/store"
	"niftyfeed/internal/strategy"
)

func newHistoryService(t *testing.T, fetcher *stubHistory) (*HistorySyncService, *store.Store, *store.HistoryCache) {
	t.Helper()
	reg := testRegistry(t)
	st := store.New(reg)
	cache := store.NewHistoryCache()
	svc := &HistorySyncService{
		Client:       fetcher,
		Registry:     reg,
		Store:        st,
		Cache:        cache,
		Strategy:     strategy.FuncEvaluator{Fn: func(store.Series) string { return store.SignalBuy }},
		Logger:       zap.NewNop(),
		PauseBetween: time.Millisecond,
		ErrorPause:   time.Millisecond,
		Always:       true,
	}
	return svc, st, cache
}

func dailyBars(start int64, px float64) []fyers.Candle {
	return []fyers.Candle{
		{Timestamp: start, Open: px, High: px + 2, Low: px - 2, Close: px + 1, Volume: 1000},
		{Timestamp: start + 86400, Open: px + 1, High: px + 3, Low: px - 1, Close: px + 2, Volume: 1100},
	}
}

// closedSession builds a one-minute session roughly twelve hours away from
// now, so the gate is shut whenever the test runs.
func closedSession(t *testing.T) *market.Session {
	t.Helper()
	h := (time.Now().Hour() + 12) % 24
	sess, err := market.NewSession(fmt.Sprintf("%02d:00", h), fmt.Sprintf("%02d:01", h), time.Local)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	return &sess
}

func TestRefreshAll_PopulatesCacheAndSignals(t *testing.T) {
	base := time.Now().Add(-72 * time.Hour).Unix()
	fetcher := &stubHistory{candles: map[string][]fyers.Candle{
		"NSE:NIFTY50-INDEX": dailyBars(base, 22000),
		"NSE:INFY-EQ":       dailyBars(base, 1450),
		"NSE:TCS-EQ":        dailyBars(base, 3500),
	}}
	svc, st, cache := newHistoryService(t, fetcher)

	if err := svc.RefreshAll(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(fetcher.calls) != 3 {
		t.Fatalf("calls=%d want 3", len(fetcher.calls))
	}
	series, ok := cache.Get("TCS-EQ")
	if !ok {
		t.Fatalf("TCS-EQ not cached")
	}
	if series.Len() != 2 || series.Close[1] != 3502 || series.Volume[0] != 1000 {
		t.Fatalf("series=%+v", series)
	}
	if q, _ := st.Get("TCS-EQ"); q.Signal != store.SignalBuy {
		t.Fatalf("signal=%q want BUY", q.Signal)
	}
}

func TestRefreshAll_RequestShape(t *testing.T) {
	fetcher := &stubHistory{}
	svc, _, _ := newHistoryService(t, fetcher)
	svc.Lookback = 48 * time.Hour

	if err := svc.RefreshAll(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}
	if fetcher.lastResolution != "D" {
		t.Fatalf("resolution=%q want D", fetcher.lastResolution)
	}
	if got := fetcher.lastTo.Sub(fetcher.lastFrom); got != 48*time.Hour {
		t.Fatalf("window=%v want 48h", got)
	}
}

func TestRefreshAll_SessionGate(t *testing.T) {
	fetcher := &stubHistory{candles: map[string][]fyers.Candle{
		"NSE:TCS-EQ": dailyBars(time.Now().Add(-48*time.Hour).Unix(), 3500),
	}}
	svc, _, cache := newHistoryService(t, fetcher)
	svc.Always = false
	svc.Session = closedSession(t)

	if err := svc.RefreshAll(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(fetcher.calls) != 0 {
		t.Fatalf("calls=%v want none while closed", fetcher.calls)
	}
	if cache.Len() != 0 {
		t.Fatalf("cache len=%d want 0", cache.Len())
	}

	svc.Always = true
	if err := svc.RefreshAll(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(fetcher.calls) == 0 {
		t.Fatalf("always flag must bypass the session gate")
	}
}

func TestRefreshAll_ErrorContinuesSweep(t *testing.T) {
	base := time.Now().Add(-48 * time.Hour).Unix()
	fetcher := &stubHistory{
		candles: map[string][]fyers.Candle{
			"NSE:NIFTY50-INDEX": dailyBars(base, 22000),
			"NSE:TCS-EQ":        dailyBars(base, 3500),
		},
		errs: map[string]error{"NSE:INFY-EQ": errors.New("rate limited")},
	}
	svc, _, cache := newHistoryService(t, fetcher)

	if err := svc.RefreshAll(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(fetcher.calls) != 3 {
		t.Fatalf("calls=%d want 3", len(fetcher.calls))
	}
	if _, ok := cache.Get("INFY-EQ"); ok {
		t.Fatalf("failed symbol must not be cached")
	}
	if _, ok := cache.Get("TCS-EQ"); !ok {
		t.Fatalf("sweep stopped after error")
	}
}

func TestRefreshAll_PersistsCandlesAndSignal(t *testing.T) {
	base := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC).Unix()
	fetcher := &stubHistory{candles: map[string][]fyers.Candle{
		"NSE:TCS-EQ": {
			{Timestamp: base, Open: 3490, High: 3520, Low: 3480, Close: 3500, Volume: 120000},
			{Timestamp: base + 86400, Open: 3500, High: 3530, Low: 3495, Close: 3510, Volume: 98000},
		},
	}}
	svc, _, _ := newHistoryService(t, fetcher)
	repo := &stubRepo{}
	svc.Repo = repo

	if err := svc.RefreshAll(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}

	if len(repo.candles) != 2 {
		t.Fatalf("candles=%d want 2", len(repo.candles))
	}
	row := repo.candles[0]
	if row.Symbol != "TCS-EQ" {
		t.Fatalf("symbol=%q want TCS-EQ", row.Symbol)
	}
	if !row.BarTime.Equal(time.Unix(base, 0)) {
		t.Fatalf("bar time=%v want %v", row.BarTime, time.Unix(base, 0).UTC())
	}
	if !row.Open.Equal(decimal.NewFromInt(3490)) || !row.Close.Equal(decimal.NewFromInt(3500)) {
		t.Fatalf("row=%+v", row)
	}
	if row.Volume != 120000 {
		t.Fatalf("volume=%d want 120000", row.Volume)
	}

	if len(repo.signals) != 1 {
		t.Fatalf("signals=%d want 1", len(repo.signals))
	}
	sig := repo.signals[0]
	if sig.Symbol != "TCS-EQ" || sig.Signal != store.SignalBuy || sig.Bars != 2 {
		t.Fatalf("signal=%+v", sig)
	}
	if len(sig.Indicators) == 0 {
		t.Fatalf("indicators payload empty")
	}
	if sig.ComputedAt.IsZero() {
		t.Fatalf("computed at is zero")
	}
}

func TestRefreshAll_PersistFailureTolerated(t *testing.T) {
	fetcher := &stubHistory{candles: map[string][]fyers.Candle{
		"NSE:TCS-EQ": dailyBars(time.Now().Add(-48*time.Hour).Unix(), 3500),
	}}
	svc, st, cache := newHistoryService(t, fetcher)
	svc.Repo = &stubRepo{
		candleErr: errors.New("db down"),
		signalErr: errors.New("db down"),
	}

	if err := svc.RefreshAll(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}
	if _, ok := cache.Get("TCS-EQ"); !ok {
		t.Fatalf("cache refresh skipped")
	}
	if q, _ := st.Get("TCS-EQ"); q.Signal != store.SignalBuy {
		t.Fatalf("signal=%q want BUY", q.Signal)
	}
}

func TestRefreshAll_NotifiesOncePerSweep(t *testing.T) {
	base := time.Now().Add(-48 * time.Hour).Unix()
	fetcher := &stubHistory{candles: map[string][]fyers.Candle{
		"NSE:INFY-EQ": dailyBars(base, 1450),
		"NSE:TCS-EQ":  dailyBars(base, 3500),
	}}
	svc, _, _ := newHistoryService(t, fetcher)

	notified := 0
	bus := feed.NewPublisher(zap.NewNop())
	bus.Register(func([]store.Quote) { notified++ })
	svc.Bus = bus

	if err := svc.RefreshAll(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}
	if notified != 1 {
		t.Fatalf("notified=%d want 1", notified)
	}
}

func TestRefreshAll_EmptySweepSkipsNotify(t *testing.T) {
	fetcher := &stubHistory{}
	svc, _, _ := newHistoryService(t, fetcher)

	notified := 0
	bus := feed.NewPublisher(zap.NewNop())
	bus.Register(func([]store.Quote) { notified++ })
	svc.Bus = bus

	if err := svc.RefreshAll(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}
	if notified != 0 {
		t.Fatalf("notified=%d want 0", notified)
	}
}

func TestRefreshAll_Validation(t *testing.T) {
	svc := &HistorySyncService{}
	if err := svc.RefreshAll(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRefreshAll_CancelStopsSweep(t *testing.T) {
	fetcher := &stubHistory{candles: map[string][]fyers.Candle{
		"NSE:TCS-EQ": dailyBars(time.Now().Add(-48*time.Hour).Unix(), 3500),
	}}
	svc, _, _ := newHistoryService(t, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.RefreshAll(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want canceled", err)
	}
	if len(fetcher.calls) != 0 {
		t.Fatalf("calls=%d want 0", len(fetcher.calls))
	}
}
