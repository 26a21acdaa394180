package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"niftyfeed/internal/client/fyers"
	"niftyfeed/internal/feed"
	"niftyfeed/internal/market"
	"niftyfeed/internal/store"
)

func newPollService(t *testing.T, fetcher *stubQuotes) (*QuotePollService, *store.Store) {
	t.Helper()
	reg := testRegistry(t)
	st := store.New(reg)
	svc := &QuotePollService{
		Client:   fetcher,
		Registry: reg,
		Store:    st,
		Logger:   zap.NewNop(),
	}
	return svc, st
}

func TestFetchQuotes_UpdatesStore(t *testing.T) {
	fetcher := &stubQuotes{entries: []fyers.QuoteEntry{
		{N: "NSE:TCS-EQ", S: "ok", V: rawValues(t, `{"lp":3510.5,"open_price":3490,"high_price":3520,"low_price":3480,"prev_close_price":3500,"volume":120000}`)},
		{N: "NSE:INFY-EQ", S: "ok", V: rawValues(t, `{"lp":1450,"prev_close_price":1440}`)},
	}}
	svc, st := newPollService(t, fetcher)

	updated, err := svc.FetchQuotes(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if updated != 2 {
		t.Fatalf("updated=%d want 2", updated)
	}
	q, ok := st.Get("TCS-EQ")
	if !ok {
		t.Fatalf("TCS-EQ missing")
	}
	if q.Ltp != 3510.5 || q.Open != 3490 || q.High != 3520 || q.Low != 3480 || q.Volume != 120000 {
		t.Fatalf("quote=%+v", q)
	}
	if q.Change != 10.5 {
		t.Fatalf("change=%v want 10.5", q.Change)
	}
}

func TestFetchQuotes_RequestsFullUniverse(t *testing.T) {
	fetcher := &stubQuotes{}
	svc, _ := newPollService(t, fetcher)

	if _, err := svc.FetchQuotes(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}
	want := []string{"NSE:NIFTY50-INDEX", "NSE:INFY-EQ", "NSE:TCS-EQ"}
	if len(fetcher.lastSymbols) != len(want) {
		t.Fatalf("symbols=%v want %v", fetcher.lastSymbols, want)
	}
	for i := range want {
		if fetcher.lastSymbols[i] != want[i] {
			t.Fatalf("symbols[%d]=%q want %q", i, fetcher.lastSymbols[i], want[i])
		}
	}
}

func TestFetchQuotes_SkipsBadEntries(t *testing.T) {
	fetcher := &stubQuotes{entries: []fyers.QuoteEntry{
		{N: "", V: rawValues(t, `{"lp":100}`)},
		{N: "NSE:TCS-EQ"},
		{N: "NSE:TCS-EQ", S: "error", V: rawValues(t, `{"lp":100}`)},
		{N: "NSE:FOO-EQ", V: rawValues(t, `{"lp":100}`)},
		{N: "NSE:INFY-EQ", V: rawValues(t, `{"lp":1450}`)},
	}}
	svc, st := newPollService(t, fetcher)

	updated, err := svc.FetchQuotes(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if updated != 1 {
		t.Fatalf("updated=%d want 1", updated)
	}
	if q, _ := st.Get("TCS-EQ"); q.Ltp != 0 {
		t.Fatalf("TCS-EQ ltp=%v want untouched", q.Ltp)
	}
	if q, _ := st.Get("INFY-EQ"); q.Ltp != 1450 {
		t.Fatalf("INFY-EQ ltp=%v want 1450", q.Ltp)
	}
}

func TestFetchQuotes_StampsMarketStatus(t *testing.T) {
	sess, err := market.NewSession("09:15", "15:30", time.UTC)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	fetcher := &stubQuotes{entries: []fyers.QuoteEntry{
		{N: "NSE:TCS-EQ", V: rawValues(t, `{"lp":3500}`)},
		{N: "NSE:INFY-EQ", V: rawValues(t, `{"lp":1450}`)},
	}}
	svc, st := newPollService(t, fetcher)
	svc.Session = &sess
	st.Upsert("TCS-EQ", store.QuoteUpdate{MarketStatus: "HALTED"})

	if _, err := svc.FetchQuotes(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}
	tcs, _ := st.Get("TCS-EQ")
	if tcs.MarketStatus != market.StatusOpen && tcs.MarketStatus != market.StatusClosed {
		t.Fatalf("status=%q want session status", tcs.MarketStatus)
	}
	infy, _ := st.Get("INFY-EQ")
	if infy.MarketStatus != tcs.MarketStatus {
		t.Fatalf("statuses differ: %q vs %q", tcs.MarketStatus, infy.MarketStatus)
	}
}

func TestFetchQuotes_NilSessionLeavesStatus(t *testing.T) {
	fetcher := &stubQuotes{entries: []fyers.QuoteEntry{
		{N: "NSE:TCS-EQ", V: rawValues(t, `{"lp":3500}`)},
	}}
	svc, st := newPollService(t, fetcher)
	st.Upsert("TCS-EQ", store.QuoteUpdate{MarketStatus: "HALTED"})

	if _, err := svc.FetchQuotes(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}
	if q, _ := st.Get("TCS-EQ"); q.MarketStatus != "HALTED" {
		t.Fatalf("status=%q want HALTED", q.MarketStatus)
	}
}

func TestFetchQuotes_NotifiesEvenWhenNothingApplied(t *testing.T) {
	fetcher := &stubQuotes{}
	svc, _ := newPollService(t, fetcher)

	notified := 0
	bus := feed.NewPublisher(zap.NewNop())
	bus.Register(func(snapshot []store.Quote) {
		notified++
		if len(snapshot) != 3 {
			t.Errorf("snapshot len=%d want 3", len(snapshot))
		}
	})
	svc.Bus = bus

	if _, err := svc.FetchQuotes(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}
	if notified != 1 {
		t.Fatalf("notified=%d want 1", notified)
	}
}

func TestFetchQuotes_ErrorSkipsNotify(t *testing.T) {
	fetcher := &stubQuotes{err: errors.New("boom")}
	svc, _ := newPollService(t, fetcher)

	notified := 0
	bus := feed.NewPublisher(zap.NewNop())
	bus.Register(func([]store.Quote) { notified++ })
	svc.Bus = bus

	updated, err := svc.FetchQuotes(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if updated != 0 {
		t.Fatalf("updated=%d want 0", updated)
	}
	if notified != 0 {
		t.Fatalf("notified=%d want 0", notified)
	}
}

func TestFetchQuotes_ZeroFieldsPreservePrior(t *testing.T) {
	fetcher := &stubQuotes{entries: []fyers.QuoteEntry{
		{N: "NSE:TCS-EQ", V: rawValues(t, `{"lp":3510,"open_price":3490,"high_price":3520,"low_price":3480,"prev_close_price":3500,"volume":120000}`)},
	}}
	svc, st := newPollService(t, fetcher)
	if _, err := svc.FetchQuotes(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}

	fetcher.entries = []fyers.QuoteEntry{
		{N: "NSE:TCS-EQ", V: rawValues(t, `{"lp":3515}`)},
	}
	if _, err := svc.FetchQuotes(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}

	q, _ := st.Get("TCS-EQ")
	if q.Ltp != 3515 {
		t.Fatalf("ltp=%v want 3515", q.Ltp)
	}
	if q.Open != 3490 || q.High != 3520 || q.Low != 3480 || q.Close != 3500 || q.Volume != 120000 {
		t.Fatalf("prior fields lost: %+v", q)
	}
	if q.PrevLtp != 3510 {
		t.Fatalf("prev ltp=%v want 3510", q.PrevLtp)
	}
}

func TestPollRun_Validation(t *testing.T) {
	svc := &QuotePollService{}
	if err := svc.Run(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPollRun_PollsImmediately(t *testing.T) {
	fetcher := &stubQuotes{}
	svc, _ := newPollService(t, fetcher)
	svc.Interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want canceled", err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("calls=%d want 1", fetcher.calls)
	}
}

func TestPollRun_DrivesStalenessCheck(t *testing.T) {
	lv := feed.NewLiveness(30*time.Second, zap.NewNop(), nil)
	lv.MarkPush(time.Now().Add(-time.Minute))
	if lv.FallbackActive() {
		t.Fatalf("fallback active before poll")
	}

	fetcher := &stubQuotes{}
	svc, _ := newPollService(t, fetcher)
	svc.Liveness = lv
	svc.Interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want canceled", err)
	}
	if !lv.FallbackActive() {
		t.Fatalf("stale push channel not degraded")
	}
}
