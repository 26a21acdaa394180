package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"niftyfeed/internal/client/fyers"
	"niftyfeed/internal/models"
	"niftyfeed/internal/registry"
)

// stubQuotes is a canned QuoteFetcher. It records what it was asked for so
// tests can assert the request shape.
type stubQuotes struct {
	entries []fyers.QuoteEntry
	err     error

	calls       int
	lastSymbols []string
}

func (f *stubQuotes) Quotes(_ context.Context, symbols []string) ([]fyers.QuoteEntry, error) {
	f.calls++
	f.lastSymbols = append([]string(nil), symbols...)
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

// stubHistory is a canned HistoryFetcher keyed by full symbol.
type stubHistory struct {
	candles map[string][]fyers.Candle
	errs    map[string]error

	calls          []string
	lastResolution string
	lastFrom       time.Time
	lastTo         time.Time
}

func (f *stubHistory) History(_ context.Context, symbol, resolution string, from, to time.Time) ([]fyers.Candle, error) {
	f.calls = append(f.calls, symbol)
	f.lastResolution = resolution
	f.lastFrom = from
	f.lastTo = to
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	return f.candles[symbol], nil
}

// stubRepo is a test-only in-memory implementation of repository.Repository.
type stubRepo struct {
	candles     []models.Candle
	signals     []models.SignalRecord
	snapshots   []models.QuoteSnapshot
	transitions []models.FeedTransition

	candleErr   error
	signalErr   error
	snapshotErr error
}

func (s *stubRepo) UpsertCandles(_ context.Context, items []models.Candle) error {
	if s.candleErr != nil {
		return s.candleErr
	}
	s.candles = append(s.candles, items...)
	return nil
}

func (s *stubRepo) CandlesBySymbol(_ context.Context, symbol string, from time.Time) ([]models.Candle, error) {
	var out []models.Candle
	for _, c := range s.candles {
		if c.Symbol == symbol && !c.BarTime.Before(from) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *stubRepo) InsertSignal(_ context.Context, item *models.SignalRecord) error {
	if s.signalErr != nil {
		return s.signalErr
	}
	s.signals = append(s.signals, *item)
	return nil
}

func (s *stubRepo) LatestSignals(context.Context) ([]models.SignalRecord, error) {
	return s.signals, nil
}

func (s *stubRepo) InsertQuoteSnapshots(_ context.Context, items []models.QuoteSnapshot) error {
	if s.snapshotErr != nil {
		return s.snapshotErr
	}
	s.snapshots = append(s.snapshots, items...)
	return nil
}

func (s *stubRepo) InsertFeedTransition(_ context.Context, item *models.FeedTransition) error {
	s.transitions = append(s.transitions, *item)
	return nil
}

func (s *stubRepo) RecentTransitions(context.Context, int) ([]models.FeedTransition, error) {
	return s.transitions, nil
}

// testRegistry is a three-instrument universe: one index, two equities.
// Publication order is NIFTY50-INDEX, INFY-EQ, TCS-EQ.
func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.NewFromSymbols([]string{"NSE:NIFTY50-INDEX", "NSE:TCS-EQ", "NSE:INFY-EQ"})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func rawValues(t *testing.T, src string) map[string]json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(src), &m); err != nil {
		t.Fatalf("values %s: %v", src, err)
	}
	return m
}
