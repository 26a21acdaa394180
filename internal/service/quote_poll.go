package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"niftyfeed/internal/client/fyers"
	"niftyfeed/internal/feed"
	"niftyfeed/internal/market"
	"niftyfeed/internal/registry"
	"niftyfeed/internal/store"
)

// QuoteFetcher is the slice of the provider client the poller needs.
type QuoteFetcher interface {
	Quotes(ctx context.Context, symbols []string) ([]fyers.QuoteEntry, error)
}

// QuotePollService refreshes the whole quote table over REST on a fixed
// cadence. It runs for the engine's entire lifetime whether or not the
// push channel is healthy; liveness only decides how loudly each tick is
// logged. The staleness check rides on the same tick so a silent push
// channel is detected within one interval.
type QuotePollService struct {
	Client   QuoteFetcher
	Registry *registry.Registry
	Store    *store.Store
	Session  *market.Session
	Liveness *feed.Liveness
	Bus      *feed.Publisher
	Logger   *zap.Logger

	Interval time.Duration
}

func (s *QuotePollService) Run(ctx context.Context) error {
	if s == nil || s.Client == nil || s.Registry == nil || s.Store == nil {
		return fmt.Errorf("quote poll service not configured")
	}
	interval := s.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	// First tick immediately so consumers have data before the first push.
	s.pollOnce(ctx)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.pollOnce(ctx)
		}
	}
}

func (s *QuotePollService) pollOnce(ctx context.Context) {
	if s.Liveness != nil {
		s.Liveness.CheckStale(time.Now())
	}
	if _, err := s.FetchQuotes(ctx); err != nil && s.Logger != nil {
		s.Logger.Warn("quote poll failed", zap.Error(err))
	}
}

// FetchQuotes runs one bulk refresh and reports how many instruments it
// updated. Malformed or error-status entries are skipped record by
// record; only a request-level failure is returned, and the caller
// retries it on the next tick.
func (s *QuotePollService) FetchQuotes(ctx context.Context) (int, error) {
	symbols := s.Registry.Symbols()
	s.logFetch(len(symbols))

	entries, err := s.Client.Quotes(ctx, symbols)
	if err != nil {
		return 0, err
	}

	status := ""
	if s.Session != nil {
		status = s.Session.Status(time.Now())
	}

	updated := 0
	for _, entry := range entries {
		if entry.N == "" || len(entry.V) == 0 {
			if s.Logger != nil {
				s.Logger.Debug("skipping malformed quote entry", zap.String("symbol", entry.N))
			}
			continue
		}
		if entry.S != "" && entry.S != "ok" {
			if s.Logger != nil {
				s.Logger.Debug("skipping errored quote entry", zap.String("symbol", entry.N), zap.String("status", entry.S))
			}
			continue
		}
		short := registry.ShortName(entry.N)
		vals := fyers.DecodeTickValues(entry.V)
		update := store.QuoteUpdate{
			Ltp:          vals.Ltp,
			Open:         vals.Open,
			High:         vals.High,
			Low:          vals.Low,
			Close:        vals.Close,
			Volume:       vals.Volume,
			MarketStatus: status,
		}
		if !s.Store.Upsert(short, update) {
			if s.Logger != nil {
				s.Logger.Debug("quote for untracked symbol", zap.String("symbol", entry.N))
			}
			continue
		}
		updated++
	}

	if s.Bus != nil {
		s.Bus.Notify(s.Store.SnapshotAll())
	}
	return updated, nil
}

// logFetch keeps the per-tick chatter quiet while push data is flowing.
func (s *QuotePollService) logFetch(symbols int) {
	if s.Logger == nil {
		return
	}
	if s.Liveness != nil && !s.Liveness.FallbackActive() {
		s.Logger.Debug("fetching quotes", zap.Int("symbols", symbols))
		return
	}
	s.Logger.Info("fetching quotes", zap.Int("symbols", symbols))
}
