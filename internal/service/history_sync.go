package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"niftyfeed/internal/client/fyers"
	"niftyfeed/internal/feed"
	"niftyfeed/internal/market"
	"niftyfeed/internal/models"
	"niftyfeed/internal/registry"
	"niftyfeed/internal/repository"
	"niftyfeed/internal/store"
	"niftyfeed/internal/strategy"
)

// HistoryFetcher is the slice of the provider client the sweep needs.
type HistoryFetcher interface {
	History(ctx context.Context, symbol, resolution string, from, to time.Time) ([]fyers.Candle, error)
}

// HistorySyncService sweeps daily candles for every registered
// instrument, refreshes the in-memory series cache, recomputes trading
// signals, and persists both when a repository is configured. Sweeps are
// sequential with a pause between symbols to stay inside provider rate
// limits.
type HistorySyncService struct {
	Client   HistoryFetcher
	Registry *registry.Registry
	Store    *store.Store
	Cache    *store.HistoryCache
	Session  *market.Session
	Strategy strategy.Evaluator
	Bus      *feed.Publisher
	Repo     repository.Repository
	Logger   *zap.Logger

	Lookback     time.Duration
	PauseBetween time.Duration
	ErrorPause   time.Duration

	// Always disables the session gate; useful off-hours and in tests.
	Always bool
}

// RefreshAll runs one sweep. Outside the exchange session it is a no-op
// unless Always is set. Per-symbol failures are logged and skipped; only
// shutdown stops the sweep early.
func (s *HistorySyncService) RefreshAll(ctx context.Context) error {
	if s == nil || s.Client == nil || s.Registry == nil || s.Cache == nil {
		return fmt.Errorf("history sync service not configured")
	}
	now := time.Now()
	if !s.Always && s.Session != nil && !s.Session.IsOpen(now) {
		if s.Logger != nil {
			s.Logger.Debug("market closed, skipping history refresh")
		}
		return nil
	}
	lookback := s.Lookback
	if lookback <= 0 {
		lookback = 30 * 24 * time.Hour
	}
	from := now.Add(-lookback)

	refreshed := 0
	for _, inst := range s.Registry.Ordered() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		updated, err := s.refreshOne(ctx, inst, from, now)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("history refresh failed", zap.String("symbol", inst.Short), zap.Error(err))
			}
			if err := sleepCtx(ctx, s.errorPause()); err != nil {
				return err
			}
			continue
		}
		if updated {
			refreshed++
		}
		if err := sleepCtx(ctx, s.pause()); err != nil {
			return err
		}
	}
	if s.Logger != nil {
		s.Logger.Info("historical data updated", zap.Int("symbols", refreshed))
	}
	if refreshed > 0 && s.Bus != nil && s.Store != nil {
		s.Bus.Notify(s.Store.SnapshotAll())
	}
	return nil
}

func (s *HistorySyncService) refreshOne(ctx context.Context, inst registry.Instrument, from, to time.Time) (bool, error) {
	candles, err := s.Client.History(ctx, inst.Symbol, "D", from, to)
	if err != nil {
		return false, err
	}
	if len(candles) == 0 {
		return false, nil
	}
	series := seriesFromCandles(candles)
	s.Cache.Put(inst.Short, series)

	var ev strategy.Evaluation
	if s.Strategy != nil {
		ev = s.Strategy.Evaluate(series)
		if s.Store != nil {
			s.Store.SetSignal(inst.Short, ev.Signal)
		}
	}
	s.persist(ctx, inst.Short, candles, ev)
	return true, nil
}

// persist is best-effort: storage failures are logged, never propagated,
// so one bad write cannot stall the sweep.
func (s *HistorySyncService) persist(ctx context.Context, short string, candles []fyers.Candle, ev strategy.Evaluation) {
	if s.Repo == nil {
		return
	}
	now := time.Now().UTC()
	rows := make([]models.Candle, 0, len(candles))
	for _, c := range candles {
		rows = append(rows, models.Candle{
			Symbol:    short,
			BarTime:   time.Unix(c.Timestamp, 0).UTC(),
			Open:      decimal.NewFromFloat(c.Open),
			High:      decimal.NewFromFloat(c.High),
			Low:       decimal.NewFromFloat(c.Low),
			Close:     decimal.NewFromFloat(c.Close),
			Volume:    c.Volume,
			UpdatedAt: now,
		})
	}
	if err := s.Repo.UpsertCandles(ctx, rows); err != nil && s.Logger != nil {
		s.Logger.Warn("persist candles failed", zap.String("symbol", short), zap.Error(err))
	}
	if ev.Signal == "" {
		return
	}
	payload, _ := json.Marshal(ev)
	record := &models.SignalRecord{
		Symbol:     short,
		Signal:     ev.Signal,
		Bars:       ev.Bars,
		Indicators: datatypes.JSON(payload),
		ComputedAt: now,
	}
	if err := s.Repo.InsertSignal(ctx, record); err != nil && s.Logger != nil {
		s.Logger.Warn("persist signal failed", zap.String("symbol", short), zap.Error(err))
	}
}

func (s *HistorySyncService) pause() time.Duration {
	if s.PauseBetween > 0 {
		return s.PauseBetween
	}
	return 500 * time.Millisecond
}

func (s *HistorySyncService) errorPause() time.Duration {
	if s.ErrorPause > 0 {
		return s.ErrorPause
	}
	return time.Second
}

func seriesFromCandles(candles []fyers.Candle) store.Series {
	series := store.Series{
		Timestamp: make([]int64, 0, len(candles)),
		Open:      make([]float64, 0, len(candles)),
		High:      make([]float64, 0, len(candles)),
		Low:       make([]float64, 0, len(candles)),
		Close:     make([]float64, 0, len(candles)),
		Volume:    make([]int64, 0, len(candles)),
	}
	for _, c := range candles {
		series.Timestamp = append(series.Timestamp, c.Timestamp)
		series.Open = append(series.Open, c.Open)
		series.High = append(series.High, c.High)
		series.Low = append(series.Low, c.Low)
		series.Close = append(series.Close, c.Close)
		series.Volume = append(series.Volume, c.Volume)
	}
	return series
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
