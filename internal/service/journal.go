package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"niftyfeed/internal/models"
	"niftyfeed/internal/repository"
	"niftyfeed/internal/store"
)

// QuoteJournalService persists periodic snapshots of the published quote
// table so price history survives restarts and can be inspected offline.
type QuoteJournalService struct {
	Store  *store.Store
	Repo   repository.Repository
	Logger *zap.Logger
}

// Capture journals the current table. Seed rows that never received a
// price are left out.
func (s *QuoteJournalService) Capture(ctx context.Context) error {
	if s == nil || s.Store == nil || s.Repo == nil {
		return nil
	}
	quotes := s.Store.SnapshotAll()
	now := time.Now().UTC()
	rows := make([]models.QuoteSnapshot, 0, len(quotes))
	for _, q := range quotes {
		if q.Ltp <= 0 {
			continue
		}
		rows = append(rows, models.QuoteSnapshot{
			Symbol:        q.Symbol,
			Ltp:           decimal.NewFromFloat(q.Ltp),
			Open:          decimal.NewFromFloat(q.Open),
			High:          decimal.NewFromFloat(q.High),
			Low:           decimal.NewFromFloat(q.Low),
			Close:         decimal.NewFromFloat(q.Close),
			Volume:        q.Volume,
			Change:        decimal.NewFromFloat(q.Change),
			ChangePercent: decimal.NewFromFloat(q.ChangePercent),
			Signal:        q.Signal,
			MarketStatus:  q.MarketStatus,
			QuoteTime:     q.Timestamp,
			CapturedAt:    now,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	if err := s.Repo.InsertQuoteSnapshots(ctx, rows); err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.Debug("journaled quote table", zap.Int("rows", len(rows)))
	}
	return nil
}
