package repository

import (
	"context"
	"time"

	"niftyfeed/internal/models"
)

// Repository is the persistence surface of the feed engine. The engine
// runs fine without one; callers hold a nil interface when no database is
// configured and every implementation tolerates a nil receiver.
type Repository interface {
	UpsertCandles(ctx context.Context, items []models.Candle) error
	CandlesBySymbol(ctx context.Context, symbol string, from time.Time) ([]models.Candle, error)

	InsertSignal(ctx context.Context, item *models.SignalRecord) error
	LatestSignals(ctx context.Context) ([]models.SignalRecord, error)

	InsertQuoteSnapshots(ctx context.Context, items []models.QuoteSnapshot) error

	InsertFeedTransition(ctx context.Context, item *models.FeedTransition) error
	RecentTransitions(ctx context.Context, limit int) ([]models.FeedTransition, error)
}
