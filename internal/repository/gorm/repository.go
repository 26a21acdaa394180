package gormrepository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"niftyfeed/internal/models"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) UpsertCandles(ctx context.Context, items []models.Candle) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "bar_time"}},
		DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume", "updated_at"}),
	}).CreateInBatches(items, 200).Error
}

func (s *Store) CandlesBySymbol(ctx context.Context, symbol string, from time.Time) ([]models.Candle, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Candle{}).Where("symbol = ?", symbol)
	if !from.IsZero() {
		query = query.Where("bar_time >= ?", from)
	}
	var items []models.Candle
	if err := query.Order("bar_time asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) InsertSignal(ctx context.Context, item *models.SignalRecord) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.Symbol) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) LatestSignals(ctx context.Context) ([]models.SignalRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.SignalRecord
	err := s.db.WithContext(ctx).
		Select("DISTINCT ON (symbol) *").
		Table((models.SignalRecord{}).TableName()).
		Order("symbol asc, computed_at desc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) InsertQuoteSnapshots(ctx context.Context, items []models.QuoteSnapshot) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(items, 200).Error
}

func (s *Store) InsertFeedTransition(ctx context.Context, item *models.FeedTransition) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) RecentTransitions(ctx context.Context, limit int) ([]models.FeedTransition, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	var items []models.FeedTransition
	err := s.db.WithContext(ctx).
		Order("occurred_at desc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
