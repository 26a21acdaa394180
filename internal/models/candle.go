package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one daily bar of an instrument's history. The symbol plus bar
// time pair is the natural key; sweeps re-upsert the full window.
type Candle struct {
	ID      uint64    `gorm:"primaryKey;autoIncrement"`
	Symbol  string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_candles_symbol_bar,priority:1"`
	BarTime time.Time `gorm:"type:timestamptz;not null;uniqueIndex:idx_candles_symbol_bar,priority:2"`

	Open   decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	High   decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Low    decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Close  decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Volume int64           `gorm:"not null"`

	UpdatedAt time.Time `gorm:"type:timestamptz;not null"`
}

func (Candle) TableName() string {
	return "candles"
}
