package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteSnapshot is one journaled row of the published quote table.
// QuoteTime is the quote's own update stamp, CapturedAt the journal tick.
type QuoteSnapshot struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	Symbol string `gorm:"type:varchar(50);not null;index"`

	Ltp           decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Open          decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	High          decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Low           decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Close         decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Volume        int64           `gorm:"not null"`
	Change        decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	ChangePercent decimal.Decimal `gorm:"type:numeric(10,4);not null"`

	Signal       string `gorm:"type:varchar(10);not null"`
	MarketStatus string `gorm:"type:varchar(10);not null"`

	QuoteTime  time.Time `gorm:"type:timestamptz;not null"`
	CapturedAt time.Time `gorm:"type:timestamptz;not null;index"`
}

func (QuoteSnapshot) TableName() string {
	return "quote_snapshots"
}
