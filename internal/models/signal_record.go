package models

import (
	"time"

	"gorm.io/datatypes"
)

// SignalRecord is one strategy evaluation over an instrument's candle
// history, kept append-only so signal flips stay auditable.
type SignalRecord struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	Symbol string `gorm:"type:varchar(50);not null;index"`
	Signal string `gorm:"type:varchar(10);not null"`
	Bars   int    `gorm:"not null"`

	Indicators datatypes.JSON `gorm:"type:jsonb"`

	ComputedAt time.Time `gorm:"type:timestamptz;not null;index"`
	CreatedAt  time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (SignalRecord) TableName() string {
	return "signal_records"
}
