package models

import "time"

// FeedTransition is one liveness edge of the push channel.
type FeedTransition struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	State      string    `gorm:"type:varchar(10);not null"`
	Reason     string    `gorm:"type:text"`
	OccurredAt time.Time `gorm:"type:timestamptz;not null;index"`
	CreatedAt  time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (FeedTransition) TableName() string {
	return "feed_transitions"
}
