package entity

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationRateLimit is the single row backing the sliding send window.
// SentTimestamps holds the send times inside the current window as a JSON
// array; Version increments on every check-and-increment so concurrent
// dispatchers serialize on the row lock.
type NotificationRateLimit struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Version        int64          `gorm:"not null;default:0" json:"version"`
	SentTimestamps datatypes.JSON `gorm:"type:jsonb" json:"sent_timestamps"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (NotificationRateLimit) TableName() string {
	return "notification_rate_limits"
}
