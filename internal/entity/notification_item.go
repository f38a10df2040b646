package entity

import "time"

type NotificationStatus string

const (
	NotificationStatusPending     NotificationStatus = "pending"
	NotificationStatusSent        NotificationStatus = "sent"
	NotificationStatusFailed      NotificationStatus = "failed"
	NotificationStatusRateLimited NotificationStatus = "rate_limited"
	NotificationStatusCancelled   NotificationStatus = "cancelled"
)

// IsTerminal reports whether the status accepts no further transitions.
func (s NotificationStatus) IsTerminal() bool {
	return s == NotificationStatusSent || s == NotificationStatusFailed || s == NotificationStatusCancelled
}

// NotificationItem is one queued unit of outbound alerting. Lower priority
// numbers are served first. Rows are never deleted; terminal rows form the
// send audit log.
type NotificationItem struct {
	ID            uint               `gorm:"primaryKey" json:"id"`
	EvaluationID  uint               `gorm:"not null;index" json:"evaluation_id"`
	Priority      int                `gorm:"not null" json:"priority"`
	Status        NotificationStatus `gorm:"not null;default:pending" json:"status"`
	RetryCount    int                `gorm:"not null;default:0" json:"retry_count"`
	MaxRetries    int                `gorm:"not null" json:"max_retries"`
	NextAttemptAt *time.Time         `json:"next_attempt_at"`
	SentAt        *time.Time         `json:"sent_at"`
	LastError     string             `json:"last_error"`
	CreatedAt     time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (NotificationItem) TableName() string {
	return "notification_queue"
}
