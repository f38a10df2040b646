package entity

import (
	"time"

	"gorm.io/datatypes"
)

type AlertEventKind string

const (
	AlertEventNew     AlertEventKind = "NEW"
	AlertEventUpdated AlertEventKind = "UPDATED"
	AlertEventClosed  AlertEventKind = "CLOSED"
)

// AlertEvent records one lifecycle transition of a position in one poll
// cycle. Rows are written once and never mutated.
type AlertEvent struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	PositionID uint           `gorm:"not null;index" json:"position_id"`
	SourceID   uint           `gorm:"not null;index" json:"source_id"`
	Kind       AlertEventKind `gorm:"not null" json:"kind"`
	Changes    datatypes.JSON `gorm:"type:jsonb" json:"changes"`
	CycleAt    time.Time      `gorm:"not null" json:"cycle_at"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (AlertEvent) TableName() string {
	return "alert_events"
}

// FieldChange is one before/after pair inside an UPDATED event's Changes.
type FieldChange struct {
	Before interface{} `json:"before"`
	After  interface{} `json:"after"`
}
