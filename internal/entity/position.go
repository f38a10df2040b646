package entity

import "time"

type PositionStatus string

const (
	PositionStatusOpen   PositionStatus = "open"
	PositionStatusClosed PositionStatus = "closed"
)

// Position is one tracked trade belonging to a Source. At most one open
// position may exist per (source_id, identity_key); closed rows are kept as
// an audit trail.
type Position struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	SourceID    uint           `gorm:"not null;index" json:"source_id"`
	IdentityKey string         `gorm:"not null" json:"identity_key"`
	Symbol      string         `gorm:"not null" json:"symbol"`
	Strategy    string         `gorm:"not null" json:"strategy"`
	Direction   string         `gorm:"not null" json:"direction"`
	OpenPrice   float64        `gorm:"not null" json:"open_price"`
	ClosePrice  *float64       `json:"close_price"`
	Quantity    float64        `gorm:"not null" json:"quantity"`
	Strike      *float64       `json:"strike"`
	Expiry      *string        `json:"expiry"`
	Notes       string         `json:"notes"`
	Status      PositionStatus `gorm:"not null;default:open" json:"status"`
	OpenedAt    time.Time      `gorm:"not null" json:"opened_at"`
	ClosedAt    *time.Time     `json:"closed_at"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Position) TableName() string {
	return "positions"
}
