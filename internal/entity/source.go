package entity

import "time"

type Source struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Name         string     `gorm:"not null" json:"name"`
	FeedURL      string     `gorm:"not null" json:"feed_url"`
	IsActive     bool       `gorm:"not null;default:true" json:"is_active"`
	LastPolledAt *time.Time `json:"last_polled_at"`
	TotalRecords int64      `gorm:"not null;default:0" json:"total_records"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Source) TableName() string {
	return "sources"
}
