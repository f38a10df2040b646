package entity

import (
	"time"

	"gorm.io/datatypes"
)

type Recommendation string

const (
	RecommendationStrongBuy Recommendation = "STRONG_BUY"
	RecommendationBuy       Recommendation = "BUY"
	RecommendationHold      Recommendation = "HOLD"
	RecommendationAvoid     Recommendation = "AVOID"
)

// Evaluation is the consensus scoring result for one NEW alert event.
// Scores holds the per-evaluator raw scores keyed by evaluator name; a null
// value marks an evaluator that failed or timed out.
type Evaluation struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	AlertEventID   uint           `gorm:"not null;index" json:"alert_event_id"`
	Scores         datatypes.JSON `gorm:"type:jsonb" json:"scores"`
	ConsensusScore int            `gorm:"not null" json:"consensus_score"`
	Recommendation Recommendation `gorm:"not null" json:"recommendation"`
	Rationale      string         `json:"rationale"`
	PrimaryRisk    string         `json:"primary_risk"`
	DurationMs     int64          `gorm:"not null" json:"duration_ms"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (Evaluation) TableName() string {
	return "evaluations"
}
