package dto

import (
	"time"

	"golang-trade-sentry/internal/entity"
)

// CycleDiff is the outcome of diffing one source's current records against
// its stored open positions.
type CycleDiff struct {
	SourceID       uint
	New            []entity.AlertEvent
	Updated        []entity.AlertEvent
	Closed         []entity.AlertEvent
	SkippedRecords int
}

// CycleStats aggregates one full orchestrator cycle across all sources.
type CycleStats struct {
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	SourcesPolled    int       `json:"sources_polled"`
	SourcesFailed    int       `json:"sources_failed"`
	NewPositions     int       `json:"new_positions"`
	UpdatedPositions int       `json:"updated_positions"`
	ClosedPositions  int       `json:"closed_positions"`
	Evaluations      int       `json:"evaluations"`
	Enqueued         int       `json:"enqueued"`
	Sent             int       `json:"sent"`
	RateLimited      int       `json:"rate_limited"`
	FailedSends      int       `json:"failed_sends"`
}

// DrainResult summarizes one DrainPending invocation.
type DrainResult struct {
	Processed   int `json:"processed"`
	Sent        int `json:"sent"`
	RateLimited int `json:"rate_limited"`
	Retried     int `json:"retried"`
	Failed      int `json:"failed"`
}
