package dto

import "golang-trade-sentry/internal/entity"

// ErrorResponse is the generic error payload for the operator API.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateSourceRequest registers a new trader feed to monitor.
type CreateSourceRequest struct {
	Name    string `json:"name"`
	FeedURL string `json:"feed_url"`
}

// GetQueueParam filters notification queue listings.
type GetQueueParam struct {
	Statuses []entity.NotificationStatus
	Limit    int
}

// PipelineStatusResponse reports the orchestrator's state and the stats of
// the most recent completed cycle.
type PipelineStatusResponse struct {
	Running   bool        `json:"running"`
	LastCycle *CycleStats `json:"last_cycle,omitempty"`
}
