package types

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/celestiaorg/jobscheduler/internal/db/models"
)

// CreateJobRequest represents a job submission
type CreateJobRequest struct {
	JobType string          `json:"job_type"`
	Payload json.RawMessage `json:"payload"`
}

// Validate checks that the request carries a job type and a JSON payload
func (r *CreateJobRequest) Validate() error {
	if strings.TrimSpace(r.JobType) == "" {
		return errors.New("job_type is required")
	}
	if len(r.Payload) == 0 {
		return errors.New("payload is required")
	}
	if !json.Valid(r.Payload) {
		return errors.New("payload must be valid JSON")
	}
	return nil
}

// ListJobsResponse represents the response from the list jobs endpoint
type ListJobsResponse struct {
	Jobs       []models.Job       `json:"jobs"`       // Newest first
	Pagination PaginationResponse `json:"pagination"` // Pagination information
}

// PaginationResponse represents pagination information for list endpoints
type PaginationResponse struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// BroadcastStats mirrors the update broadcaster counters
type BroadcastStats struct {
	Subscribers int   `json:"subscribers"`
	Published   int64 `json:"published"`
	Dropped     int64 `json:"dropped"`
}

// StatsResponse represents the response from the stats endpoint
type StatsResponse struct {
	Jobs       map[models.JobStatus]int64 `json:"jobs"`        // Record count per status
	QueueDepth int64                      `json:"queue_depth"` // Identifiers waiting in the work queue
	Broadcast  BroadcastStats             `json:"broadcast"`
}
