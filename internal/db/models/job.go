package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// JobCreatedAtField is the database field name for the job creation timestamp
	JobCreatedAtField = "created_at"
	// JobStatusField is the database field name for the job status
	JobStatusField = "status"
)

// JobStatus represents the lifecycle state of a job
type JobStatus string

// Job status constants
const (
	// JobStatusUnknown is the zero value; used as "any status" in filters
	JobStatusUnknown JobStatus = ""
	// JobStatusQueued indicates the job is waiting for a worker
	JobStatusQueued JobStatus = "QUEUED"
	// JobStatusRunning indicates a worker has claimed the job
	JobStatusRunning JobStatus = "RUNNING"
	// JobStatusCompleted indicates the executor succeeded
	JobStatusCompleted JobStatus = "COMPLETED"
	// JobStatusFailed indicates the executor reported a failure
	JobStatusFailed JobStatus = "FAILED"
)

// JobStatuses lists every valid status in lifecycle order
var JobStatuses = []JobStatus{
	JobStatusQueued,
	JobStatusRunning,
	JobStatusCompleted,
	JobStatusFailed,
}

// ParseJobStatus converts a string representation of a job status to JobStatus type.
// Matching is case-insensitive.
func ParseJobStatus(str string) (JobStatus, error) {
	for _, status := range JobStatuses {
		if strings.EqualFold(string(status), str) {
			return status, nil
		}
	}
	return JobStatusUnknown, fmt.Errorf("invalid job status: %s", str)
}

func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions can leave s
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// A QUEUED job may be finished directly when its RUNNING write never persisted.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return next == JobStatusRunning || next.IsTerminal()
	case JobStatusRunning:
		return next.IsTerminal()
	default:
		return false
	}
}

// UnmarshalJSON implements the json.Unmarshaler interface for JobStatus
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	status, err := ParseJobStatus(str)
	if err != nil {
		return err
	}

	*s = status
	return nil
}

// Job is the durable record of a unit of requested work
type Job struct {
	ID         uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	JobType    string          `json:"job_type" gorm:"not null"`
	Payload    json.RawMessage `json:"payload" gorm:"type:jsonb;not null"`
	Status     JobStatus       `json:"status" gorm:"type:text;not null;index"`
	Result     json.RawMessage `json:"result" gorm:"type:jsonb"`
	CreatedAt  time.Time       `json:"created_at" gorm:"not null;index"`
	StartedAt  *time.Time      `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at"`
	WorkerID   *string         `json:"worker_id"`
}

// BeforeCreate assigns the identifier when the caller left it empty
func (j *Job) BeforeCreate(_ *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// Validate checks the record against the lifecycle invariants
func (j *Job) Validate() error {
	switch j.Status {
	case JobStatusQueued:
		if j.StartedAt != nil || j.FinishedAt != nil || j.Result != nil {
			return fmt.Errorf("queued job %s must not carry start, finish or result", j.ID)
		}
	case JobStatusRunning:
		if j.StartedAt == nil {
			return fmt.Errorf("running job %s has no started_at", j.ID)
		}
		if j.FinishedAt != nil || j.Result != nil {
			return fmt.Errorf("running job %s must not carry finish or result", j.ID)
		}
	case JobStatusCompleted, JobStatusFailed:
		if j.StartedAt == nil || j.FinishedAt == nil || j.Result == nil {
			return fmt.Errorf("terminal job %s must carry start, finish and result", j.ID)
		}
	default:
		return fmt.Errorf("job %s has invalid status %q", j.ID, j.Status)
	}
	return nil
}
