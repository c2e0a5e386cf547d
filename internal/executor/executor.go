// Package executor defines the capability that performs a job's actual work.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/celestiaorg/jobscheduler/internal/db/models"
	"github.com/celestiaorg/jobscheduler/internal/logger"
)

// Simulated defaults
const (
	DefaultMinDelay   = time.Second
	DefaultMaxDelay   = 10 * time.Second
	DefaultFailMarker = "fail"
)

// Executor performs the work of a job. A non-nil error is the failure reason
// recorded on the job; the returned payload becomes the job result on success.
// Implementations must return eventually: the worker applies no timeout.
type Executor interface {
	Execute(ctx context.Context, job models.Job) (json.RawMessage, error)
}

// Func adapts an ordinary function to the Executor interface
type Func func(ctx context.Context, job models.Job) (json.RawMessage, error)

// Execute calls f(ctx, job)
func (f Func) Execute(ctx context.Context, job models.Job) (json.RawMessage, error) {
	return f(ctx, job)
}

// Simulated sleeps for a random delay and then succeeds, or fails when the job
// type contains FailMarker
type Simulated struct {
	MinDelay   time.Duration
	MaxDelay   time.Duration
	FailMarker string
	WorkerID   string
}

var _ Executor = (*Simulated)(nil)

// NewSimulated creates a simulated executor with the default delays and marker
func NewSimulated(workerID string) *Simulated {
	return &Simulated{
		MinDelay:   DefaultMinDelay,
		MaxDelay:   DefaultMaxDelay,
		FailMarker: DefaultFailMarker,
		WorkerID:   workerID,
	}
}

// simulatedResult is the success payload
type simulatedResult struct {
	WorkerID     string          `json:"worker_id"`
	DurationS    float64         `json:"duration_s"`
	InputPayload json.RawMessage `json:"input_payload"`
}

// Execute implements Executor
func (s *Simulated) Execute(ctx context.Context, job models.Job) (json.RawMessage, error) {
	d := s.delay()
	logger.DebugWithFields("Simulating job", map[string]interface{}{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"delay":    d.String(),
	})

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		return nil, fmt.Errorf("execution interrupted: %w", ctx.Err())
	}

	if s.FailMarker != "" && strings.Contains(job.JobType, s.FailMarker) {
		logger.Warnf("Job %s failed intentionally.", job.ID)
		return nil, fmt.Errorf("Simulated failure after %gs.", d.Seconds())
	}

	payload := job.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	out, err := json.Marshal(simulatedResult{
		WorkerID:     s.WorkerID,
		DurationS:    d.Seconds(),
		InputPayload: payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	logger.Infof("Job %s completed successfully in %s.", job.ID, d)
	return out, nil
}

// delay picks a duration uniformly in [MinDelay, MaxDelay]
func (s *Simulated) delay() time.Duration {
	lo, hi := s.MinDelay, s.MaxDelay
	if lo < 0 {
		lo = 0
	}
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}
