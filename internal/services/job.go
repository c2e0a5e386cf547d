package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/celestiaorg/jobscheduler/internal/db/models"
	"github.com/celestiaorg/jobscheduler/internal/db/repos"
	"github.com/celestiaorg/jobscheduler/internal/events"
	"github.com/celestiaorg/jobscheduler/internal/logger"
	"github.com/celestiaorg/jobscheduler/internal/metrics"
	"github.com/celestiaorg/jobscheduler/internal/queue"
	"github.com/celestiaorg/jobscheduler/internal/types"
)

// Job provides business logic for job operations: submission and the
// read-only queries
type Job struct {
	jobRepo     *repos.JobRepository
	queue       queue.Queue
	broadcaster *events.Broadcaster
	metrics     *metrics.Metrics
}

// NewJobService creates a new job service instance
func NewJobService(jobRepo *repos.JobRepository, q queue.Queue, broadcaster *events.Broadcaster, m *metrics.Metrics) *Job {
	return &Job{jobRepo: jobRepo, queue: q, broadcaster: broadcaster, metrics: m}
}

// Submit stores a new QUEUED job and then enqueues its id. When the enqueue
// fails the stored record stays QUEUED with no queue entry and the error is
// returned to the caller.
func (s *Job) Submit(ctx context.Context, req *types.CreateJobRequest) (*models.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidRequest, err)
	}

	job, err := s.jobRepo.Create(ctx, req.JobType, req.Payload)
	if err != nil {
		return nil, err
	}

	if err := s.queue.Enqueue(ctx, job.ID.String()); err != nil {
		logger.ErrorWithFields("Job stored but not enqueued; it will not be picked up", map[string]interface{}{
			"job_id": job.ID,
			"error":  err,
		})
		return nil, fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}

	s.metrics.ObserveSubmitted()
	logger.InfoWithFields("Job submitted", map[string]interface{}{
		"job_id":   job.ID,
		"job_type": job.JobType,
	})
	return job, nil
}

// GetJob retrieves a job by id
func (s *Job) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return s.jobRepo.GetByID(ctx, id)
}

// ListJobs retrieves the newest jobs, optionally filtered by status
func (s *Job) ListJobs(ctx context.Context, opts *models.ListOptions) ([]models.Job, error) {
	return s.jobRepo.List(ctx, opts)
}

// CountJobs counts jobs in the given status; the unknown status counts all jobs
func (s *Job) CountJobs(ctx context.Context, status models.JobStatus) (int64, error) {
	return s.jobRepo.Count(ctx, status)
}

// Stats reports record counts per status, queue depth and broadcaster counters
func (s *Job) Stats(ctx context.Context) (*types.StatsResponse, error) {
	counts, err := s.jobRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	depth, err := s.queue.Len(ctx)
	if err != nil {
		return nil, err
	}

	return &types.StatsResponse{
		Jobs:       counts,
		QueueDepth: depth,
		Broadcast:  s.broadcaster.Stats(),
	}, nil
}
