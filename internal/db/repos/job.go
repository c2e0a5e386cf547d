package repos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/celestiaorg/jobscheduler/internal/db/models"
	"github.com/celestiaorg/jobscheduler/internal/types"
)

// emptyResult is stored when a terminal transition carries no result so that
// result stays set for every terminal record
var emptyResult = json.RawMessage(`{}`)

// JobRepository provides access to job-related database operations.
// Every write is a single-row, single-statement update.
type JobRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewJobRepository creates a new job repository instance
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db, now: utcNow}
}

// utcNow returns the current time at the precision postgres stores
func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Create inserts a new job in QUEUED state and returns the stored record
func (r *JobRepository) Create(ctx context.Context, jobType string, payload json.RawMessage) (*models.Job, error) {
	job := &models.Job{
		JobType:   jobType,
		Payload:   payload,
		Status:    models.JobStatusQueued,
		CreatedAt: r.now(),
	}
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to create job: %w", types.ErrStore, err)
	}
	return job, nil
}

// GetByID retrieves a job by its ID
func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", types.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get job %s: %w", types.ErrStore, id, err)
	}
	return &job, nil
}

// TransitionToRunning claims a QUEUED job for workerID.
// Repeating the call for the same worker returns the already running record;
// a claim on any other state is rejected with types.ErrConflict.
func (r *JobRepository) TransitionToRunning(ctx context.Context, id uuid.UUID, workerID string, startedAt time.Time) (*models.Job, error) {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ?", id, models.JobStatusQueued).
		Updates(map[string]interface{}{
			"status":     models.JobStatusRunning,
			"started_at": startedAt.UTC().Truncate(time.Microsecond),
			"worker_id":  workerID,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("%w: failed to mark job %s running: %w", types.ErrStore, id, res.Error)
	}

	job, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		if job.Status == models.JobStatusRunning && job.WorkerID != nil && *job.WorkerID == workerID {
			return job, nil
		}
		return nil, fmt.Errorf("%w: cannot claim job %s in status %s", types.ErrConflict, id, job.Status)
	}
	return job, nil
}

// TransitionToTerminal records the outcome of a job. Applying the same terminal
// status again returns the stored record unchanged. A job finished straight
// from QUEUED gets started_at equal to finished_at.
func (r *JobRepository) TransitionToTerminal(ctx context.Context, id uuid.UUID, status models.JobStatus, result json.RawMessage) (*models.Job, error) {
	if !status.IsTerminal() {
		return nil, fmt.Errorf("%w: %q is not a terminal status", types.ErrInvalidStatus, status)
	}
	if len(result) == 0 {
		result = emptyResult
	}

	now := r.now()
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status IN ?", id, []string{string(models.JobStatusQueued), string(models.JobStatusRunning)}).
		Updates(map[string]interface{}{
			"status":      status,
			"result":      result,
			"finished_at": now,
			// a job whose RUNNING write was lost still gets a start time
			"started_at": gorm.Expr("COALESCE(started_at, ?)", now),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("%w: failed to finish job %s: %w", types.ErrStore, id, res.Error)
	}

	job, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		if job.Status == status {
			return job, nil
		}
		return nil, fmt.Errorf("%w: cannot move job %s from %s to %s", types.ErrConflict, id, job.Status, status)
	}
	return job, nil
}

// List returns jobs newest first, bounded by opts.Limit
func (r *JobRepository) List(ctx context.Context, opts *models.ListOptions) ([]models.Job, error) {
	var o models.ListOptions
	if opts != nil {
		o = *opts
	}
	o.Normalize()

	qry := r.db.WithContext(ctx).Model(&models.Job{})
	if o.Status != models.JobStatusUnknown {
		qry = qry.Where(models.JobStatusField+" = ?", o.Status)
	}

	jobs := make([]models.Job, 0, o.Limit)
	err := qry.
		Order(models.JobCreatedAtField + " DESC").
		Limit(o.Limit).Offset(o.Offset).
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list jobs: %w", types.ErrStore, err)
	}
	return jobs, nil
}

// Count returns the number of jobs in the given status.
// If the status is unknown, it counts all jobs.
func (r *JobRepository) Count(ctx context.Context, status models.JobStatus) (int64, error) {
	var count int64
	qry := r.db.WithContext(ctx).Model(&models.Job{})
	if status != models.JobStatusUnknown {
		qry = qry.Where(models.JobStatusField+" = ?", status)
	}
	if err := qry.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("%w: failed to count jobs: %w", types.ErrStore, err)
	}
	return count, nil
}

// CountByStatus returns the number of jobs per status; every status is present
func (r *JobRepository) CountByStatus(ctx context.Context) (map[models.JobStatus]int64, error) {
	var rows []struct {
		Status models.JobStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&models.Job{}).
		Select(models.JobStatusField + ", count(*) as count").
		Group(models.JobStatusField).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: failed to count jobs: %w", types.ErrStore, err)
	}

	counts := make(map[models.JobStatus]int64, len(models.JobStatuses))
	for _, status := range models.JobStatuses {
		counts[status] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
