package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/celestiaorg/jobscheduler/internal/db/models"
	"github.com/celestiaorg/jobscheduler/internal/events"
	"github.com/celestiaorg/jobscheduler/internal/executor"
	"github.com/celestiaorg/jobscheduler/internal/logger"
	"github.com/celestiaorg/jobscheduler/internal/metrics"
	"github.com/celestiaorg/jobscheduler/internal/queue"
	"github.com/celestiaorg/jobscheduler/internal/types"
)

// Worker defaults
const (
	DefaultDequeueTimeout = 5 * time.Second
	DefaultRetryBackoff   = time.Second
)

// JobStore is the part of the job repository the worker drives
type JobStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	TransitionToRunning(ctx context.Context, id uuid.UUID, workerID string, startedAt time.Time) (*models.Job, error)
	TransitionToTerminal(ctx context.Context, id uuid.UUID, status models.JobStatus, result json.RawMessage) (*models.Job, error)
}

// Worker claims job ids from the queue and drives each job from QUEUED to a
// terminal status. A worker processes one job at a time; run several workers
// for parallelism.
type Worker struct {
	id          string
	store       JobStore
	queue       queue.Queue
	executor    executor.Executor
	broadcaster *events.Broadcaster
	metrics     *metrics.Metrics

	dequeueTimeout time.Duration
	retryBackoff   time.Duration
	now            func() time.Time
}

// WorkerOption configures a Worker
type WorkerOption func(*Worker)

// WithDequeueTimeout sets how long a single dequeue waits
func WithDequeueTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.dequeueTimeout = d
		}
	}
}

// WithRetryBackoff sets the pause after a failed dequeue
func WithRetryBackoff(d time.Duration) WorkerOption {
	return func(w *Worker) { w.retryBackoff = d }
}

// WithMetrics attaches Prometheus instrumentation
func WithMetrics(m *metrics.Metrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

// NewWorker creates a worker identified by id
func NewWorker(id string, store JobStore, q queue.Queue, exec executor.Executor, broadcaster *events.Broadcaster, opts ...WorkerOption) *Worker {
	w := &Worker{
		id:             id,
		store:          store,
		queue:          q,
		executor:       exec,
		broadcaster:    broadcaster,
		dequeueTimeout: DefaultDequeueTimeout,
		retryBackoff:   DefaultRetryBackoff,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ID returns the worker identity recorded on claimed jobs
func (w *Worker) ID() string {
	return w.id
}

// LaunchWorker runs w until ctx is cancelled and then marks wg done
func LaunchWorker(ctx context.Context, wg *sync.WaitGroup, w *Worker) {
	defer wg.Done()
	w.Run(ctx)
}

// Run processes jobs until ctx is cancelled. A job already dequeued when the
// context is cancelled is still finished before Run returns.
func (w *Worker) Run(ctx context.Context) {
	logger.Infof("Worker %s started", w.id)

	for {
		select {
		case <-ctx.Done():
			logger.Infof("Worker %s received shutdown signal, stopping...", w.id)
			return
		default:
		}

		w.processNext(ctx)
	}
}

// processNext waits for one queue entry and handles it
func (w *Worker) processNext(ctx context.Context) {
	raw, ok, err := w.queue.Dequeue(ctx, w.dequeueTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.metrics.ObserveQueueError()
		logger.Errorf("Worker %s failed to dequeue: %v. Retrying in %s.", w.id, err, w.retryBackoff)
		w.sleep(ctx, w.retryBackoff)
		return
	}
	if !ok {
		// timed out; gives the loop a chance to notice shutdown
		return
	}

	w.handle(ctx, raw)
}

// handle runs the claim-execute-report sequence for one queue entry
func (w *Worker) handle(ctx context.Context, raw string) {
	id, err := uuid.Parse(raw)
	if err != nil {
		w.metrics.ObserveMalformedID()
		logger.ErrorWithFields("Discarding queue entry", map[string]interface{}{
			"worker": w.id,
			"entry":  raw,
			"error":  types.ErrMalformedIdentifier,
		})
		return
	}

	// the job is finished even if the worker is asked to stop meanwhile
	jobCtx := context.WithoutCancel(ctx)

	job, err := w.store.GetByID(jobCtx, id)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			logger.Warnf("Worker %s: job %s not found, skipping", w.id, id)
		} else {
			logger.Errorf("Worker %s: failed to load job %s: %v", w.id, id, err)
		}
		return
	}

	running, err := w.store.TransitionToRunning(jobCtx, id, w.id, w.now())
	switch {
	case err == nil:
		job = running
		w.metrics.ObserveStarted()
		w.publish(running)
	case errors.Is(err, types.ErrConflict):
		logger.Warnf("Worker %s: job %s cannot be claimed: %v", w.id, id, err)
		return
	default:
		// proceed without the RUNNING record; nothing is announced
		w.metrics.ObserveTransitionError(models.JobStatusRunning)
		logger.Errorf("Worker %s: failed to mark job %s running: %v", w.id, id, err)
	}

	logger.InfoWithFields("Processing job", map[string]interface{}{
		"worker":   w.id,
		"job_id":   id,
		"job_type": job.JobType,
	})

	start := time.Now()
	output, execErr := w.executor.Execute(jobCtx, *job)
	took := time.Since(start)

	status, result := models.JobStatusCompleted, output
	if execErr != nil {
		status, result = models.JobStatusFailed, w.failureResult(execErr)
	}

	final, err := w.store.TransitionToTerminal(jobCtx, id, status, result)
	if err != nil {
		// the computed result is lost and the record keeps its prior state
		w.metrics.ObserveTransitionError(status)
		logger.ErrorWithFields("Failed to record job outcome", map[string]interface{}{
			"worker": w.id,
			"job_id": id,
			"status": status,
			"error":  err,
		})
		return
	}

	w.metrics.ObserveFinished(status, took)
	w.publish(final)
	logger.InfoWithFields("Job finished", map[string]interface{}{
		"worker":   w.id,
		"job_id":   id,
		"status":   status,
		"duration": took.String(),
	})
}

// failureResult builds the FAILED result payload
func (w *Worker) failureResult(execErr error) json.RawMessage {
	out, err := json.Marshal(map[string]string{
		"error":  execErr.Error(),
		"worker": w.id,
	})
	if err != nil {
		// a map of strings always encodes
		return json.RawMessage(`{}`)
	}
	return out
}

func (w *Worker) publish(job *models.Job) {
	if w.broadcaster == nil {
		return
	}
	w.metrics.ObserveBroadcast(w.broadcaster.PublishJob(job))
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
