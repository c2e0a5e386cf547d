package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/celestiaorg/jobscheduler/internal/db/models"
	"github.com/celestiaorg/jobscheduler/internal/events"
	"github.com/celestiaorg/jobscheduler/internal/executor"
	"github.com/celestiaorg/jobscheduler/internal/queue"
	"github.com/celestiaorg/jobscheduler/internal/types"
)

// flakyStore fails selected transitions and delegates everything else
type flakyStore struct {
	JobStore
	failRunning  bool
	failTerminal bool
	terminals    atomic.Int32
}

func (f *flakyStore) TransitionToRunning(ctx context.Context, id uuid.UUID, workerID string, startedAt time.Time) (*models.Job, error) {
	if f.failRunning {
		return nil, fmt.Errorf("%w: connection reset", types.ErrStore)
	}
	return f.JobStore.TransitionToRunning(ctx, id, workerID, startedAt)
}

func (f *flakyStore) TransitionToTerminal(ctx context.Context, id uuid.UUID, status models.JobStatus, result json.RawMessage) (*models.Job, error) {
	f.terminals.Add(1)
	if f.failTerminal {
		return nil, fmt.Errorf("%w: connection reset", types.ErrStore)
	}
	return f.JobStore.TransitionToTerminal(ctx, id, status, result)
}

// failingQueue fails the first dequeues with a transport error
type failingQueue struct {
	*queue.MemoryQueue
	failures int32
	calls    atomic.Int32
}

func (q *failingQueue) Dequeue(ctx context.Context, timeout time.Duration) (string, bool, error) {
	if q.calls.Add(1) <= q.failures {
		return "", false, fmt.Errorf("%w: connection refused", types.ErrTransport)
	}
	return q.MemoryQueue.Dequeue(ctx, timeout)
}

// a submitted job is claimed, run and completed, with RUNNING and COMPLETED updates published in order
func (s *ServiceTestSuite) TestWorker_CompletesJob() {
	sub := s.broadcaster.Subscribe()
	defer sub.Close()
	s.startWorkers(s.newWorker("worker-1", nil, nil))

	job := s.submit("echo", `{"x":1}`)
	s.Equal(models.JobStatusQueued, job.Status)

	updates := s.collectUpdates(sub, job.ID)
	s.Require().Len(updates, 2)
	s.Equal(models.JobStatusRunning, updates[0].Status)
	s.Equal(models.JobStatusCompleted, updates[1].Status)

	done := s.waitForStatus(job.ID, models.JobStatusCompleted)
	s.NoError(done.Validate())
	s.Require().NotNil(done.WorkerID)
	s.Equal("worker-1", *done.WorkerID)
	s.True(done.StartedAt.Before(*done.FinishedAt))

	var result struct {
		WorkerID     string          `json:"worker_id"`
		InputPayload json.RawMessage `json:"input_payload"`
	}
	s.Require().NoError(json.Unmarshal(done.Result, &result))
	s.JSONEq(`{"x":1}`, string(result.InputPayload))
	s.Equal("worker-1", result.WorkerID)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.JobsStarted))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.JobsFinished.WithLabelValues("COMPLETED")))
}

// an executor failure ends the job FAILED with the error recorded
func (s *ServiceTestSuite) TestWorker_FailsJob() {
	s.startWorkers(s.newWorker("worker-1", nil, nil))

	job := s.submit("force-fail-test", `{}`)
	failed := s.waitForStatus(job.ID, models.JobStatusFailed)
	s.NoError(failed.Validate())

	var result map[string]string
	s.Require().NoError(json.Unmarshal(failed.Result, &result))
	s.Contains(result["error"], "Simulated failure after")
	s.Equal("worker-1", result["worker"])
}

// two workers run a completing and a failing job side by side
func (s *ServiceTestSuite) TestWorker_ParallelWorkers() {
	s.startWorkers(
		s.newWorker("worker-1", nil, nil),
		s.newWorker("worker-2", nil, nil),
	)

	ok := s.submit("echo", `{"n":1}`)
	bad := s.submit("please-fail", `{"n":2}`)

	done := s.waitForStatus(ok.ID, models.JobStatusCompleted)
	failed := s.waitForStatus(bad.ID, models.JobStatusFailed)
	for _, job := range []*models.Job{done, failed} {
		s.NoError(job.Validate())
		s.True(job.StartedAt.Before(*job.FinishedAt))
		s.Contains([]string{"worker-1", "worker-2"}, *job.WorkerID)
	}
}

// a worker that dies right after dequeuing loses the job, which stays QUEUED
func (s *ServiceTestSuite) TestWorker_CrashAfterDequeueLeavesJobQueued() {
	job := s.submit("echo", `{}`)

	raw, ok, err := s.queue.Dequeue(s.ctx, time.Second)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(job.ID.String(), raw)
	// the dequeuing worker crashes here

	s.startWorkers(s.newWorker("worker-2", nil, nil))
	time.Sleep(100 * time.Millisecond)

	stored, err := s.jobRepo.GetByID(s.ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(models.JobStatusQueued, stored.Status)
	s.Nil(stored.StartedAt)

	depth, err := s.queue.Len(s.ctx)
	s.Require().NoError(err)
	s.Zero(depth)
}

func (s *ServiceTestSuite) TestWorker_DiscardsMalformedIdentifier() {
	s.Require().NoError(s.queue.Enqueue(s.ctx, "not-a-uuid"))
	job := s.submit("echo", `{}`)
	s.startWorkers(s.newWorker("worker-1", nil, nil))

	// the worker carries on with the next entry
	s.waitForStatus(job.ID, models.JobStatusCompleted)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.MalformedIDs))
}

func (s *ServiceTestSuite) TestWorker_SkipsUnknownJob() {
	s.Require().NoError(s.queue.Enqueue(s.ctx, uuid.NewString()))
	job := s.submit("echo", `{}`)
	s.startWorkers(s.newWorker("worker-1", nil, nil))

	s.waitForStatus(job.ID, models.JobStatusCompleted)
	s.Equal(0.0, testutil.ToFloat64(s.metrics.TransitionErrors.WithLabelValues("RUNNING")))
}

func (s *ServiceTestSuite) TestWorker_SkipsFinishedJob() {
	job := s.submit("echo", `{}`)
	_, err := s.jobRepo.TransitionToTerminal(s.ctx, job.ID, models.JobStatusFailed, json.RawMessage(`{"error":"cancelled"}`))
	s.Require().NoError(err)

	var calls atomic.Int32
	exec := executor.Func(func(context.Context, models.Job) (json.RawMessage, error) {
		calls.Add(1)
		return nil, nil
	})
	s.startWorkers(s.newWorker("worker-1", nil, exec))

	s.Eventually(func() bool {
		n, _ := s.queue.Len(s.ctx)
		return n == 0
	}, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	s.Zero(calls.Load(), "a job that cannot be claimed must not run")
	stored, err := s.jobRepo.GetByID(s.ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(models.JobStatusFailed, stored.Status)
}

func (s *ServiceTestSuite) TestWorker_RunningWriteFailureStillFinishes() {
	store := &flakyStore{JobStore: s.jobRepo, failRunning: true}
	sub := s.broadcaster.Subscribe()
	defer sub.Close()
	s.startWorkers(s.newWorker("worker-1", store, nil))

	job := s.submit("echo", `{}`)
	updates := s.collectUpdates(sub, job.ID)

	// RUNNING never persisted, so only the terminal record is announced
	s.Require().Len(updates, 1)
	s.Equal(models.JobStatusCompleted, updates[0].Status)

	done := s.waitForStatus(job.ID, models.JobStatusCompleted)
	s.NotNil(done.StartedAt)
	s.Nil(done.WorkerID)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.TransitionErrors.WithLabelValues("RUNNING")))
}

func (s *ServiceTestSuite) TestWorker_TerminalWriteFailureLeavesJobRunning() {
	store := &flakyStore{JobStore: s.jobRepo, failTerminal: true}
	sub := s.broadcaster.Subscribe()
	defer sub.Close()
	s.startWorkers(s.newWorker("worker-1", store, nil))

	job := s.submit("echo", `{}`)
	s.Eventually(func() bool { return store.terminals.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	s.stopWorkers()

	stored, err := s.jobRepo.GetByID(s.ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(models.JobStatusRunning, stored.Status)
	s.Nil(stored.Result)

	// Only RUNNING was announced
	select {
	case msg := <-sub.C():
		update, ok := msg.(events.JobStatusUpdate)
		s.Require().True(ok)
		s.Equal(models.JobStatusRunning, update.Job.Status)
	default:
		s.Fail("RUNNING update missing")
	}
	select {
	case msg := <-sub.C():
		s.Failf("unexpected update", "%v", msg)
	default:
	}
}

func (s *ServiceTestSuite) TestWorker_RetriesAfterTransportError() {
	q := &failingQueue{MemoryQueue: s.queue, failures: 2}
	w := NewWorker("worker-1", s.jobRepo, q, fastExecutor("worker-1"), s.broadcaster,
		WithDequeueTimeout(testDequeueTimeout),
		WithRetryBackoff(time.Millisecond),
		WithMetrics(s.metrics),
	)
	s.startWorkers(w)

	job := s.submit("echo", `{}`)
	s.waitForStatus(job.ID, models.JobStatusCompleted)
	s.Equal(2.0, testutil.ToFloat64(s.metrics.QueueErrors))
}

func (s *ServiceTestSuite) TestWorker_FinishesInFlightJobOnShutdown() {
	started := make(chan struct{})
	release := make(chan struct{})
	exec := executor.Func(func(ctx context.Context, _ models.Job) (json.RawMessage, error) {
		close(started)
		<-release
		if ctx.Err() != nil {
			return nil, errors.New("cancelled")
		}
		return json.RawMessage(`{"ok":true}`), nil
	})
	s.startWorkers(s.newWorker("worker-1", nil, exec))

	job := s.submit("echo", `{}`)
	<-started

	stopped := make(chan struct{})
	go func() {
		s.stopWorkers()
		close(stopped)
	}()
	close(release)
	<-stopped

	done, err := s.jobRepo.GetByID(s.ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(models.JobStatusCompleted, done.Status)
	s.JSONEq(`{"ok":true}`, string(done.Result))
}
