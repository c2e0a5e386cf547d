package test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/celestiaorg/jobscheduler/internal/db/models"
	"github.com/celestiaorg/jobscheduler/internal/db/repos"
	"github.com/celestiaorg/jobscheduler/internal/events"
	"github.com/celestiaorg/jobscheduler/internal/executor"
	"github.com/celestiaorg/jobscheduler/internal/logger"
	"github.com/celestiaorg/jobscheduler/internal/metrics"
	"github.com/celestiaorg/jobscheduler/internal/queue"
	"github.com/celestiaorg/jobscheduler/internal/services"
	"github.com/celestiaorg/jobscheduler/pkg/api/v1/client"
)

// DefaultTestTimeout is the default timeout for test suites.
const DefaultTestTimeout = 30 * time.Second

// Worker timings used by the suite; short so tests run fast
const (
	testDequeueTimeout = 50 * time.Millisecond
	testRetryBackoff   = 10 * time.Millisecond
	testMinDelay       = 10 * time.Millisecond
	testMaxDelay       = 40 * time.Millisecond
)

// ExecutorFactory builds the executor of one worker
type ExecutorFactory func(workerID string) executor.Executor

// Suite encapsulates all components needed for integration testing.
// It provides a complete test setup with:
//   - File-backed SQLite database
//   - In-memory work queue and update broadcaster
//   - Worker pool with a fast simulated executor
//   - Real API server on a random local port
//   - Real API client
type Suite struct {
	t *testing.T // The testing.T instance for this suite

	// Server components
	App     *fiber.App
	BaseURL string

	// Client components
	APIClient client.Client

	// Database components
	DB      *gorm.DB
	JobRepo *repos.JobRepository

	// Core components
	Queue       *queue.MemoryQueue
	Broadcaster *events.Broadcaster
	Registry    *prometheus.Registry
	Metrics     *metrics.Metrics
	JobService  *services.Job
	Workers     []*services.Worker

	// Options
	workerCount       int
	executorFactory   ExecutorFactory
	heartbeatInterval time.Duration

	// Worker lifecycle
	workerCancel context.CancelFunc
	workerWG     sync.WaitGroup

	// Context management
	ctx        context.Context
	cancelFunc context.CancelFunc

	// Cleanup function
	cleanup     func()
	cleanupOnce sync.Once
}

// Option represents a configuration option for the test suite.
type Option func(*Suite)

// WithWorkers sets the number of workers started with the suite
func WithWorkers(n int) Option {
	return func(s *Suite) {
		s.workerCount = n
	}
}

// WithExecutor replaces the simulated executor of every worker
func WithExecutor(factory ExecutorFactory) Option {
	return func(s *Suite) {
		s.executorFactory = factory
	}
}

// WithHeartbeatInterval sets how often the stream sends heartbeats
func WithHeartbeatInterval(d time.Duration) Option {
	return func(s *Suite) {
		s.heartbeatInterval = d
	}
}

// WithTimeout returns an option that sets the suite context timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Suite) {
		if s.cancelFunc != nil {
			s.cancelFunc()
		}
		s.ctx, s.cancelFunc = context.WithTimeout(context.Background(), timeout)
	}
}

// SetS sets the suite instance for this suite
func (s *Suite) SetS(_ suite.TestingSuite) {
	// This method is required by suite.TestingSuite but we don't need to do anything here
}

// SetT sets the testing.T instance for this suite
func (s *Suite) SetT(t *testing.T) {
	s.t = t
}

// T returns the testing.T instance for this suite
func (s *Suite) T() *testing.T {
	return s.t
}

// NewTestSuite creates a running system with the given options.
// The suite must be cleaned up after use by calling Cleanup.
func NewTestSuite(t *testing.T, opts ...Option) *Suite {
	t.Helper()

	logger.Initialize("warn", logger.FormatText)

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTestTimeout)
	s := &Suite{
		t:                 t,
		ctx:               ctx,
		cancelFunc:        cancel,
		workerCount:       2,
		executorFactory:   defaultExecutor,
		heartbeatInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Workers stop first so in-flight jobs are persisted before their
	// dependencies go away.
	s.cleanup = func() {
		s.StopWorkers()
		if s.Broadcaster != nil {
			s.Broadcaster.Close()
		}
		if s.App != nil {
			_ = s.App.ShutdownWithTimeout(5 * time.Second)
		}
		if s.Queue != nil {
			_ = s.Queue.Close()
		}
		if s.cancelFunc != nil {
			s.cancelFunc()
		}
	}

	SetupTestDB(s, nil)
	setupCore(s)
	SetupServer(s)
	s.StartWorkers()

	return s
}

// setupCore wires the queue, broadcaster, metrics and job service
func setupCore(s *Suite) {
	s.Queue = queue.NewMemoryQueue()
	s.Broadcaster = events.NewBroadcaster(events.WithBufferSize(256))
	s.Registry = prometheus.NewRegistry()
	s.Metrics = metrics.New(s.Registry)
	s.JobService = services.NewJobService(s.JobRepo, s.Queue, s.Broadcaster, s.Metrics)
}

func defaultExecutor(workerID string) executor.Executor {
	return &executor.Simulated{
		MinDelay:   testMinDelay,
		MaxDelay:   testMaxDelay,
		FailMarker: executor.DefaultFailMarker,
		WorkerID:   workerID,
	}
}

// StartWorkers launches the configured number of workers
func (s *Suite) StartWorkers() {
	var ctx context.Context
	ctx, s.workerCancel = context.WithCancel(context.Background())

	s.Workers = nil
	for i := 1; i <= s.workerCount; i++ {
		id := fmt.Sprintf("test-worker-%d", i)
		w := services.NewWorker(id, s.JobRepo, s.Queue, s.executorFactory(id), s.Broadcaster,
			services.WithDequeueTimeout(testDequeueTimeout),
			services.WithRetryBackoff(testRetryBackoff),
			services.WithMetrics(s.Metrics),
		)
		s.Workers = append(s.Workers, w)
		s.workerWG.Add(1)
		go services.LaunchWorker(ctx, &s.workerWG, w)
	}
}

// StopWorkers cancels the workers and waits for in-flight jobs to finish
func (s *Suite) StopWorkers() {
	if s.workerCancel != nil {
		s.workerCancel()
	}
	s.workerWG.Wait()
}

// WaitForStatus polls the API until the job reaches status and returns it
func (s *Suite) WaitForStatus(id string, status models.JobStatus) models.Job {
	s.t.Helper()

	var job models.Job
	s.Require().Eventually(func() bool {
		got, err := s.APIClient.GetJob(s.ctx, id)
		if err != nil {
			return false
		}
		job = got
		return got.Status == status
	}, 10*time.Second, 20*time.Millisecond, "job %s never reached %s", id, status)
	return job
}

// Cleanup tears down the test suite, releasing all resources.
// This should be deferred immediately after creating the suite.
func (s *Suite) Cleanup() {
	s.cleanupOnce.Do(func() {
		if s.cleanup != nil {
			s.cleanup()
		}
	})
}

// Context returns the suite's context, which is automatically
// canceled when the suite is cleaned up.
func (s *Suite) Context() context.Context {
	return s.ctx
}

// Require returns a require.Assertions instance for this suite.
// This is a convenience method to avoid passing t around.
func (s *Suite) Require() *require.Assertions {
	return require.New(s.t)
}

// Retry retries a function until it succeeds or the number of retries is reached.
func (s *Suite) Retry(fn func() error, retries int, interval time.Duration) (err error) {
	for i := 0; i < retries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		time.Sleep(interval)
	}
	return
}
