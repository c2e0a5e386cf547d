package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/celestiaorg/jobscheduler/internal/app"
	"github.com/celestiaorg/jobscheduler/internal/config"
	"github.com/celestiaorg/jobscheduler/internal/db"
	"github.com/celestiaorg/jobscheduler/internal/db/repos"
	"github.com/celestiaorg/jobscheduler/internal/events"
	"github.com/celestiaorg/jobscheduler/internal/executor"
	"github.com/celestiaorg/jobscheduler/internal/logger"
	"github.com/celestiaorg/jobscheduler/internal/metrics"
	"github.com/celestiaorg/jobscheduler/internal/queue"
	"github.com/celestiaorg/jobscheduler/internal/services"
	"github.com/celestiaorg/jobscheduler/pkg/api/v1/handlers"
)

// shutdownTimeout bounds how long open connections may delay exit
const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file if present
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Initialize(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	database, err := db.New(db.Options{URL: cfg.DatabaseURL, SkipMigrate: !cfg.DBAutoMigrate})
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(database); err != nil {
			logger.Errorf("Failed to close database: %v", err)
		}
	}()

	// Initialize work queue
	q, err := newQueue(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize work queue: %v", err)
	}
	defer q.Close()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	broadcaster := events.NewBroadcaster(events.WithBufferSize(cfg.BroadcastBuffer))

	// Initialize repositories and services
	jobRepo := repos.NewJobRepository(database)
	jobService := services.NewJobService(jobRepo, q, broadcaster, m)

	// Start workers
	workerIDs, err := cfg.WorkerIDs()
	if err != nil {
		logger.Fatalf("Failed to assign worker ids: %v", err)
	}
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, id := range workerIDs {
		exec := &executor.Simulated{
			MinDelay:   cfg.ExecutorMinDelay,
			MaxDelay:   cfg.ExecutorMaxDelay,
			FailMarker: cfg.ExecutorFailMarker,
			WorkerID:   id,
		}
		w := services.NewWorker(id, jobRepo, q, exec, broadcaster,
			services.WithDequeueTimeout(cfg.DequeueTimeout),
			services.WithRetryBackoff(cfg.WorkerRetryBackoff),
			services.WithMetrics(m),
		)
		wg.Add(1)
		go services.LaunchWorker(workerCtx, &wg, w)
	}
	logger.Infof("Started %d worker(s)", len(workerIDs))

	// Create HTTP application
	server := app.NewApp(app.Options{
		JobHandler:    handlers.NewJobHandler(jobService),
		StreamHandler: handlers.NewStreamHandler(broadcaster, cfg.HeartbeatInterval),
		Gatherer:      registry,
	})

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("Server listening on %s", cfg.ListenAddr)
		serveErr <- server.Listen(cfg.ListenAddr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serveErr:
		logger.Errorf("Server stopped: %v", err)
	}

	// Let in-flight jobs finish, then close the streams and the listener
	stopWorkers()
	wg.Wait()
	broadcaster.Close()

	if err := server.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	logger.Info("Server stopped")
}

// newQueue connects the configured queue backend
func newQueue(ctx context.Context, cfg *config.Config) (queue.Queue, error) {
	if cfg.QueueBackend == config.QueueBackendMemory {
		logger.Warn("Using the in-memory work queue; pending jobs are lost on restart")
		return queue.NewMemoryQueue(), nil
	}

	client, err := queue.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	return queue.NewRedisQueue(client, cfg.QueueKey), nil
}
