package services

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/celestiaorg/jobscheduler/internal/db/models"
	"github.com/celestiaorg/jobscheduler/internal/types"
)

func (s *ServiceTestSuite) TestSubmit() {
	job := s.submit("echo", `{"x":1}`)
	s.Equal(models.JobStatusQueued, job.Status)
	s.Nil(job.Result)
	s.Nil(job.StartedAt)
	s.Nil(job.FinishedAt)

	stored, err := s.jobService.GetJob(s.ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(models.JobStatusQueued, stored.Status)
	s.JSONEq(`{"x":1}`, string(stored.Payload))

	raw, ok, err := s.queue.Dequeue(s.ctx, time.Second)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(job.ID.String(), raw)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.JobsSubmitted))
}

func (s *ServiceTestSuite) TestSubmitInvalid() {
	_, err := s.jobService.Submit(s.ctx, &types.CreateJobRequest{Payload: json.RawMessage(`{}`)})
	s.ErrorIs(err, types.ErrInvalidRequest)

	total, err := s.jobService.CountJobs(s.ctx, models.JobStatusUnknown)
	s.Require().NoError(err)
	s.Zero(total)
}

func (s *ServiceTestSuite) TestSubmitEnqueueFailureLeavesOrphan() {
	s.Require().NoError(s.queue.Close())

	_, err := s.jobService.Submit(s.ctx, &types.CreateJobRequest{
		JobType: "echo",
		Payload: json.RawMessage(`{}`),
	})
	s.ErrorIs(err, types.ErrTransport)

	// The record exists without a queue entry
	jobs, err := s.jobService.ListJobs(s.ctx, nil)
	s.Require().NoError(err)
	s.Require().Len(jobs, 1)
	s.Equal(models.JobStatusQueued, jobs[0].Status)
	s.Zero(testutil.ToFloat64(s.metrics.JobsSubmitted))
}

// looking up an unknown id reports ErrNotFound
func (s *ServiceTestSuite) TestGetJobNotFound() {
	_, err := s.jobService.GetJob(s.ctx, uuid.New())
	s.ErrorIs(err, types.ErrNotFound)
}

func (s *ServiceTestSuite) TestListJobs() {
	first := s.submit("echo", `{}`)
	time.Sleep(2 * time.Millisecond)
	second := s.submit("echo", `{}`)

	jobs, err := s.jobService.ListJobs(s.ctx, &models.ListOptions{})
	s.Require().NoError(err)
	s.Require().Len(jobs, 2)
	s.Equal(second.ID, jobs[0].ID)
	s.Equal(first.ID, jobs[1].ID)
}

func (s *ServiceTestSuite) TestStats() {
	s.submit("echo", `{}`)
	s.submit("echo", `{}`)
	sub := s.broadcaster.Subscribe()
	defer sub.Close()

	stats, err := s.jobService.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), stats.Jobs[models.JobStatusQueued])
	s.Equal(int64(0), stats.Jobs[models.JobStatusCompleted])
	s.Equal(int64(2), stats.QueueDepth)
	s.Equal(1, stats.Broadcast.Subscribers)
}
