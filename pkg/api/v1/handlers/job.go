package handlers

import (
	"errors"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/celestiaorg/jobscheduler/internal/logger"
	"github.com/celestiaorg/jobscheduler/internal/services"
	"github.com/celestiaorg/jobscheduler/internal/types"
)

// JobHandler handles HTTP requests for job operations
type JobHandler struct {
	jobService *services.Job
}

// NewJobHandler creates a new job handler instance
func NewJobHandler(s *services.Job) *JobHandler {
	return &JobHandler{jobService: s}
}

// CreateJob handles the request to submit a new job
func (h *JobHandler) CreateJob(c *fiber.Ctx) error {
	var req types.CreateJobRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, ErrMsgInvalidReqBody+": "+err.Error())
	}

	if err := req.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	job, err := h.jobService.Submit(c.UserContext(), &req)
	if err != nil {
		if errors.Is(err, types.ErrInvalidRequest) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		logger.Errorf("Failed to submit job: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, ErrMsgJobCreateFailed+": "+err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(job)
}

// GetJob handles the request to get a job
func (h *JobHandler) GetJob(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, ErrMsgInvalidJobID)
	}

	job, err := h.jobService.GetJob(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, ErrMsgJobNotFound)
		}
		logger.Errorf("Failed to get job %s: %v", id, err)
		return fiber.NewError(fiber.StatusInternalServerError, ErrMsgJobGetFailed)
	}

	return c.JSON(job)
}

// ListJobs handles the request to list the newest jobs
func (h *JobHandler) ListJobs(c *fiber.Ctx) error {
	opts, err := getListOptions(c)
	if err != nil {
		return err
	}

	jobs, err := h.jobService.ListJobs(c.UserContext(), opts)
	if err != nil {
		logger.Errorf("Failed to list jobs: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, ErrMsgJobListFailed)
	}

	total, err := h.jobService.CountJobs(c.UserContext(), opts.Status)
	if err != nil {
		logger.Errorf("Failed to count jobs: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, ErrMsgJobListFailed)
	}

	return c.JSON(types.ListJobsResponse{
		Jobs: jobs,
		Pagination: types.PaginationResponse{
			Total:  int(total),
			Limit:  opts.Limit,
			Offset: opts.Offset,
		},
	})
}

// GetStats handles the request for job counts, queue depth and stream counters
func (h *JobHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.jobService.Stats(c.UserContext())
	if err != nil {
		logger.Errorf("Failed to collect stats: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, ErrMsgStatsFailed)
	}
	return c.JSON(stats)
}
