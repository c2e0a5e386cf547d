package handlers

import (
	fiber "github.com/gofiber/fiber/v2"

	"github.com/celestiaorg/jobscheduler/internal/db/models"
)

// getListOptions reads limit, offset and status from the query string.
// Limits above models.MaxLimit are clamped.
func getListOptions(c *fiber.Ctx) (*models.ListOptions, error) {
	opts := &models.ListOptions{
		Limit:  c.QueryInt("limit", models.DefaultLimit),
		Offset: c.QueryInt("offset", 0),
	}
	if opts.Limit < 1 {
		return nil, fiber.NewError(fiber.StatusBadRequest, ErrMsgInvalidLimit)
	}
	if opts.Offset < 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, ErrMsgInvalidOffset)
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status, err := models.ParseJobStatus(statusStr)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, ErrMsgJobStatusInvalid)
		}
		opts.Status = status
	}

	opts.Normalize()
	return opts, nil
}
