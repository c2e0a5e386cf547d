// Package handlers provides HTTP request handling
package handlers

// Common error messages
const (
	ErrMsgInvalidReqBody = "Invalid request body"
	ErrMsgInvalidParams  = "Invalid parameters"
)

// Job error messages
const (
	ErrMsgInvalidJobID     = "Invalid job id"
	ErrMsgJobNotFound      = "Job not found"
	ErrMsgJobCreateFailed  = "Failed to create job"
	ErrMsgJobGetFailed     = "Failed to get job"
	ErrMsgJobListFailed    = "Failed to list jobs"
	ErrMsgJobStatusInvalid = "Invalid job status"
	ErrMsgStatsFailed      = "Failed to collect stats"
)

// Pagination error messages
const (
	ErrMsgInvalidLimit  = "limit must be a positive number"
	ErrMsgInvalidOffset = "offset must not be negative"
)
