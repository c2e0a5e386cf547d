package types

import "errors"

// Job lifecycle error taxonomy. Callers match with errors.Is; implementations
// wrap the underlying cause with %w.
var (
	// ErrNotFound is returned when a referenced job id has no record
	ErrNotFound = errors.New("job not found")
	// ErrStore is returned on connectivity or constraint failures of the job store
	ErrStore = errors.New("job store error")
	// ErrConflict is returned when a transition does not apply to the record's current state
	ErrConflict = errors.New("job state conflict")
	// ErrInvalidStatus is returned when a transition targets a status it cannot set
	ErrInvalidStatus = errors.New("invalid job status")
	// ErrTransport is returned when the work queue is unavailable
	ErrTransport = errors.New("work queue transport error")
	// ErrMalformedIdentifier is returned when a queue entry is not a valid job id
	ErrMalformedIdentifier = errors.New("malformed job identifier")
	// ErrInvalidRequest is returned when a submission fails validation
	ErrInvalidRequest = errors.New("invalid request")
)
