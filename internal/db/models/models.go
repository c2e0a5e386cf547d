package models

const (
	// DefaultLimit is the number of jobs returned by a listing call when none is given
	DefaultLimit = 100
	// MaxLimit caps the number of jobs a single listing call may return
	MaxLimit = 100
)

// ListOptions represents pagination and filtering options for list operations
type ListOptions struct {
	Limit  int       `json:"limit"`            // Number of items to return
	Offset int       `json:"offset"`           // Number of items to skip
	Status JobStatus `json:"status,omitempty"` // Filter by job status; empty means all
}

// Normalize clamps the limit into (0, MaxLimit] and the offset to non-negative
func (o *ListOptions) Normalize() {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}
