// Package queue provides the work queue that hands job identifiers from
// submission to the workers.
//
// The queue carries identifiers only, never job data. Delivery is
// at-most-once: a popped identifier is gone, there is no acknowledgment or
// visibility timeout.
package queue

import (
	"context"
	"time"
)

// DefaultKey is the redis list holding pending job identifiers
const DefaultKey = "job_queue"

// Queue is a blocking FIFO of job identifiers safe for concurrent use
type Queue interface {
	// Enqueue appends id to the tail
	Enqueue(ctx context.Context, id string) error
	// Dequeue pops the head, waiting at most timeout. ok is false with a nil
	// error when the wait timed out.
	Dequeue(ctx context.Context, timeout time.Duration) (id string, ok bool, err error)
	// Len returns the number of pending identifiers
	Len(ctx context.Context) (int64, error)
	// Close releases the queue; later calls fail with types.ErrTransport
	Close() error
}
