package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/celestiaorg/jobscheduler/internal/types"
)

var _ Queue = (*MemoryQueue)(nil)

// MemoryQueue is an in-process Queue for single-process deployments and tests
type MemoryQueue struct {
	mu     sync.Mutex
	items  []string
	closed bool
	// notify holds at most one wake-up token for blocked consumers
	notify chan struct{}
	done   chan struct{}
}

// NewMemoryQueue creates an empty in-process queue
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Enqueue appends id to the tail
func (q *MemoryQueue) Enqueue(_ context.Context, id string) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("%w: queue closed", types.ErrTransport)
	}
	q.items = append(q.items, id)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Dequeue pops the head, waiting at most timeout for an item to arrive
func (q *MemoryQueue) Dequeue(ctx context.Context, timeout time.Duration) (string, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		id, ok, err := q.tryPop()
		if err != nil || ok {
			return id, ok, err
		}

		select {
		case <-q.notify:
		case <-q.done:
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-timer.C:
			// an item may have landed together with the deadline
			return q.tryPop()
		}
	}
}

// Len returns the number of pending identifiers
func (q *MemoryQueue) Len(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}

// Close wakes blocked consumers and rejects further use
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}

func (q *MemoryQueue) tryPop() (string, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return "", false, fmt.Errorf("%w: queue closed", types.ErrTransport)
	}
	if len(q.items) == 0 {
		return "", false, nil
	}

	id := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	if len(q.items) > 0 {
		// pass the wake-up on to the next blocked consumer
		q.signal()
	}
	return id, true, nil
}

func (q *MemoryQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
