package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/jobscheduler/internal/types"
)

// waitTimeout is the shortest wait both backends honour
const waitTimeout = time.Second

func newRedisQueue(t *testing.T) Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	return NewRedisQueue(client, "")
}

func newMemoryQueue(t *testing.T) Queue {
	t.Helper()
	return NewMemoryQueue()
}

var backends = []struct {
	name string
	new  func(t *testing.T) Queue
}{
	{name: "memory", new: newMemoryQueue},
	{name: "redis", new: newRedisQueue},
}

func TestQueue_FIFO(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			q := b.new(t)
			defer q.Close()
			ctx := context.Background()

			ids := []string{"a", "b", "c"}
			for _, id := range ids {
				require.NoError(t, q.Enqueue(ctx, id))
			}

			n, err := q.Len(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(3), n)

			for _, want := range ids {
				got, ok, err := q.Dequeue(ctx, waitTimeout)
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, want, got)
			}

			n, err = q.Len(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestQueue_DequeueTimeout(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			q := b.new(t)
			defer q.Close()

			start := time.Now()
			id, ok, err := q.Dequeue(context.Background(), waitTimeout)
			require.NoError(t, err, "timeout is not an error")
			assert.False(t, ok)
			assert.Empty(t, id)
			assert.GreaterOrEqual(t, time.Since(start), waitTimeout/2)
		})
	}
}

func TestQueue_DequeueWakesOnEnqueue(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			q := b.new(t)
			defer q.Close()
			ctx := context.Background()

			got := make(chan string, 1)
			go func() {
				id, ok, err := q.Dequeue(ctx, 5*time.Second)
				if err == nil && ok {
					got <- id
				}
				close(got)
			}()

			time.Sleep(50 * time.Millisecond)
			require.NoError(t, q.Enqueue(ctx, "late"))

			select {
			case id := <-got:
				assert.Equal(t, "late", id)
			case <-time.After(5 * time.Second):
				t.Fatal("dequeue did not wake up")
			}
		})
	}
}

func TestQueue_ExclusiveDelivery(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			q := b.new(t)
			defer q.Close()
			ctx := context.Background()

			const total = 50
			for i := 0; i < total; i++ {
				require.NoError(t, q.Enqueue(ctx, string(rune('A'+i))))
			}

			var (
				mu   sync.Mutex
				seen = make(map[string]int)
				wg   sync.WaitGroup
			)
			for w := 0; w < 4; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for {
						id, ok, err := q.Dequeue(ctx, waitTimeout)
						if err != nil || !ok {
							return
						}
						mu.Lock()
						seen[id]++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			assert.Len(t, seen, total)
			for id, n := range seen {
				assert.Equal(t, 1, n, "id %q delivered more than once", id)
			}
		})
	}
}

func TestQueue_DequeueContextCancelled(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			q := b.new(t)
			defer q.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			_, ok, err := q.Dequeue(ctx, 5*time.Second)
			assert.False(t, ok)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
		})
	}
}

func TestQueue_DequeueCancelledWithoutDeadline(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			q := b.new(t)
			defer q.Close()

			ctx, cancel := context.WithCancel(context.Background())
			time.AfterFunc(100*time.Millisecond, cancel)

			start := time.Now()
			_, ok, err := q.Dequeue(ctx, 10*time.Second)
			assert.False(t, ok)
			assert.ErrorIs(t, err, context.Canceled)
			assert.Less(t, time.Since(start), 3*time.Second, "cancel not noticed until the full timeout")
		})
	}
}

func TestQueue_DequeueWaitsFullTimeout(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			q := b.new(t)
			defer q.Close()
			ctx := context.Background()

			time.AfterFunc(1500*time.Millisecond, func() {
				_ = q.Enqueue(ctx, "late")
			})

			got, ok, err := q.Dequeue(ctx, 5*time.Second)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "late", got)
		})
	}
}

func TestMemoryQueue_Closed(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() {
		_, _, err := q.Dequeue(ctx, 5*time.Second)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, types.ErrTransport)
	case <-time.After(time.Second):
		t.Fatal("close did not wake the consumer")
	}

	assert.ErrorIs(t, q.Enqueue(ctx, "x"), types.ErrTransport)
}

func TestRedisQueue_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	q := NewRedisQueue(client, "jobs")
	defer q.Close()
	assert.Equal(t, "jobs", q.Key())

	mr.Close()

	err = q.Enqueue(context.Background(), "x")
	assert.ErrorIs(t, err, types.ErrTransport)

	_, ok, err := q.Dequeue(context.Background(), waitTimeout)
	assert.False(t, ok)
	assert.ErrorIs(t, err, types.ErrTransport)
}

func TestNewRedisClient_Errors(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-url")
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = NewRedisClient(context.Background(), "redis://"+addr)
	assert.ErrorIs(t, err, types.ErrTransport)
}
