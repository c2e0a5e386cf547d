package events

import (
	"sync"
	"sync/atomic"

	"github.com/celestiaorg/jobscheduler/internal/db/models"
	"github.com/celestiaorg/jobscheduler/internal/logger"
	"github.com/celestiaorg/jobscheduler/internal/types"
)

// DefaultBufferSize is the default per-subscriber message buffer
const DefaultBufferSize = 16

// Broadcaster fans every published message out to all current subscribers.
// Publishing never blocks: a subscriber whose buffer is full misses the
// message. Subscribers only see messages published after they joined.
type Broadcaster struct {
	// mu guards subs and closed, and is held for the whole of a publish so
	// every subscriber observes the same order
	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool

	bufferSize int

	published atomic.Int64
	dropped   atomic.Int64
}

// Option configures a Broadcaster
type Option func(*Broadcaster)

// WithBufferSize sets the per-subscriber buffer size
func WithBufferSize(size int) Option {
	return func(b *Broadcaster) {
		if size > 0 {
			b.bufferSize = size
		}
	}
}

// NewBroadcaster creates a broadcaster with no subscribers
func NewBroadcaster(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		subs:       make(map[uint64]*Subscription),
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscription is a live feed of messages from a Broadcaster
type Subscription struct {
	id uint64
	ch chan Message
	b  *Broadcaster
}

// C returns the message channel. It is closed when the subscription or the
// broadcaster is closed.
func (s *Subscription) C() <-chan Message {
	return s.ch
}

// Close detaches the subscription; it is safe to call more than once
func (s *Subscription) Close() {
	s.b.unsubscribe(s.id)
}

// Subscribe registers a new subscriber. After Close the returned
// subscription's channel is already closed.
func (b *Broadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		id: b.nextID,
		ch: make(chan Message, b.bufferSize),
		b:  b,
	}
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub.id] = sub
	logger.Debugf("Subscriber %d joined (%d total)", sub.id, len(b.subs))
	return sub
}

// Publish delivers msg to every subscriber with buffer room and returns the
// number of subscribers that received it
func (b *Broadcaster) Publish(msg Message) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0
	}
	b.published.Add(1)

	delivered := 0
	for id, sub := range b.subs {
		select {
		case sub.ch <- msg:
			delivered++
		default:
			b.dropped.Add(1)
			logger.WarnWithFields("Subscriber lagging, message dropped", map[string]interface{}{
				"subscriber": id,
				"type":       msg.Type(),
			})
		}
	}
	return delivered
}

// PublishJob publishes a JobStatusUpdate for job
func (b *Broadcaster) PublishJob(job *models.Job) int {
	return b.Publish(JobStatusUpdate{Job: *job})
}

// Stats returns subscriber and delivery counters
func (b *Broadcaster) Stats() types.BroadcastStats {
	b.mu.Lock()
	n := len(b.subs)
	b.mu.Unlock()

	return types.BroadcastStats{
		Subscribers: n,
		Published:   b.published.Load(),
		Dropped:     b.dropped.Load(),
	}
}

// Close closes every subscription; later publishes are discarded
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}

func (b *Broadcaster) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(sub.ch)
	logger.Debugf("Subscriber %d left (%d total)", id, len(b.subs))
}
