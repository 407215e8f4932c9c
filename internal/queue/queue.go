// Package queue is the bounded in-process buffer between feed connections
// and the batch writer. Producers never block indefinitely: when the queue
// is full the oldest item is evicted so fresh announcements keep flowing.
package queue

import (
	"context"
	"sync/atomic"
	"time"
)

// Policy selects the behavior of Push against a full queue.
type Policy string

const (
	// DropOldest waits briefly for room, then evicts the oldest item.
	DropOldest Policy = "drop_oldest"
	// Block waits for room until the context is cancelled.
	Block Policy = "block"
)

// DefaultCapacity bounds the queue when the caller does not size it.
const DefaultCapacity = 1000

// defaultPushWait is how long a DropOldest push waits for room before
// evicting.
const defaultPushWait = 250 * time.Millisecond

// Item is one raw feed payload awaiting persistence.
type Item struct {
	ConnectionID string
	Payload      []byte
	EnqueuedAt   time.Time
}

// Queue is a bounded FIFO safe for concurrent producers and a single
// consumer.
type Queue struct {
	items    chan Item
	policy   Policy
	pushWait time.Duration
	drops    atomic.Int64
}

// New creates a queue with the given capacity and overflow policy.
// A capacity of zero or less falls back to DefaultCapacity.
func New(capacity int, policy Policy) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if policy == "" {
		policy = DropOldest
	}
	return &Queue{
		items:    make(chan Item, capacity),
		policy:   policy,
		pushWait: defaultPushWait,
	}
}

// Push enqueues the item, stamping EnqueuedAt. Under DropOldest a full
// queue evicts its oldest entries until the item fits; under Block it waits
// for room. Returns the context error if cancelled while waiting.
func (q *Queue) Push(ctx context.Context, it Item) error {
	it.EnqueuedAt = time.Now().UTC()

	if q.policy == Block {
		select {
		case q.items <- it:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	select {
	case q.items <- it:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	timer := time.NewTimer(q.pushWait)
	defer timer.Stop()
	select {
	case q.items <- it:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	for {
		select {
		case q.items <- it:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		select {
		case <-q.items:
			q.drops.Add(1)
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// Messages exposes the receive side for the consumer's select loop.
func (q *Queue) Messages() <-chan Item {
	return q.items
}

// Pop blocks until an item arrives or the context is cancelled.
func (q *Queue) Pop(ctx context.Context) (Item, error) {
	select {
	case it := <-q.items:
		return it, nil
	case <-ctx.Done():
		return Item{}, ctx.Err()
	}
}

// Depth is the number of buffered items.
func (q *Queue) Depth() int {
	return len(q.items)
}

// Drops is the number of items evicted by overflow since startup.
func (q *Queue) Drops() int64 {
	return q.drops.Load()
}
