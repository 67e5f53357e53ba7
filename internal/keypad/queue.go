package keypad

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Timeouts accepted by EventQueue.Dequeue.
const (
	// NoWait returns immediately when the queue is empty.
	NoWait time.Duration = 0
	// Forever blocks until an event arrives or the queue is closed.
	Forever time.Duration = -1
)

// EventQueue is a bounded FIFO of key characters. TryEnqueue never blocks;
// Dequeue blocks up to a caller-chosen timeout. Safe for one producer and
// any number of consumers.
type EventQueue struct {
	ch        chan rune
	done      chan struct{}
	closeOnce sync.Once
}

// NewEventQueue creates a queue holding at most capacity events.
func NewEventQueue(capacity int) (*EventQueue, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: queue capacity %d must be positive", ErrInvalidArgument, capacity)
	}
	return &EventQueue{
		ch:   make(chan rune, capacity),
		done: make(chan struct{}),
	}, nil
}

// TryEnqueue adds r if there is room. It returns false when the queue is
// full or closed; the event is then lost.
func (q *EventQueue) TryEnqueue(r rune) bool {
	select {
	case <-q.done:
		return false
	default:
	}

	select {
	case q.ch <- r:
		return true
	default:
		return false
	}
}

// Dequeue removes the oldest event, waiting up to timeout for one to
// arrive. Use NoWait to poll and Forever to block until an event arrives
// or the queue is closed. Other negative timeouts poll like NoWait.
func (q *EventQueue) Dequeue(timeout time.Duration) (rune, bool) {
	select {
	case <-q.done:
		return 0, false
	default:
	}

	if timeout <= 0 && timeout != Forever {
		select {
		case r := <-q.ch:
			return r, true
		default:
			return 0, false
		}
	}

	// nil expire blocks forever
	var expire <-chan time.Time
	if timeout != Forever {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expire = t.C
	}

	select {
	case r := <-q.ch:
		return r, true
	case <-q.done:
		return 0, false
	case <-expire:
		return 0, false
	}
}

// DequeueContext blocks until an event arrives, ctx is done, or the queue
// is closed.
func (q *EventQueue) DequeueContext(ctx context.Context) (rune, error) {
	select {
	case <-q.done:
		return 0, ErrClosed
	default:
	}

	select {
	case r := <-q.ch:
		return r, nil
	case <-q.done:
		return 0, ErrClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *EventQueue) Cap() int { return cap(q.ch) }

// Close releases the queue. Pending events are discarded and blocked
// consumers return. Close is idempotent.
func (q *EventQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
}
