package worker

import (
	"context"
	"sync"
	"time"

	"github.com/cuongbtq/listing-flyer/internal/worker/domain"
)

// progressQueue is an unbounded FIFO of job events. push never blocks.
type progressQueue struct {
	mu     sync.Mutex
	items  []domain.Event
	signal chan struct{}
}

func newProgressQueue() *progressQueue {
	return &progressQueue{signal: make(chan struct{}, 1)}
}

func (q *progressQueue) push(ev domain.Event) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *progressQueue) tryPop() (domain.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return domain.Event{}, false
	}
	ev := q.items[0]
	q.items[0] = domain.Event{}
	q.items = q.items[1:]
	return ev, true
}

func (q *progressQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// receive waits up to timeout for the next event. ok is false on timeout or
// when ctx is done.
func (q *progressQueue) receive(ctx context.Context, timeout time.Duration) (domain.Event, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if ev, ok := q.tryPop(); ok {
			return ev, true
		}

		select {
		case <-q.signal:
		case <-timer.C:
			return q.tryPop()
		case <-ctx.Done():
			return domain.Event{}, false
		}
	}
}
