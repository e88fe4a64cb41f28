package conversation

import (
	"context"
	"sync"

	"github.com/GaaneshT/codex/pkg/protocol"
)

// eventQueue is an unbounded FIFO of events. The session never blocks on a
// slow consumer.
type eventQueue struct {
	mu     sync.Mutex
	items  []protocol.Event
	closed bool
	notify chan struct{}
	done   chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		items:  make([]protocol.Event, 0),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// push appends ev. It reports false once the queue is closed.
func (q *eventQueue) push(ev protocol.Event) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// close stops further pushes. Queued events remain readable.
func (q *eventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

// pop blocks until an event is available, the queue is closed and empty, or
// ctx is done.
func (q *eventQueue) pop(ctx context.Context) (protocol.Event, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			ev := q.items[0]
			q.items[0] = protocol.Event{}
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				// Hand the wakeup on to another waiting reader.
				select {
				case q.notify <- struct{}{}:
				default:
				}
			}
			return ev, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return protocol.Event{}, ErrSessionClosed
		}

		select {
		case <-q.notify:
		case <-q.done:
		case <-ctx.Done():
			return protocol.Event{}, ctx.Err()
		}
	}
}
