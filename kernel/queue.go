package kernel

import (
	"context"
	"sync"

	"github.com/wnxd/hnx"
)

type message struct {
	op   uint64
	data []byte
}

// queue is a bounded FIFO whose readers may block. Waiters sleep on ready,
// which is closed and replaced on every state change.
type queue[T any] struct {
	mu     sync.Mutex
	items  []T
	max    int
	err    error
	ready  chan struct{}
	onDrop func(T)
}

func newQueue[T any](max int) *queue[T] {
	return &queue[T]{max: max, ready: make(chan struct{})}
}

func (q *queue[T]) notifyLocked() {
	close(q.ready)
	q.ready = make(chan struct{})
}

func (q *queue[T]) push(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	if len(q.items) >= q.max {
		return hnx.ErrShouldWait
	}
	q.items = append(q.items, v)
	q.notifyLocked()
	return nil
}

// unshift puts v back at the head, ignoring the bound.
func (q *queue[T]) unshift(v T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return
	}
	q.items = append([]T{v}, q.items...)
	q.notifyLocked()
}

// pop removes the head item. With wait unset an empty queue fails with
// ErrShouldWait; otherwise it blocks until an item arrives, the queue is shut,
// or ctx ends. Queued items are still delivered after shutdown.
func (q *queue[T]) pop(ctx context.Context, wait bool) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			q.mu.Unlock()
			return v, nil
		}
		if q.err != nil {
			err := q.err
			q.mu.Unlock()
			return zero, err
		}
		if !wait {
			q.mu.Unlock()
			return zero, hnx.ErrShouldWait
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// shutdown refuses further pushes with err and wakes every waiter. When
// discard is set pending items are dropped as well.
func (q *queue[T]) shutdown(err error, discard bool) {
	q.mu.Lock()
	if q.err == nil {
		q.err = err
	}
	var dropped []T
	if discard {
		dropped = q.items
		q.items = nil
	}
	q.notifyLocked()
	q.mu.Unlock()
	if q.onDrop != nil {
		for _, v := range dropped {
			q.onDrop(v)
		}
	}
}

func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
