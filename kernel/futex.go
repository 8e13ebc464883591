package kernel

import (
	"context"
	"sync"

	"github.com/wnxd/hnx"
)

type futexAwait struct {
	ch chan struct{}
}

// futex is a wake-token wait queue. A wake with nobody waiting leaves a
// single pending token that the next wait consumes.
type futex struct {
	rw      sync.Mutex
	awaits  []*futexAwait
	pending bool
	closed  bool
}

func (f *futex) dtor() {
	f.rw.Lock()
	for _, await := range f.awaits {
		close(await.ch)
	}
	f.awaits = nil
	f.closed = true
	f.rw.Unlock()
}

func (f *futex) wait(ctx context.Context) error {
	await, err := f.addAwait()
	if err != nil || await == nil {
		return err
	}
	select {
	case _, ok := <-await.ch:
		if !ok {
			return hnx.ErrCanceled
		}
		return nil
	case <-ctx.Done():
		if f.delAwait(await) {
			return ctx.Err()
		}
		// woken while giving up; the token is ours.
		return nil
	}
}

// wake releases the oldest waiter and reports how many were woken.
func (f *futex) wake() int {
	f.rw.Lock()
	defer f.rw.Unlock()
	if f.closed {
		return 0
	}
	if len(f.awaits) == 0 {
		f.pending = true
		return 0
	}
	await := f.awaits[0]
	f.awaits = f.awaits[1:]
	await.ch <- struct{}{}
	return 1
}

// addAwait queues a waiter. It returns nil when a pending token was consumed.
func (f *futex) addAwait() (*futexAwait, error) {
	f.rw.Lock()
	defer f.rw.Unlock()
	if f.closed {
		return nil, hnx.ErrCanceled
	}
	if f.pending {
		f.pending = false
		return nil, nil
	}
	await := &futexAwait{ch: make(chan struct{}, 1)}
	f.awaits = append(f.awaits, await)
	return await, nil
}

// delAwait dequeues a waiter, reporting false if it was already woken.
func (f *futex) delAwait(await *futexAwait) bool {
	f.rw.Lock()
	defer f.rw.Unlock()
	for i, a := range f.awaits {
		if a == await {
			f.awaits = append(f.awaits[:i], f.awaits[i+1:]...)
			return true
		}
	}
	return false
}

func (k *Kernel) ipc_wait(c *Call) error {
	ep := objectArg[*Endpoint](c, 0)
	ctx, cancel := withTimeout(c, c.Arg(1))
	defer cancel()
	return ep.futex.wait(ctx)
}

func (k *Kernel) ipc_wake(c *Call) error {
	ep := objectArg[*Endpoint](c, 0)
	c.Return(uint64(ep.futex.wake()))
	return nil
}
