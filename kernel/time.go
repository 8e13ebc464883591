package kernel

import (
	"context"
	"time"
)

// withTimeout bounds ctx by a relative timeout in nanoseconds. Zero means no
// bound.
func withTimeout(ctx context.Context, ns uint64) (context.Context, context.CancelFunc) {
	if ns == 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(min(ns, uint64(1<<63-1))))
}
