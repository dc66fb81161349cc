package contracts

import (
	"context"
	"time"
)

type PeriodicWorker interface {
	// Run ticks until ctx is done.
	Run(ctx context.Context)
	// RunOnce performs a single pass.
	RunOnce(ctx context.Context) error
}

// Locker guards work that must not run on two instances at once.
type Locker interface {
	// TryLock returns ok=false when someone else holds key.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}
