package ports

import (
	"context"
	"time"
)

// Lease provides short-lived mutual exclusion over the queue across processes
// sharing the same durable storage.
type Lease interface {
	// Acquire takes or renews the lease for holder. It returns false without
	// error when a live lease is held by someone else.
	Acquire(ctx context.Context, holder string, ttl time.Duration) (bool, error)

	// Release drops the lease if holder still owns it.
	Release(ctx context.Context, holder string) error
}
