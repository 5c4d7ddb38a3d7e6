package domain

import (
	"context"
	"time"
)

// LockManager provides distributed locks. The engines take a short-lived
// ledger lock around each mutating operation so two facilityd replicas
// fronting the same database never interleave transactions.
type LockManager interface {
	// Acquire obtains the lock for key with the given TTL, returning an
	// unlock function. Returns ErrLockHeld if another holder has it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
