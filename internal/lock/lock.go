// Package lock provides the per-account serialization point used by the ledger.
// A lock is owned by the operation that acquired it and must be released by that
// operation; waiting for a lock always honors the caller's context.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotAcquired is returned when the wait for a lock ended without obtaining it.
var ErrNotAcquired = errors.New("lock not acquired")

// Release gives a lock back. It is safe to call more than once.
type Release func()

type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// AccountKey is the lock key shared by every writer of one account.
func AccountKey(accountID int64) string {
	return fmt.Sprintf("account:%d", accountID)
}

// WithWaitLimit bounds how long Acquire waits on l, in addition to the caller's deadline.
// A non-positive limit returns l unchanged.
func WithWaitLimit(l Locker, limit time.Duration) Locker {
	if limit <= 0 {
		return l
	}
	return &waitLimited{Locker: l, limit: limit}
}

type waitLimited struct {
	Locker
	limit time.Duration
}

func (w *waitLimited) Acquire(ctx context.Context, key string) (Release, error) {
	ctx, cancel := context.WithTimeout(ctx, w.limit)
	defer cancel()
	return w.Locker.Acquire(ctx, key)
}
