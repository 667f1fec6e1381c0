// Package slotlock serializes booking creation per (host, slot instant).
package slotlock

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// ErrTimeout is returned when a lock could not be acquired within the wait budget.
var ErrTimeout = errors.New("slotlock: timed out waiting for slot lock")

// Release gives the lock back. It is safe to call more than once.
type Release func(ctx context.Context) error

// Locker acquires exclusive, expiring locks by key.
type Locker interface {
	// Acquire blocks for at most the locker's wait budget (or until ctx is
	// done). ttl bounds how long a crashed holder can keep the lock.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

// Key names the lock for one host slot.
func Key(hostID string, at time.Time) string {
	return "slot:" + hostID + ":" + strconv.FormatInt(at.UTC().Unix(), 10)
}

func waitContext(ctx context.Context, wait time.Duration) (context.Context, context.CancelFunc) {
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return context.WithTimeout(ctx, wait)
}

// timeoutErr keeps caller cancellation distinct from an exhausted wait budget.
func timeoutErr(parent context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	return ErrTimeout
}
