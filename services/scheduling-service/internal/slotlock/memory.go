package slotlock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is an in-process Locker for single-instance deployments and
// tests. Holders live in the same process, so ttl is not enforced.
type MemoryLocker struct {
	wait time.Duration
	mu   sync.Mutex
	held map[string]chan struct{}
}

func NewMemoryLocker(wait time.Duration) *MemoryLocker {
	return &MemoryLocker{wait: wait, held: make(map[string]chan struct{})}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, _ time.Duration) (Release, error) {
	waitCtx, cancel := waitContext(ctx, l.wait)
	defer cancel()

	for {
		l.mu.Lock()
		ch, busy := l.held[key]
		if !busy {
			ch = make(chan struct{})
			l.held[key] = ch
			l.mu.Unlock()
			return l.releaser(key, ch), nil
		}
		l.mu.Unlock()

		select {
		case <-ch:
		case <-waitCtx.Done():
			return nil, timeoutErr(ctx)
		}
	}
}

func (l *MemoryLocker) releaser(key string, ch chan struct{}) Release {
	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			if l.held[key] == ch {
				delete(l.held, key)
			}
			l.mu.Unlock()
			close(ch)
		})
		return nil
	}
}
