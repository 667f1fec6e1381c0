package slotlock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	at := time.Date(2024, 1, 8, 9, 0, 0, 0, time.FixedZone("IST", 19800))
	if got := Key("host-1", at); got != "slot:host-1:1704684600" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestMemoryLocker_SerializesHolders(t *testing.T) {
	l := NewMemoryLocker(2 * time.Second)
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "slot:a:1", time.Second)
			if err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			_ = release(context.Background())
		}()
	}
	wg.Wait()
	if maxInside != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxInside)
	}
}

func TestMemoryLocker_TimesOut(t *testing.T) {
	l := NewMemoryLocker(30 * time.Millisecond)
	release, err := l.Acquire(context.Background(), "k", time.Second)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer func() { _ = release(context.Background()) }()

	start := time.Now()
	_, err = l.Acquire(context.Background(), "k", time.Second)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("expected bounded wait")
	}
}

func TestMemoryLocker_IndependentKeysAndDoubleRelease(t *testing.T) {
	l := NewMemoryLocker(50 * time.Millisecond)
	r1, err := l.Acquire(context.Background(), "a", 0)
	if err != nil {
		t.Fatalf("Acquire a failed: %v", err)
	}
	r2, err := l.Acquire(context.Background(), "b", 0)
	if err != nil {
		t.Fatalf("expected independent key to be free: %v", err)
	}
	_ = r1(context.Background())
	_ = r1(context.Background())
	_ = r2(context.Background())

	r3, err := l.Acquire(context.Background(), "a", 0)
	if err != nil {
		t.Fatalf("expected released key to be free: %v", err)
	}
	_ = r3(context.Background())
}

func TestMemoryLocker_CallerCancel(t *testing.T) {
	l := NewMemoryLocker(time.Second)
	release, _ := l.Acquire(context.Background(), "k", 0)
	defer func() { _ = release(context.Background()) }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Acquire(ctx, "k", 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
