package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces calls evenly: each Wait reserves the next free slot and
// sleeps until it starts. A nil RateLimiter, or one built with a
// non-positive rate, never blocks.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration // gap between slots; 0 disables limiting
	next     time.Time     // start of the next free slot
	now      func() time.Time
}

// NewRateLimiter creates a RateLimiter allowing perMinute calls per minute.
func NewRateLimiter(perMinute int) *RateLimiter {
	rl := &RateLimiter{now: time.Now}
	if perMinute > 0 {
		rl.interval = time.Minute / time.Duration(perMinute)
	}
	return rl
}

// Wait blocks until the caller's slot starts or ctx is done. A slot given up
// through cancellation is handed back when no later slot was reserved.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rl == nil || rl.interval <= 0 {
		return nil
	}

	rl.mu.Lock()
	now := rl.now()
	slot := rl.next
	if slot.Before(now) {
		slot = now
	}
	rl.next = slot.Add(rl.interval)
	rl.mu.Unlock()

	delay := slot.Sub(now)
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		rl.mu.Lock()
		if rl.next.Equal(slot.Add(rl.interval)) {
			rl.next = slot
		}
		rl.mu.Unlock()
		return ctx.Err()
	}
}
