package ratelimit

import (
	"context"
	"sync"
	"time"

	id "qrlink/pkg/domain"
)

// InMemoryCooldown implements Limiter with a per-user last-start map.
// Single-instance only; use the Redis limiter for shared state.
type InMemoryCooldown struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     map[id.UserID]time.Time
	now      func() time.Time
}

// NewInMemoryCooldown creates a limiter enforcing the given spacing.
func NewInMemoryCooldown(cooldown time.Duration) *InMemoryCooldown {
	return &InMemoryCooldown{
		cooldown: cooldown,
		last:     make(map[id.UserID]time.Time),
		now:      time.Now,
	}
}

func (l *InMemoryCooldown) Allow(ctx context.Context, userID id.UserID) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if prev, ok := l.last[userID]; ok {
		if wait := l.cooldown - now.Sub(prev); wait > 0 {
			return false, wait, nil
		}
	}
	l.last[userID] = now
	return true, 0, nil
}
