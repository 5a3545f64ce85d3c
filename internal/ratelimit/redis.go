package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	id "qrlink/pkg/domain"
)

// Redis key prefix for start cooldowns.
const cooldownKeyPrefix = "qrlink:cooldown:"

// RedisCooldown implements Limiter on Redis so multiple instances share
// cooldown state. SET NX EX makes the check-and-claim atomic.
type RedisCooldown struct {
	client   *redis.Client
	cooldown time.Duration
}

// NewRedisCooldown creates a Redis-backed cooldown limiter.
func NewRedisCooldown(client *redis.Client, cooldown time.Duration) *RedisCooldown {
	return &RedisCooldown{client: client, cooldown: cooldown}
}

func (l *RedisCooldown) Allow(ctx context.Context, userID id.UserID) (bool, time.Duration, error) {
	key := cooldownKeyPrefix + userID.String()

	ok, err := l.client.SetNX(ctx, key, "1", l.cooldown).Result()
	if err != nil {
		return false, 0, err
	}
	if ok {
		return true, 0, nil
	}

	ttl, err := l.client.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		return false, l.cooldown, err
	}
	return false, ttl, nil
}
