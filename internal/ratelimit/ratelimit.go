// Package ratelimit spaces out handshake starts per user.
//
// Every start evicts the user's previous handshake, so an unthrottled
// caller could churn connections against the remote service. The limiter
// enforces a minimum cooldown between starts for the same user.
package ratelimit

import (
	"context"
	"time"

	id "qrlink/pkg/domain"
)

// Limiter answers whether a user may start a handshake now. When not
// allowed, retryAfter says how long until the next attempt.
type Limiter interface {
	Allow(ctx context.Context, userID id.UserID) (allowed bool, retryAfter time.Duration, err error)
}

// Unlimited never limits. Used when no cooldown is configured.
type Unlimited struct{}

func (Unlimited) Allow(ctx context.Context, userID id.UserID) (bool, time.Duration, error) {
	return true, 0, nil
}
