// Package ratelimit throttles submissions per (origin, channel) over the
// shared store, so the window holds across multiple API processes.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matthewshammond/MailBridge/internal/store"
)

// ErrLimited is returned when the window counter exceeds the threshold.
var ErrLimited = errors.New("rate limit exceeded")

const window = 60 * time.Second

type Limiter struct {
	store store.Store
	limit int
}

func New(s store.Store, limit int) *Limiter {
	return &Limiter{store: s, limit: limit}
}

// Allow increments the counter for (origin, channelKey) and returns
// ErrLimited once the count within the sliding window exceeds the limit. The
// expiry resets on every hit.
func (l *Limiter) Allow(ctx context.Context, origin, channelKey string) error {
	key := fmt.Sprintf("ratelimit:%s:%s", channelKey, origin)
	count, err := l.store.IncrWithTTL(ctx, key, window)
	if err != nil {
		// Fail open: a store hiccup should not bounce legitimate traffic.
		return nil
	}
	if count > int64(l.limit) {
		return ErrLimited
	}
	return nil
}
