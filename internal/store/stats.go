package store

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Relay counters surfaced by the admin stats endpoint. Totals never expire;
// the per-day keys age out after a week.
const (
	StatAccepted       = "accepted"
	StatRejected       = "rejected"
	StatRateLimited    = "rate_limited"
	StatDispatched     = "dispatched"
	StatDispatchFailed = "dispatch_failed"
	StatRepliesSent    = "replies_sent"
	StatRepliesFailed  = "replies_failed"
)

const dailyStatTTL = 7 * 24 * time.Hour

// Stats records and reads relay counters over any Store.
type Stats struct {
	store Store
}

func NewStats(s Store) *Stats {
	return &Stats{store: s}
}

// Incr bumps the total and today's counter for name. Errors are returned for
// the caller to log; a lost stat never fails a send.
func (s *Stats) Incr(ctx context.Context, name string) error {
	if _, err := s.store.IncrWithTTL(ctx, "stats:"+name, 0); err != nil {
		return err
	}
	day := time.Now().UTC().Format("2006-01-02")
	_, err := s.store.IncrWithTTL(ctx, fmt.Sprintf("stats:%s:%s", name, day), dailyStatTTL)
	return err
}

// Totals returns the all-time counters for the given stat names.
func (s *Stats) Totals(ctx context.Context, names ...string) (map[string]int64, error) {
	totals := make(map[string]int64, len(names))
	for _, name := range names {
		val, err := s.store.Get(ctx, "stats:"+name)
		if err == ErrNotFound {
			totals[name] = 0
			continue
		}
		if err != nil {
			return nil, err
		}
		n, _ := strconv.ParseInt(val, 10, 64)
		totals[name] = n
	}
	return totals, nil
}

// Today returns today's counters for the given stat names.
func (s *Stats) Today(ctx context.Context, names ...string) (map[string]int64, error) {
	day := time.Now().UTC().Format("2006-01-02")
	totals := make(map[string]int64, len(names))
	for _, name := range names {
		val, err := s.store.Get(ctx, fmt.Sprintf("stats:%s:%s", name, day))
		if err == ErrNotFound {
			totals[name] = 0
			continue
		}
		if err != nil {
			return nil, err
		}
		n, _ := strconv.ParseInt(val, 10, 64)
		totals[name] = n
	}
	return totals, nil
}
