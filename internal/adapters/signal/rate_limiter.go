package signal

import (
	"sync"
	"time"

	"github.com/dkeye/Playground/internal/domain"
)

type limitKey struct {
	room domain.RoomID
	user domain.UserID
}

// RateLimiter caps keystroke saves per user within one room over a sliding
// window. A user in two rooms, or back after a rejoin into another room,
// gets a separate budget.
type RateLimiter struct {
	mu       sync.Mutex
	hits     map[limitKey][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
	swept    time.Time
}

// NewRateLimiter allows limit hits per interval. A non-positive limit
// disables limiting.
func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		hits:     make(map[limitKey][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *RateLimiter) Allow(room domain.RoomID, user domain.UserID) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	since := now.Add(-rl.interval)
	if rl.swept.Before(since) {
		rl.sweep(since)
		rl.swept = now
	}

	k := limitKey{room: room, user: user}
	recent := fresh(rl.hits[k], since)
	if len(recent) >= rl.limit {
		rl.hits[k] = recent
		return false
	}
	rl.hits[k] = append(recent, now)
	return true
}

// sweep forgets pairs with no hit after since. Runs at most once per window.
func (rl *RateLimiter) sweep(since time.Time) {
	for k, hits := range rl.hits {
		if len(fresh(hits, since)) == 0 {
			delete(rl.hits, k)
		}
	}
}

// fresh trims the sorted prefix of hits at or before since.
func fresh(hits []time.Time, since time.Time) []time.Time {
	cut := 0
	for cut < len(hits) && !hits[cut].After(since) {
		cut++
	}
	return hits[cut:]
}

// Len reports how many room and user pairs hold recent hits.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.hits)
}
