package channel

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// RateLimiter is a per-sender fixed-window counter.
// Safe for concurrent use; each sender's slot is updated under its own
// exclusive critical section so distinct senders never contend.
type RateLimiter struct {
	limit  uint64
	window time.Duration

	mu      sync.Mutex
	entries map[common.Address]*rateEntry
}

type rateEntry struct {
	mu          sync.Mutex
	count       uint64
	windowStart time.Time
}

// NewRateLimiter builds a RateLimiter admitting at most limit requests per
// sender within window.
func NewRateLimiter(limit uint64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		entries: make(map[common.Address]*rateEntry),
	}
}

// Charge admits one request from sender, or returns RateLimitExceeded if
// the sender's window is exhausted. Never evicts entries: bounded by the
// number of distinct sender addresses seen.
func (r *RateLimiter) Charge(sender common.Address) *AuthError {
	e := r.entryFor(sender)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	if e.windowStart.IsZero() || now.Sub(e.windowStart) >= r.window {
		e.count = 1
		e.windowStart = now
		return nil
	}
	if e.count >= r.limit {
		return newErr(KindRateLimitExceeded, "")
	}
	e.count++
	return nil
}

func (r *RateLimiter) entryFor(sender common.Address) *rateEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sender]
	if !ok {
		e = &rateEntry{}
		r.entries[sender] = e
	}
	return e
}
