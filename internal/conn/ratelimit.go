package conn

import (
	"fmt"
	"sync"
	"time"

	"github.com/tea-analyzer/client/internal/model"
)

const (
	// DefaultMaxRetries caps the backoff counter; at the cap, creation
	// attempts are refused until an external reset.
	DefaultMaxRetries = 5

	baseRetryInterval = time.Second
	maxRetryInterval  = 30 * time.Second
)

// WaitError reports how long a caller must wait before the next creation
// attempt is permitted. It unwraps to ErrRateLimited.
type WaitError struct {
	Wait time.Duration
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("rate limited: retry in %s", e.Wait.Round(time.Second))
}

func (e *WaitError) Unwrap() error {
	return model.ErrRateLimited
}

// RateLimiter applies exponential backoff to connection creation. It is a
// pure function of (retryCount, lastRetryTime) and the clock: the minimum
// interval between attempts is min(1s * 2^retryCount, 30s).
type RateLimiter struct {
	maxRetries int
	now        func() time.Time

	mu         sync.Mutex
	retryCount int
	lastRetry  time.Time
}

// NewRateLimiter creates a limiter. maxRetries <= 0 selects the default;
// now may be nil for the wall clock.
func NewRateLimiter(maxRetries int, now func() time.Time) *RateLimiter {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{maxRetries: maxRetries, now: now}
}

// Interval returns the current minimum wait between attempts.
func (r *RateLimiter) Interval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.intervalLocked()
}

func (r *RateLimiter) intervalLocked() time.Duration {
	interval := baseRetryInterval << uint(r.retryCount)
	if interval > maxRetryInterval || interval <= 0 {
		interval = maxRetryInterval
	}
	return interval
}

// Check reports whether a creation attempt is permitted now. A blocked
// attempt counts against the budget: it increments the counter and stamps
// the retry time, so repeated hammering extends the backoff.
func (r *RateLimiter) Check() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.retryCount >= r.maxRetries {
		return model.ErrRetryBudgetExhausted
	}

	elapsed := r.now().Sub(r.lastRetry)
	if interval := r.intervalLocked(); elapsed < interval {
		wait := interval - elapsed
		r.retryCount++
		r.lastRetry = r.now()
		return &WaitError{Wait: wait}
	}

	return nil
}

// Fail records a failed creation attempt.
func (r *RateLimiter) Fail() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retryCount < r.maxRetries {
		r.retryCount++
	}
	r.lastRetry = r.now()
}

// Reset clears the backoff state after a successful creation or an
// explicit user retry.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryCount = 0
	r.lastRetry = time.Time{}
}

// RetryCount returns the current backoff counter.
func (r *RateLimiter) RetryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retryCount
}
