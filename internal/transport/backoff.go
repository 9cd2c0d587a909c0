package transport

import (
	"math"
	"time"
)

// Backoff controls reconnect pacing: exponential delay growth from
// Base up to the Max ceiling, for at most MaxAttempts tries.
type Backoff struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

// DefaultBackoff returns the built-in reconnect policy:
// 1s base, 30s ceiling, 10 attempts.
func DefaultBackoff() Backoff {
	return Backoff{Base: time.Second, Max: 30 * time.Second, MaxAttempts: 10}
}

// Delay returns the wait before the given attempt (1-indexed):
// Base * 2^(attempt-1), capped at Max.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(b.Base) * math.Pow(2, float64(attempt-1))
	if d > float64(b.Max) {
		return b.Max
	}
	return time.Duration(d)
}

// Exhausted reports whether attempt exceeds the retry budget.
// MaxAttempts <= 0 means retry forever.
func (b Backoff) Exhausted(attempt int) bool {
	return b.MaxAttempts > 0 && attempt > b.MaxAttempts
}
