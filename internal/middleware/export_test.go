package middleware

import "time"

// SetClock replaces the limiter clock.
func SetClock(rl *RateLimiter, now func() time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.now = now
}
