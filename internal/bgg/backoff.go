package bgg

import (
	"math"
	"math/rand/v2"
	"time"
)

// DelayFunc computes the backoff delay before retry number attempt (0-based).
//
// Keeping the retry math behind a function value lets tests assert on delays
// without real timers and lets the client swap strategies.
type DelayFunc func(attempt int) time.Duration

// ExponentialDelay returns the default backoff strategy:
//
//	delay = 2^attempt * base * (1 + jitter), jitter in [0, 0.2)
func ExponentialDelay(base time.Duration) DelayFunc {
	return func(attempt int) time.Duration {
		delay := math.Pow(2, float64(attempt)) * float64(base)
		jitter := delay * 0.2 * rand.Float64()
		return time.Duration(delay + jitter)
	}
}
