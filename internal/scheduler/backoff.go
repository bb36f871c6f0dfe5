package scheduler

import (
	"math"
	"math/rand/v2"
	"time"
)

const (
	backoffMultiplier     = 2.0
	backoffJitterFraction = 0.25
	maxBackoff            = 60 * time.Second
)

// computeBackoff returns the delay before retry number attempt (1-based),
// exponential with jitter.
func computeBackoff(attempt int, base time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(base) * math.Pow(backoffMultiplier, float64(attempt-1))
	if delay > float64(maxBackoff) {
		delay = float64(maxBackoff)
	}

	// Apply jitter: ±backoffJitterFraction of delay.
	jitterRange := delay * backoffJitterFraction
	jitter := (rand.Float64()*2 - 1) * jitterRange
	delay += jitter

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
