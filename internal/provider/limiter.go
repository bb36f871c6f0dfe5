package provider

import (
	"context"

	"golang.org/x/time/rate"
)

// newLimiter builds a token-bucket limiter for the given requests per
// second. A non-positive rps disables limiting.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// waitLimiter blocks until the limiter admits a request or ctx expires.
func waitLimiter(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}
