package batch

import (
	"math"
	"time"
)

// RetryPolicy maps an attempt count to a go/no-go decision and a backoff
// delay. It is a pure value: the scheduler owns when and how to apply it.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// BackoffBase is the exponent base for the backoff curve.
	BackoffBase float64

	// BackoffUnit is the delay for the first retry.
	BackoffUnit time.Duration
}

// DefaultRetryPolicy returns the recommended policy: up to 5 retries with
// delays of 2s, 4s, 8s, 16s, 32s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  5,
		BackoffBase: 2,
		BackoffUnit: 2 * time.Second,
	}
}

// ShouldRetry reports whether another attempt is allowed after `attempt`
// prior failed tries.
func (p RetryPolicy) ShouldRetry(attempt int) bool {
	return attempt < p.MaxRetries
}

// Backoff returns the delay to insert before the attempt following
// `attempt` prior failed tries: BackoffUnit * BackoffBase^attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := p.BackoffBase
	if base <= 0 {
		base = 2
	}
	return time.Duration(float64(p.BackoffUnit) * math.Pow(base, float64(attempt)))
}
