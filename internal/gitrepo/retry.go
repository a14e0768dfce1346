package gitrepo

import (
	"math"
	"time"
)

// RetryPolicy governs the provider's retry loop for network-classified
// failures. It is orthogonal to the transport: auth and unknown failures
// are never retried.
type RetryPolicy struct {
	// MaxRetries is the number of retry attempts after the first failure.
	MaxRetries int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// Multiplier scales the delay for each subsequent retry.
	Multiplier float64
}

// DefaultRetryPolicy returns the standard bounded backoff policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		Multiplier: 2.0,
	}
}

// Delay returns the backoff delay for a zero-based retry attempt:
// BaseDelay * Multiplier^attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(multiplier, float64(attempt)))
}
