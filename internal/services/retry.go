package services

import (
	"time"
)

// RetryPolicy bounds retries of a transient operation with exponential
// backoff. Explicit parameters replace ad hoc sleep loops so tests can zero
// the delay.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// retryWithBackoff runs fn up to policy.Attempts times, doubling the delay
// between attempts, and returns the last error.
func retryWithBackoff(policy RetryPolicy, fn func() error) error {
	delay := policy.Delay
	var err error
	for attempt := 0; attempt < policy.Attempts; attempt++ {
		if attempt > 0 && delay > 0 {
			time.Sleep(delay)
			delay *= 2
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}
