package webservices

import (
	"math/rand"
	"time"
)

// Retry policy defaults.
const (
	DefaultRetryBase     = 500 * time.Millisecond
	DefaultRetryCap      = 30 * time.Second
	DefaultMaxAttempts   = 3
	maxConfigurableTries = 10
)

// RetryPolicy implements exponential backoff with decorrelated jitter:
// delay_n = min(cap, random_between(base, delay_{n-1}*3)). Only errors
// the classifier marks retryable are retried.
type RetryPolicy struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
}

// DefaultRetryPolicy returns the standard policy: 500 ms base, 30 s cap,
// 3 attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Base: DefaultRetryBase, Cap: DefaultRetryCap, MaxAttempts: DefaultMaxAttempts}
}

// Attempts returns the effective attempt bound, clamped to 1..10.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	if p.MaxAttempts > maxConfigurableTries {
		return maxConfigurableTries
	}
	return p.MaxAttempts
}

// NextDelay computes the wait before the next attempt given the previous
// delay. A zero previous delay seeds the sequence at the base.
func (p RetryPolicy) NextDelay(prev time.Duration) time.Duration {
	base := p.Base
	if base <= 0 {
		base = DefaultRetryBase
	}
	ceiling := p.Cap
	if ceiling <= 0 {
		ceiling = DefaultRetryCap
	}
	if prev < base {
		prev = base
	}
	upper := prev * 3
	if upper > ceiling {
		upper = ceiling
	}
	if upper <= base {
		return base
	}
	return base + time.Duration(rand.Int63n(int64(upper-base)))
}
