package worker

import (
	"math/rand"
	"time"

	"venuebook/internal/config"
)

const defaultRetryDelay = time.Second

// RetryPolicy is the exponential backoff applied to failed outbox deliveries.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// Jitter is the fraction of the delay added at random, 0 disables it.
	Jitter float64
}

func RetryFromConfig(cfg config.OutboxConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries:    cfg.MaxRetries,
		InitialDelay:  cfg.BaseDelay,
		MaxDelay:      cfg.MaxDelay,
		BackoffFactor: 2,
		Jitter:        0.1,
	}
}

// Exhausted reports whether a message that just failed its attempt-th delivery is given up on.
func (r RetryPolicy) Exhausted(attempt int) bool {
	return attempt >= r.MaxRetries
}

// NextDelay is the wait before delivery attempt+1. attempt counts from 1.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	base := r.InitialDelay
	if base <= 0 {
		base = defaultRetryDelay
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	delay := float64(base)
	for i := 1; i < attempt; i++ {
		delay *= factor
		if r.MaxDelay > 0 && delay >= float64(r.MaxDelay) {
			break
		}
	}
	if r.Jitter > 0 {
		delay += delay * r.Jitter * rand.Float64()
	}

	d := time.Duration(delay)
	switch {
	case r.MaxDelay > 0 && d > r.MaxDelay:
		return r.MaxDelay
	case d <= 0:
		return defaultRetryDelay
	}
	return d
}
