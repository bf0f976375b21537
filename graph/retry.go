package graph

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryCapDelay is the hard ceiling on backoff delay between attempts,
// regardless of how many attempts have already happened.
const retryCapDelay = 10 * time.Second

// defaultBaseDelay is used when the executor is given no positive base
// delay.
const defaultBaseDelay = 1 * time.Second

// withRetry runs fn up to maxRetries+1 times (attempts 1..maxRetries+1),
// sleeping base*2^attempt between attempts, capped at 10s, before giving
// up. It builds on backoff.ExponentialBackOff rather than a hand-rolled
// sleep loop — exponential retry is exactly what that library exists
// for, and letting it own jitter-free doubling plus the retry-count
// bookkeeping keeps this function to orchestration only.
//
// onAttemptFailed, if non-nil, is called after each failed attempt
// (including the last) with the attempt number (1-indexed) and the
// error, so the executor can emit agent_retrying events between
// attempts.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(ctx context.Context) error, onAttemptFailed func(attempt int, err error)) error {
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval:     baseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         retryCapDelay,
		MaxElapsedTime:      0,
		Clock:               backoff.SystemClock,
	}
	b.Reset()

	attempt := 0
	operation := func() error {
		attempt++
		err := fn(ctx)
		if err != nil && onAttemptFailed != nil {
			onAttemptFailed(attempt, err)
		}
		return err
	}

	retryable := backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx)
	return backoff.Retry(operation, retryable)
}
