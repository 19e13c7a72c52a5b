package openrouter

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// linearBackOff implements backoff.BackOff with a delay of attempt*step:
// step after the first failure, 2*step after the second, and so on.
type linearBackOff struct {
	step    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.step
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}

// retryLinear runs op up to attempts times total, sleeping attempt*step
// between tries. The returned error is the one from the last attempt;
// context cancellation stops the loop early.
func retryLinear(ctx context.Context, attempts int, step time.Duration, op backoff.Operation) error {
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{step: step}, uint64(attempts-1)),
		ctx,
	)
	return backoff.Retry(op, b)
}
