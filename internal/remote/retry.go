package remote

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryPolicy drives exponential backoff for batched remote writes. The delay
// before attempt n+1 is BaseDelay<<(n-1) plus a uniform random jitter in
// [0, Jitter).
type RetryPolicy struct {
	BaseDelay   time.Duration
	Jitter      time.Duration
	MaxAttempts int
}

// DefaultRetryPolicy matches the documented backoff: 250ms base, doubling,
// up to 250ms jitter, five attempts total.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:   250 * time.Millisecond,
		Jitter:      250 * time.Millisecond,
		MaxAttempts: 5,
	}
}

// Do runs fn until it succeeds, fails fatally, or MaxAttempts is exhausted.
// Only errors classified by Retryable are retried; fatal errors propagate
// immediately.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	var last error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		last = fn(ctx)
		if last == nil {
			return nil
		}
		if !Retryable(last) {
			return last
		}
		if attempt == p.MaxAttempts {
			break
		}
		delay := p.BaseDelay << (attempt - 1)
		if p.Jitter > 0 {
			delay += time.Duration(rand.Int63n(int64(p.Jitter)))
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", op, p.MaxAttempts, last)
}
