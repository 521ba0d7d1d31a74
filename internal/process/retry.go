package process

import (
	"context"
	"math"
	"time"
)

// attemptFunc is one attempt of a logical invocation.
type attemptFunc func(ctx context.Context) (any, error)

// retryController runs an attempt function with a bounded retry budget and
// exponential backoff between attempts. It never records metrics.
type retryController struct {
	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	onRetry     func(retry int, delay time.Duration, err error)
}

// retryOutcome is what a logical invocation resolved to.
type retryOutcome struct {
	value    any
	attempts int
	elapsed  time.Duration // time spent inside attempts, backoff excluded
	err      error
	// abandoned is set when the context ended before the invocation resolved.
	abandoned bool
}

// backoffDelay returns the delay before retry k (1-indexed): base * 2^(k-1),
// saturating on overflow and capped by limit when limit > 0.
func backoffDelay(base, limit time.Duration, k int) time.Duration {
	if base <= 0 || k < 1 {
		return 0
	}
	shift := k - 1
	var d time.Duration
	if shift >= 62 || base > time.Duration(math.MaxInt64>>shift) {
		d = time.Duration(math.MaxInt64)
	} else {
		d = base << shift
	}
	if limit > 0 && d > limit {
		d = limit
	}
	return d
}

// run makes up to maxRetries+1 attempts. There is no sleep before the first.
func (r retryController) run(ctx context.Context, fn attemptFunc) retryOutcome {
	sleep := r.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var out retryOutcome
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(r.baseBackoff, r.maxBackoff, attempt)
			if r.onRetry != nil {
				r.onRetry(attempt, delay, lastErr)
			}
			if err := sleep(ctx, delay); err != nil {
				out.err = err
				out.abandoned = true
				return out
			}
		}
		if err := ctx.Err(); err != nil {
			out.err = err
			out.abandoned = true
			return out
		}

		start := time.Now()
		value, err := fn(ctx)
		out.elapsed += time.Since(start)
		out.attempts++

		if err == nil {
			out.value = value
			return out
		}
		lastErr = err

		// A failure caused by cancellation is not worth retrying or recording.
		if ctx.Err() != nil {
			out.err = err
			out.abandoned = true
			return out
		}
	}

	out.err = &ExhaustedError{Attempts: out.attempts, Err: lastErr}
	return out
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
