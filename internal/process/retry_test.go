package process

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		name  string
		base  time.Duration
		limit time.Duration
		k     int
		want  time.Duration
	}{
		{"first retry", 100 * time.Millisecond, 0, 1, 100 * time.Millisecond},
		{"second retry", 100 * time.Millisecond, 0, 2, 200 * time.Millisecond},
		{"fifth retry", 100 * time.Millisecond, 0, 5, 1600 * time.Millisecond},
		{"capped", 100 * time.Millisecond, 300 * time.Millisecond, 3, 300 * time.Millisecond},
		{"below cap", 100 * time.Millisecond, time.Second, 3, 400 * time.Millisecond},
		{"zero base", 0, 0, 4, 0},
		{"invalid index", time.Second, 0, 0, 0},
		{"saturates", time.Hour, 0, 80, time.Duration(math.MaxInt64)},
		{"saturates then capped", time.Hour, time.Minute, 80, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := backoffDelay(tt.base, tt.limit, tt.k); got != tt.want {
				t.Errorf("backoffDelay(%s, %s, %d) = %s, want %s", tt.base, tt.limit, tt.k, got, tt.want)
			}
		})
	}
}

// sleepRecorder records requested sleeps without waiting.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func TestRetryControllerExhausts(t *testing.T) {
	rec := &sleepRecorder{}
	rc := retryController{maxRetries: 3, baseBackoff: 10 * time.Millisecond, sleep: rec.sleep}

	calls := 0
	out := rc.run(context.Background(), func(context.Context) (any, error) {
		calls++
		return nil, errBoom
	})

	if calls != 4 {
		t.Errorf("expected 4 calls, got %d", calls)
	}
	if out.attempts != 4 || out.abandoned {
		t.Errorf("unexpected outcome: %+v", out)
	}
	if !errors.Is(out.err, ErrExhausted) || !errors.Is(out.err, errBoom) {
		t.Errorf("expected exhausted error wrapping boom, got %v", out.err)
	}

	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}
	if len(rec.delays) != len(want) {
		t.Fatalf("expected %d sleeps, got %v", len(want), rec.delays)
	}
	for i, d := range want {
		if rec.delays[i] != d {
			t.Errorf("sleep %d: got %s, want %s", i+1, rec.delays[i], d)
		}
	}
}

func TestRetryControllerNoRetries(t *testing.T) {
	rec := &sleepRecorder{}
	rc := retryController{maxRetries: 0, baseBackoff: time.Second, sleep: rec.sleep}

	out := rc.run(context.Background(), func(context.Context) (any, error) { return nil, errBoom })
	if out.attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", out.attempts)
	}
	if len(rec.delays) != 0 {
		t.Errorf("expected no sleeps, got %v", rec.delays)
	}
}

func TestRetryControllerSuccessStopsRetrying(t *testing.T) {
	rec := &sleepRecorder{}
	rc := retryController{maxRetries: 5, baseBackoff: time.Millisecond, sleep: rec.sleep}

	calls := 0
	out := rc.run(context.Background(), func(context.Context) (any, error) {
		calls++
		if calls < 2 {
			return nil, errBoom
		}
		return 42, nil
	})

	if out.err != nil || out.value != 42 {
		t.Errorf("expected value 42, got %+v", out)
	}
	if out.attempts != 2 || len(rec.delays) != 1 {
		t.Errorf("expected 2 attempts and 1 sleep, got %d and %v", out.attempts, rec.delays)
	}
}

func TestRetryControllerOnRetry(t *testing.T) {
	var retries []int
	rc := retryController{
		maxRetries:  2,
		baseBackoff: time.Millisecond,
		sleep:       noSleep,
		onRetry: func(retry int, _ time.Duration, err error) {
			if !errors.Is(err, errBoom) {
				t.Errorf("expected previous failure in callback, got %v", err)
			}
			retries = append(retries, retry)
		},
	}
	rc.run(context.Background(), func(context.Context) (any, error) { return nil, errBoom })

	if len(retries) != 2 || retries[0] != 1 || retries[1] != 2 {
		t.Errorf("expected retries [1 2], got %v", retries)
	}
}

func TestRetryControllerCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rc := retryController{
		maxRetries:  3,
		baseBackoff: time.Hour,
		onRetry:     func(int, time.Duration, error) { cancel() },
	}

	start := time.Now()
	out := rc.run(ctx, func(context.Context) (any, error) { return nil, errBoom })
	if !out.abandoned || !errors.Is(out.err, context.Canceled) {
		t.Errorf("expected abandoned outcome, got %+v", out)
	}
	if out.attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", out.attempts)
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation did not interrupt backoff sleep")
	}
}

func TestRetryControllerRealBackoffTiming(t *testing.T) {
	base := 20 * time.Millisecond
	rc := retryController{maxRetries: 2, baseBackoff: base}

	var stamps []time.Time
	rc.run(context.Background(), func(context.Context) (any, error) {
		stamps = append(stamps, time.Now())
		return nil, errBoom
	})

	if len(stamps) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(stamps))
	}
	for k := 1; k < len(stamps); k++ {
		want := base << (k - 1)
		got := stamps[k].Sub(stamps[k-1])
		if got < want || got > want+200*time.Millisecond {
			t.Errorf("retry %d: gap %s, want about %s", k, got, want)
		}
	}
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected Canceled, got %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("sleepContext did not return promptly")
	}
}
