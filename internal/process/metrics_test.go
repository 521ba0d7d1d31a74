package process

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestMetricsCollectorRecord(t *testing.T) {
	c := newMetricsCollector()

	if rate := c.successRate(); rate != NoDataSuccessRate {
		t.Errorf("expected no-data sentinel %v, got %v", NoDataSuccessRate, rate)
	}

	c.record(true, 10*time.Millisecond, nil)
	c.record(false, 30*time.Millisecond, errBoom)
	c.record(true, 20*time.Millisecond, nil)

	m := c.snapshot()
	if m.ExecutionCount != 3 || m.SuccessCount != 2 || m.FailureCount != 1 {
		t.Errorf("unexpected counts: %+v", m)
	}
	if m.TotalDuration != 60*time.Millisecond {
		t.Errorf("expected total 60ms, got %s", m.TotalDuration)
	}
	if m.LastDuration != 20*time.Millisecond {
		t.Errorf("expected last 20ms, got %s", m.LastDuration)
	}
	if m.AverageDuration() != 20*time.Millisecond {
		t.Errorf("expected average 20ms, got %s", m.AverageDuration())
	}
	if m.LastError != errBoom.Error() {
		t.Errorf("expected last error %q, got %q", errBoom.Error(), m.LastError)
	}
	if got, want := m.SuccessRate(), 2.0/3.0; got != want {
		t.Errorf("expected success rate %v, got %v", want, got)
	}
}

func TestMetricsZeroValue(t *testing.T) {
	var m Metrics
	if m.SuccessRate() != NoDataSuccessRate {
		t.Errorf("expected sentinel, got %v", m.SuccessRate())
	}
	if m.AverageDuration() != 0 {
		t.Errorf("expected zero average, got %s", m.AverageDuration())
	}
}

func TestMetricsSnapshotIsolation(t *testing.T) {
	c := newMetricsCollector()
	c.setMetadata("k", "v1")

	snap := c.snapshot()
	snap.Metadata["k"] = "mutated"
	c.setMetadata("k", "v2")

	if got := c.snapshot().Metadata["k"]; got != "v2" {
		t.Errorf("expected collector value v2, got %v", got)
	}
	if snap.Metadata["k"] != "mutated" {
		t.Error("expected snapshot to keep its own copy")
	}
}

func TestMetricsOptimizationLevel(t *testing.T) {
	c := newMetricsCollector()
	c.recordOptimization(true)
	c.recordOptimization(false)
	c.recordOptimization(true)

	m := c.snapshot()
	if m.OptimizationCount != 3 {
		t.Errorf("expected 3 passes, got %d", m.OptimizationCount)
	}
	if diff := m.OptimizationLevel - 1.2; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected level 1.2, got %v", m.OptimizationLevel)
	}

	c.reset()
	if m := c.snapshot(); m.OptimizationCount != 0 || m.OptimizationLevel != 1.0 {
		t.Errorf("expected reset metrics, got %+v", m)
	}
}

func TestMetricsConcurrentSnapshots(t *testing.T) {
	c := newMetricsCollector()
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 500 {
				c.record((i+j)%3 != 0, time.Microsecond, errBoom)
			}
		}()
	}

	readErrs := make(chan error, 1)
	go func() {
		for {
			select {
			case <-stop:
				close(readErrs)
				return
			default:
			}
			m := c.snapshot()
			if m.SuccessCount+m.FailureCount != m.ExecutionCount || m.SuccessCount > m.ExecutionCount {
				readErrs <- errors.New("inconsistent snapshot")
				close(readErrs)
				return
			}
		}
	}()

	wg.Wait()
	close(stop)
	if err := <-readErrs; err != nil {
		t.Fatal(err)
	}
	if m := c.snapshot(); m.ExecutionCount != 2000 {
		t.Errorf("expected 2000 executions, got %d", m.ExecutionCount)
	}
}

// Counts stay consistent and monotonic for any sequence of outcomes.
func TestExecuteCountInvariantProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		outcomes := rapid.SliceOfN(rapid.Bool(), 1, 30).Draw(t, "outcomes")
		maxRetries := rapid.IntRange(0, 3).Draw(t, "maxRetries")

		var call int
		var failNext bool
		fn := FuncOf(func(context.Context) (any, error) {
			call++
			if failNext {
				return nil, errBoom
			}
			return call, nil
		})

		cfg := DefaultConfig("prop", fn)
		cfg.MaxRetries = maxRetries
		cfg.AutoOptimize = false
		p, err := New(cfg, withSleep(noSleep))
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}
		defer p.Stop()

		var prev Metrics
		for i, ok := range outcomes {
			failNext = !ok
			before := call
			_, _ = p.Execute(context.Background())

			m := p.Metrics()
			if m.SuccessCount+m.FailureCount != m.ExecutionCount {
				t.Fatalf("count invariant broken after %d calls: %+v", i+1, m)
			}
			if m.ExecutionCount != prev.ExecutionCount+1 {
				t.Fatalf("expected one logical execution per call, got %d -> %d", prev.ExecutionCount, m.ExecutionCount)
			}
			if m.SuccessCount < prev.SuccessCount || m.FailureCount < prev.FailureCount {
				t.Fatalf("counts decreased: %+v -> %+v", prev, m)
			}
			wantCalls := 1
			if !ok {
				wantCalls = maxRetries + 1
			}
			if call-before != wantCalls {
				t.Fatalf("expected %d function calls, got %d", wantCalls, call-before)
			}
			prev = m
		}
	})
}

func TestConcurrentExecuteAndSnapshot(t *testing.T) {
	fn := &countingFunc{failing: func(n int64) bool { return n%4 == 0 }}
	p := newTestProcess(t, fn, func(c *Config) {
		c.MaxRetries = 0
		c.AutoOptimize = false
	})

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				_, _ = p.Execute(context.Background())
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		m := p.Metrics()
		if m.SuccessCount+m.FailureCount != m.ExecutionCount {
			t.Fatalf("inconsistent snapshot: %+v", m)
		}
		_ = p.State()
		select {
		case <-done:
			if got := p.Metrics().ExecutionCount; got != 200 {
				t.Errorf("expected 200 executions, got %d", got)
			}
			return
		default:
		}
	}
}
