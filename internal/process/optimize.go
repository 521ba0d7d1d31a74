package process

import (
	"context"
	"fmt"
	"time"
)

// Params are the tunables an optimization pass may change.
type Params struct {
	Interval    time.Duration `json:"interval"`
	BaseBackoff time.Duration `json:"base_backoff"`
	MaxRetries  int           `json:"max_retries"`
}

// Validate reports whether p can be applied to a process.
func (p Params) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must be >= 0, got %d", ErrInvalidConfig, p.MaxRetries)
	}
	if p.BaseBackoff < 0 {
		return fmt.Errorf("%w: base backoff must be >= 0, got %s", ErrInvalidConfig, p.BaseBackoff)
	}
	if p.Interval <= 0 {
		return fmt.Errorf("%w: interval must be > 0, got %s", ErrInvalidConfig, p.Interval)
	}
	return nil
}

// Optimizer adjusts process tunables after the success rate drops below the
// configured threshold. Returning an error leaves the current params in place.
type Optimizer interface {
	Optimize(ctx context.Context, m Metrics, current Params) (Params, error)
}

// OptimizerFunc adapts a function to the Optimizer interface.
type OptimizerFunc func(ctx context.Context, m Metrics, current Params) (Params, error)

// Optimize calls f.
func (f OptimizerFunc) Optimize(ctx context.Context, m Metrics, current Params) (Params, error) {
	return f(ctx, m, current)
}

// OptimizationReport describes one optimization pass.
type OptimizationReport struct {
	Before  Params  `json:"before"`
	After   Params  `json:"after"`
	Metrics Metrics `json:"metrics"`
	Applied bool    `json:"applied"`
	Err     error   `json:"-"`
}

// optimizationTrigger decides whether a pass should run.
type optimizationTrigger struct {
	enabled       bool
	threshold     float64
	minSampleSize uint64
}

func (t optimizationTrigger) shouldOptimize(m Metrics) bool {
	if !t.enabled {
		return false
	}
	return m.ExecutionCount >= t.minSampleSize && m.SuccessRate() < t.threshold
}

// callOptimizer runs o and converts a panic into a PanicError.
func callOptimizer(ctx context.Context, o Optimizer, m Metrics, current Params) (next Params, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return o.Optimize(ctx, m, current)
}
