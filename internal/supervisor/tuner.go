package supervisor

import (
	"context"
	"time"

	"github.com/smazurov/superprocess/internal/process"
)

// Defaults for TunerConfig.
const (
	DefaultBackoffFactor  = 2.0
	DefaultIntervalFactor = 1.5
	DefaultMaxBaseBackoff = 30 * time.Second
	DefaultMaxInterval    = 5 * time.Minute
)

// TunerConfig bounds how far a BackoffTuner stretches a process.
type TunerConfig struct {
	BackoffFactor  float64
	IntervalFactor float64
	MaxBaseBackoff time.Duration
	MaxInterval    time.Duration
}

// BackoffTuner is the default optimizer. Each pass backs a struggling
// process off: the base backoff grows by BackoffFactor and the loop interval
// by IntervalFactor, both capped. The retry limit is left alone.
type BackoffTuner struct {
	cfg TunerConfig
}

// NewBackoffTuner fills zero fields of cfg with the defaults.
func NewBackoffTuner(cfg TunerConfig) *BackoffTuner {
	if cfg.BackoffFactor <= 1 {
		cfg.BackoffFactor = DefaultBackoffFactor
	}
	if cfg.IntervalFactor <= 1 {
		cfg.IntervalFactor = DefaultIntervalFactor
	}
	if cfg.MaxBaseBackoff <= 0 {
		cfg.MaxBaseBackoff = DefaultMaxBaseBackoff
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = DefaultMaxInterval
	}
	return &BackoffTuner{cfg: cfg}
}

// Optimize implements process.Optimizer.
func (t *BackoffTuner) Optimize(_ context.Context, _ process.Metrics, current process.Params) (process.Params, error) {
	next := current

	backoff := max(current.BaseBackoff, process.DefaultBaseBackoff)
	next.BaseBackoff = scale(backoff, t.cfg.BackoffFactor, max(t.cfg.MaxBaseBackoff, current.BaseBackoff))
	next.Interval = scale(current.Interval, t.cfg.IntervalFactor, max(t.cfg.MaxInterval, current.Interval))

	return next, nil
}

// scale multiplies d by factor without exceeding limit.
func scale(d time.Duration, factor float64, limit time.Duration) time.Duration {
	scaled := float64(d) * factor
	if scaled >= float64(limit) {
		return limit
	}
	return time.Duration(scaled)
}
