package process

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/smazurov/superprocess/internal/logging"
)

// Defaults applied by DefaultConfig and New.
const (
	DefaultMaxRetries            = 3
	DefaultBaseBackoff           = 100 * time.Millisecond
	DefaultOptimizationThreshold = 0.8
	DefaultMinSampleSize         = 10
	DefaultInterval              = time.Second
	DefaultStopTimeout           = 10 * time.Second
)

// Func is the unit of work a Process supervises.
type Func interface {
	Run(ctx context.Context) (any, error)
}

// FuncOf adapts a plain function to the Func interface.
type FuncOf func(ctx context.Context) (any, error)

// Run calls f.
func (f FuncOf) Run(ctx context.Context) (any, error) {
	return f(ctx)
}

// Config describes a Process. It is validated by New and not modified
// afterwards; Interval, BaseBackoff and MaxRetries seed the tunable Params.
type Config struct {
	Name string
	Func Func

	AutoOptimize          bool
	OptimizationThreshold float64 // success-rate floor, in [0,1]
	MinSampleSize         uint64  // executions required before optimizing
	Optimizer             Optimizer

	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration // 0 = uncapped

	Interval    time.Duration // continuous-mode tick, 0 = DefaultInterval
	StopTimeout time.Duration // bound on joining the runner, 0 = DefaultStopTimeout
}

// DefaultConfig returns a config with the package defaults.
func DefaultConfig(name string, fn Func) Config {
	return Config{
		Name:                  name,
		Func:                  fn,
		AutoOptimize:          true,
		OptimizationThreshold: DefaultOptimizationThreshold,
		MinSampleSize:         DefaultMinSampleSize,
		MaxRetries:            DefaultMaxRetries,
		BaseBackoff:           DefaultBaseBackoff,
		Interval:              DefaultInterval,
		StopTimeout:           DefaultStopTimeout,
	}
}

func (c *Config) applyDefaults() {
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.StopTimeout == 0 {
		c.StopTimeout = DefaultStopTimeout
	}
}

// Validate checks the construction-time contract.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if c.Func == nil {
		return fmt.Errorf("%w: process function is required", ErrInvalidConfig)
	}
	if math.IsNaN(c.OptimizationThreshold) || c.OptimizationThreshold < 0 || c.OptimizationThreshold > 1 {
		return fmt.Errorf("%w: optimization threshold must be in [0,1], got %v", ErrInvalidConfig, c.OptimizationThreshold)
	}
	if c.MaxBackoff < 0 {
		return fmt.Errorf("%w: max backoff must be >= 0, got %s", ErrInvalidConfig, c.MaxBackoff)
	}
	if c.StopTimeout < 0 {
		return fmt.Errorf("%w: stop timeout must be >= 0, got %s", ErrInvalidConfig, c.StopTimeout)
	}
	return c.params().Validate()
}

func (c Config) params() Params {
	return Params{Interval: c.Interval, BaseBackoff: c.BaseBackoff, MaxRetries: c.MaxRetries}
}

// Hooks are called synchronously from the goroutine that caused the event,
// after the process lock has been released.
type Hooks struct {
	OnStateChange func(name string, old, new State, err error)
	OnExecuted    func(name string, res *Result)
	OnRetry       func(name string, retry int, delay time.Duration, err error)
	OnOptimized   func(name string, report OptimizationReport)
}

// Option configures a Process.
type Option func(*Process)

// WithLogger sets the logger. Processes log nothing by default.
func WithLogger(logger logging.Logger) Option {
	return func(p *Process) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithHooks replaces all hooks at once.
func WithHooks(h Hooks) Option {
	return func(p *Process) { p.hooks = h }
}

// WithStateChangeHook sets the callback for accepted state transitions.
func WithStateChangeHook(fn func(name string, old, new State, err error)) Option {
	return func(p *Process) { p.hooks.OnStateChange = fn }
}

// WithExecutionHook sets the callback for recorded invocations.
func WithExecutionHook(fn func(name string, res *Result)) Option {
	return func(p *Process) { p.hooks.OnExecuted = fn }
}

// WithRetryHook sets the callback invoked before each backoff sleep.
func WithRetryHook(fn func(name string, retry int, delay time.Duration, err error)) Option {
	return func(p *Process) { p.hooks.OnRetry = fn }
}

// WithOptimizationHook sets the callback for finished optimization passes.
func WithOptimizationHook(fn func(name string, report OptimizationReport)) Option {
	return func(p *Process) { p.hooks.OnOptimized = fn }
}

// withSleep overrides the backoff sleep. Tests use it to record delays.
func withSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Process) { p.sleep = fn }
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
