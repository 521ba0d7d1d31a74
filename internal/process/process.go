package process

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/superprocess/internal/logging"
)

// Result describes one recorded logical invocation.
type Result struct {
	ID        uuid.UUID     `json:"id"`
	Value     any           `json:"value,omitempty"`
	Err       error         `json:"-"`
	Attempts  int           `json:"attempts"`
	Duration  time.Duration `json:"duration"`
	State     State         `json:"state"`
	Optimized bool          `json:"optimized"`
}

// Info is a point-in-time view of a process.
type Info struct {
	Name         string  `json:"name"`
	State        State   `json:"state"`
	Continuous   bool    `json:"continuous"`
	PausePending bool    `json:"pause_pending"`
	Params       Params  `json:"params"`
	Metrics      Metrics `json:"metrics"`
}

// Process supervises a single Func: it retries failures with exponential
// backoff, keeps execution metrics, triggers optimization passes when the
// success rate drops, and can run the function continuously.
type Process struct {
	cfg     Config
	logger  logging.Logger
	hooks   Hooks
	sleep   func(ctx context.Context, d time.Duration) error
	metrics *metricsCollector
	trigger optimizationTrigger

	// execMu serializes logical invocations.
	execMu sync.Mutex

	mu           sync.Mutex
	sm           stateMachine
	params       Params
	continuous   bool
	inFlight     bool
	pausePending bool

	// runnerBusy is set while the continuous runner is inside Execute, so
	// a Stop issued from a hook or the function on that goroutine does not
	// wait for itself.
	runnerBusy atomic.Bool

	wake     chan struct{}
	done     chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// New validates cfg and returns an idle Process.
func New(cfg Config, opts ...Option) (*Process, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Process{
		cfg:     cfg,
		logger:  discardLogger(),
		sleep:   sleepContext,
		metrics: newMetricsCollector(),
		trigger: optimizationTrigger{
			enabled:       cfg.AutoOptimize,
			threshold:     cfg.OptimizationThreshold,
			minSampleSize: cfg.MinSampleSize,
		},
		sm:     newStateMachine(),
		params: cfg.params(),
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name returns the configured process name.
func (p *Process) Name() string {
	return p.cfg.Name
}

// State returns the current state.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sm.current
}

// Params returns the current tunables.
func (p *Process) Params() Params {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.params
}

// Metrics returns a consistent snapshot of the execution metrics.
func (p *Process) Metrics() Metrics {
	return p.metrics.snapshot()
}

// ResetMetrics clears all counters and metadata.
func (p *Process) ResetMetrics() {
	p.metrics.reset()
	p.logger.Info("Metrics reset", "process", p.cfg.Name)
}

// SetMetadata attaches a value to the metrics metadata.
func (p *Process) SetMetadata(key string, value any) {
	p.metrics.setMetadata(key, value)
}

// Info returns the state, tunables and metrics of the process.
func (p *Process) Info() Info {
	p.mu.Lock()
	info := Info{
		Name:         p.cfg.Name,
		State:        p.sm.current,
		Continuous:   p.continuous,
		PausePending: p.pausePending,
		Params:       p.params,
	}
	p.mu.Unlock()
	info.Metrics = p.metrics.snapshot()
	return info
}

func (p *Process) String() string {
	m := p.metrics.snapshot()
	return fmt.Sprintf("Process(name=%q, state=%s, executions=%d, success_rate=%d/%d)",
		p.cfg.Name, p.State(), m.ExecutionCount, m.SuccessCount, m.ExecutionCount)
}

// Execute runs one logical invocation: the function is attempted up to
// MaxRetries+1 times and the final outcome is recorded once. On exhaustion
// both the Result and an *ExhaustedError are returned. Execute returns
// ErrPaused while paused and ErrStopped after Stop. An invocation abandoned
// through ctx or Stop is not recorded.
func (p *Process) Execute(ctx context.Context) (*Result, error) {
	p.execMu.Lock()
	defer p.execMu.Unlock()

	p.mu.Lock()
	switch p.sm.current {
	case StateStopped:
		p.mu.Unlock()
		return nil, ErrStopped
	case StatePaused:
		p.mu.Unlock()
		return nil, ErrPaused
	}
	change, err := p.sm.transition(StateRunning)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	params := p.params
	p.inFlight = true
	p.mu.Unlock()
	p.notify(change)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopWatch := context.AfterFunc(p.ctx, cancel)
	defer stopWatch()

	rc := retryController{
		maxRetries:  params.MaxRetries,
		baseBackoff: params.BaseBackoff,
		maxBackoff:  p.cfg.MaxBackoff,
		sleep:       p.sleep,
		onRetry:     p.onRetry,
	}
	out := rc.run(runCtx, p.attempt)

	if out.abandoned {
		p.finish(nil)
		if p.ctx.Err() != nil {
			return nil, ErrStopped
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, out.err
	}

	p.metrics.record(out.err == nil, out.elapsed, out.err)
	if out.err != nil {
		p.logger.Warn("Execution failed", "process", p.cfg.Name, "attempts", out.attempts, "error", out.err)
	} else {
		p.logger.Debug("Execution succeeded", "process", p.cfg.Name, "attempts", out.attempts, "duration", out.elapsed)
	}

	optimized := false
	if p.trigger.shouldOptimize(p.metrics.snapshot()) {
		optimized = p.optimize(runCtx)
	}

	res := &Result{
		ID:        uuid.New(),
		Value:     out.value,
		Err:       out.err,
		Attempts:  out.attempts,
		Duration:  out.elapsed,
		Optimized: optimized,
	}
	res.State = p.finish(out.err)

	if p.hooks.OnExecuted != nil {
		p.hooks.OnExecuted(p.cfg.Name, res)
	}
	return res, out.err
}

// attempt calls the process function, converting a panic into an error.
func (p *Process) attempt(ctx context.Context) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Process function panicked", "process", p.cfg.Name, "panic", r)
			err = &PanicError{Value: r}
		}
	}()
	return p.cfg.Func.Run(ctx)
}

func (p *Process) onRetry(retry int, delay time.Duration, err error) {
	p.logger.Info("Retrying", "process", p.cfg.Name, "retry", retry, "delay", delay, "error", err)
	if p.hooks.OnRetry != nil {
		p.hooks.OnRetry(p.cfg.Name, retry, delay, err)
	}
}

// finish settles the state after an invocation and returns it. A pending
// pause wins over the outcome; a stopped process stays stopped.
func (p *Process) finish(err error) State {
	p.mu.Lock()
	p.inFlight = false

	var change *stateChange
	switch {
	case p.sm.current == StateStopped:
	case p.pausePending:
		p.pausePending = false
		change, _ = p.sm.transition(StatePaused)
	case err != nil:
		change, _ = p.sm.transition(StateError)
		if change != nil {
			change.err = err
		}
	case p.continuous:
		change, _ = p.sm.transition(StateRunning)
	default:
		change, _ = p.sm.transition(StateIdle)
	}
	state := p.sm.current
	p.mu.Unlock()

	p.notify(change)
	return state
}

// optimize runs one optimization pass. It reports whether the pass ran;
// a failed optimizer still counts as a pass.
func (p *Process) optimize(ctx context.Context) bool {
	p.mu.Lock()
	change, err := p.sm.transition(StateOptimizing)
	if err != nil {
		p.mu.Unlock()
		return false
	}
	before := p.params
	p.mu.Unlock()
	p.notify(change)

	snapshot := p.metrics.snapshot()
	report := OptimizationReport{Before: before, After: before, Metrics: snapshot}

	p.logger.Info("Optimizing", "process", p.cfg.Name,
		"success_rate", snapshot.SuccessRate(), "executions", snapshot.ExecutionCount)

	if p.cfg.Optimizer != nil {
		next, err := callOptimizer(ctx, p.cfg.Optimizer, snapshot, before)
		if err == nil {
			err = next.Validate()
		}
		if err != nil {
			report.Err = err
			p.logger.Warn("Optimization failed", "process", p.cfg.Name, "error", err)
		} else {
			p.mu.Lock()
			p.params = next
			p.mu.Unlock()
			report.After = next
			report.Applied = true
		}
	} else {
		report.Applied = true
	}

	p.metrics.recordOptimization(report.Applied)
	if p.hooks.OnOptimized != nil {
		p.hooks.OnOptimized(p.cfg.Name, report)
	}
	return true
}

// Pause suspends continuous mode. If an invocation is in flight the pause
// takes effect when it finishes; the attempt itself is never aborted.
func (p *Process) Pause() error {
	p.mu.Lock()
	cur := p.sm.current
	if cur == StateStopped {
		p.mu.Unlock()
		return &TransitionError{From: cur, To: StatePaused, Cause: ErrStopped}
	}
	if !p.continuous {
		p.mu.Unlock()
		return &TransitionError{From: cur, To: StatePaused, Cause: ErrNotContinuous}
	}
	if p.inFlight {
		p.pausePending = true
		p.mu.Unlock()
		p.logger.Debug("Pause deferred until invocation finishes", "process", p.cfg.Name)
		return nil
	}
	change, err := p.sm.transition(StatePaused)
	p.mu.Unlock()
	if err != nil {
		return err
	}
	p.notify(change)
	p.logger.Info("Paused", "process", p.cfg.Name)
	return nil
}

// Resume continues a paused process, or cancels a pause that has not taken
// effect yet.
func (p *Process) Resume() error {
	p.mu.Lock()
	if p.pausePending {
		p.pausePending = false
		p.mu.Unlock()
		return nil
	}
	cur := p.sm.current
	if cur != StatePaused {
		p.mu.Unlock()
		return &TransitionError{From: cur, To: StateRunning}
	}
	change, err := p.sm.transition(StateRunning)
	p.mu.Unlock()
	if err != nil {
		return err
	}
	p.notify(change)
	p.signalWake()
	p.logger.Info("Resumed", "process", p.cfg.Name)
	return nil
}

// Stop moves the process to the terminal stopped state, cancels any pending
// backoff or interval wait, and joins the continuous runner if one was
// started. While the runner is mid-invocation Stop only cancels; the
// runner then exits once the invocation returns and Done reports it.
// It is safe to call more than once.
func (p *Process) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		change := p.sm.stop()
		p.pausePending = false
		done := p.done
		p.mu.Unlock()

		p.cancel()
		p.signalWake()
		p.notify(change)
		p.logger.Info("Stopping process", "process", p.cfg.Name)

		if done == nil || p.runnerBusy.Load() {
			return
		}
		select {
		case <-done:
		case <-time.After(p.cfg.StopTimeout):
			p.logger.Warn("Timeout waiting for runner to stop", "process", p.cfg.Name, "timeout", p.cfg.StopTimeout)
		}
	})
}

// Done is closed once the continuous runner has exited. It is nil if
// continuous mode was never started.
func (p *Process) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *Process) signalWake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Process) notify(change *stateChange) {
	if change == nil {
		return
	}
	p.logger.Debug("State changed", "process", p.cfg.Name, "from", change.from, "to", change.to)
	if p.hooks.OnStateChange != nil {
		p.hooks.OnStateChange(p.cfg.Name, change.from, change.to, change.err)
	}
}
