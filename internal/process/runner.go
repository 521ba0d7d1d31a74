package process

import (
	"errors"
	"fmt"
	"time"
)

// StartContinuous starts executing the function every interval in a
// background goroutine until Stop is called. A positive interval replaces
// the current one. Calling it while already continuous is a no-op.
func (p *Process) StartContinuous(interval time.Duration) error {
	p.mu.Lock()
	if p.sm.current == StateStopped {
		p.mu.Unlock()
		return ErrStopped
	}
	if p.continuous {
		p.mu.Unlock()
		return nil
	}
	if interval < 0 {
		p.mu.Unlock()
		return fmt.Errorf("%w: interval must be >= 0, got %s", ErrInvalidConfig, interval)
	}
	if interval > 0 {
		p.params.Interval = interval
	}
	change, err := p.sm.transition(StateRunning)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	p.continuous = true
	done := make(chan struct{})
	p.done = done
	interval = p.params.Interval
	p.mu.Unlock()

	p.notify(change)
	p.logger.Info("Starting continuous execution", "process", p.cfg.Name, "interval", interval)

	go p.run(done)
	return nil
}

// run is the continuous loop. It owns no state beyond what Process guards.
func (p *Process) run(done chan struct{}) {
	defer close(done)
	defer p.logger.Info("Continuous execution stopped", "process", p.cfg.Name)

	for {
		if !p.waitWhilePaused() {
			return
		}

		p.runnerBusy.Store(true)
		_, err := p.Execute(p.ctx)
		p.runnerBusy.Store(false)
		switch {
		case errors.Is(err, ErrStopped):
			return
		case errors.Is(err, ErrPaused):
			continue
		}

		if err := sleepContext(p.ctx, p.Params().Interval); err != nil {
			return
		}
	}
}

// waitWhilePaused blocks until the process is neither paused nor stopped.
// It returns false once the process is stopped.
func (p *Process) waitWhilePaused() bool {
	for {
		switch p.State() {
		case StateStopped:
			return false
		case StatePaused:
		default:
			return true
		}
		select {
		case <-p.ctx.Done():
			return false
		case <-p.wake:
		}
	}
}
