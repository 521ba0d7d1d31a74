package process

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smazurov/superprocess/internal/logging"
)

// ManagerOptions configures a new Manager.
type ManagerOptions struct {
	// OnRegister is called after a process is added (optional).
	OnRegister func(p *Process)

	// OnUnregister is called after a process is removed and stopped (optional).
	OnUnregister func(name string)

	// Logger for manager operations. If nil, logs are discarded.
	Logger logging.Logger
}

// ProcessSummary is the per-process entry of a Summary.
type ProcessSummary struct {
	State       State   `json:"state"`
	Executions  uint64  `json:"executions"`
	SuccessRate float64 `json:"success_rate"`
	Metrics     Metrics `json:"metrics"`
}

// Summary aggregates every registered process.
type Summary struct {
	TotalProcesses int                       `json:"total_processes"`
	Processes      map[string]ProcessSummary `json:"processes"`
}

// Manager holds a set of named processes. It only uses their public methods.
type Manager struct {
	opts      ManagerOptions
	processes map[string]*Process
	mu        sync.RWMutex
	logger    logging.Logger
}

// NewManager creates an empty manager.
func NewManager(opts *ManagerOptions) *Manager {
	if opts == nil {
		opts = &ManagerOptions{}
	}
	var logger logging.Logger = discardLogger()
	if opts.Logger != nil {
		logger = opts.Logger
	}
	return &Manager{
		opts:      *opts,
		processes: make(map[string]*Process),
		logger:    logger,
	}
}

// Register adds p under its name. Names must be unique.
func (m *Manager) Register(p *Process) error {
	if p == nil {
		return fmt.Errorf("%w: nil process", ErrInvalidConfig)
	}
	name := p.Name()

	m.mu.Lock()
	if _, exists := m.processes[name]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	m.processes[name] = p
	m.mu.Unlock()

	m.logger.Info("Process registered", "process", name)
	if m.opts.OnRegister != nil {
		m.opts.OnRegister(p)
	}
	return nil
}

// Unregister removes the named process and stops it.
func (m *Manager) Unregister(name string) error {
	m.mu.Lock()
	p, exists := m.processes[name]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(m.processes, name)
	m.mu.Unlock()

	p.Stop()
	m.logger.Info("Process unregistered", "process", name)
	if m.opts.OnUnregister != nil {
		m.opts.OnUnregister(name)
	}
	return nil
}

// Get returns the named process.
func (m *Manager) Get(name string) (*Process, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.processes[name]
	return p, ok
}

// Names returns the registered names in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.processes))
	for name := range m.processes {
		names = append(names, name)
	}
	m.mu.RUnlock()

	slices.Sort(names)
	return names
}

// Len returns the number of registered processes.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.processes)
}

// snapshot copies the registry so callers can work without holding the lock.
func (m *Manager) snapshot() map[string]*Process {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]*Process, len(m.processes))
	for name, p := range m.processes {
		out[name] = p
	}
	return out
}

// AllMetrics returns a metrics snapshot per process.
func (m *Manager) AllMetrics() map[string]Metrics {
	procs := m.snapshot()
	out := make(map[string]Metrics, len(procs))
	for name, p := range procs {
		out[name] = p.Metrics()
	}
	return out
}

// Summary returns the state and metrics of every process.
func (m *Manager) Summary() Summary {
	procs := m.snapshot()
	s := Summary{
		TotalProcesses: len(procs),
		Processes:      make(map[string]ProcessSummary, len(procs)),
	}
	for name, p := range procs {
		metrics := p.Metrics()
		s.Processes[name] = ProcessSummary{
			State:       p.State(),
			Executions:  metrics.ExecutionCount,
			SuccessRate: metrics.SuccessRate(),
			Metrics:     metrics,
		}
	}
	return s
}

// StopAll stops every process concurrently and waits for all of them.
// Processes stay registered.
func (m *Manager) StopAll() {
	m.logger.Info("Stopping all processes")

	var g errgroup.Group
	for _, p := range m.snapshot() {
		g.Go(func() error {
			p.Stop()
			// Stop returns early when the runner is mid-invocation.
			if done := p.Done(); done != nil {
				select {
				case <-done:
				case <-time.After(p.cfg.StopTimeout):
					m.logger.Warn("Timeout waiting for runner to stop", "process", p.Name(), "timeout", p.cfg.StopTimeout)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	m.logger.Info("All processes stopped")
}
