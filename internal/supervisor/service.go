// Package supervisor runs the jobs of a jobs file as supervised processes
// and keeps them in sync with the file.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/smazurov/superprocess/internal/events"
	"github.com/smazurov/superprocess/internal/jobs"
	"github.com/smazurov/superprocess/internal/logging"
	"github.com/smazurov/superprocess/internal/process"
	"github.com/smazurov/superprocess/internal/systemd"
)

// ErrNoSystemd is returned when a unit job is built without a D-Bus connection.
var ErrNoSystemd = errors.New("systemd is not available")

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// Options configures a Service.
type Options struct {
	// EventBus receives process events (optional).
	EventBus EventPublisher

	// Units reads systemd unit state for unit jobs (optional).
	Units systemd.StateReader

	// Optimizer is used for every job with auto-optimization enabled.
	// Defaults to a BackoffTuner with default limits.
	Optimizer process.Optimizer

	// Logger for supervisor operations. Defaults to the "supervisor" module.
	Logger logging.Logger

	// ProcessLogger is handed to every process. Defaults to the "process" module.
	ProcessLogger logging.Logger
}

// SyncResult lists what a Sync changed.
type SyncResult struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Changed []string `json:"changed"`
}

// Empty reports whether the sync changed nothing.
func (r SyncResult) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Changed) == 0
}

// Service builds processes from job specs and owns their Manager.
type Service struct {
	manager   *process.Manager
	bus       EventPublisher
	units     systemd.StateReader
	optimizer process.Optimizer
	logger    logging.Logger
	procLog   logging.Logger

	mu    sync.Mutex
	specs map[string]jobs.JobSpec
}

// New creates a service with an empty manager.
func New(opts Options) *Service {
	s := &Service{
		bus:       opts.EventBus,
		units:     opts.Units,
		optimizer: opts.Optimizer,
		logger:    opts.Logger,
		procLog:   opts.ProcessLogger,
		specs:     make(map[string]jobs.JobSpec),
	}
	if s.logger == nil {
		s.logger = logging.GetLogger("supervisor")
	}
	if s.procLog == nil {
		s.procLog = logging.GetLogger("process")
	}
	if s.optimizer == nil {
		s.optimizer = NewBackoffTuner(TunerConfig{})
	}
	s.manager = process.NewManager(&process.ManagerOptions{
		OnRegister:   s.onRegister,
		OnUnregister: s.onUnregister,
		Logger:       s.logger,
	})
	return s
}

// Manager returns the process manager.
func (s *Service) Manager() *process.Manager {
	return s.manager
}

// Job returns the spec a registered process was built from.
func (s *Service) Job(name string) (jobs.JobSpec, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.specs[name]
	return job, ok
}

// Build creates the process for job without registering it.
func (s *Service) Build(job jobs.JobSpec) (*process.Process, error) {
	fn, err := s.buildFunc(job)
	if err != nil {
		return nil, fmt.Errorf("job %q: %w", job.Name, err)
	}

	cfg := job.ProcessConfig(fn)
	if cfg.AutoOptimize {
		cfg.Optimizer = s.optimizer
	}

	var p *process.Process
	p, err = process.New(cfg,
		process.WithLogger(s.procLog),
		process.WithHooks(s.hooks(func() *process.Process { return p })),
	)
	if err != nil {
		return nil, fmt.Errorf("job %q: %w", job.Name, err)
	}

	p.SetMetadata("kind", string(job.EffectiveKind()))
	for k, v := range job.Metadata {
		p.SetMetadata(k, v)
	}
	return p, nil
}

func (s *Service) buildFunc(job jobs.JobSpec) (process.Func, error) {
	switch job.EffectiveKind() {
	case jobs.KindCommand:
		return process.NewCommandFunc(job.Command, time.Duration(job.Timeout))
	case jobs.KindUnit:
		if s.units == nil {
			return nil, ErrNoSystemd
		}
		return systemd.NewUnitCheck(s.units, job.Unit), nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", jobs.ErrInvalidJob, job.Kind)
	}
}

// Sync makes the registered processes match file. New jobs are registered
// and, if enabled, started; removed jobs are unregistered, which stops them.
// Changed jobs are rebuilt, since a stopped process cannot be restarted.
// A job that fails to build is skipped and reported in the returned error.
func (s *Service) Sync(file *jobs.File) (SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result SyncResult
	var errs []error

	for _, name := range slices.Sorted(maps.Keys(s.specs)) {
		if _, ok := file.Jobs[name]; ok {
			continue
		}
		if err := s.manager.Unregister(name); err != nil && !errors.Is(err, process.ErrNotFound) {
			errs = append(errs, err)
		}
		delete(s.specs, name)
		result.Removed = append(result.Removed, name)
	}

	for _, name := range file.Names() {
		job := file.Jobs[name]
		old, exists := s.specs[name]
		if exists && old.Equal(job) {
			continue
		}

		p, err := s.Build(job)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if exists {
			if err := s.manager.Unregister(name); err != nil && !errors.Is(err, process.ErrNotFound) {
				errs = append(errs, err)
			}
			delete(s.specs, name)
			result.Changed = append(result.Changed, name)
		} else {
			result.Added = append(result.Added, name)
		}

		if err := s.manager.Register(p); err != nil {
			p.Stop()
			errs = append(errs, err)
			continue
		}
		s.specs[name] = job

		if job.IsEnabled() {
			if err := p.StartContinuous(0); err != nil {
				errs = append(errs, fmt.Errorf("job %q: %w", name, err))
			}
		}
	}

	if !result.Empty() {
		s.logger.Info("Jobs synced",
			"added", len(result.Added), "removed", len(result.Removed), "changed", len(result.Changed))
		s.publish(events.JobsReloadedEvent{
			Added:     nonNil(result.Added),
			Removed:   nonNil(result.Removed),
			Changed:   nonNil(result.Changed),
			Timestamp: now(),
		})
	}
	return result, errors.Join(errs...)
}

// Reload is a jobs file watcher handler.
func (s *Service) Reload(file *jobs.File) {
	if _, err := s.Sync(file); err != nil {
		s.logger.Warn("Jobs reload incomplete", "error", err)
	}
}

// Execute runs one logical invocation of the named process.
func (s *Service) Execute(ctx context.Context, name string) (*process.Result, error) {
	p, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return p.Execute(ctx)
}

// Pause pauses the named process.
func (s *Service) Pause(name string) error {
	p, err := s.lookup(name)
	if err != nil {
		return err
	}
	return p.Pause()
}

// Resume resumes the named process.
func (s *Service) Resume(name string) error {
	p, err := s.lookup(name)
	if err != nil {
		return err
	}
	return p.Resume()
}

// Stop stops the named process. It stays registered in the stopped state
// until the next change to its job.
func (s *Service) Stop(name string) error {
	p, err := s.lookup(name)
	if err != nil {
		return err
	}
	p.Stop()
	return nil
}

// ResetMetrics clears the metrics of the named process.
func (s *Service) ResetMetrics(name string) error {
	p, err := s.lookup(name)
	if err != nil {
		return err
	}
	p.ResetMetrics()
	s.updateSnapshot(p)
	return nil
}

// Shutdown stops every process. It returns ctx.Err() if ctx ends first;
// the stop keeps going in the background and logs when it completes.
func (s *Service) Shutdown(ctx context.Context) error {
	start := time.Now()
	done := make(chan struct{})
	go func() {
		s.manager.StopAll()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.logger.Warn("Shutdown deadline reached, processes still stopping", "error", ctx.Err())
		go func() {
			<-done
			s.logger.Info("Processes stopped after shutdown deadline", "took", time.Since(start))
		}()
		return ctx.Err()
	}
}

func (s *Service) lookup(name string) (*process.Process, error) {
	p, ok := s.manager.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", process.ErrNotFound, name)
	}
	return p, nil
}

func (s *Service) publish(ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}

func now() string {
	return time.Now().Format(time.RFC3339)
}

func nonNil(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}
