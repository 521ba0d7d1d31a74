package supervisor

import (
	"time"

	"github.com/smazurov/superprocess/internal/events"
	"github.com/smazurov/superprocess/internal/metrics"
	"github.com/smazurov/superprocess/internal/process"
)

// hooks feeds process callbacks into Prometheus and the event bus. self
// resolves the process once New has returned; hooks never fire before that.
func (s *Service) hooks(self func() *process.Process) process.Hooks {
	return process.Hooks{
		OnStateChange: func(name string, old, next process.State, err error) {
			metrics.SetState(name, string(next))
			s.publish(events.ProcessStateChangedEvent{
				Process:   name,
				From:      string(old),
				To:        string(next),
				Error:     errString(err),
				Timestamp: now(),
			})
		},
		OnExecuted: func(name string, res *process.Result) {
			metrics.ObserveExecution(name, res.Err == nil, res.Duration)
			s.updateSnapshot(self())
			s.publish(events.ProcessExecutedEvent{
				Process:    name,
				ID:         res.ID.String(),
				Success:    res.Err == nil,
				Attempts:   res.Attempts,
				DurationMs: millis(res.Duration),
				State:      string(res.State),
				Optimized:  res.Optimized,
				Error:      errString(res.Err),
				Timestamp:  now(),
			})
		},
		OnRetry: func(name string, retry int, delay time.Duration, err error) {
			metrics.ObserveRetry(name)
			s.publish(events.ProcessRetryEvent{
				Process:   name,
				Retry:     retry,
				DelayMs:   millis(delay),
				Error:     errString(err),
				Timestamp: now(),
			})
		},
		OnOptimized: func(name string, report process.OptimizationReport) {
			p := self()
			if report.Applied && report.After != report.Before {
				p.SetMetadata("tuned_interval", report.After.Interval.String())
				p.SetMetadata("tuned_base_backoff", report.After.BaseBackoff.String())
				p.SetMetadata("tuned_at", now())
			}
			level := p.Metrics().OptimizationLevel
			metrics.ObserveOptimization(name, report.Applied, level)
			s.publish(events.ProcessOptimizedEvent{
				Process:           name,
				Applied:           report.Applied,
				SuccessRate:       report.Metrics.SuccessRate(),
				OptimizationLevel: level,
				IntervalMs:        millis(report.After.Interval),
				BaseBackoffMs:     millis(report.After.BaseBackoff),
				MaxRetries:        report.After.MaxRetries,
				Error:             errString(report.Err),
				Timestamp:         now(),
			})
		},
	}
}

func (s *Service) onRegister(p *process.Process) {
	metrics.SetState(p.Name(), string(p.State()))
	s.updateSnapshot(p)

	kind, _ := p.Metrics().Metadata["kind"].(string)
	s.publish(events.ProcessRegisteredEvent{
		Process:   p.Name(),
		Kind:      kind,
		Timestamp: now(),
	})
}

func (s *Service) onUnregister(name string) {
	metrics.DeleteProcessMetrics(name)
	s.publish(events.ProcessUnregisteredEvent{
		Process:   name,
		Timestamp: now(),
	})
}

func (s *Service) updateSnapshot(p *process.Process) {
	m := p.Metrics()
	metrics.SetSnapshot(p.Name(), m.ExecutionCount, m.FailureCount, m.SuccessRate(), m.AverageDuration())
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
