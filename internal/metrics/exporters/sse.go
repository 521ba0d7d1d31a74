package exporters

import (
	"context"
	"time"

	"github.com/smazurov/superprocess/internal/events"
	"github.com/smazurov/superprocess/internal/metrics"
)

// DefaultSSEInterval is how often metric snapshots are checked for changes.
const DefaultSSEInterval = 5 * time.Second

// EventPublisher is the part of the event bus the exporter needs.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter polls the process metric cache and publishes a
// ProcessMetricsEvent for every process whose values moved since the last
// tick. The first tick after Start publishes every process.
type SSEExporter struct {
	eventBus EventPublisher
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSSEExporter creates an exporter. A non-positive interval uses
// DefaultSSEInterval.
func NewSSEExporter(eventBus EventPublisher, interval time.Duration) *SSEExporter {
	if interval <= 0 {
		interval = DefaultSSEInterval
	}
	return &SSEExporter{eventBus: eventBus, interval: interval}
}

// Start runs the export loop until ctx is done or Stop is called.
func (s *SSEExporter) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
}

// Stop ends the export loop and waits for it. Safe to call more than once.
func (s *SSEExporter) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *SSEExporter) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	seen := make(map[string]metrics.ProcessMetrics)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.publishChanged(seen)
		}
	}
}

func (s *SSEExporter) publishChanged(seen map[string]metrics.ProcessMetrics) {
	current := metrics.GetAllProcessMetrics()
	for name := range seen {
		if _, ok := current[name]; !ok {
			delete(seen, name)
		}
	}
	for name, m := range current {
		if prev, ok := seen[name]; ok && prev == *m {
			continue
		}
		seen[name] = *m
		s.eventBus.Publish(events.ProcessMetricsEvent{
			Process:       name,
			State:         m.State,
			Executions:    m.Executions,
			Failures:      m.Failures,
			SuccessRate:   m.SuccessRate,
			AvgDurationMs: m.AvgDurationMs,
		})
	}
}

// GetEventTypesForEndpoint returns the SSE event types this exporter feeds
// into the named endpoint.
func GetEventTypesForEndpoint(endpoint string) map[string]any {
	if endpoint != "events" {
		return map[string]any{}
	}
	return map[string]any{"process-metrics": events.ProcessMetricsEvent{}}
}
