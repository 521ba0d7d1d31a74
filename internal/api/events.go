package api

import (
	"context"
	"maps"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/superprocess/internal/events"
	"github.com/smazurov/superprocess/internal/metrics/exporters"
	"github.com/smazurov/superprocess/internal/process"
)

// processEventTypes maps SSE event names to payload types for /api/events.
func processEventTypes() map[string]any {
	eventTypes := map[string]any{
		"process-registered":    events.ProcessRegisteredEvent{},
		"process-unregistered":  events.ProcessUnregisteredEvent{},
		"process-state-changed": events.ProcessStateChangedEvent{},
		"process-executed":      events.ProcessExecutedEvent{},
		"process-retry":         events.ProcessRetryEvent{},
		"process-optimized":     events.ProcessOptimizedEvent{},
		"jobs-reloaded":         events.JobsReloadedEvent{},
	}
	maps.Copy(eventTypes, exporters.GetEventTypesForEndpoint("events"))
	return eventTypes
}

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time process lifecycle events. A metrics snapshot of every process is sent on connect.",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, processEventTypes(), func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)
		unsubscribe := events.SubscribeProcessEvents(s.eventBus, eventCh)
		defer unsubscribe()

		manager := s.processes.Manager()
		for _, name := range manager.Names() {
			p, ok := manager.Get(name)
			if !ok {
				continue
			}
			if err := send.Data(snapshotEvent(p)); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}

func snapshotEvent(p *process.Process) events.ProcessMetricsEvent {
	m := p.Metrics()
	return events.ProcessMetricsEvent{
		Process:       p.Name(),
		State:         string(p.State()),
		Executions:    m.ExecutionCount,
		Failures:      m.FailureCount,
		SuccessRate:   m.SuccessRate(),
		AvgDurationMs: millis(m.AverageDuration()),
	}
}
