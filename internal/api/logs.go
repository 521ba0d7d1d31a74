package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/superprocess/internal/api/models"
	"github.com/smazurov/superprocess/internal/events"
	"github.com/smazurov/superprocess/internal/logging"
)

type logStreamInput struct {
	Module string `query:"module" example:"supervisor" doc:"Only stream entries from this module"`
	Level  string `query:"level" enum:"debug,info,warn,error" doc:"Minimum level to stream"`
	Tail   int    `query:"tail" minimum:"0" example:"100" doc:"Replay at most this many buffered entries, 0 for all"`
}

func (in *logStreamInput) query() logging.Query {
	return logging.Query{Module: in.Module, MinLevel: in.Level, Limit: in.Tail}
}

// registerLogRoutes registers the log stream and the runtime level endpoint.
func (s *Server) registerLogRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Streams buffered log entries, then new ones as they are written. Filters apply to both.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, input *logStreamInput, send sse.Sender) {
		q := input.query()

		// Subscribe before replaying so nothing logged in between is lost.
		eventCh := make(chan any, 100)
		unsubscribe := events.SubscribeToChannel[events.LogEntryEvent](s.eventBus, eventCh)
		defer unsubscribe()

		for _, entry := range logging.GetBuffer().Select(q) {
			if err := send.Data(LogEvent(entry, 0)); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				ev, ok := event.(events.LogEntryEvent)
				if !ok || !q.Match(logging.LogEntry{Module: ev.Module, Level: ev.Level}) {
					continue
				}
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-log-level",
		Method:      http.MethodPost,
		Path:        "/api/logs/level",
		Summary:     "Set Log Level",
		Description: "Changes the minimum level of one logger module until restart.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401, 422},
	}, func(_ context.Context, input *models.LogLevelRequest) (*models.LogLevelResponse, error) {
		if !logging.SetModuleLevel(input.Body.Module, input.Body.Level) {
			return nil, huma.Error422UnprocessableEntity(fmt.Sprintf("unknown level %q", input.Body.Level))
		}
		s.logger.Info("Log level changed", "target", input.Body.Module, "level", input.Body.Level)
		return &models.LogLevelResponse{Body: models.LogLevelData{
			Module: input.Body.Module,
			Level:  input.Body.Level,
		}}, nil
	})
}

// LogEvent converts a buffered log entry into its SSE payload.
func LogEvent(entry logging.LogEntry, seq uint64) events.LogEntryEvent {
	return events.LogEntryEvent{
		Seq:        seq,
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
		Level:      entry.Level,
		Module:     entry.Module,
		Message:    entry.Message,
		Attributes: entry.Attributes,
	}
}
