package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/superprocess/internal/api/models"
	"github.com/smazurov/superprocess/internal/jobs"
	"github.com/smazurov/superprocess/internal/process"
)

// registerProcessRoutes registers the process inspection and control endpoints.
func (s *Server) registerProcessRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-processes",
		Method:      http.MethodGet,
		Path:        "/api/processes",
		Summary:     "List Processes",
		Description: "Get every registered process with its state and metrics",
		Tags:        []string{"processes"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.ProcessListResponse, error) {
		manager := s.processes.Manager()
		list := models.ProcessListData{
			Processes: []models.ProcessData{},
			States:    map[string]int{},
		}
		for _, name := range manager.Names() {
			p, ok := manager.Get(name)
			if !ok {
				continue
			}
			data := s.processData(p)
			list.Processes = append(list.Processes, data)
			list.States[data.State]++
		}
		list.Count = len(list.Processes)
		return &models.ProcessListResponse{Body: list}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-process",
		Method:      http.MethodGet,
		Path:        "/api/processes/{name}",
		Summary:     "Get Process",
		Description: "Get state, tunables and metrics of a single process",
		Tags:        []string{"processes"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(_ context.Context, input *models.ProcessPath) (*models.ProcessResponse, error) {
		p, ok := s.processes.Manager().Get(input.Name)
		if !ok {
			return nil, mapProcessError(process.ErrNotFound)
		}
		return &models.ProcessResponse{Body: s.processData(p)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "execute-process",
		Method:      http.MethodPost,
		Path:        "/api/processes/{name}/execute",
		Summary:     "Execute Process",
		Description: "Run one logical invocation with retries. Exhausted retries are reported in the body, not as an HTTP error.",
		Tags:        []string{"processes"},
		Errors:      []int{401, 404, 409, 500, 504},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		models.ProcessPath
		TimeoutMs int `query:"timeout_ms" minimum:"0" example:"5000" doc:"Abandon the invocation after this many milliseconds"`
	}) (*models.ExecuteResponse, error) {
		if input.TimeoutMs > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(input.TimeoutMs)*time.Millisecond)
			defer cancel()
		}

		res, err := s.processes.Execute(ctx, input.Name)
		if res == nil {
			return nil, mapProcessError(err)
		}
		return &models.ExecuteResponse{Body: executeData(input.Name, res)}, nil
	})

	actions := []struct {
		action      string
		summary     string
		description string
		run         func(name string) error
	}{
		{"pause", "Pause Process", "Suspend continuous execution. An in-flight invocation finishes first.", s.processes.Pause},
		{"resume", "Resume Process", "Resume a paused process", s.processes.Resume},
		{"stop", "Stop Process", "Stop the process permanently. It stays listed until its job changes.", s.processes.Stop},
		{"reset", "Reset Metrics", "Clear execution metrics and metadata", s.processes.ResetMetrics},
	}
	for _, a := range actions {
		huma.Register(s.api, huma.Operation{
			OperationID: a.action + "-process",
			Method:      http.MethodPost,
			Path:        "/api/processes/{name}/" + a.action,
			Summary:     a.summary,
			Description: a.description,
			Tags:        []string{"processes"},
			Errors:      []int{401, 404, 409},
			Security:    withAuth(),
		}, func(_ context.Context, input *models.ProcessPath) (*models.ActionResponse, error) {
			if err := a.run(input.Name); err != nil {
				return nil, mapProcessError(err)
			}
			data := models.ActionData{Process: input.Name, Action: a.action}
			if p, ok := s.processes.Manager().Get(input.Name); ok {
				data.State = string(p.State())
			}
			return &models.ActionResponse{Body: data}, nil
		})
	}
}

// statusClientClosedRequest reports an invocation abandoned because the
// client went away. Not an IANA code; nginx uses it for the same case.
const statusClientClosedRequest = 499

// mapProcessError converts process errors to appropriate HTTP errors.
func mapProcessError(err error) error {
	switch {
	case errors.Is(err, process.ErrNotFound):
		return huma.Error404NotFound("Process not found")
	case errors.Is(err, process.ErrInvalidTransition),
		errors.Is(err, process.ErrStopped),
		errors.Is(err, process.ErrPaused):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return huma.Error504GatewayTimeout("Invocation timed out", err)
	case errors.Is(err, context.Canceled):
		return huma.NewError(statusClientClosedRequest, "Client closed request", err)
	default:
		return huma.Error500InternalServerError("Process operation failed", err)
	}
}

func (s *Server) processData(p *process.Process) models.ProcessData {
	info := p.Info()
	data := models.ProcessData{
		Name:         info.Name,
		State:        string(info.State),
		Continuous:   info.Continuous,
		PausePending: info.PausePending,
		Params: models.ParamsData{
			IntervalMs:    millis(info.Params.Interval),
			BaseBackoffMs: millis(info.Params.BaseBackoff),
			MaxRetries:    info.Params.MaxRetries,
		},
		Metrics: metricsData(info.Metrics),
	}
	if job, ok := s.processes.Job(info.Name); ok {
		data.Kind = string(job.EffectiveKind())
		if job.EffectiveKind() == jobs.KindUnit {
			data.Target = job.Unit
		} else {
			data.Target = job.Command
		}
	}
	return data
}

func metricsData(m process.Metrics) models.MetricsData {
	data := models.MetricsData{
		ExecutionCount:    m.ExecutionCount,
		SuccessCount:      m.SuccessCount,
		FailureCount:      m.FailureCount,
		SuccessRate:       m.SuccessRate(),
		AvgDurationMs:     millis(m.AverageDuration()),
		LastDurationMs:    millis(m.LastDuration),
		LastError:         m.LastError,
		OptimizationCount: m.OptimizationCount,
		OptimizationLevel: m.OptimizationLevel,
		Metadata:          m.Metadata,
	}
	if !m.LastExecutedAt.IsZero() {
		at := m.LastExecutedAt
		data.LastExecutedAt = &at
	}
	return data
}

func executeData(name string, res *process.Result) models.ExecuteData {
	data := models.ExecuteData{
		Process:    name,
		ID:         res.ID.String(),
		Success:    res.Err == nil,
		Value:      res.Value,
		Attempts:   res.Attempts,
		DurationMs: millis(res.Duration),
		State:      string(res.State),
		Optimized:  res.Optimized,
	}
	if res.Err != nil {
		data.Error = res.Err.Error()
	}
	return data
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
