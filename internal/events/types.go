package events

// Event type constants for kelindar/event.
const (
	TypeProcessRegistered uint32 = iota + 1
	TypeProcessUnregistered
	TypeProcessStateChanged
	TypeProcessExecuted
	TypeProcessRetry
	TypeProcessOptimized
	TypeJobsReloaded
	TypeProcessMetrics
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ProcessRegisteredEvent is published when a process joins the manager.
type ProcessRegisteredEvent struct {
	Process   string `json:"process" example:"backup" doc:"Process name"`
	Kind      string `json:"kind" example:"command" doc:"Job kind"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ProcessRegisteredEvent.
func (e ProcessRegisteredEvent) Type() uint32 { return TypeProcessRegistered }

// ProcessUnregisteredEvent is published after a process is removed and stopped.
type ProcessUnregisteredEvent struct {
	Process   string `json:"process" example:"backup" doc:"Process name"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ProcessUnregisteredEvent.
func (e ProcessUnregisteredEvent) Type() uint32 { return TypeProcessUnregistered }

// ProcessStateChangedEvent represents an accepted state transition.
type ProcessStateChangedEvent struct {
	Process   string `json:"process" example:"backup" doc:"Process name"`
	From      string `json:"from" example:"running" doc:"Previous state"`
	To        string `json:"to" example:"error" doc:"New state"`
	Error     string `json:"error,omitempty" doc:"Failure that caused the transition"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ProcessStateChangedEvent.
func (e ProcessStateChangedEvent) Type() uint32 { return TypeProcessStateChanged }

// ProcessExecutedEvent is published once per recorded logical invocation.
type ProcessExecutedEvent struct {
	Process    string  `json:"process" example:"backup" doc:"Process name"`
	ID         string  `json:"id" doc:"Invocation identifier"`
	Success    bool    `json:"success" doc:"Whether the invocation succeeded"`
	Attempts   int     `json:"attempts" example:"1" doc:"Attempts made, including the first"`
	DurationMs float64 `json:"duration_ms" example:"12.5" doc:"Invocation duration in milliseconds"`
	State      string  `json:"state" example:"idle" doc:"State after the invocation"`
	Optimized  bool    `json:"optimized" doc:"Whether an optimization pass ran"`
	Error      string  `json:"error,omitempty" doc:"Final error, if any"`
	Timestamp  string  `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ProcessExecutedEvent.
func (e ProcessExecutedEvent) Type() uint32 { return TypeProcessExecuted }

// ProcessRetryEvent is published before each backoff sleep.
type ProcessRetryEvent struct {
	Process   string  `json:"process" example:"backup" doc:"Process name"`
	Retry     int     `json:"retry" example:"1" doc:"Retry number, starting at 1"`
	DelayMs   float64 `json:"delay_ms" example:"100" doc:"Backoff delay in milliseconds"`
	Error     string  `json:"error" doc:"Error of the failed attempt"`
	Timestamp string  `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ProcessRetryEvent.
func (e ProcessRetryEvent) Type() uint32 { return TypeProcessRetry }

// ProcessOptimizedEvent is published after every optimization pass.
type ProcessOptimizedEvent struct {
	Process           string  `json:"process" example:"backup" doc:"Process name"`
	Applied           bool    `json:"applied" doc:"Whether new parameters were applied"`
	SuccessRate       float64 `json:"success_rate" example:"0.4" doc:"Success rate that triggered the pass"`
	OptimizationLevel float64 `json:"optimization_level" example:"1.1" doc:"Level after the pass"`
	IntervalMs        float64 `json:"interval_ms" doc:"Loop interval after the pass"`
	BaseBackoffMs     float64 `json:"base_backoff_ms" doc:"Base backoff after the pass"`
	MaxRetries        int     `json:"max_retries" doc:"Retry limit after the pass"`
	Error             string  `json:"error,omitempty" doc:"Optimizer failure, if any"`
	Timestamp         string  `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ProcessOptimizedEvent.
func (e ProcessOptimizedEvent) Type() uint32 { return TypeProcessOptimized }

// JobsReloadedEvent is published after the jobs file has been re-synced.
type JobsReloadedEvent struct {
	Added     []string `json:"added" doc:"Jobs registered by the reload"`
	Removed   []string `json:"removed" doc:"Jobs unregistered by the reload"`
	Changed   []string `json:"changed" doc:"Jobs rebuilt with new settings"`
	Timestamp string   `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for JobsReloadedEvent.
func (e JobsReloadedEvent) Type() uint32 { return TypeJobsReloaded }

// ProcessMetricsEvent is a periodic metrics snapshot of one process.
type ProcessMetricsEvent struct {
	Process       string  `json:"process" example:"backup" doc:"Process name"`
	State         string  `json:"state" example:"running" doc:"Current state"`
	Executions    uint64  `json:"executions" example:"120" doc:"Recorded invocations"`
	Failures      uint64  `json:"failures" example:"3" doc:"Failed invocations"`
	SuccessRate   float64 `json:"success_rate" example:"0.975" doc:"Successes divided by executions"`
	AvgDurationMs float64 `json:"avg_duration_ms" example:"12.5" doc:"Mean invocation duration"`
}

// Type returns the event type identifier for ProcessMetricsEvent.
func (e ProcessMetricsEvent) Type() uint32 { return TypeProcessMetrics }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Live sequence number, 0 for entries replayed from history"`
	Timestamp  string         `json:"timestamp" example:"2026-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"supervisor" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
