package models

import "time"

// Health check models
type HealthData struct {
	Status    string `json:"status" example:"ok" doc:"Service status"`
	Message   string `json:"message" example:"API is healthy" doc:"Status message"`
	Processes int    `json:"processes" example:"3" doc:"Number of registered processes"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"a1b2c3d4" doc:"Unique build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler used"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// ProcessPath identifies a process in the URL.
type ProcessPath struct {
	Name string `path:"name" example:"backup" doc:"Process name"`
}

// Process models
type ParamsData struct {
	IntervalMs    float64 `json:"interval_ms" example:"30000" doc:"Continuous-mode interval in milliseconds"`
	BaseBackoffMs float64 `json:"base_backoff_ms" example:"100" doc:"Base retry backoff in milliseconds"`
	MaxRetries    int     `json:"max_retries" example:"3" doc:"Retries after the first attempt"`
}

type MetricsData struct {
	ExecutionCount    uint64         `json:"execution_count" example:"42" doc:"Recorded logical invocations"`
	SuccessCount      uint64         `json:"success_count" example:"40" doc:"Successful invocations"`
	FailureCount      uint64         `json:"failure_count" example:"2" doc:"Failed invocations"`
	SuccessRate       float64        `json:"success_rate" example:"0.95" doc:"Success count over execution count, 1 with no data"`
	AvgDurationMs     float64        `json:"avg_duration_ms" example:"12.5" doc:"Average invocation duration in milliseconds"`
	LastDurationMs    float64        `json:"last_duration_ms" example:"10.1" doc:"Last invocation duration in milliseconds"`
	LastError         string         `json:"last_error,omitempty" example:"exit status 1" doc:"Error of the last failed invocation"`
	LastExecutedAt    *time.Time     `json:"last_executed_at,omitempty" doc:"When the last invocation was recorded"`
	OptimizationCount uint64         `json:"optimization_count" example:"1" doc:"Optimization passes run"`
	OptimizationLevel float64        `json:"optimization_level" example:"1.1" doc:"Optimization level"`
	Metadata          map[string]any `json:"metadata,omitempty" doc:"Process metadata"`
}

type ProcessData struct {
	Name         string      `json:"name" example:"backup" doc:"Process name"`
	Kind         string      `json:"kind,omitempty" example:"command" doc:"Job kind (command, unit)"`
	Target       string      `json:"target,omitempty" example:"/usr/local/bin/backup.sh" doc:"Command line or systemd unit"`
	State        string      `json:"state" example:"running" doc:"Lifecycle state"`
	Continuous   bool        `json:"continuous" example:"true" doc:"Whether continuous mode is active"`
	PausePending bool        `json:"pause_pending" example:"false" doc:"Whether a pause takes effect after the current invocation"`
	Params       ParamsData  `json:"params" doc:"Current tunables"`
	Metrics      MetricsData `json:"metrics" doc:"Execution metrics"`
}

type ProcessResponse struct {
	Body ProcessData
}

type ProcessListData struct {
	Processes []ProcessData  `json:"processes" doc:"Registered processes sorted by name"`
	Count     int            `json:"count" example:"2" doc:"Number of registered processes"`
	States    map[string]int `json:"states" doc:"Number of processes per state"`
}

type ProcessListResponse struct {
	Body ProcessListData
}

type ExecuteData struct {
	Process    string  `json:"process" example:"backup" doc:"Process name"`
	ID         string  `json:"id" example:"5f0c9c8e-8d8f-4b3a-9a57-0b6f3e1f2d4c" doc:"Invocation identifier"`
	Success    bool    `json:"success" example:"true" doc:"Whether the invocation succeeded"`
	Value      any     `json:"value,omitempty" doc:"Value returned by the process function"`
	Attempts   int     `json:"attempts" example:"1" doc:"Attempts made"`
	DurationMs float64 `json:"duration_ms" example:"12.5" doc:"Duration in milliseconds, excluding backoff"`
	State      string  `json:"state" example:"idle" doc:"State after the invocation"`
	Optimized  bool    `json:"optimized" example:"false" doc:"Whether an optimization pass ran"`
	Error      string  `json:"error,omitempty" example:"exit status 1" doc:"Error of the last attempt"`
}

type ExecuteResponse struct {
	Body ExecuteData
}

type ActionData struct {
	Process string `json:"process" example:"backup" doc:"Process name"`
	Action  string `json:"action" example:"pause" doc:"Action performed (pause, resume, stop, reset)"`
	State   string `json:"state" example:"paused" doc:"State after the action"`
}

type ActionResponse struct {
	Body ActionData
}

type LogLevelRequest struct {
	Body struct {
		Module string `json:"module" minLength:"1" example:"supervisor" doc:"Logger module name"`
		Level  string `json:"level" enum:"debug,info,warn,error" example:"debug" doc:"New minimum level"`
	}
}

type LogLevelData struct {
	Module string `json:"module" example:"supervisor" doc:"Logger module name"`
	Level  string `json:"level" example:"debug" doc:"Minimum level now in effect"`
}

type LogLevelResponse struct {
	Body LogLevelData
}
