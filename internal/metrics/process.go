// Package metrics provides Prometheus metrics for supervised processes.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "superprocess"
	subsystem = "process"
)

// Outcome label values of executions_total.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	executionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "executions_total",
		Help:      "Recorded logical invocations by outcome",
	}, []string{"process", "outcome"})

	executionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "execution_duration_seconds",
		Help:      "Duration of recorded invocations, backoff excluded",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"process"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "retries_total",
		Help:      "Retry attempts scheduled after a failed attempt",
	}, []string{"process"})

	optimizationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "optimizations_total",
		Help:      "Optimization passes by whether new parameters were applied",
	}, []string{"process", "applied"})

	successRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "success_rate",
		Help:      "Successes divided by executions (1 with no data)",
	}, []string{"process"})

	optimizationLevel = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "optimization_level",
		Help:      "Current optimization level",
	}, []string{"process"})

	processState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "state",
		Help:      "1 for the current state of each process, 0 otherwise",
	}, []string{"process", "state"})

	// Local cache for SSE exporter access.
	cache   = make(map[string]*ProcessMetrics)
	cacheMu sync.RWMutex
)

// ProcessMetrics holds the last published values for a process.
type ProcessMetrics struct {
	State         string
	Executions    uint64
	Failures      uint64
	SuccessRate   float64
	AvgDurationMs float64
}

// ObserveExecution counts one recorded invocation.
func ObserveExecution(process string, success bool, d time.Duration) {
	outcome := OutcomeSuccess
	if !success {
		outcome = OutcomeFailure
	}
	executionsTotal.WithLabelValues(process, outcome).Inc()
	executionDuration.WithLabelValues(process).Observe(d.Seconds())
}

// ObserveRetry counts one scheduled retry.
func ObserveRetry(process string) {
	retriesTotal.WithLabelValues(process).Inc()
}

// ObserveOptimization counts one optimization pass and sets the level gauge.
func ObserveOptimization(process string, applied bool, level float64) {
	label := "false"
	if applied {
		label = "true"
	}
	optimizationsTotal.WithLabelValues(process, label).Inc()
	optimizationLevel.WithLabelValues(process).Set(level)
}

// SetSnapshot publishes the gauges derived from a metrics snapshot.
func SetSnapshot(process string, executions, failures uint64, rate float64, avg time.Duration) {
	successRate.WithLabelValues(process).Set(rate)
	updateCache(process, func(m *ProcessMetrics) {
		m.Executions = executions
		m.Failures = failures
		m.SuccessRate = rate
		m.AvgDurationMs = float64(avg) / float64(time.Millisecond)
	})
}

// SetState marks state as the current state of process.
func SetState(process, state string) {
	var previous string
	updateCache(process, func(m *ProcessMetrics) {
		previous = m.State
		m.State = state
	})
	if previous != "" && previous != state {
		processState.WithLabelValues(process, previous).Set(0)
	}
	processState.WithLabelValues(process, state).Set(1)
}

// DeleteProcessMetrics removes all metrics for a process.
func DeleteProcessMetrics(process string) {
	labels := prometheus.Labels{"process": process}
	executionsTotal.DeletePartialMatch(labels)
	executionDuration.DeletePartialMatch(labels)
	retriesTotal.DeletePartialMatch(labels)
	optimizationsTotal.DeletePartialMatch(labels)
	successRate.DeletePartialMatch(labels)
	optimizationLevel.DeletePartialMatch(labels)
	processState.DeletePartialMatch(labels)

	cacheMu.Lock()
	delete(cache, process)
	cacheMu.Unlock()
}

// GetProcessMetrics returns current metric values for a process.
func GetProcessMetrics(process string) *ProcessMetrics {
	cacheMu.RLock()
	defer cacheMu.RUnlock()
	if m, ok := cache[process]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllProcessMetrics returns metrics for all known processes.
func GetAllProcessMetrics() map[string]*ProcessMetrics {
	cacheMu.RLock()
	defer cacheMu.RUnlock()
	result := make(map[string]*ProcessMetrics, len(cache))
	for name, m := range cache {
		dup := *m
		result[name] = &dup
	}
	return result
}

func updateCache(process string, update func(*ProcessMetrics)) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	m, ok := cache[process]
	if !ok {
		m = &ProcessMetrics{}
		cache[process] = m
	}
	update(m)
}
