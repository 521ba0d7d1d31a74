package process

import (
	"maps"
	"sync"
	"time"
)

// NoDataSuccessRate is reported by SuccessRate before any invocation has been
// recorded, so an optimization threshold can never fire on an empty history.
const NoDataSuccessRate = 1.0

const (
	initialOptimizationLevel = 1.0
	optimizationLevelStep    = 0.1
)

// Metrics is an immutable snapshot of a process's execution statistics.
// Counts are per logical invocation, not per attempt.
type Metrics struct {
	ExecutionCount    uint64         `json:"execution_count"`
	SuccessCount      uint64         `json:"success_count"`
	FailureCount      uint64         `json:"failure_count"`
	TotalDuration     time.Duration  `json:"total_duration"`
	LastDuration      time.Duration  `json:"last_duration"`
	LastError         string         `json:"last_error,omitempty"`
	LastExecutedAt    time.Time      `json:"last_executed_at"`
	OptimizationCount uint64         `json:"optimization_count"`
	OptimizationLevel float64        `json:"optimization_level"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// SuccessRate returns SuccessCount/ExecutionCount, or NoDataSuccessRate when
// nothing has been recorded yet.
func (m Metrics) SuccessRate() float64 {
	if m.ExecutionCount == 0 {
		return NoDataSuccessRate
	}
	return float64(m.SuccessCount) / float64(m.ExecutionCount)
}

// AverageDuration returns the mean duration of recorded invocations.
func (m Metrics) AverageDuration() time.Duration {
	if m.ExecutionCount == 0 {
		return 0
	}
	return m.TotalDuration / time.Duration(m.ExecutionCount)
}

// metricsCollector owns a Metrics value and serializes all access to it.
type metricsCollector struct {
	mu  sync.RWMutex
	m   Metrics
	now func() time.Time
}

func newMetricsCollector() *metricsCollector {
	return &metricsCollector{
		m:   Metrics{OptimizationLevel: initialOptimizationLevel},
		now: time.Now,
	}
}

// record accounts for one finished logical invocation.
func (c *metricsCollector) record(success bool, d time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.m.ExecutionCount++
	if success {
		c.m.SuccessCount++
	} else {
		c.m.FailureCount++
		if err != nil {
			c.m.LastError = err.Error()
		}
	}
	c.m.TotalDuration += d
	c.m.LastDuration = d
	c.m.LastExecutedAt = c.now()
}

// recordOptimization counts an optimization pass; applied passes also raise
// the optimization level.
func (c *metricsCollector) recordOptimization(applied bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.m.OptimizationCount++
	if applied {
		c.m.OptimizationLevel += optimizationLevelStep
	}
}

func (c *metricsCollector) setMetadata(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.m.Metadata == nil {
		c.m.Metadata = make(map[string]any)
	}
	c.m.Metadata[key] = value
}

func (c *metricsCollector) successRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.m.SuccessRate()
}

// snapshot returns a copy that shares nothing mutable with the collector.
func (c *metricsCollector) snapshot() Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dup := c.m
	dup.Metadata = maps.Clone(c.m.Metadata)
	return dup
}

func (c *metricsCollector) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = Metrics{OptimizationLevel: initialOptimizationLevel}
}
