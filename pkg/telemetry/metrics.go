package telemetry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Metrics exports measurements to a monitoring backend.
type Metrics interface {
	// Counter increments a counter metric.
	Counter(name string, value int64, tags map[string]string)

	// Gauge sets a gauge metric to the specified value.
	Gauge(name string, value float64, tags map[string]string)

	// Timer records a duration.
	Timer(name string, duration time.Duration, tags map[string]string)

	// Close releases resources.
	Close() error
}

// Common metric names used throughout the system.
const (
	MetricInvocationsTotal   = "locusflow.filter.invocations.total"
	MetricInvocationErrors   = "locusflow.filter.invocations.errors"
	MetricInvocationTimeouts = "locusflow.filter.invocations.timeouts"
	MetricInvocationDuration = "locusflow.filter.invocation.duration"
	MetricStreamRequests     = "locusflow.filter.stream_requests"
	MetricPropertiesSet      = "locusflow.filter.properties_set"
	MetricCommitsTotal       = "locusflow.commit.total"
	MetricCommitErrors       = "locusflow.commit.errors"
	MetricDeliveriesTotal    = "locusflow.streams.deliveries.total"
	MetricSourceLatency      = "locusflow.source.latency"
)

// Common tag names.
const (
	TagFilter = "filter"
	TagStream = "stream"
	TagStatus = "status"
	TagSource = "source"
)

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) Counter(string, int64, map[string]string)       {}
func (NopMetrics) Gauge(string, float64, map[string]string)       {}
func (NopMetrics) Timer(string, time.Duration, map[string]string) {}
func (NopMetrics) Close() error                                   { return nil }

// LogMetrics writes metrics to the structured log. Useful for debugging and
// development.
type LogMetrics struct {
	mu  sync.Mutex
	log zerolog.Logger
}

// NewLogMetrics creates a log-backed metrics exporter.
func NewLogMetrics(log zerolog.Logger) *LogMetrics {
	return &LogMetrics{log: log}
}

// Counter logs a counter metric.
func (m *LogMetrics) Counter(name string, value int64, tags map[string]string) {
	m.emit("counter", name, fmt.Sprintf("%d", value), tags)
}

// Gauge logs a gauge metric.
func (m *LogMetrics) Gauge(name string, value float64, tags map[string]string) {
	m.emit("gauge", name, fmt.Sprintf("%.4f", value), tags)
}

// Timer logs a timer metric.
func (m *LogMetrics) Timer(name string, duration time.Duration, tags map[string]string) {
	m.emit("timer", name, duration.String(), tags)
}

// Close is a no-op.
func (m *LogMetrics) Close() error { return nil }

func (m *LogMetrics) emit(metricType, name, value string, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.Debug().
		Str("type", metricType).
		Str("metric", name).
		Str("value", value).
		Str("tags", formatTags(tags)).
		Msg("metric")
}

// formatTags renders tags sorted for stable output.
func formatTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(tags[k])
	}
	return sb.String()
}
