package telemetry

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromMetrics exports measurements to a Prometheus registry. Collectors are
// created lazily on first use of a metric name, keyed by name and tag set.
type PromMetrics struct {
	mu       sync.Mutex
	registry *prometheus.Registry

	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPromMetrics creates a Prometheus-backed metrics exporter with its own
// registry.
func NewPromMetrics() *PromMetrics {
	return &PromMetrics{
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *PromMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Counter increments a counter metric.
func (m *PromMetrics) Counter(name string, value int64, tags map[string]string) {
	labels, values := splitTags(tags)

	m.mu.Lock()
	vec, ok := m.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: promName(name),
			Help: name,
		}, labels)
		m.registry.MustRegister(vec)
		m.counters[name] = vec
	}
	m.mu.Unlock()

	vec.WithLabelValues(values...).Add(float64(value))
}

// Gauge sets a gauge metric.
func (m *PromMetrics) Gauge(name string, value float64, tags map[string]string) {
	labels, values := splitTags(tags)

	m.mu.Lock()
	vec, ok := m.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: promName(name),
			Help: name,
		}, labels)
		m.registry.MustRegister(vec)
		m.gauges[name] = vec
	}
	m.mu.Unlock()

	vec.WithLabelValues(values...).Set(value)
}

// Timer records a duration in a histogram, in seconds.
func (m *PromMetrics) Timer(name string, duration time.Duration, tags map[string]string) {
	labels, values := splitTags(tags)

	m.mu.Lock()
	vec, ok := m.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    promName(name) + "_seconds",
			Help:    name,
			Buckets: prometheus.DefBuckets,
		}, labels)
		m.registry.MustRegister(vec)
		m.histograms[name] = vec
	}
	m.mu.Unlock()

	vec.WithLabelValues(values...).Observe(duration.Seconds())
}

// Close is a no-op; the registry lives as long as the process.
func (m *PromMetrics) Close() error { return nil }

// promName converts dotted metric names to Prometheus form.
func promName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

// splitTags returns label names and values in matched sorted order.
func splitTags(tags map[string]string) ([]string, []string) {
	if len(tags) == 0 {
		return nil, nil
	}
	labels := make([]string, 0, len(tags))
	for k := range tags {
		labels = append(labels, k)
	}
	// Deterministic label ordering keeps the collector's label set stable
	// across calls.
	sort.Strings(labels)

	values := make([]string, len(labels))
	for i, k := range labels {
		values[i] = tags[k]
	}
	return labels, values
}
