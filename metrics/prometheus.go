// Package metrics exposes core.MetricsRecorder on a dedicated Prometheus
// registry.
package metrics

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-orderfeed/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DurationBuckets are millisecond buckets for *.duration_ms histograms.
var DurationBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

type counterEntry struct {
	vec    *prometheus.CounterVec
	labels []string
}

type histogramEntry struct {
	vec    *prometheus.HistogramVec
	labels []string
}

// PrometheusRecorder creates one vector per metric name on first use. The
// label set seen first is kept for that name: later missing labels record
// as empty and unknown labels are dropped.
type PrometheusRecorder struct {
	registry   *prometheus.Registry
	mu         sync.Mutex
	counters   map[string]*counterEntry
	histograms map[string]*histogramEntry
}

func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &PrometheusRecorder{
		registry:   registry,
		counters:   map[string]*counterEntry{},
		histograms: map[string]*histogramEntry{},
	}
}

func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *PrometheusRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	entry := r.counter(CounterName(name), tags)
	if entry == nil {
		return
	}
	entry.vec.With(labelValues(entry.labels, tags)).Add(float64(value))
}

func (r *PrometheusRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	entry := r.histogram(MetricName(name), tags)
	if entry == nil {
		return
	}
	entry.vec.With(labelValues(entry.labels, tags)).Observe(value)
}

func (r *PrometheusRecorder) counter(name string, tags map[string]string) *counterEntry {
	if name == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.counters[name]; ok {
		return entry
	}
	labels := labelNames(tags)
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: "Counter " + name + "."}, labels)
	if err := r.registry.Register(vec); err != nil {
		return nil
	}
	entry := &counterEntry{vec: vec, labels: labels}
	r.counters[name] = entry
	return entry
}

func (r *PrometheusRecorder) histogram(name string, tags map[string]string) *histogramEntry {
	if name == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.histograms[name]; ok {
		return entry
	}
	labels := labelNames(tags)
	buckets := prometheus.DefBuckets
	if strings.HasSuffix(name, "_duration_ms") {
		buckets = DurationBuckets
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: "Histogram " + name + ".", Buckets: buckets}, labels)
	if err := r.registry.Register(vec); err != nil {
		return nil
	}
	entry := &histogramEntry{vec: vec, labels: labels}
	r.histograms[name] = entry
	return entry
}

// MetricName maps a dotted recorder name onto a Prometheus metric name.
func MetricName(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == ':':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// CounterName is MetricName with a guaranteed _total suffix.
func CounterName(name string) string {
	name = MetricName(name)
	if name == "" || strings.HasSuffix(name, "_total") {
		return name
	}
	return name + "_total"
}

func labelNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for key := range tags {
		label := MetricName(key)
		if label == "" || strings.HasPrefix(label, "__") {
			continue
		}
		names = append(names, label)
	}
	sort.Strings(names)
	return dedupe(names)
}

func labelValues(labels []string, tags map[string]string) prometheus.Labels {
	byLabel := make(map[string]string, len(tags))
	for key, value := range tags {
		byLabel[MetricName(key)] = value
	}
	values := make(prometheus.Labels, len(labels))
	for _, label := range labels {
		values[label] = byLabel[label]
	}
	return values
}

func dedupe(sorted []string) []string {
	if len(sorted) < 2 {
		return sorted
	}
	out := sorted[:1]
	for _, name := range sorted[1:] {
		if name != out[len(out)-1] {
			out = append(out, name)
		}
	}
	return out
}

var _ core.MetricsRecorder = (*PrometheusRecorder)(nil)
