package core

import "context"

// MetricPrefix namespaces every metric emitted through Observer.
const MetricPrefix = "orderfeed."

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// WithConstTags adds tags to every sample recorded through next. Tags set
// by the caller win over the constant ones.
func WithConstTags(next MetricsRecorder, tags map[string]string) MetricsRecorder {
	if next == nil {
		next = NopMetricsRecorder{}
	}
	if len(tags) == 0 {
		return next
	}
	return constTagsRecorder{next: next, tags: CloneTags(tags)}
}

type constTagsRecorder struct {
	next MetricsRecorder
	tags map[string]string
}

func (r constTagsRecorder) IncCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	r.next.IncCounter(ctx, name, value, r.merge(tags))
}

func (r constTagsRecorder) ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	r.next.ObserveHistogram(ctx, name, value, r.merge(tags))
}

func (r constTagsRecorder) merge(tags map[string]string) map[string]string {
	merged := CloneTags(r.tags)
	for key, value := range tags {
		merged[key] = value
	}
	return merged
}

func CloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var (
	_ MetricsRecorder = NopMetricsRecorder{}
	_ MetricsRecorder = constTagsRecorder{}
)
