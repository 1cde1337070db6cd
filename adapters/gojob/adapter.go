package gojob

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-orderfeed/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue/worker"
)

const (
	JobIDEvent = "orderfeed.event"

	paramEventID = "event_id"
	paramOrderID = "order_id"
	paramCode    = "code"
	paramPayload = "payload"
)

// ToExecutionMessage maps a marketplace event to a go-job message keyed by
// the event id.
func ToExecutionMessage(event core.Event) *job.ExecutionMessage {
	return &job.ExecutionMessage{
		JobID:      JobIDEvent,
		ScriptPath: JobIDEvent + "." + strings.ToLower(eventCodeLabel(event)),
		Parameters: map[string]any{
			paramEventID: strings.TrimSpace(event.ID),
			paramOrderID: strings.TrimSpace(event.OrderID),
			paramCode:    strings.TrimSpace(event.Code),
			paramPayload: string(event.Payload),
		},
		IdempotencyKey: strings.TrimSpace(event.ID),
	}
}

// FromExecutionMessage rebuilds the event carried by msg.
func FromExecutionMessage(msg *job.ExecutionMessage) (core.Event, error) {
	if msg == nil {
		return core.Event{}, fmt.Errorf("gojob: execution message is required")
	}
	if strings.TrimSpace(msg.JobID) != JobIDEvent {
		return core.Event{}, fmt.Errorf("gojob: unexpected job id %q", msg.JobID)
	}
	code := strings.ToUpper(readString(msg.Parameters, paramCode))
	event := core.Event{
		ID:      firstNonEmpty(readString(msg.Parameters, paramEventID), msg.IdempotencyKey),
		OrderID: readString(msg.Parameters, paramOrderID),
		Code:    code,
		Kind:    core.ParseEventCode(code),
	}
	if payload := readString(msg.Parameters, paramPayload); payload != "" {
		event.Payload = []byte(payload)
	}
	return event, nil
}

// ObservingHook reports worker lifecycle events through the go-job logger
// contract and the metrics recorder.
type ObservingHook struct {
	logger  job.Logger
	metrics core.MetricsRecorder
}

func NewObservingHook(logger job.Logger, metrics core.MetricsRecorder) *ObservingHook {
	if metrics == nil {
		metrics = core.NopMetricsRecorder{}
	}
	return &ObservingHook{logger: logger, metrics: metrics}
}

func (h *ObservingHook) OnStart(context.Context, worker.Event) {}

func (h *ObservingHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.report(ctx, event, "success")
}

func (h *ObservingHook) OnFailure(ctx context.Context, event worker.Event) {
	h.report(ctx, event, "failure")
}

func (h *ObservingHook) OnRetry(ctx context.Context, event worker.Event) {
	h.report(ctx, event, "retry")
}

func (h *ObservingHook) report(ctx context.Context, event worker.Event, status string) {
	if h == nil {
		return
	}
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	code := "unknown"
	eventID := ""
	if decoded, err := FromExecutionMessage(message); err == nil {
		code = eventCodeLabel(decoded)
		eventID = decoded.ID
	}
	tags := map[string]string{"code": code, "status": status}
	h.metrics.IncCounter(ctx, core.MetricPrefix+"events.processed.total", 1, tags)
	h.metrics.ObserveHistogram(ctx, core.MetricPrefix+"event.processing.duration_ms", float64(event.Duration.Milliseconds()), tags)

	if h.logger == nil {
		return
	}
	args := []any{
		"event_id", eventID,
		"code", code,
		"status", status,
		"attempt", event.Attempt,
		"duration_ms", event.Duration.Milliseconds(),
	}
	if event.Err != nil {
		args = append(args, "error", event.Err.Error())
	}
	h.logger.Info("gojob: event "+status, args...)
}

func eventCodeLabel(event core.Event) string {
	if event.Kind.Known() {
		return string(event.Kind)
	}
	return "UNKNOWN"
}

func readString(params map[string]any, key string) string {
	value, ok := params[key]
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case []byte:
		return strings.TrimSpace(string(typed))
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

var _ worker.Hook = (*ObservingHook)(nil)
