package gojob

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-orderfeed/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue/worker"
)

func TestEventMessageMappingRoundTrip(t *testing.T) {
	original := core.Event{
		ID:      "e1",
		OrderID: "o1",
		Code:    "PLC",
		Kind:    core.EventCodePlaced,
		Payload: []byte(`{"id":"e1","code":"PLC","orderId":"o1"}`),
	}

	msg := ToExecutionMessage(original)
	if msg.JobID != JobIDEvent {
		t.Fatalf("expected job id %q, got %q", JobIDEvent, msg.JobID)
	}
	if msg.IdempotencyKey != "e1" {
		t.Fatalf("expected idempotency key e1, got %q", msg.IdempotencyKey)
	}
	if msg.ScriptPath != "orderfeed.event.placed" {
		t.Fatalf("unexpected script path %q", msg.ScriptPath)
	}

	roundTrip, err := FromExecutionMessage(msg)
	if err != nil {
		t.Fatalf("from message: %v", err)
	}
	if roundTrip.ID != original.ID || roundTrip.OrderID != original.OrderID {
		t.Fatalf("expected ids to survive mapping, got %+v", roundTrip)
	}
	if roundTrip.Kind != core.EventCodePlaced || roundTrip.Code != "PLC" {
		t.Fatalf("expected code to survive mapping, got %+v", roundTrip)
	}
	if string(roundTrip.Payload) != string(original.Payload) {
		t.Fatalf("expected payload to survive mapping")
	}
}

func TestFromExecutionMessage_RejectsForeignJobs(t *testing.T) {
	if _, err := FromExecutionMessage(nil); err == nil {
		t.Fatalf("expected nil message to fail")
	}
	if _, err := FromExecutionMessage(&job.ExecutionMessage{JobID: "other.job"}); err == nil {
		t.Fatalf("expected foreign job id to fail")
	}
}

type recordedCounter struct {
	name string
	tags map[string]string
}

type captureMetrics struct {
	mu       sync.Mutex
	counters []recordedCounter
}

func (m *captureMetrics) IncCounter(_ context.Context, name string, _ int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, recordedCounter{name: name, tags: core.CloneTags(tags)})
}

func (m *captureMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func TestObservingHook_RecordsOutcomeTags(t *testing.T) {
	metrics := &captureMetrics{}
	hook := NewObservingHook(nil, metrics)

	msg := ToExecutionMessage(core.Event{ID: "e2", Code: "CFM", Kind: core.EventCodeConfirmed})
	hook.OnSuccess(context.Background(), worker.Event{Message: msg, Attempt: 1, Duration: time.Millisecond})
	hook.OnFailure(context.Background(), worker.Event{Message: msg, Attempt: 1, Err: errors.New("boom")})

	if len(metrics.counters) != 2 {
		t.Fatalf("expected 2 counters, got %d", len(metrics.counters))
	}
	if metrics.counters[0].name != "orderfeed.events.processed.total" {
		t.Fatalf("unexpected counter name %q", metrics.counters[0].name)
	}
	if metrics.counters[0].tags["code"] != "CONFIRMED" || metrics.counters[0].tags["status"] != "success" {
		t.Fatalf("unexpected success tags %#v", metrics.counters[0].tags)
	}
	if metrics.counters[1].tags["status"] != "failure" {
		t.Fatalf("unexpected failure tags %#v", metrics.counters[1].tags)
	}
}
