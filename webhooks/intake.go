package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-orderfeed/core"
	"github.com/google/uuid"
)

const defaultMaxBodyBytes int64 = 1 << 20

type SignatureVerifier interface {
	Verify(body []byte, signature string) bool
}

// Result is the response an intake decision maps to.
type Result struct {
	StatusCode int
	Body       []byte
	Enqueued   int
	Keepalive  bool
}

// Intake verifies a push notification and enqueues its events. Past the
// signature check every outcome, including internal failures, answers 202
// so the marketplace does not retry aggressively.
type Intake struct {
	Verifier        SignatureVerifier
	Sink            core.EventSink
	SignatureHeader string
	MaxBodyBytes    int64
	observer        core.Observer
}

func NewIntake(verifier SignatureVerifier, sink core.EventSink, logger core.Logger, metrics core.MetricsRecorder) *Intake {
	return &Intake{
		Verifier:        verifier,
		Sink:            sink,
		SignatureHeader: core.DefaultSignatureHeader,
		MaxBodyBytes:    defaultMaxBodyBytes,
		observer:        core.NewObserver(logger, metrics),
	}
}

func (i *Intake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, i.maxBodyBytes()+1))
	if err != nil || int64(len(body)) > i.maxBodyBytes() {
		// an unreadable or oversized body cannot be verified
		body = nil
	}
	header := i.SignatureHeader
	if strings.TrimSpace(header) == "" {
		header = core.DefaultSignatureHeader
	}
	result := i.Handle(r.Context(), body, r.Header.Get(header))
	if len(result.Body) > 0 {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(result.StatusCode)
	if len(result.Body) > 0 {
		_, _ = w.Write(result.Body)
	}
}

// Handle runs the intake decision over a raw body and its signature.
func (i *Intake) Handle(ctx context.Context, body []byte, signature string) (result Result) {
	var observer core.Observer
	if i != nil {
		observer = i.observer
	}
	requestID := uuid.NewString()
	startedAt := time.Now()
	outcome := "accepted"
	defer func() {
		observer.Count(ctx, "webhook.requests.total", map[string]string{"outcome": outcome})
		observer.Debug(ctx, "webhooks: intake handled", map[string]any{
			"request_id":  requestID,
			"outcome":     outcome,
			"status_code": result.StatusCode,
			"enqueued":    result.Enqueued,
			"duration_ms": time.Since(startedAt).Milliseconds(),
		})
	}()

	if i == nil || i.Verifier == nil || !i.Verifier.Verify(body, signature) {
		outcome = "rejected"
		observer.Warn(ctx, "webhooks: signature rejected", map[string]any{"request_id": requestID})
		return Result{
			StatusCode: http.StatusUnauthorized,
			Body:       []byte(`{"error":"invalid signature"}`),
		}
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			outcome = "failed"
			observer.Error(ctx, "webhooks: intake failure swallowed", map[string]any{
				"request_id": requestID,
				"error":      fmt.Sprint(recovered),
			})
			result = Result{StatusCode: http.StatusAccepted}
		}
	}()

	events, ok := decodeNotification(body)
	if !ok {
		outcome = "unparseable"
		return Result{StatusCode: http.StatusAccepted}
	}

	for _, event := range events {
		if event.Kind != core.EventCodeKeepalive {
			continue
		}
		outcome = "keepalive"
		merchantIDs := keepaliveMerchantIDs(event.Payload)
		if len(merchantIDs) == 0 {
			return Result{StatusCode: http.StatusAccepted, Keepalive: true}
		}
		payload, err := json.Marshal(map[string]any{"merchantIds": merchantIDs})
		if err != nil {
			return Result{StatusCode: http.StatusAccepted, Keepalive: true}
		}
		return Result{StatusCode: http.StatusAccepted, Body: payload, Keepalive: true}
	}

	if i.Sink == nil {
		outcome = "failed"
		observer.Error(ctx, "webhooks: intake has no event sink", map[string]any{"request_id": requestID})
		return Result{StatusCode: http.StatusAccepted}
	}
	for _, event := range events {
		i.Sink.Push(event)
	}
	return Result{StatusCode: http.StatusAccepted, Enqueued: len(events)}
}

func (i *Intake) maxBodyBytes() int64 {
	if i == nil || i.MaxBodyBytes <= 0 {
		return defaultMaxBodyBytes
	}
	return i.MaxBodyBytes
}

// decodeNotification accepts a single event object or a list of them.
func decodeNotification(body []byte) ([]core.Event, bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, false
	}
	switch body[0] {
	case '{':
		event, ok := core.EventFromObject(body)
		if !ok {
			return nil, false
		}
		return []core.Event{event}, true
	case '[':
		events, err := core.EventsFromJSON(body)
		if err != nil {
			return nil, false
		}
		return events, true
	default:
		return nil, false
	}
}

func keepaliveMerchantIDs(payload json.RawMessage) []string {
	var envelope struct {
		MerchantIDs []any `json:"merchantIds"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil
	}
	out := make([]string, 0, len(envelope.MerchantIDs))
	for _, value := range envelope.MerchantIDs {
		if id, ok := value.(string); ok && strings.TrimSpace(id) != "" {
			out = append(out, strings.TrimSpace(id))
		}
	}
	return out
}
