package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Event is a single marketplace order-lifecycle notification.
type Event struct {
	ID      string
	OrderID string
	// Code is the raw code upper-cased; Kind is its canonical classification.
	Code    string
	Kind    EventCode
	Payload json.RawMessage
}

func (e Event) HasID() bool {
	return strings.TrimSpace(e.ID) != ""
}

type eventEnvelope struct {
	ID        any `json:"id"`
	OrderID   any `json:"orderId"`
	FullCode  any `json:"fullCode"`
	Code      any `json:"code"`
	EventName any `json:"event"`
	EventType any `json:"eventType"`
}

// EventFromObject decodes one event object. The code is looked up in the
// order fullCode, code, event, eventType; the order id falls back to the
// event id. It returns false when raw is not a JSON object.
func EventFromObject(raw json.RawMessage) (Event, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Event{}, false
	}
	var envelope eventEnvelope
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return Event{}, false
	}
	code := strings.ToUpper(firstNonEmpty(
		scalarString(envelope.FullCode),
		scalarString(envelope.Code),
		scalarString(envelope.EventName),
		scalarString(envelope.EventType),
	))
	id := scalarString(envelope.ID)
	return Event{
		ID:      id,
		OrderID: firstNonEmpty(scalarString(envelope.OrderID), id),
		Code:    code,
		Kind:    ParseEventCode(code),
		Payload: append(json.RawMessage(nil), trimmed...),
	}, true
}

// EventsFromJSON decodes a list of event objects; non-object entries are skipped.
func EventsFromJSON(raw []byte) ([]Event, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, MalformedPayloadError("event list is not a JSON array", map[string]any{"error": err.Error()})
	}
	events := make([]Event, 0, len(items))
	for _, item := range items {
		if event, ok := EventFromObject(item); ok {
			events = append(events, event)
		}
	}
	return events, nil
}

func scalarString(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%.0f", typed))
	case bool:
		return fmt.Sprint(typed)
	default:
		return ""
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
