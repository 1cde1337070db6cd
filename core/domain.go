package core

import (
	"encoding/json"
	"strings"
	"time"
)

// EventCode is the canonical classification of a marketplace event code.
type EventCode string

const (
	EventCodeUnknown               EventCode = ""
	EventCodePlaced                EventCode = "PLACED"
	EventCodeConfirmed             EventCode = "CONFIRMED"
	EventCodeReadyToPickup         EventCode = "READY_TO_PICKUP"
	EventCodeDispatched            EventCode = "DISPATCHED"
	EventCodeCancellationRequested EventCode = "CANCELLATION_REQUESTED"
	EventCodeCancelled             EventCode = "CANCELLED"
	EventCodeKeepalive             EventCode = "KEEPALIVE"
)

var eventCodeAliases = map[string]EventCode{
	"PLACED":                 EventCodePlaced,
	"PLC":                    EventCodePlaced,
	"CONFIRMED":              EventCodeConfirmed,
	"CFM":                    EventCodeConfirmed,
	"READY_TO_PICKUP":        EventCodeReadyToPickup,
	"RTP":                    EventCodeReadyToPickup,
	"DISPATCHED":             EventCodeDispatched,
	"DSP":                    EventCodeDispatched,
	"CANCELLATION_REQUESTED": EventCodeCancellationRequested,
	"CANC_REQ":               EventCodeCancellationRequested,
	"CANCELLED":              EventCodeCancelled,
	"CANCELED":               EventCodeCancelled,
	"CANC_APPROVED":          EventCodeCancelled,
	"KEEPALIVE":              EventCodeKeepalive,
	"KEEP-ALIVE":             EventCodeKeepalive,
	"HEARTBEAT":              EventCodeKeepalive,
}

// ParseEventCode maps a raw code (full or abbreviated, any case) to its
// canonical form. Unrecognized codes map to EventCodeUnknown.
func ParseEventCode(raw string) EventCode {
	code, ok := eventCodeAliases[strings.ToUpper(strings.TrimSpace(raw))]
	if !ok {
		return EventCodeUnknown
	}
	return code
}

func (c EventCode) Known() bool {
	return c != EventCodeUnknown
}

// TargetStatus reports the local order status an event code moves an order
// to. PLACED maps to StatusNew after the order detail has been fetched.
func (c EventCode) TargetStatus() (OrderStatus, bool) {
	switch c {
	case EventCodePlaced:
		return StatusNew, true
	case EventCodeConfirmed:
		return StatusConfirmed, true
	case EventCodeReadyToPickup:
		return StatusReadyForPickup, true
	case EventCodeDispatched:
		return StatusDispatched, true
	case EventCodeCancellationRequested:
		return StatusCancellationRequested, true
	case EventCodeCancelled:
		return StatusCancelled, true
	default:
		return "", false
	}
}

type OrderStatus string

const (
	StatusPending               OrderStatus = "pending"
	StatusNew                   OrderStatus = "new"
	StatusConfirmed             OrderStatus = "confirmed"
	StatusReadyForPickup        OrderStatus = "ready for pickup"
	StatusDispatched            OrderStatus = "dispatched"
	StatusCancellationRequested OrderStatus = "cancellation requested"
	StatusCancelled             OrderStatus = "cancelled"
)

// Credential is a bearer access token with an absolute expiry.
type Credential struct {
	AccessToken string
	ExpiresAt   time.Time
}

func (c Credential) Empty() bool {
	return strings.TrimSpace(c.AccessToken) == ""
}

// Remaining returns the validity left at now; zero or negative when expired.
func (c Credential) Remaining(now time.Time) time.Duration {
	if c.Empty() || c.ExpiresAt.IsZero() {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}

// Usable reports whether the credential can be handed out without a
// refresh: it must have more than renewBefore validity left.
func (c Credential) Usable(now time.Time, renewBefore time.Duration) bool {
	return c.Remaining(now) > renewBefore
}

// IdempotencyRecord is the ledger entry for a processed event id.
type IdempotencyRecord struct {
	EventID    string
	OrderID    string
	Code       string
	ReceivedAt time.Time
}

// CredentialHealth is the reported state of the credential cache.
type CredentialHealth struct {
	OK               bool       `json:"ok"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
	RemainingSeconds int64      `json:"remainingSeconds,omitempty"`
	Error            string     `json:"error,omitempty"`
}

type CancellationReason struct {
	Code        string `json:"cancelCodeId"`
	Description string `json:"description"`
}

// OrderAction is a remote order lifecycle action.
type OrderAction string

const (
	ActionConfirm             OrderAction = "confirm"
	ActionStartPreparation    OrderAction = "startPreparation"
	ActionReadyToPickup       OrderAction = "readyToPickup"
	ActionDispatch            OrderAction = "dispatch"
	ActionRequestCancellation OrderAction = "requestCancellation"
)

func ParseOrderAction(raw string) (OrderAction, bool) {
	switch action := OrderAction(strings.TrimSpace(raw)); action {
	case ActionConfirm, ActionStartPreparation, ActionReadyToPickup, ActionDispatch, ActionRequestCancellation:
		return action, true
	default:
		return "", false
	}
}

type ActionResult struct {
	OrderID    string      `json:"orderId"`
	Action     OrderAction `json:"action"`
	Accepted   bool        `json:"ok"`
	StatusCode int         `json:"statusCode"`
	// Response holds the remote JSON body; Detail the truncated text of a
	// non-JSON body.
	Response json.RawMessage `json:"response,omitempty"`
	Detail   string          `json:"detail,omitempty"`
}
