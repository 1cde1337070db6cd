// Package httpapi mounts the webhook intake and the operator control
// routes on a single http.Handler.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/goliatone/go-orderfeed/command"
	"github.com/goliatone/go-orderfeed/core"
	"github.com/goliatone/go-orderfeed/polling"
	"github.com/goliatone/go-orderfeed/query"

	gocmd "github.com/goliatone/go-command"
	"github.com/google/uuid"
)

const (
	RequestIDHeader           = "X-Request-ID"
	defaultControlBodyLimit   = 64 << 10
	WebhookPath               = "/webhooks/marketplace"
	PollingStartPath          = "/polling/start"
	PollingStopPath           = "/polling/stop"
	PollingStatusPath         = "/polling/status"
	CredentialHealthPath      = "/health/credential"
	LivenessPath              = "/healthz"
	OrderActionPath           = "/orders/action"
	MetricsPath               = "/metrics"
	cancellationReasonsSuffix = "/cancellation-reasons"
)

// Handlers are the pieces the router dispatches to. Nil entries leave their
// routes unmounted.
type Handlers struct {
	Webhook             http.Handler
	MetricsHandler      http.Handler
	PerformOrderAction  gocmd.Commander[command.PerformOrderActionMessage]
	StartPolling        gocmd.Commander[command.StartPollingMessage]
	StopPolling         gocmd.Commander[command.StopPollingMessage]
	CredentialHealth    gocmd.Querier[query.CredentialHealthMessage, core.CredentialHealth]
	CancellationReasons gocmd.Querier[query.CancellationReasonsMessage, []core.CancellationReason]
	OrderDetail         gocmd.Querier[query.OrderDetailMessage, core.NormalizedOrder]
	LocalOrder          gocmd.Querier[query.LocalOrderMessage, core.OrderState]
	PollingStatus       gocmd.Querier[query.PollingStatusMessage, polling.Status]
	Logger              core.Logger
	Metrics             core.MetricsRecorder
}

type router struct {
	handlers Handlers
	observer core.Observer
}

func NewRouter(handlers Handlers) http.Handler {
	r := &router{handlers: handlers, observer: core.NewObserver(handlers.Logger, handlers.Metrics)}
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+LivenessPath, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	if handlers.Webhook != nil {
		mux.Handle("POST "+WebhookPath, handlers.Webhook)
	}
	if handlers.MetricsHandler != nil {
		mux.Handle("GET "+MetricsPath, handlers.MetricsHandler)
	}
	if handlers.StartPolling != nil {
		mux.HandleFunc("POST "+PollingStartPath, r.startPolling)
	}
	if handlers.StopPolling != nil {
		mux.HandleFunc("POST "+PollingStopPath, r.stopPolling)
	}
	if handlers.PollingStatus != nil {
		mux.HandleFunc("GET "+PollingStatusPath, r.pollingStatus)
	}
	if handlers.CredentialHealth != nil {
		mux.HandleFunc("GET "+CredentialHealthPath, r.credentialHealth)
	}
	if handlers.PerformOrderAction != nil {
		mux.HandleFunc("POST "+OrderActionPath, r.orderAction)
	}
	if handlers.CancellationReasons != nil {
		mux.HandleFunc("GET /orders/{id}"+cancellationReasonsSuffix, r.cancellationReasons)
	}
	if handlers.OrderDetail != nil {
		mux.HandleFunc("GET /orders/{id}/detail", r.orderDetail)
	}
	if handlers.LocalOrder != nil {
		mux.HandleFunc("GET /orders/{id}", r.localOrder)
	}
	return r.wrap(mux)
}

// wrap tags each request with an id and turns handler panics into 500s.
func (r *router) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		requestID := strings.TrimSpace(req.Header.Get(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if recovered := recover(); recovered != nil {
				r.observer.Error(req.Context(), "httpapi: handler panic", map[string]any{
					"request_id": requestID,
					"path":       req.URL.Path,
					"panic":      fmt.Sprint(recovered),
					"stack":      string(debug.Stack()),
				})
				if !rec.wrote {
					writeError(rec, core.InternalError(nil, "httpapi: handler panic"))
				}
			}
			r.observer.Debug(req.Context(), "httpapi: request served", map[string]any{
				"request_id":  requestID,
				"method":      req.Method,
				"path":        req.URL.Path,
				"status":      rec.status,
				"duration_ms": time.Since(startedAt).Milliseconds(),
			})
			r.observer.Count(req.Context(), "http.requests", map[string]string{
				"method": req.Method,
				"code":   fmt.Sprint(rec.status),
			})
		}()
		next.ServeHTTP(rec, req)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (s *statusRecorder) WriteHeader(status int) {
	if s.wrote {
		return
	}
	s.status = status
	s.wrote = true
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(body []byte) (int, error) {
	if !s.wrote {
		s.WriteHeader(http.StatusOK)
	}
	return s.ResponseWriter.Write(body)
}

func (r *router) startPolling(w http.ResponseWriter, req *http.Request) {
	body, err := readBody(req)
	if err != nil {
		writeError(w, err)
		return
	}
	merchants, err := ParseMerchantIDs(body)
	if err != nil {
		writeError(w, err)
		return
	}
	toggle, err := execute[command.StartPollingMessage, command.PollingToggle](req.Context(), r.handlers.StartPolling, command.StartPollingMessage{MerchantIDs: merchants})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "running": toggle.Running, "changed": toggle.Changed})
}

func (r *router) stopPolling(w http.ResponseWriter, req *http.Request) {
	toggle, err := execute[command.StopPollingMessage, command.PollingToggle](req.Context(), r.handlers.StopPolling, command.StopPollingMessage{})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "running": toggle.Running, "changed": toggle.Changed})
}

func (r *router) pollingStatus(w http.ResponseWriter, req *http.Request) {
	status, err := r.handlers.PollingStatus.Query(req.Context(), query.PollingStatusMessage{})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// credentialHealth answers 500 when no credential can be acquired.
func (r *router) credentialHealth(w http.ResponseWriter, req *http.Request) {
	health, err := r.handlers.CredentialHealth.Query(req.Context(), query.CredentialHealthMessage{})
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if !health.OK {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, health)
}

type orderActionRequest struct {
	OrderID           string `json:"orderId"`
	LegacyOrderID     string `json:"order_id"`
	Action            string `json:"action"`
	ReasonCode        string `json:"reasonCode"`
	ReasonDescription string `json:"reasonDescription"`
	NewStatus         string `json:"newStatus"`
	LegacyNewState    string `json:"newState"`
}

func (r *router) orderAction(w http.ResponseWriter, req *http.Request) {
	body, err := readBody(req)
	if err != nil {
		writeError(w, err)
		return
	}
	var payload orderActionRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			writeError(w, core.BadInputError("body", "request body must be a JSON object"))
			return
		}
	}
	msg := command.PerformOrderActionMessage{
		OrderID:           firstNonEmpty(payload.OrderID, payload.LegacyOrderID),
		Action:            payload.Action,
		ReasonCode:        payload.ReasonCode,
		ReasonDescription: payload.ReasonDescription,
		NewStatus:         firstNonEmpty(payload.NewStatus, payload.LegacyNewState),
	}
	outcome, err := execute[command.PerformOrderActionMessage, command.OrderActionOutcome](req.Context(), r.handlers.PerformOrderAction, msg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (r *router) cancellationReasons(w http.ResponseWriter, req *http.Request) {
	orderID := req.PathValue("id")
	reasons, err := r.handlers.CancellationReasons.Query(req.Context(), query.CancellationReasonsMessage{OrderID: orderID})
	if err != nil {
		writeError(w, err)
		return
	}
	if reasons == nil {
		reasons = []core.CancellationReason{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "orderId": orderID, "reasons": reasons})
}

func (r *router) orderDetail(w http.ResponseWriter, req *http.Request) {
	order, err := r.handlers.OrderDetail.Query(req.Context(), query.OrderDetailMessage{OrderID: req.PathValue("id")})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "order": order})
}

func (r *router) localOrder(w http.ResponseWriter, req *http.Request) {
	order, err := r.handlers.LocalOrder.Query(req.Context(), query.LocalOrderMessage{OrderID: req.PathValue("id")})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "order": order})
}

// execute runs a command and returns the result it stored, if any.
func execute[T any, R any](ctx context.Context, cmd gocmd.Commander[T], msg T) (R, error) {
	collector := gocmd.NewResult[R]()
	var zero R
	if err := cmd.Execute(gocmd.ContextWithResult(ctx, collector), msg); err != nil {
		return zero, err
	}
	value, ok := collector.Load()
	if !ok {
		return zero, nil
	}
	return value, nil
}

// ParseMerchantIDs accepts an empty body, a JSON list, a comma separated
// JSON string, or an object carrying either form under merchantIds or
// merchant_ids.
func ParseMerchantIDs(body []byte) ([]string, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, core.BadInputError("merchantIds", "request body must be JSON")
	}
	if object, ok := raw.(map[string]any); ok {
		raw = object["merchantIds"]
		if raw == nil {
			raw = object["merchant_ids"]
		}
	}
	switch value := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return core.SplitList(value), nil
	case []any:
		ids := make([]string, 0, len(value))
		for _, item := range value {
			text, ok := item.(string)
			if !ok {
				return nil, core.BadInputError("merchantIds", "merchant ids must be strings")
			}
			if text = strings.TrimSpace(text); text != "" {
				ids = append(ids, text)
			}
		}
		return ids, nil
	default:
		return nil, core.BadInputError("merchantIds", "merchantIds must be a list or a comma separated string")
	}
}

func readBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(req.Body, defaultControlBodyLimit+1))
	if err != nil {
		return nil, core.BadInputError("body", "request body could not be read")
	}
	if len(body) > defaultControlBodyLimit {
		return nil, core.BadInputError("body", "request body is too large")
	}
	return body, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
