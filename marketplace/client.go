// Package marketplace is the outbound client for the marketplace merchant
// API: event polling and acknowledgment, order detail, cancellation reasons
// and order actions.
package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-orderfeed/core"
	"github.com/goliatone/go-orderfeed/transport"
)

const (
	DefaultRequestTimeout = 20 * time.Second

	pollingPath         = "/order/v1.0/events:polling"
	acknowledgmentPath  = "/order/v1.0/events/acknowledgment"
	ordersPath          = "/order/v1.0/orders/"
	pollingMerchantsKey = "x-polling-merchants"
	responseExcerptSize = 200
)

type Config struct {
	BaseURL string
	// Timeout bounds every call. Calls are detached from caller
	// cancellation so only the timeout ends an in-flight request.
	Timeout time.Duration
	Logger  core.Logger
	Metrics core.MetricsRecorder
}

type Client struct {
	baseURL     string
	timeout     time.Duration
	credentials core.CredentialSource
	rest        *transport.RESTAdapter
	observer    core.Observer
}

func NewClient(cfg Config, credentials core.CredentialSource, httpClient transport.HTTPDoer) (*Client, error) {
	if credentials == nil {
		return nil, core.ConfigError("marketplace: credential source is required", map[string]any{"component": "marketplace"})
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = core.DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, core.ConfigError("marketplace: invalid base url", map[string]any{"base_url": baseURL})
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if httpClient == nil {
		httpClient = transport.NewHTTPClient(timeout)
	}
	rest := transport.NewRESTAdapter(httpClient)
	rest.DefaultHeaders["Accept"] = "application/json"
	return &Client{
		baseURL:     baseURL,
		timeout:     timeout,
		credentials: credentials,
		rest:        rest,
		observer:    core.NewObserver(cfg.Logger, cfg.Metrics),
	}, nil
}

// PollEvents fetches the pending events. No content means no events.
func (c *Client) PollEvents(ctx context.Context, merchantIDs []string) (events []core.Event, err error) {
	startedAt := time.Now()
	defer func() {
		c.observer.Operation(ctx, startedAt, "marketplace poll", err, map[string]any{
			"events":    len(events),
			"merchants": len(merchantIDs),
		})
	}()

	headers := map[string]string{}
	if merchants := joinIDs(merchantIDs); merchants != "" {
		headers[pollingMerchantsKey] = merchants
	}
	res, err := c.do(ctx, "poll events", transport.Request{
		Method:  http.MethodGet,
		URL:     c.baseURL + pollingPath,
		Headers: headers,
	}, nil)
	if err != nil {
		return nil, err
	}
	if err := expectSuccess(res, "poll events"); err != nil {
		return nil, err
	}
	if res.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	return core.EventsFromJSON(res.Body)
}

// Acknowledge confirms receipt of the given event ids. An empty list sends
// nothing.
func (c *Client) Acknowledge(ctx context.Context, eventIDs []string) (err error) {
	ids := compactIDs(eventIDs)
	if len(ids) == 0 {
		return nil
	}
	startedAt := time.Now()
	defer func() {
		c.observer.Operation(ctx, startedAt, "marketplace acknowledge", err, map[string]any{"events": len(ids)})
	}()

	body, err := json.Marshal(map[string][]string{"eventIds": ids})
	if err != nil {
		return core.InternalError(err, "marketplace: encode acknowledgment")
	}
	res, err := c.do(ctx, "acknowledge events", transport.Request{
		Method:  http.MethodPost,
		URL:     c.baseURL + acknowledgmentPath,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	}, nil)
	if err != nil {
		return err
	}
	return expectSuccess(res, "acknowledge events")
}

// GetOrder fetches the full order document. A usable credential is tried
// first instead of acquiring one.
func (c *Client) GetOrder(ctx context.Context, orderID string, credential *core.Credential) (doc core.OrderDocument, err error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return core.OrderDocument{}, core.BadInputError("order_id", "order id is required")
	}
	startedAt := time.Now()
	defer func() {
		c.observer.Operation(ctx, startedAt, "marketplace order detail", err, map[string]any{"order_id": orderID})
	}()

	res, err := c.do(ctx, "order detail", transport.Request{
		Method: http.MethodGet,
		URL:    c.orderURL(orderID),
	}, credential)
	if err != nil {
		return core.OrderDocument{}, err
	}
	if err := expectSuccess(res, "order detail"); err != nil {
		return core.OrderDocument{}, err
	}
	return core.ParseOrderDocument(res.Body)
}

func (c *Client) CancellationReasons(ctx context.Context, orderID string) (reasons []core.CancellationReason, err error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, core.BadInputError("order_id", "order id is required")
	}
	startedAt := time.Now()
	defer func() {
		c.observer.Operation(ctx, startedAt, "marketplace cancellation reasons", err, map[string]any{"order_id": orderID})
	}()

	res, err := c.do(ctx, "cancellation reasons", transport.Request{
		Method: http.MethodGet,
		URL:    c.orderURL(orderID) + "/cancellationReasons",
	}, nil)
	if err != nil {
		return nil, err
	}
	if err := expectSuccess(res, "cancellation reasons"); err != nil {
		return nil, err
	}
	if res.StatusCode == http.StatusNoContent || len(strings.TrimSpace(string(res.Body))) == 0 {
		return []core.CancellationReason{}, nil
	}
	if err := json.Unmarshal(res.Body, &reasons); err != nil {
		return nil, core.MalformedPayloadError("marketplace: cancellation reasons are not a list", map[string]any{
			"order_id": orderID,
			"error":    err.Error(),
		})
	}
	return reasons, nil
}

// ActionInput describes one remote order action. Reason fields apply to
// requestCancellation only.
type ActionInput struct {
	OrderID           string
	Action            core.OrderAction
	ReasonCode        string
	ReasonDescription string
}

// PerformAction posts the action and reports the remote answer. Acceptance
// is signaled by 202; any other received status is reported, not returned
// as an error.
func (c *Client) PerformAction(ctx context.Context, in ActionInput) (result core.ActionResult, err error) {
	orderID := strings.TrimSpace(in.OrderID)
	if orderID == "" {
		return core.ActionResult{}, core.BadInputError("order_id", "order id is required")
	}
	action, ok := core.ParseOrderAction(string(in.Action))
	if !ok {
		return core.ActionResult{}, core.BadInputError("action", fmt.Sprintf("unsupported action %q", in.Action))
	}
	body := []byte("{}")
	if action == core.ActionRequestCancellation {
		reason := strings.TrimSpace(in.ReasonCode)
		if reason == "" {
			return core.ActionResult{}, core.BadInputError("reasonCode", "reasonCode is required for requestCancellation")
		}
		body, err = json.Marshal(map[string]string{
			"reason":      reason,
			"description": strings.TrimSpace(in.ReasonDescription),
		})
		if err != nil {
			return core.ActionResult{}, core.InternalError(err, "marketplace: encode cancellation request")
		}
	}

	startedAt := time.Now()
	defer func() {
		c.observer.Operation(ctx, startedAt, "marketplace action", err, map[string]any{
			"order_id":    orderID,
			"action":      string(action),
			"status_code": result.StatusCode,
		}, "action")
	}()

	res, err := c.do(ctx, "order action", transport.Request{
		Method:  http.MethodPost,
		URL:     c.orderURL(orderID) + "/" + string(action),
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	}, nil)
	if err != nil {
		return core.ActionResult{}, err
	}

	result = core.ActionResult{
		OrderID:    orderID,
		Action:     action,
		Accepted:   res.StatusCode == http.StatusAccepted,
		StatusCode: res.StatusCode,
	}
	if trimmed := strings.TrimSpace(string(res.Body)); trimmed != "" {
		if json.Valid(res.Body) {
			result.Response = json.RawMessage(res.Body)
		} else {
			result.Detail = excerpt(res.Body)
		}
	}
	return result, nil
}

// do sends req with a bearer credential. On 401 or 403 the credential is
// invalidated, reacquired and the call retried exactly once; the retry
// response is returned whatever its status.
func (c *Client) do(ctx context.Context, operation string, req transport.Request, credential *core.Credential) (transport.Response, error) {
	if c == nil || c.rest == nil || c.credentials == nil {
		return transport.Response{}, core.ConfigError("marketplace: client is not configured", nil)
	}
	req.Timeout = c.timeout
	req.Detached = true

	var token string
	if credential != nil && !credential.Empty() {
		token = credential.AccessToken
	} else {
		acquired, err := c.credentials.Acquire(ctx)
		if err != nil {
			return transport.Response{}, err
		}
		token = acquired.AccessToken
	}

	res, err := c.send(ctx, operation, req, token)
	if err != nil {
		return transport.Response{}, err
	}
	if !authRejected(res.StatusCode) {
		return res, nil
	}

	c.observer.Warn(ctx, "marketplace: credential rejected, retrying once", map[string]any{
		"operation":   operation,
		"status_code": res.StatusCode,
	})
	c.credentials.Invalidate()
	acquired, err := c.credentials.Acquire(ctx)
	if err != nil {
		return transport.Response{}, err
	}
	return c.send(ctx, operation, req, acquired.AccessToken)
}

func (c *Client) send(ctx context.Context, operation string, req transport.Request, token string) (transport.Response, error) {
	headers := make(map[string]string, len(req.Headers)+1)
	for key, value := range req.Headers {
		headers[key] = value
	}
	headers["Authorization"] = "Bearer " + token
	req.Headers = headers

	res, err := c.rest.Do(ctx, req)
	if err != nil {
		return transport.Response{}, core.TransientRemoteError(err, "marketplace: "+operation+" request failed", 0, map[string]any{
			"url": req.URL,
		})
	}
	return res, nil
}

func (c *Client) orderURL(orderID string) string {
	return c.baseURL + ordersPath + url.PathEscape(orderID)
}

// expectSuccess classifies a non-2xx response. A credential still rejected
// after the retry is an AuthError; anything else is transient.
func expectSuccess(res transport.Response, operation string) error {
	if res.Success() {
		return nil
	}
	metadata := map[string]any{
		"operation": operation,
		"response":  excerpt(res.Body),
	}
	if authRejected(res.StatusCode) {
		metadata[core.MetadataStatusCode] = res.StatusCode
		return core.AuthError(nil, "marketplace: "+operation+" rejected the credential", metadata)
	}
	return core.TransientRemoteError(nil, "marketplace: "+operation+" failed", res.StatusCode, metadata)
}

func authRejected(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

func excerpt(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > responseExcerptSize {
		return text[:responseExcerptSize]
	}
	return text
}

func compactIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func joinIDs(ids []string) string {
	return strings.Join(compactIDs(ids), ",")
}

var _ core.OrderSource = (*Client)(nil)
