package query

import (
	"context"
	"strings"

	"github.com/goliatone/go-orderfeed/core"
	"github.com/goliatone/go-orderfeed/polling"
)

type CredentialHealthReader interface {
	Health(ctx context.Context) core.CredentialHealth
}

type CancellationReasonsReader interface {
	CancellationReasons(ctx context.Context, orderID string) ([]core.CancellationReason, error)
}

type OrderInspector interface {
	Inspect(ctx context.Context, orderID string, credential *core.Credential) (core.NormalizedOrder, error)
}

type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (core.OrderState, error)
}

type PollingStatusReader interface {
	Status() polling.Status
}

type CredentialHealthQuery struct {
	reader CredentialHealthReader
}

func NewCredentialHealthQuery(reader CredentialHealthReader) *CredentialHealthQuery {
	return &CredentialHealthQuery{reader: reader}
}

// Query reports the credential state. An unhealthy credential is a result,
// not an error.
func (q *CredentialHealthQuery) Query(ctx context.Context, _ CredentialHealthMessage) (core.CredentialHealth, error) {
	if q == nil || q.reader == nil {
		return core.CredentialHealth{}, queryDependencyError("query: credential health reader is required")
	}
	return q.reader.Health(ctx), nil
}

type CancellationReasonsQuery struct {
	reader CancellationReasonsReader
}

func NewCancellationReasonsQuery(reader CancellationReasonsReader) *CancellationReasonsQuery {
	return &CancellationReasonsQuery{reader: reader}
}

func (q *CancellationReasonsQuery) Query(ctx context.Context, msg CancellationReasonsMessage) ([]core.CancellationReason, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: cancellation reasons reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.CancellationReasons(ctx, strings.TrimSpace(msg.OrderID))
}

type OrderDetailQuery struct {
	inspector OrderInspector
}

func NewOrderDetailQuery(inspector OrderInspector) *OrderDetailQuery {
	return &OrderDetailQuery{inspector: inspector}
}

func (q *OrderDetailQuery) Query(ctx context.Context, msg OrderDetailMessage) (core.NormalizedOrder, error) {
	if q == nil || q.inspector == nil {
		return core.NormalizedOrder{}, queryDependencyError("query: order inspector is required")
	}
	if err := msg.Validate(); err != nil {
		return core.NormalizedOrder{}, err
	}
	return q.inspector.Inspect(ctx, strings.TrimSpace(msg.OrderID), nil)
}

type LocalOrderQuery struct {
	reader OrderReader
}

func NewLocalOrderQuery(reader OrderReader) *LocalOrderQuery {
	return &LocalOrderQuery{reader: reader}
}

func (q *LocalOrderQuery) Query(ctx context.Context, msg LocalOrderMessage) (core.OrderState, error) {
	if q == nil || q.reader == nil {
		return core.OrderState{}, queryDependencyError("query: order reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.OrderState{}, err
	}
	return q.reader.GetOrder(ctx, strings.TrimSpace(msg.OrderID))
}

type PollingStatusQuery struct {
	reader PollingStatusReader
}

func NewPollingStatusQuery(reader PollingStatusReader) *PollingStatusQuery {
	return &PollingStatusQuery{reader: reader}
}

func (q *PollingStatusQuery) Query(_ context.Context, _ PollingStatusMessage) (polling.Status, error) {
	if q == nil || q.reader == nil {
		return polling.Status{}, queryDependencyError("query: polling status reader is required")
	}
	return q.reader.Status(), nil
}
