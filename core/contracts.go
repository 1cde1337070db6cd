package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// CredentialSource hands out bearer credentials for remote calls.
type CredentialSource interface {
	Acquire(ctx context.Context) (Credential, error)
	Invalidate()
}

// EventSink accepts events for asynchronous processing. Push never blocks.
type EventSink interface {
	Push(event Event)
}

// IdempotencyStore is the durable ledger of event ids already accepted.
type IdempotencyStore interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	// Record inserts the record, ignoring an existing entry for the same
	// event id. It reports whether a new row was written.
	Record(ctx context.Context, record IdempotencyRecord) (bool, error)
}

type OrderStore interface {
	// InsertOrder writes the rows of a normalized order. Rows already present
	// for the same natural key are left untouched.
	InsertOrder(ctx context.Context, order NormalizedOrder) (OrderInsertResult, error)
	// UpdateStatus sets the status of every item row of the order and returns
	// the number of rows changed. Zero rows is not an error.
	UpdateStatus(ctx context.Context, orderID string, status OrderStatus) (int64, error)
	GetOrder(ctx context.Context, orderID string) (OrderState, error)
}

// StatusUpdater is the subset of OrderStore that only touches status.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, orderID string, status OrderStatus) (int64, error)
}

// OrderSource fetches remote order detail. A non-nil credential is used for
// the first attempt instead of acquiring one.
type OrderSource interface {
	GetOrder(ctx context.Context, orderID string, credential *Credential) (OrderDocument, error)
}
