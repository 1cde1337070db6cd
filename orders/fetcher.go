package orders

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-orderfeed/core"
)

type FetcherConfig struct {
	Location *time.Location
	Source   string
	Logger   core.Logger
	Metrics  core.MetricsRecorder
}

// Fetcher retrieves order detail from the marketplace and stores its rows.
type Fetcher struct {
	source   core.OrderSource
	store    core.OrderStore
	options  NormalizeOptions
	observer core.Observer
}

func NewFetcher(source core.OrderSource, store core.OrderStore, cfg FetcherConfig) (*Fetcher, error) {
	if source == nil {
		return nil, core.ConfigError("orders: order source is required", map[string]any{"component": "orders"})
	}
	if store == nil {
		return nil, core.ConfigError("orders: order store is required", map[string]any{"component": "orders"})
	}
	return &Fetcher{
		source: source,
		store:  store,
		options: NormalizeOptions{
			Location: cfg.Location,
			Source:   cfg.Source,
		},
		observer: core.NewObserver(cfg.Logger, cfg.Metrics),
	}, nil
}

// Fetch downloads, normalizes and inserts the order. Rows already stored for
// the order are kept as they are, so fetching twice is harmless.
func (f *Fetcher) Fetch(ctx context.Context, orderID string, credential *core.Credential) (order core.NormalizedOrder, result core.OrderInsertResult, err error) {
	startedAt := time.Now()
	defer func() {
		f.observer.Operation(ctx, startedAt, "orders fetch", err, map[string]any{
			"order_id": orderID,
			"items":    result.Items,
			"payments": result.Payments,
			"benefits": result.Benefits,
		})
	}()

	order, err = f.Inspect(ctx, orderID, credential)
	if err != nil {
		return core.NormalizedOrder{}, core.OrderInsertResult{}, err
	}
	result, err = f.store.InsertOrder(ctx, order)
	if err != nil {
		return order, core.OrderInsertResult{}, err
	}
	return order, result, nil
}

// Inspect downloads and normalizes the order without persisting it.
func (f *Fetcher) Inspect(ctx context.Context, orderID string, credential *core.Credential) (core.NormalizedOrder, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return core.NormalizedOrder{}, core.BadInputError("order_id", "order id is required")
	}
	doc, err := f.source.GetOrder(ctx, orderID, credential)
	if err != nil {
		return core.NormalizedOrder{}, err
	}
	if strings.TrimSpace(doc.ID) == "" {
		doc.ID = orderID
	}
	return Normalize(doc, f.options), nil
}
