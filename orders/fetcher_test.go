package orders_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/goliatone/go-orderfeed/core"
	"github.com/goliatone/go-orderfeed/orders"
	sqlstore "github.com/goliatone/go-orderfeed/store/sql"
)

type stubSource struct {
	doc         core.OrderDocument
	err         error
	calls       int
	credentials []*core.Credential
}

func (s *stubSource) GetOrder(_ context.Context, orderID string, credential *core.Credential) (core.OrderDocument, error) {
	s.calls++
	s.credentials = append(s.credentials, credential)
	if s.err != nil {
		return core.OrderDocument{}, s.err
	}
	doc := s.doc
	if doc.ID == "" {
		doc.ID = orderID
	}
	return doc, nil
}

func TestFetcher_FetchTwiceKeepsOneRowSet(t *testing.T) {
	ctx := context.Background()
	store := newOrderStore(t)
	source := &stubSource{doc: threeItemOrder()}
	fetcher, err := orders.NewFetcher(source, store, orders.FetcherConfig{Location: time.UTC, Source: "IFOOD"})
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}

	_, first, err := fetcher.Fetch(ctx, "o-3items", nil)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if first.Items != 3 || first.Payments != 1 || first.Benefits != 1 {
		t.Fatalf("unexpected first result %+v", first)
	}
	_, second, err := fetcher.Fetch(ctx, "o-3items", nil)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if second.Items != 0 || second.Payments != 0 || second.Benefits != 0 {
		t.Fatalf("expected second fetch to write nothing, got %+v", second)
	}

	state, err := store.GetOrder(ctx, "o-3items")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if len(state.Items) != 3 {
		t.Fatalf("expected 3 item rows, got %d", len(state.Items))
	}
	if state.Items[0].Source != "IFOOD" || state.Items[0].DeliveryAddress != orders.PickupAtCounter {
		t.Fatalf("unexpected stored item %+v", state.Items[0])
	}
	if source.calls != 2 {
		t.Fatalf("expected two remote calls, got %d", source.calls)
	}
}

func TestFetcher_PassesCredentialThrough(t *testing.T) {
	source := &stubSource{doc: threeItemOrder()}
	fetcher, err := orders.NewFetcher(source, newOrderStore(t), orders.FetcherConfig{})
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	credential := &core.Credential{AccessToken: "live", ExpiresAt: time.Now().Add(time.Hour)}
	if _, _, err := fetcher.Fetch(context.Background(), "o-cred", credential); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(source.credentials) != 1 || source.credentials[0] != credential {
		t.Fatalf("expected credential to reach the source")
	}
}

func TestFetcher_RemoteErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := newOrderStore(t)
	boom := core.TransientRemoteError(errors.New("down"), "remote down", 503, nil)
	fetcher, err := orders.NewFetcher(&stubSource{err: boom}, store, orders.FetcherConfig{})
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	if _, _, err := fetcher.Fetch(ctx, "o-fail", nil); !core.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if _, err := store.GetOrder(ctx, "o-fail"); !core.IsNotFound(err) {
		t.Fatalf("expected nothing stored, got %v", err)
	}
}

func TestFetcher_InspectDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	store := newOrderStore(t)
	fetcher, err := orders.NewFetcher(&stubSource{doc: threeItemOrder()}, store, orders.FetcherConfig{})
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	order, err := fetcher.Inspect(ctx, "o-inspect", nil)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if len(order.Items) != 3 || order.OrderID != "o-inspect" {
		t.Fatalf("unexpected inspected order %+v", order)
	}
	if _, err := store.GetOrder(ctx, "o-inspect"); !core.IsNotFound(err) {
		t.Fatalf("expected inspect to leave storage untouched, got %v", err)
	}
	if _, err := fetcher.Inspect(ctx, " ", nil); err == nil {
		t.Fatalf("expected empty order id to fail")
	}
}

func TestNewFetcher_RequiresCollaborators(t *testing.T) {
	if _, err := orders.NewFetcher(nil, newOrderStore(t), orders.FetcherConfig{}); !core.IsConfigError(err) {
		t.Fatalf("expected config error for nil source, got %v", err)
	}
	if _, err := orders.NewFetcher(&stubSource{}, nil, orders.FetcherConfig{}); !core.IsConfigError(err) {
		t.Fatalf("expected config error for nil store, got %v", err)
	}
}

func threeItemOrder() core.OrderDocument {
	return core.OrderDocument{
		DisplayID: "0042",
		CreatedAt: "2024-05-01T10:00:00Z",
		Items: []core.OrderItem{
			{Name: "Burger", Quantity: 1, TotalPrice: 20},
			{Name: "Fries", Quantity: 2, TotalPrice: 12},
			{Name: "Soda", Quantity: 1, TotalPrice: 6},
		},
		Payments: core.OrderPayments{Methods: []core.OrderPaymentMethod{
			{Method: "PIX", Amount: core.OrderAmount{Value: 3800}},
		}},
		Benefits: core.OrderBenefits{
			{Target: "CART", Sponsorships: []core.OrderSponsorship{{Liability: "IFOOD", Amount: core.OrderAmount{Value: 300}}}},
		},
	}
}

func newOrderStore(t *testing.T) core.OrderStore {
	t.Helper()
	dsn := fmt.Sprintf("file:orders-test-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano())
	client, err := sqlstore.Open(context.Background(), core.StorageConfig{Driver: "sqlite3", DSN: dsn}, "orders-tests")
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	return factory.OrderStore()
}
