package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-orderfeed/core"
	"github.com/goliatone/go-orderfeed/eventqueue"

	"github.com/goliatone/go-job/queue/worker"
)

type statusCall struct {
	orderID string
	status  core.OrderStatus
}

type recordingStore struct {
	mu    sync.Mutex
	calls []statusCall
	err   error
}

func (s *recordingStore) UpdateStatus(_ context.Context, orderID string, status core.OrderStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, statusCall{orderID: orderID, status: status})
	if s.err != nil {
		return 0, s.err
	}
	return 1, nil
}

func (s *recordingStore) snapshot() []statusCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]statusCall(nil), s.calls...)
}

type recordingFetcher struct {
	mu     sync.Mutex
	orders []string
	err    error
}

func (f *recordingFetcher) Fetch(_ context.Context, orderID string, _ *core.Credential) (core.NormalizedOrder, core.OrderInsertResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, orderID)
	if f.err != nil {
		return core.NormalizedOrder{}, core.OrderInsertResult{}, f.err
	}
	return core.NormalizedOrder{OrderID: orderID}, core.OrderInsertResult{Items: 1}, nil
}

type capturingHook struct {
	mu       sync.Mutex
	starts   int
	success  int
	failures []error
	done     chan struct{}
}

func newCapturingHook() *capturingHook {
	return &capturingHook{done: make(chan struct{}, 64)}
}

func (h *capturingHook) OnStart(context.Context, worker.Event) {
	h.mu.Lock()
	h.starts++
	h.mu.Unlock()
}

func (h *capturingHook) OnSuccess(context.Context, worker.Event) {
	h.mu.Lock()
	h.success++
	h.mu.Unlock()
	h.done <- struct{}{}
}

func (h *capturingHook) OnFailure(_ context.Context, event worker.Event) {
	h.mu.Lock()
	h.failures = append(h.failures, event.Err)
	h.mu.Unlock()
	h.done <- struct{}{}
}

func (h *capturingHook) OnRetry(context.Context, worker.Event) {}

func (h *capturingHook) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d of %d", i+1, n)
		}
	}
}

func newTestProcessor(t *testing.T, fetcher OrderFetcher, store core.StatusUpdater, hook worker.Hook) (*Processor, *eventqueue.Queue) {
	t.Helper()
	q := eventqueue.New()
	p, err := New(q, Config{Fetcher: fetcher, Store: store, Hook: hook})
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	return p, q
}

func TestProcess_TransitionTable(t *testing.T) {
	cases := []struct {
		code string
		want core.OrderStatus
	}{
		{"CONFIRMED", core.StatusConfirmed},
		{"cfm", core.StatusConfirmed},
		{"RTP", core.StatusReadyForPickup},
		{"DISPATCHED", core.StatusDispatched},
		{"CANC_REQ", core.StatusCancellationRequested},
		{"CANCELED", core.StatusCancelled},
		{"CANC_APPROVED", core.StatusCancelled},
	}
	for _, tc := range cases {
		store := &recordingStore{}
		fetcher := &recordingFetcher{}
		p, _ := newTestProcessor(t, fetcher, store, nil)
		if err := p.Process(context.Background(), core.Event{ID: "e", OrderID: "o1", Code: tc.code}); err != nil {
			t.Fatalf("%s: process: %v", tc.code, err)
		}
		calls := store.snapshot()
		if len(calls) != 1 || calls[0].status != tc.want || calls[0].orderID != "o1" {
			t.Fatalf("%s: unexpected status calls %+v", tc.code, calls)
		}
		if len(fetcher.orders) != 0 {
			t.Fatalf("%s: status events must not fetch", tc.code)
		}
	}
}

func TestProcess_PlacedFetchesThenMarksNew(t *testing.T) {
	store := &recordingStore{}
	fetcher := &recordingFetcher{}
	p, _ := newTestProcessor(t, fetcher, store, nil)

	if err := p.Process(context.Background(), core.Event{ID: "e1", OrderID: "o1", Code: "PLC"}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(fetcher.orders) != 1 || fetcher.orders[0] != "o1" {
		t.Fatalf("expected one fetch of o1, got %+v", fetcher.orders)
	}
	calls := store.snapshot()
	if len(calls) != 1 || calls[0].status != core.StatusNew {
		t.Fatalf("expected status new, got %+v", calls)
	}
}

func TestProcess_PlacedFetchFailureSkipsStatus(t *testing.T) {
	store := &recordingStore{}
	fetcher := &recordingFetcher{err: core.TransientRemoteError(nil, "down", 503, nil)}
	p, _ := newTestProcessor(t, fetcher, store, nil)

	err := p.Process(context.Background(), core.Event{ID: "e1", OrderID: "o1", Code: "PLACED"})
	if !core.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if len(store.snapshot()) != 0 {
		t.Fatalf("expected no status update after a failed fetch")
	}
}

func TestProcess_UnknownCodeIsNoop(t *testing.T) {
	store := &recordingStore{}
	fetcher := &recordingFetcher{}
	p, _ := newTestProcessor(t, fetcher, store, nil)

	for _, code := range []string{"SOMETHING_NEW", "", "KEEPALIVE"} {
		if err := p.Process(context.Background(), core.Event{ID: "e", OrderID: "o1", Code: code}); err != nil {
			t.Fatalf("%q: expected no error, got %v", code, err)
		}
	}
	if len(store.snapshot()) != 0 || len(fetcher.orders) != 0 {
		t.Fatalf("expected unknown codes to touch nothing")
	}
}

func TestProcess_RecoversHandlerPanic(t *testing.T) {
	p, _ := newTestProcessor(t, &recordingFetcher{}, &recordingStore{}, nil)
	p.handlers[core.EventCodeConfirmed] = HandlerFunc(func(context.Context, core.Event) error {
		panic("boom")
	})
	err := p.Process(context.Background(), core.Event{ID: "e", OrderID: "o1", Code: "CONFIRMED"})
	if err == nil {
		t.Fatalf("expected recovered panic to surface as an error")
	}
}

func TestRegister_RejectsDuplicatesAndUnknown(t *testing.T) {
	p, _ := newTestProcessor(t, &recordingFetcher{}, &recordingStore{}, nil)
	noop := HandlerFunc(func(context.Context, core.Event) error { return nil })

	if err := p.Register(core.EventCodeConfirmed, noop); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if err := p.Register(core.EventCodeUnknown, noop); err == nil {
		t.Fatalf("expected unknown code registration to fail")
	}
	if err := p.Register(core.EventCodeKeepalive, nil); err == nil {
		t.Fatalf("expected nil handler to fail")
	}
	if err := p.Register(core.EventCodeKeepalive, noop); err != nil {
		t.Fatalf("expected keepalive registration to succeed: %v", err)
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	q := eventqueue.New()
	if _, err := New(nil, Config{Fetcher: &recordingFetcher{}, Store: &recordingStore{}}); !core.IsConfigError(err) {
		t.Fatalf("expected config error for nil source, got %v", err)
	}
	if _, err := New(q, Config{Fetcher: &recordingFetcher{}}); !core.IsConfigError(err) {
		t.Fatalf("expected config error for nil store, got %v", err)
	}
	if _, err := New(q, Config{Store: &recordingStore{}}); !core.IsConfigError(err) {
		t.Fatalf("expected config error for nil fetcher, got %v", err)
	}
}

func TestRun_IsolatesFailuresAndKeepsConsuming(t *testing.T) {
	store := &recordingStore{}
	fetcher := &recordingFetcher{err: errors.New("remote down")}
	hook := newCapturingHook()
	p, q := newTestProcessor(t, fetcher, store, hook)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	q.Push(core.Event{ID: "e1", OrderID: "o1", Code: "PLACED", Kind: core.EventCodePlaced})
	q.Push(core.Event{ID: "e2", OrderID: "o1", Code: "CONFIRMED", Kind: core.EventCodeConfirmed})
	q.Push(core.Event{ID: "e3", OrderID: "o1", Code: "UNHEARD_OF"})
	hook.wait(t, 3)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("processor did not stop after cancel")
	}

	hook.mu.Lock()
	defer hook.mu.Unlock()
	if hook.starts != 3 || hook.success != 2 || len(hook.failures) != 1 {
		t.Fatalf("unexpected hook counts starts=%d success=%d failures=%d", hook.starts, hook.success, len(hook.failures))
	}
	calls := store.snapshot()
	if len(calls) != 1 || calls[0].status != core.StatusConfirmed {
		t.Fatalf("expected the confirm after a failed placed event, got %+v", calls)
	}
	if q.Len() != 0 {
		t.Fatalf("expected queue drained, got %d", q.Len())
	}
}
