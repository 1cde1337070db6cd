// Package processor drains the event queue and applies each event to the
// local order state.
package processor

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-orderfeed/adapters/gojob"
	"github.com/goliatone/go-orderfeed/core"

	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

// Handler applies one event.
type Handler interface {
	Handle(ctx context.Context, event core.Event) error
}

type HandlerFunc func(ctx context.Context, event core.Event) error

func (f HandlerFunc) Handle(ctx context.Context, event core.Event) error {
	return f(ctx, event)
}

// OrderFetcher downloads and stores an order. It is satisfied by orders.Fetcher.
type OrderFetcher interface {
	Fetch(ctx context.Context, orderID string, credential *core.Credential) (core.NormalizedOrder, core.OrderInsertResult, error)
}

type Config struct {
	Fetcher OrderFetcher
	Store   core.StatusUpdater
	// Hook receives a start event and one outcome event per processed event.
	Hook    worker.Hook
	Logger  core.Logger
	Metrics core.MetricsRecorder
}

// Processor is the single consumer of the event queue. One event failing,
// or panicking, never stops the loop.
type Processor struct {
	source   queue.Dequeuer
	hook     worker.Hook
	observer core.Observer

	mu       sync.RWMutex
	handlers map[core.EventCode]Handler
}

// New builds a processor with the default transition table registered.
func New(source queue.Dequeuer, cfg Config) (*Processor, error) {
	if source == nil {
		return nil, core.ConfigError("processor: event source is required", map[string]any{"component": "processor"})
	}
	if cfg.Store == nil {
		return nil, core.ConfigError("processor: status store is required", map[string]any{"component": "processor"})
	}
	if cfg.Fetcher == nil {
		return nil, core.ConfigError("processor: order fetcher is required", map[string]any{"component": "processor"})
	}
	p := &Processor{
		source:   source,
		hook:     cfg.Hook,
		observer: core.NewObserver(cfg.Logger, cfg.Metrics),
		handlers: map[core.EventCode]Handler{},
	}
	if err := p.Register(core.EventCodePlaced, PlacedHandler(cfg.Fetcher, cfg.Store)); err != nil {
		return nil, err
	}
	for _, code := range []core.EventCode{
		core.EventCodeConfirmed,
		core.EventCodeReadyToPickup,
		core.EventCodeDispatched,
		core.EventCodeCancellationRequested,
		core.EventCodeCancelled,
	} {
		if err := p.Register(code, StatusHandler(cfg.Store)); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Register binds a handler to a canonical event code. A code can be bound
// once.
func (p *Processor) Register(code core.EventCode, handler Handler) error {
	if p == nil {
		return core.InternalError(nil, "processor: processor is nil")
	}
	if handler == nil {
		return core.BadInputError("handler", "processor: handler is nil")
	}
	if !code.Known() {
		return core.BadInputError("code", "processor: cannot register a handler for an unknown code")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.handlers[code]; exists {
		return core.BadInputError("code", fmt.Sprintf("processor: handler already registered for %s", code))
	}
	p.handlers[code] = handler
	return nil
}

// Run consumes deliveries until ctx ends. Every delivery is acknowledged
// whatever the outcome.
func (p *Processor) Run(ctx context.Context) error {
	if p == nil || p.source == nil {
		return core.ConfigError("processor: processor is not configured", nil)
	}
	p.observer.Info(ctx, "processor: started", nil)
	defer p.observer.Info(context.WithoutCancel(ctx), "processor: stopped", nil)
	for {
		delivery, err := p.source.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.observer.Error(ctx, "processor: dequeue failed", map[string]any{"error": err.Error()})
			continue
		}
		p.consume(ctx, delivery)
	}
}

func (p *Processor) consume(ctx context.Context, delivery queue.Delivery) {
	if delivery == nil {
		return
	}
	startedAt := time.Now()
	hookEvent := worker.Event{Delivery: delivery, Message: delivery.Message(), Attempt: 1, StartedAt: startedAt}
	p.onStart(ctx, hookEvent)

	event, err := gojob.FromExecutionMessage(delivery.Message())
	if err != nil {
		err = core.MalformedPayloadError("processor: undecodable delivery", map[string]any{"error": err.Error()})
	} else {
		err = p.Process(ctx, event)
	}

	hookEvent.Duration = time.Since(startedAt)
	hookEvent.Err = err
	if err != nil {
		p.onFailure(ctx, hookEvent)
	} else {
		p.onSuccess(ctx, hookEvent)
	}
	if ackErr := delivery.Ack(ctx); ackErr != nil {
		p.observer.Warn(ctx, "processor: ack failed", map[string]any{
			"event_id": event.ID,
			"error":    ackErr.Error(),
		})
	}
}

// Process applies one event. Unknown codes are a no-op. A panic in the
// handler is recovered and returned as an internal error.
func (p *Processor) Process(ctx context.Context, event core.Event) (err error) {
	startedAt := time.Now()
	kind := event.Kind
	if !kind.Known() {
		kind = core.ParseEventCode(event.Code)
	}
	fields := map[string]any{
		"event_id": event.ID,
		"order_id": event.OrderID,
		"code":     event.Code,
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			err = core.InternalError(fmt.Errorf("panic: %v", recovered), "processor: handler panicked")
			p.observer.Error(ctx, "processor: recovered panic", map[string]any{
				"event_id": event.ID,
				"panic":    fmt.Sprint(recovered),
				"stack":    string(debug.Stack()),
			})
		}
		p.observer.Operation(ctx, startedAt, "processor event", err, fields)
	}()

	handler := p.handlerFor(kind)
	if handler == nil {
		if kind != core.EventCodeKeepalive {
			p.observer.Debug(ctx, "processor: ignoring unrecognized code", fields)
		}
		return nil
	}
	event.Kind = kind
	return handler.Handle(ctx, event)
}

func (p *Processor) handlerFor(code core.EventCode) Handler {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.handlers[code]
}

func (p *Processor) onStart(ctx context.Context, event worker.Event) {
	if p.hook != nil {
		p.hook.OnStart(ctx, event)
	}
}

func (p *Processor) onSuccess(ctx context.Context, event worker.Event) {
	if p.hook != nil {
		p.hook.OnSuccess(ctx, event)
	}
}

func (p *Processor) onFailure(ctx context.Context, event worker.Event) {
	if p.hook != nil {
		p.hook.OnFailure(ctx, event)
	}
}

// PlacedHandler fetches and stores the order, then marks it new.
func PlacedHandler(fetcher OrderFetcher, store core.StatusUpdater) Handler {
	return HandlerFunc(func(ctx context.Context, event core.Event) error {
		orderID := strings.TrimSpace(event.OrderID)
		if orderID == "" {
			return core.MalformedPayloadError("processor: placed event without order id", map[string]any{"event_id": event.ID})
		}
		if _, _, err := fetcher.Fetch(ctx, orderID, nil); err != nil {
			return err
		}
		_, err := store.UpdateStatus(ctx, orderID, core.StatusNew)
		return err
	})
}

// StatusHandler sets the status the event code maps to. An order with no
// local rows is left alone.
func StatusHandler(store core.StatusUpdater) Handler {
	return HandlerFunc(func(ctx context.Context, event core.Event) error {
		status, ok := event.Kind.TargetStatus()
		if !ok {
			return nil
		}
		orderID := strings.TrimSpace(event.OrderID)
		if orderID == "" {
			return core.MalformedPayloadError("processor: status event without order id", map[string]any{"event_id": event.ID})
		}
		_, err := store.UpdateStatus(ctx, orderID, status)
		return err
	})
}

var _ Handler = HandlerFunc(nil)
