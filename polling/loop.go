// Package polling pulls pending marketplace events on an interval,
// acknowledges them and enqueues the ones not yet in the ledger.
package polling

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-orderfeed/core"
)

const (
	DefaultInterval    = 30 * time.Second
	DefaultJitterSteps = 3
	DefaultJitterStep  = time.Second
)

// Source is the remote side of the loop. It is satisfied by
// marketplace.Client.
type Source interface {
	PollEvents(ctx context.Context, merchantIDs []string) ([]core.Event, error)
	Acknowledge(ctx context.Context, eventIDs []string) error
}

type Config struct {
	Interval time.Duration
	// JitterSteps is the size of the jitter cycle; the sleep after cycle n
	// is Interval + (n mod JitterSteps) * JitterStep.
	JitterSteps int
	JitterStep  time.Duration
	Now         func() time.Time
	Logger      core.Logger
	Metrics     core.MetricsRecorder
}

// CycleResult summarizes one polling iteration.
type CycleResult struct {
	Received     int `json:"received"`
	Acknowledged int `json:"acknowledged"`
	Duplicates   int `json:"duplicates"`
	Enqueued     int `json:"enqueued"`
}

type Status struct {
	Running     bool       `json:"running"`
	MerchantIDs []string   `json:"merchantIds"`
	Cycles      int64      `json:"cycles"`
	LastCycleAt *time.Time `json:"lastCycleAt,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
}

// Loop runs at most one background polling goroutine. Stopping is
// cooperative: the in-flight cycle completes before the goroutine exits.
type Loop struct {
	source   Source
	ledger   core.IdempotencyStore
	sink     core.EventSink
	config   Config
	observer core.Observer

	mu          sync.Mutex
	running     atomic.Bool
	stop        chan struct{}
	done        chan struct{}
	merchants   []string
	jitter      int
	cycles      atomic.Int64
	lastCycleAt time.Time
	lastError   string
}

func New(source Source, ledger core.IdempotencyStore, sink core.EventSink, cfg Config) (*Loop, error) {
	if source == nil {
		return nil, core.ConfigError("polling: event source is required", map[string]any{"component": "polling"})
	}
	if ledger == nil {
		return nil, core.ConfigError("polling: idempotency store is required", map[string]any{"component": "polling"})
	}
	if sink == nil {
		return nil, core.ConfigError("polling: event sink is required", map[string]any{"component": "polling"})
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.JitterSteps <= 0 {
		cfg.JitterSteps = DefaultJitterSteps
	}
	if cfg.JitterStep <= 0 {
		cfg.JitterStep = DefaultJitterStep
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Loop{
		source:   source,
		ledger:   ledger,
		sink:     sink,
		config:   cfg,
		observer: core.NewObserver(cfg.Logger, cfg.Metrics),
	}, nil
}

// Start launches the background loop for the given merchants. It reports
// false, and changes nothing, when the loop is already running. After a Stop
// the new loop begins only once the previous goroutine has exited.
func (l *Loop) Start(ctx context.Context, merchantIDs []string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running.Load() {
		return false
	}
	previous := l.done
	l.merchants = compactIDs(merchantIDs)
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	l.running.Store(true)

	runCtx := context.WithoutCancel(ctx)
	go func(merchants []string, stop <-chan struct{}, done chan<- struct{}) {
		// a stopped loop may still be finishing its last cycle
		if previous != nil {
			<-previous
		}
		l.run(runCtx, merchants, stop, done)
	}(l.merchants, l.stop, l.done)
	l.observer.Info(ctx, "polling: started", map[string]any{"merchants": strings.Join(l.merchants, ",")})
	return true
}

// Stop signals the loop to exit after its current cycle. It reports false
// when the loop was not running.
func (l *Loop) Stop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running.Load() {
		return false
	}
	l.running.Store(false)
	close(l.stop)
	l.observer.Info(context.Background(), "polling: stop requested", nil)
	return true
}

// Wait blocks until the background goroutine has exited or ctx ends.
func (l *Loop) Wait(ctx context.Context) error {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) Running() bool {
	return l.running.Load()
}

func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	status := Status{
		Running:     l.running.Load(),
		MerchantIDs: append([]string{}, l.merchants...),
		Cycles:      l.cycles.Load(),
		LastError:   l.lastError,
	}
	if !l.lastCycleAt.IsZero() {
		at := l.lastCycleAt
		status.LastCycleAt = &at
	}
	return status
}

func (l *Loop) run(ctx context.Context, merchants []string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			l.observer.Info(ctx, "polling: stopped", nil)
			return
		default:
		}
		_, _ = l.safeCycle(ctx, merchants)

		timer := time.NewTimer(l.nextDelay())
		select {
		case <-stop:
			timer.Stop()
			l.observer.Info(ctx, "polling: stopped", nil)
			return
		case <-timer.C:
		}
	}
}

// nextDelay returns Interval plus the current jitter and advances the
// jitter cycle.
func (l *Loop) nextDelay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	delay := l.config.Interval + time.Duration(l.jitter)*l.config.JitterStep
	l.jitter = (l.jitter + 1) % l.config.JitterSteps
	return delay
}

func (l *Loop) safeCycle(ctx context.Context, merchants []string) (result CycleResult, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = core.InternalError(fmt.Errorf("panic: %v", recovered), "polling: cycle panicked")
			l.observer.Error(ctx, "polling: recovered panic", map[string]any{
				"panic": fmt.Sprint(recovered),
				"stack": string(debug.Stack()),
			})
		}
		l.recordCycle(err)
	}()
	return l.cycle(ctx, merchants)
}

// RunOnce performs a single polling cycle for merchantIDs, outside the
// background loop.
func (l *Loop) RunOnce(ctx context.Context, merchantIDs []string) (CycleResult, error) {
	return l.safeCycle(ctx, compactIDs(merchantIDs))
}

func (l *Loop) cycle(ctx context.Context, merchants []string) (result CycleResult, err error) {
	startedAt := time.Now()
	defer func() {
		l.observer.Operation(ctx, startedAt, "polling cycle", err, map[string]any{
			"received":     result.Received,
			"acknowledged": result.Acknowledged,
			"duplicates":   result.Duplicates,
			"enqueued":     result.Enqueued,
		})
		status := "success"
		if err != nil {
			status = "failure"
		}
		l.observer.Count(ctx, "polling.cycles.total", map[string]string{
			"status":     status,
			"error_code": core.ErrorTextCode(err),
		})
	}()

	events, err := l.source.PollEvents(ctx, merchants)
	if err != nil {
		return result, err
	}
	result.Received = len(events)

	ids := make([]string, 0, len(events))
	for _, event := range events {
		if event.HasID() {
			ids = append(ids, strings.TrimSpace(event.ID))
		}
	}
	if len(ids) > 0 {
		if ackErr := l.source.Acknowledge(ctx, ids); ackErr != nil {
			l.observer.Warn(ctx, "polling: acknowledgment failed", map[string]any{
				"events": len(ids),
				"error":  ackErr.Error(),
			})
		} else {
			result.Acknowledged = len(ids)
		}
	}

	for _, event := range events {
		if !event.HasID() {
			continue
		}
		if l.admit(ctx, event) {
			l.sink.Push(event)
			result.Enqueued++
			l.observer.Count(ctx, "polling.events.total", map[string]string{"outcome": "enqueued"})
		} else {
			result.Duplicates++
			l.observer.Count(ctx, "polling.events.total", map[string]string{"outcome": "duplicate"})
		}
	}
	return result, nil
}

// admit reports whether the event should be enqueued. Ledger failures
// admit the event, since processing is idempotent and the event is already
// acknowledged.
func (l *Loop) admit(ctx context.Context, event core.Event) bool {
	seen, err := l.ledger.Seen(ctx, event.ID)
	if err != nil {
		l.observer.Warn(ctx, "polling: ledger lookup failed", map[string]any{"event_id": event.ID, "error": err.Error()})
		return true
	}
	if seen {
		return false
	}
	_, err = l.ledger.Record(ctx, core.IdempotencyRecord{
		EventID:    strings.TrimSpace(event.ID),
		OrderID:    strings.TrimSpace(event.OrderID),
		Code:       event.Code,
		ReceivedAt: l.config.Now(),
	})
	if err != nil {
		l.observer.Warn(ctx, "polling: ledger record failed", map[string]any{"event_id": event.ID, "error": err.Error()})
	}
	return true
}

func (l *Loop) recordCycle(err error) {
	l.cycles.Add(1)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastCycleAt = l.config.Now()
	if err != nil {
		l.lastError = err.Error()
	} else {
		l.lastError = ""
	}
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
