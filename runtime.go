// Package orderfeed wires the marketplace order event pipeline: webhook
// intake and polling feed one queue drained by a single event processor.
package orderfeed

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/goliatone/go-orderfeed/adapters/gojob"
	"github.com/goliatone/go-orderfeed/adapters/gologger"
	"github.com/goliatone/go-orderfeed/auth"
	"github.com/goliatone/go-orderfeed/command"
	"github.com/goliatone/go-orderfeed/core"
	"github.com/goliatone/go-orderfeed/eventqueue"
	"github.com/goliatone/go-orderfeed/httpapi"
	"github.com/goliatone/go-orderfeed/marketplace"
	"github.com/goliatone/go-orderfeed/metrics"
	"github.com/goliatone/go-orderfeed/orders"
	"github.com/goliatone/go-orderfeed/polling"
	"github.com/goliatone/go-orderfeed/processor"
	"github.com/goliatone/go-orderfeed/query"
	sqlstore "github.com/goliatone/go-orderfeed/store/sql"
	"github.com/goliatone/go-orderfeed/webhooks"

	persistence "github.com/goliatone/go-persistence-bun"
)

const loggerName = "orderfeed"

type Commands struct {
	PerformOrderAction *command.PerformOrderActionCommand
	StartPolling       *command.StartPollingCommand
	StopPolling        *command.StopPollingCommand
}

type Queries struct {
	CredentialHealth    *query.CredentialHealthQuery
	CancellationReasons *query.CancellationReasonsQuery
	OrderDetail         *query.OrderDetailQuery
	LocalOrder          *query.LocalOrderQuery
	PollingStatus       *query.PollingStatusQuery
}

// Runtime holds the wired components. Build it with Setup, run it with
// Start and release it with Close.
type Runtime struct {
	Config      core.Config
	Credentials *auth.CredentialCache
	Marketplace *marketplace.Client
	Queue       *eventqueue.Queue
	Stores      *sqlstore.RepositoryFactory
	Fetcher     *orders.Fetcher
	Processor   *processor.Processor
	Polling     *polling.Loop
	Intake      *webhooks.Intake
	Commands    Commands
	Queries     Queries

	observer   core.Observer
	metrics    core.MetricsRecorder
	handler    http.Handler
	client     *persistence.Client
	ownsClient bool

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func Setup(ctx context.Context, cfg core.Config, opts ...Option) (*Runtime, error) {
	options := runtimeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}
	if err := cfg.Validate(); err != nil {
		return nil, core.ConfigError(err.Error(), map[string]any{"component": loggerName})
	}

	_, logger := gologger.Resolve(loggerName, options.loggerProvider, options.logger)
	recorder := options.metrics
	if recorder == nil {
		recorder = metrics.NewPrometheusRecorder()
	}

	client := options.persistence
	ownsClient := false
	if client == nil {
		opened, err := sqlstore.Open(ctx, cfg.Storage, cfg.ServiceName)
		if err != nil {
			return nil, err
		}
		client = opened
		ownsClient = true
	}
	tagged := core.WithConstTags(recorder, map[string]string{"service": cfg.ServiceName})
	rt := &Runtime{
		Config:     cfg,
		observer:   core.NewObserver(logger, tagged),
		metrics:    tagged,
		client:     client,
		ownsClient: ownsClient,
	}
	if err := rt.wire(logger, recorder, options); err != nil {
		_ = rt.closeStorage()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) wire(logger core.Logger, recorder core.MetricsRecorder, options runtimeOptions) error {
	cfg := rt.Config
	var factoryOpts []sqlstore.FactoryOption
	if cfg.Storage.LedgerCacheSeconds > 0 {
		factoryOpts = append(factoryOpts, sqlstore.WithLedgerCache(time.Duration(cfg.Storage.LedgerCacheSeconds)*time.Second))
	}
	stores, err := sqlstore.NewRepositoryFactoryFromPersistence(rt.client, factoryOpts...)
	if err != nil {
		return err
	}
	rt.Stores = stores

	rt.Credentials = auth.NewCredentialCache(auth.CredentialCacheConfig{
		ClientID:     cfg.Marketplace.ClientID,
		ClientSecret: cfg.Marketplace.ClientSecret,
		TokenURL:     cfg.Marketplace.TokenURL,
		RenewBefore:  cfg.RenewBefore(),
		Timeout:      cfg.TokenTimeout(),
		Logger:       logger,
		Metrics:      rt.metrics,
	}, options.httpClient)

	rt.Marketplace, err = marketplace.NewClient(marketplace.Config{
		BaseURL: cfg.Marketplace.BaseURL,
		Timeout: cfg.RequestTimeout(),
		Logger:  logger,
		Metrics: rt.metrics,
	}, rt.Credentials, options.httpClient)
	if err != nil {
		return err
	}

	rt.Queue = eventqueue.New()
	orderStore := stores.OrderStore()
	rt.Fetcher, err = orders.NewFetcher(rt.Marketplace, orderStore, orders.FetcherConfig{
		Location: cfg.Location(),
		Source:   cfg.Orders.Source,
		Logger:   logger,
		Metrics:  rt.metrics,
	})
	if err != nil {
		return err
	}

	_, hookLogger := gologger.ForComponent(loggerName+".processor", options.loggerProvider, logger)
	rt.Processor, err = processor.New(rt.Queue, processor.Config{
		Fetcher: rt.Fetcher,
		Store:   orderStore,
		Hook:    gojob.NewObservingHook(hookLogger, rt.metrics),
		Logger:  logger,
		Metrics: rt.metrics,
	})
	if err != nil {
		return err
	}

	rt.Polling, err = polling.New(rt.Marketplace, stores.Ledger(), rt.Queue, polling.Config{
		Interval:    cfg.PollInterval(),
		JitterSteps: cfg.Polling.JitterSteps,
		Logger:      logger,
		Metrics:     rt.metrics,
	})
	if err != nil {
		return err
	}

	rt.Intake = webhooks.NewIntake(webhooks.HMACVerifier{Secret: cfg.WebhookSecret()}, rt.Queue, logger, rt.metrics)
	if header := cfg.Webhook.SignatureHeader; header != "" {
		rt.Intake.SignatureHeader = header
	}
	if cfg.Webhook.MaxBodyBytes > 0 {
		rt.Intake.MaxBodyBytes = int64(cfg.Webhook.MaxBodyBytes)
	}

	rt.Commands = Commands{
		PerformOrderAction: command.NewPerformOrderActionCommand(rt.Marketplace, orderStore, logger),
		StartPolling:       command.NewStartPollingCommand(rt.Polling, cfg.Marketplace.MerchantIDs),
		StopPolling:        command.NewStopPollingCommand(rt.Polling),
	}
	rt.Queries = Queries{
		CredentialHealth:    query.NewCredentialHealthQuery(rt.Credentials),
		CancellationReasons: query.NewCancellationReasonsQuery(rt.Marketplace),
		OrderDetail:         query.NewOrderDetailQuery(rt.Fetcher),
		LocalOrder:          query.NewLocalOrderQuery(orderStore),
		PollingStatus:       query.NewPollingStatusQuery(rt.Polling),
	}

	var metricsHandler http.Handler
	if served, ok := recorder.(interface{ Handler() http.Handler }); ok {
		metricsHandler = served.Handler()
	}
	rt.handler = httpapi.NewRouter(httpapi.Handlers{
		Webhook:             rt.Intake,
		MetricsHandler:      metricsHandler,
		PerformOrderAction:  rt.Commands.PerformOrderAction,
		StartPolling:        rt.Commands.StartPolling,
		StopPolling:         rt.Commands.StopPolling,
		CredentialHealth:    rt.Queries.CredentialHealth,
		CancellationReasons: rt.Queries.CancellationReasons,
		OrderDetail:         rt.Queries.OrderDetail,
		LocalOrder:          rt.Queries.LocalOrder,
		PollingStatus:       rt.Queries.PollingStatus,
		Logger:              logger,
		Metrics:             rt.metrics,
	})
	return nil
}

// Handler serves the webhook and control routes.
func (rt *Runtime) Handler() http.Handler {
	if rt == nil {
		return http.NotFoundHandler()
	}
	return rt.handler
}

// Start launches the event processor and, when polling.start_on_boot is
// set, the polling loop over the configured merchants.
func (rt *Runtime) Start(ctx context.Context) error {
	if rt == nil {
		return core.ConfigError("orderfeed: runtime is nil", nil)
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return core.ConfigError("orderfeed: runtime is closed", nil)
	}
	if rt.started {
		return nil
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	rt.cancel = cancel
	rt.done = make(chan struct{})
	rt.started = true
	go func() {
		defer close(rt.done)
		if err := rt.Processor.Run(runCtx); err != nil {
			rt.observer.Error(runCtx, "orderfeed: processor stopped", map[string]any{"error": err.Error()})
		}
	}()

	if rt.Config.Polling.StartOnBoot {
		rt.Polling.Start(ctx, rt.Config.Marketplace.MerchantIDs)
	}
	rt.observer.Info(ctx, "orderfeed: runtime started", map[string]any{
		"polling":   rt.Polling.Running(),
		"merchants": len(rt.Config.Marketplace.MerchantIDs),
	})
	return nil
}

// Close stops polling, drains the processor goroutine and closes storage
// opened by Setup. ctx bounds the wait.
func (rt *Runtime) Close(ctx context.Context) error {
	if rt == nil {
		return nil
	}
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return nil
	}
	rt.closed = true
	cancel, done := rt.cancel, rt.done
	rt.mu.Unlock()

	var errs []error
	if rt.Polling != nil {
		rt.Polling.Stop()
		if err := rt.Polling.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}
	}
	if err := rt.closeStorage(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (rt *Runtime) closeStorage() error {
	if rt.client == nil || !rt.ownsClient {
		return nil
	}
	client := rt.client
	rt.client = nil
	return client.Close()
}
