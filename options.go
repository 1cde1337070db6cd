package orderfeed

import (
	"github.com/goliatone/go-orderfeed/core"
	"github.com/goliatone/go-orderfeed/transport"

	persistence "github.com/goliatone/go-persistence-bun"
)

type Option func(*runtimeOptions)

type runtimeOptions struct {
	logger         core.Logger
	loggerProvider core.LoggerProvider
	metrics        core.MetricsRecorder
	httpClient     transport.HTTPDoer
	persistence    *persistence.Client
}

func WithLogger(logger core.Logger) Option {
	return func(o *runtimeOptions) {
		o.logger = logger
	}
}

// WithLoggerProvider takes precedence over WithLogger.
func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(o *runtimeOptions) {
		o.loggerProvider = provider
	}
}

// WithMetrics replaces the default Prometheus recorder. /metrics is only
// mounted when the recorder can serve it.
func WithMetrics(metrics core.MetricsRecorder) Option {
	return func(o *runtimeOptions) {
		o.metrics = metrics
	}
}

// WithHTTPClient sets the client used for the token endpoint and the
// marketplace API.
func WithHTTPClient(client transport.HTTPDoer) Option {
	return func(o *runtimeOptions) {
		o.httpClient = client
	}
}

// WithPersistenceClient reuses an open client instead of opening
// storage.dsn. The runtime does not close a client it did not open.
func WithPersistenceClient(client *persistence.Client) Option {
	return func(o *runtimeOptions) {
		o.persistence = client
	}
}
