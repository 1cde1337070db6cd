package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// StaticRawConfigLoader serves a fixed raw map.
type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// LoadConfig loads config through provider and layers runtime overrides on
// top of it.
func LoadConfig(ctx context.Context, provider ConfigProvider, resolver OptionsResolver, runtime Config) (Config, error) {
	defaults := DefaultConfig()
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, ConfigError("core: load config failed: "+err.Error(), nil)
	}
	resolved, err := resolver.Resolve(defaults, loaded, runtime)
	if err != nil {
		return Config{}, ConfigError("core: resolve config failed: "+err.Error(), nil)
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	setString(layer, "service_name", cfg.ServiceName, includeZero)

	marketplace := map[string]any{}
	setString(marketplace, "base_url", cfg.Marketplace.BaseURL, includeZero)
	setString(marketplace, "token_url", cfg.Marketplace.TokenURL, includeZero)
	setString(marketplace, "client_id", cfg.Marketplace.ClientID, includeZero)
	setString(marketplace, "client_secret", cfg.Marketplace.ClientSecret, includeZero)
	if includeZero || len(cfg.Marketplace.MerchantIDs) > 0 {
		marketplace["merchant_ids"] = append([]string(nil), cfg.Marketplace.MerchantIDs...)
	}
	setInt(marketplace, "request_timeout_seconds", cfg.Marketplace.RequestTimeoutSeconds, includeZero)
	setInt(marketplace, "token_timeout_seconds", cfg.Marketplace.TokenTimeoutSeconds, includeZero)
	setInt(marketplace, "renew_before_seconds", cfg.Marketplace.RenewBeforeSeconds, includeZero)
	setSection(layer, "marketplace", marketplace)

	webhook := map[string]any{}
	setString(webhook, "secret", cfg.Webhook.Secret, includeZero)
	setString(webhook, "signature_header", cfg.Webhook.SignatureHeader, includeZero)
	setInt(webhook, "max_body_bytes", cfg.Webhook.MaxBodyBytes, includeZero)
	setSection(layer, "webhook", webhook)

	polling := map[string]any{}
	if includeZero || cfg.Polling.StartOnBoot {
		polling["start_on_boot"] = cfg.Polling.StartOnBoot
	}
	setInt(polling, "interval_seconds", cfg.Polling.IntervalSeconds, includeZero)
	setInt(polling, "jitter_steps", cfg.Polling.JitterSteps, includeZero)
	setSection(layer, "polling", polling)

	storage := map[string]any{}
	setString(storage, "driver", cfg.Storage.Driver, includeZero)
	setString(storage, "dsn", cfg.Storage.DSN, includeZero)
	if includeZero || cfg.Storage.Debug {
		storage["debug"] = cfg.Storage.Debug
	}
	setInt(storage, "ledger_cache_seconds", cfg.Storage.LedgerCacheSeconds, includeZero)
	setSection(layer, "storage", storage)

	httpSection := map[string]any{}
	setString(httpSection, "addr", cfg.HTTP.Addr, includeZero)
	setSection(layer, "http", httpSection)

	orders := map[string]any{}
	setString(orders, "timezone", cfg.Orders.Timezone, includeZero)
	setString(orders, "source", cfg.Orders.Source, includeZero)
	setSection(layer, "orders", orders)
	return layer
}

func setString(target map[string]any, key string, value string, includeZero bool) {
	if includeZero || strings.TrimSpace(value) != "" {
		target[key] = value
	}
}

func setInt(target map[string]any, key string, value int, includeZero bool) {
	if includeZero || value != 0 {
		target[key] = value
	}
}

func setSection(target map[string]any, key string, section map[string]any) {
	if len(section) > 0 {
		target[key] = section
	}
}
