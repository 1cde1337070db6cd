package core

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	DefaultBaseURL         = "https://merchant-api.ifood.com.br"
	DefaultTokenPath       = "/authentication/v1.0/oauth/token"
	DefaultSignatureHeader = "X-Signature"
	DefaultTimezone        = "America/Sao_Paulo"
)

type MarketplaceConfig struct {
	BaseURL               string   `koanf:"base_url" mapstructure:"base_url"`
	TokenURL              string   `koanf:"token_url" mapstructure:"token_url"`
	ClientID              string   `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret          string   `koanf:"client_secret" mapstructure:"client_secret"`
	MerchantIDs           []string `koanf:"merchant_ids" mapstructure:"merchant_ids"`
	RequestTimeoutSeconds int      `koanf:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`
	TokenTimeoutSeconds   int      `koanf:"token_timeout_seconds" mapstructure:"token_timeout_seconds"`
	RenewBeforeSeconds    int      `koanf:"renew_before_seconds" mapstructure:"renew_before_seconds"`
}

type WebhookConfig struct {
	Secret          string `koanf:"secret" mapstructure:"secret"`
	SignatureHeader string `koanf:"signature_header" mapstructure:"signature_header"`
	MaxBodyBytes    int    `koanf:"max_body_bytes" mapstructure:"max_body_bytes"`
}

type PollingConfig struct {
	StartOnBoot     bool `koanf:"start_on_boot" mapstructure:"start_on_boot"`
	IntervalSeconds int  `koanf:"interval_seconds" mapstructure:"interval_seconds"`
	JitterSteps     int  `koanf:"jitter_steps" mapstructure:"jitter_steps"`
}

type StorageConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
	Debug  bool   `koanf:"debug" mapstructure:"debug"`
	// LedgerCacheSeconds enables the read-through ledger cache when positive.
	LedgerCacheSeconds int `koanf:"ledger_cache_seconds" mapstructure:"ledger_cache_seconds"`
}

type HTTPConfig struct {
	Addr string `koanf:"addr" mapstructure:"addr"`
}

type OrdersConfig struct {
	Timezone string `koanf:"timezone" mapstructure:"timezone"`
	Source   string `koanf:"source" mapstructure:"source"`
}

type Config struct {
	ServiceName string            `koanf:"service_name" mapstructure:"service_name"`
	Marketplace MarketplaceConfig `koanf:"marketplace" mapstructure:"marketplace"`
	Webhook     WebhookConfig     `koanf:"webhook" mapstructure:"webhook"`
	Polling     PollingConfig     `koanf:"polling" mapstructure:"polling"`
	Storage     StorageConfig     `koanf:"storage" mapstructure:"storage"`
	HTTP        HTTPConfig        `koanf:"http" mapstructure:"http"`
	Orders      OrdersConfig      `koanf:"orders" mapstructure:"orders"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "orderfeed",
		Marketplace: MarketplaceConfig{
			BaseURL:               DefaultBaseURL,
			TokenURL:              DefaultBaseURL + DefaultTokenPath,
			RequestTimeoutSeconds: 20,
			TokenTimeoutSeconds:   20,
			RenewBeforeSeconds:    60,
		},
		Webhook: WebhookConfig{
			SignatureHeader: DefaultSignatureHeader,
			MaxBodyBytes:    1 << 20,
		},
		Polling: PollingConfig{
			IntervalSeconds: 30,
			JitterSteps:     3,
		},
		Storage: StorageConfig{
			Driver: "sqlite3",
			DSN:    "file:orderfeed.db?cache=shared&_foreign_keys=on",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Orders: OrdersConfig{
			Timezone: DefaultTimezone,
			Source:   "IFOOD",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	switch strings.TrimSpace(c.Storage.Driver) {
	case "sqlite3", "sqlite", "postgres":
	default:
		return fmt.Errorf("core: unsupported storage driver %q", c.Storage.Driver)
	}
	if c.Polling.IntervalSeconds <= 0 {
		return fmt.Errorf("core: polling.interval_seconds must be positive")
	}
	if c.Polling.JitterSteps < 0 {
		return fmt.Errorf("core: polling.jitter_steps must not be negative")
	}
	if c.Marketplace.RequestTimeoutSeconds <= 0 || c.Marketplace.TokenTimeoutSeconds <= 0 {
		return fmt.Errorf("core: marketplace timeouts must be positive")
	}
	if c.Marketplace.RenewBeforeSeconds < 0 {
		return fmt.Errorf("core: marketplace.renew_before_seconds must not be negative")
	}
	return nil
}

// WebhookSecret returns the configured webhook secret, falling back to the
// marketplace client secret.
func (c Config) WebhookSecret() string {
	if secret := strings.TrimSpace(c.Webhook.Secret); secret != "" {
		return secret
	}
	return strings.TrimSpace(c.Marketplace.ClientSecret)
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Polling.IntervalSeconds) * time.Second
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Marketplace.RequestTimeoutSeconds) * time.Second
}

func (c Config) TokenTimeout() time.Duration {
	return time.Duration(c.Marketplace.TokenTimeoutSeconds) * time.Second
}

func (c Config) RenewBefore() time.Duration {
	return time.Duration(c.Marketplace.RenewBeforeSeconds) * time.Second
}

// Location resolves the configured order timezone. An unknown zone falls
// back to a fixed UTC-3 offset.
func (c Config) Location() *time.Location {
	name := strings.TrimSpace(c.Orders.Timezone)
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("UTC-3", -3*60*60)
	}
	return loc
}
