package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-orderfeed/core"
	"github.com/goliatone/go-orderfeed/transport"
)

const (
	DefaultRenewBefore  = 60 * time.Second
	DefaultTokenTimeout = 20 * time.Second
	grantTypeClientCred = "client_credentials"
)

type CredentialCacheConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	// RenewBefore is the validity left under which a cached credential is
	// exchanged again.
	RenewBefore time.Duration
	Timeout     time.Duration
	Now         func() time.Time
	Logger      core.Logger
	Metrics     core.MetricsRecorder
}

// CredentialCache holds one process-wide client-credentials token. Callers
// are serialized on a mutex, so concurrent callers that find the token
// stale trigger a single exchange.
type CredentialCache struct {
	config    CredentialCacheConfig
	rest      *transport.RESTAdapter
	observer  core.Observer
	mu        sync.Mutex
	current   core.Credential
	exchanges atomic.Int64
}

func NewCredentialCache(cfg CredentialCacheConfig, client transport.HTTPDoer) *CredentialCache {
	renewBefore := cfg.RenewBefore
	if renewBefore <= 0 {
		renewBefore = DefaultRenewBefore
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTokenTimeout
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &CredentialCache{
		config: CredentialCacheConfig{
			ClientID:     strings.TrimSpace(cfg.ClientID),
			ClientSecret: strings.TrimSpace(cfg.ClientSecret),
			TokenURL:     strings.TrimSpace(cfg.TokenURL),
			RenewBefore:  renewBefore,
			Timeout:      timeout,
			Now:          now,
		},
		rest:     transport.NewRESTAdapter(client),
		observer: core.NewObserver(cfg.Logger, cfg.Metrics),
	}
}

// Acquire returns the cached credential while it has more than RenewBefore
// validity left, and exchanges a new one otherwise.
func (c *CredentialCache) Acquire(ctx context.Context) (core.Credential, error) {
	if c == nil {
		return core.Credential{}, core.ConfigError("auth: credential cache is not configured", nil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.Usable(c.config.Now(), c.config.RenewBefore) {
		return c.current, nil
	}
	issued, err := c.exchange(ctx)
	if err != nil {
		return core.Credential{}, err
	}
	c.current = issued
	return issued, nil
}

// Invalidate clears the cached credential; the next Acquire exchanges.
func (c *CredentialCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.current = core.Credential{}
	c.mu.Unlock()
	c.observer.Info(context.Background(), "auth: credential invalidated", nil)
}

// Snapshot returns the cached credential without exchanging.
func (c *CredentialCache) Snapshot() (core.Credential, bool) {
	if c == nil {
		return core.Credential{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, !c.current.Empty()
}

// Exchanges reports how many token exchanges were attempted.
func (c *CredentialCache) Exchanges() int64 {
	if c == nil {
		return 0
	}
	return c.exchanges.Load()
}

// Health acquires a credential and reports its validity.
func (c *CredentialCache) Health(ctx context.Context) core.CredentialHealth {
	credential, err := c.Acquire(ctx)
	if err != nil {
		return core.CredentialHealth{OK: false, Error: err.Error()}
	}
	expiresAt := credential.ExpiresAt
	return core.CredentialHealth{
		OK:               true,
		ExpiresAt:        &expiresAt,
		RemainingSeconds: int64(credential.Remaining(c.config.Now()).Seconds()),
	}
}

func (c *CredentialCache) exchange(ctx context.Context) (credential core.Credential, err error) {
	startedAt := time.Now()
	defer func() {
		c.observer.Operation(ctx, startedAt, "credential exchange", err, map[string]any{
			"token_url": c.config.TokenURL,
		})
	}()

	if c.config.ClientID == "" {
		return core.Credential{}, authConfigError("auth: client id is required")
	}
	if c.config.ClientSecret == "" {
		return core.Credential{}, authConfigError("auth: client secret is required")
	}
	if c.config.TokenURL == "" {
		return core.Credential{}, authConfigError("auth: token url is required")
	}

	c.exchanges.Add(1)
	form := url.Values{}
	form.Set("grantType", grantTypeClientCred)
	form.Set("clientId", c.config.ClientID)
	form.Set("clientSecret", c.config.ClientSecret)

	res, err := c.rest.Do(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    c.config.TokenURL,
		Headers: map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
			"Accept":       "application/json",
		},
		Body:     []byte(form.Encode()),
		Timeout:  c.config.Timeout,
		Detached: true,
	})
	if err != nil {
		return core.Credential{}, authExchangeError(err, "auth: token exchange request failed", map[string]any{
			"token_url": c.config.TokenURL,
		})
	}
	if !res.Success() {
		return core.Credential{}, authExchangeError(nil, "auth: token exchange rejected", map[string]any{
			"token_url":             c.config.TokenURL,
			core.MetadataStatusCode: res.StatusCode,
			"response":              truncate(string(res.Body), 200),
		})
	}
	return parseTokenResponse(res.Body, c.config.Now())
}

type tokenResponse struct {
	AccessToken      string `json:"accessToken"`
	AccessTokenSnake string `json:"access_token"`
	ExpiresIn        any    `json:"expiresIn"`
	ExpiresInSnake   any    `json:"expires_in"`
}

func parseTokenResponse(body []byte, now time.Time) (core.Credential, error) {
	var payload tokenResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return core.Credential{}, authExchangeError(err, "auth: token response is not valid JSON", nil)
	}
	token := firstNonEmpty(payload.AccessToken, payload.AccessTokenSnake)
	if token == "" {
		return core.Credential{}, authExchangeError(nil, "auth: token response is missing the access token", nil)
	}
	expiresIn, ok := readSeconds(payload.ExpiresIn)
	if !ok {
		expiresIn, ok = readSeconds(payload.ExpiresInSnake)
	}
	if !ok || expiresIn <= 0 {
		return core.Credential{}, authExchangeError(nil, "auth: token response is missing the expiry", nil)
	}
	return core.Credential{
		AccessToken: token,
		ExpiresAt:   now.Add(time.Duration(expiresIn) * time.Second),
	}, nil
}

func readSeconds(value any) (int64, bool) {
	switch typed := value.(type) {
	case float64:
		return int64(typed), true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func authConfigError(message string) error {
	return core.ConfigError(message, map[string]any{"component": "auth"})
}

func authExchangeError(source error, message string, metadata map[string]any) error {
	return core.AuthError(source, message, metadata)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return fmt.Sprintf("%s...", value[:limit])
}

var _ core.CredentialSource = (*CredentialCache)(nil)
