package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_DefaultsWhenNothingLoaded(t *testing.T) {
	cfg, err := LoadConfig(context.Background(), nil, nil, Config{})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServiceName != "orderfeed" {
		t.Fatalf("expected default service name, got %q", cfg.ServiceName)
	}
	if cfg.Polling.IntervalSeconds != 30 || cfg.Marketplace.RenewBeforeSeconds != 60 {
		t.Fatalf("expected default polling/renew settings, got %+v", cfg)
	}
	if cfg.Webhook.SignatureHeader != DefaultSignatureHeader {
		t.Fatalf("expected default signature header, got %q", cfg.Webhook.SignatureHeader)
	}
}

func TestLoadConfig_LayersFileEnvAndRuntime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orderfeed.yaml")
	content := []byte(`
marketplace:
  client_id: file-client
  client_secret: file-secret
polling:
  interval_seconds: 45
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	env := map[string]string{
		"ORDERFEED_CLIENT_SECRET": "env-secret",
		"ORDERFEED_MERCHANT_IDS":  "m1, m2,,",
		"ORDERFEED_POLLING_START": "1",
	}
	loader := ChainLoader{
		FileLoader{Path: path},
		EnvLoader{Lookup: func(key string) (string, bool) {
			value, ok := env[key]
			return value, ok
		}},
	}

	cfg, err := LoadConfig(context.Background(), NewCfgxConfigProvider(loader), GoOptionsResolver{}, Config{
		HTTP: HTTPConfig{Addr: ":9999"},
	})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Marketplace.ClientID != "file-client" {
		t.Fatalf("expected file client id, got %q", cfg.Marketplace.ClientID)
	}
	if cfg.Marketplace.ClientSecret != "env-secret" {
		t.Fatalf("expected env to override file secret, got %q", cfg.Marketplace.ClientSecret)
	}
	if len(cfg.Marketplace.MerchantIDs) != 2 || cfg.Marketplace.MerchantIDs[1] != "m2" {
		t.Fatalf("expected merchant ids from env, got %#v", cfg.Marketplace.MerchantIDs)
	}
	if !cfg.Polling.StartOnBoot || cfg.Polling.IntervalSeconds != 45 {
		t.Fatalf("expected polling overrides, got %+v", cfg.Polling)
	}
	if cfg.HTTP.Addr != ":9999" {
		t.Fatalf("expected runtime addr override, got %q", cfg.HTTP.Addr)
	}
	if cfg.WebhookSecret() != "env-secret" {
		t.Fatalf("expected webhook secret to fall back to client secret")
	}
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	loader := StaticRawConfigLoader{Values: map[string]any{
		"storage": map[string]any{"driver": "oracle"},
	}}
	_, err := LoadConfig(context.Background(), NewCfgxConfigProvider(loader), nil, Config{})
	if err == nil {
		t.Fatalf("expected unsupported driver to fail")
	}
	if !IsConfigError(err) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestEnvLoader_RejectsNonNumericInterval(t *testing.T) {
	loader := EnvLoader{Lookup: func(key string) (string, bool) {
		if key == "ORDERFEED_POLL_INTERVAL" {
			return "soon", true
		}
		return "", false
	}}
	if _, err := loader.LoadRaw(context.Background()); err == nil {
		t.Fatalf("expected integer parse failure")
	}
}

func TestFileLoader_OptionalMissingFile(t *testing.T) {
	raw, err := FileLoader{Path: filepath.Join(t.TempDir(), "missing.yaml"), Optional: true}.LoadRaw(context.Background())
	if err != nil || len(raw) != 0 {
		t.Fatalf("expected empty map for optional missing file, got %v %v", raw, err)
	}
	if _, err := (FileLoader{Path: filepath.Join(t.TempDir(), "missing.yaml")}).LoadRaw(context.Background()); err == nil {
		t.Fatalf("expected missing required file to fail")
	}
}

func TestFileLoader_InfersFormatFromExtension(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "orderfeed.json")
	if err := os.WriteFile(jsonPath, []byte(`{"storage":{"driver":"postgres"},"polling":{"start_on_boot":true}}`), 0o600); err != nil {
		t.Fatalf("write json config: %v", err)
	}
	raw, err := FileLoader{Path: jsonPath}.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load json config: %v", err)
	}
	storage, _ := raw["storage"].(map[string]any)
	if storage["driver"] != "postgres" {
		t.Fatalf("expected nested storage driver, got %#v", raw)
	}

	badPath := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(badPath, []byte("polling: [unterminated"), 0o600); err != nil {
		t.Fatalf("write yaml config: %v", err)
	}
	if _, err := (FileLoader{Path: badPath, Optional: true}).LoadRaw(context.Background()); err == nil {
		t.Fatalf("expected parse failure to surface even when optional")
	}
}

func TestConfig_LocationFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Location().String() != DefaultTimezone {
		t.Fatalf("expected %s, got %s", DefaultTimezone, cfg.Location())
	}
	cfg.Orders.Timezone = "Nowhere/Invalid"
	name, offset := time.Date(2026, 1, 1, 0, 0, 0, 0, cfg.Location()).Zone()
	if name != "UTC-3" || offset != -3*60*60 {
		t.Fatalf("expected fixed UTC-3 fallback, got %s %d", name, offset)
	}
}
