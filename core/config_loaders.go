package core

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goliatone/go-config/config"
	"github.com/knadh/koanf/v2"
)

// FileLoader reads a raw config map through the go-config file provider.
// The format follows the extension (.yaml, .yml, .json or .toml). A missing
// file yields an empty map when Optional is set.
type FileLoader struct {
	Path     string
	Optional bool
}

func (l FileLoader) LoadRaw(ctx context.Context) (map[string]any, error) {
	path := strings.TrimSpace(l.Path)
	if path == "" {
		return map[string]any{}, nil
	}
	builder := config.FileProvider[Config](path)
	if l.Optional {
		builder = config.OptionalProvider(builder)
	}
	provider, err := builder(config.New(Config{}))
	if err != nil {
		return nil, fmt.Errorf("core: config file provider %s: %w", path, err)
	}
	k := koanf.New(".")
	if err := provider.Load(ctx, k); err != nil {
		return nil, fmt.Errorf("core: load config file %s: %w", path, err)
	}
	return k.Raw(), nil
}

type envKind int

const (
	envString envKind = iota
	envInt
	envBool
	envList
)

type envBinding struct {
	name string
	path []string
	kind envKind
}

var envBindings = []envBinding{
	{name: "ORDERFEED_SERVICE_NAME", path: []string{"service_name"}},
	{name: "ORDERFEED_BASE_URL", path: []string{"marketplace", "base_url"}},
	{name: "ORDERFEED_TOKEN_URL", path: []string{"marketplace", "token_url"}},
	{name: "ORDERFEED_CLIENT_ID", path: []string{"marketplace", "client_id"}},
	{name: "ORDERFEED_CLIENT_SECRET", path: []string{"marketplace", "client_secret"}},
	{name: "ORDERFEED_MERCHANT_IDS", path: []string{"marketplace", "merchant_ids"}, kind: envList},
	{name: "ORDERFEED_REQUEST_TIMEOUT", path: []string{"marketplace", "request_timeout_seconds"}, kind: envInt},
	{name: "ORDERFEED_WEBHOOK_SECRET", path: []string{"webhook", "secret"}},
	{name: "ORDERFEED_SIGNATURE_HEADER", path: []string{"webhook", "signature_header"}},
	{name: "ORDERFEED_POLLING_START", path: []string{"polling", "start_on_boot"}, kind: envBool},
	{name: "ORDERFEED_POLL_INTERVAL", path: []string{"polling", "interval_seconds"}, kind: envInt},
	{name: "ORDERFEED_DB_DRIVER", path: []string{"storage", "driver"}},
	{name: "ORDERFEED_DB_DSN", path: []string{"storage", "dsn"}},
	{name: "ORDERFEED_DB_DEBUG", path: []string{"storage", "debug"}, kind: envBool},
	{name: "ORDERFEED_HTTP_ADDR", path: []string{"http", "addr"}},
	{name: "ORDERFEED_TIMEZONE", path: []string{"orders", "timezone"}},
}

// EnvLoader maps ORDERFEED_* environment variables onto config keys.
type EnvLoader struct {
	Lookup func(string) (string, bool)
}

func (l EnvLoader) LoadRaw(context.Context) (map[string]any, error) {
	lookup := l.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	raw := map[string]any{}
	for _, binding := range envBindings {
		value, ok := lookup(binding.name)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		value = strings.TrimSpace(value)
		var typed any
		switch binding.kind {
		case envInt:
			parsed, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("core: %s must be an integer: %w", binding.name, err)
			}
			typed = parsed
		case envBool:
			typed = parseBoolFlag(value)
		case envList:
			typed = SplitList(value)
		default:
			typed = value
		}
		setPath(raw, binding.path, typed)
	}
	return raw, nil
}

// ChainLoader merges the maps of each loader in order; later loaders win.
type ChainLoader []RawConfigLoader

func (c ChainLoader) LoadRaw(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	for _, loader := range c {
		if loader == nil {
			continue
		}
		raw, err := loader.LoadRaw(ctx)
		if err != nil {
			return nil, err
		}
		mergeMaps(out, raw)
	}
	return out, nil
}

// SplitList splits a comma separated list, dropping empty entries.
func SplitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseBoolFlag(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func setPath(target map[string]any, path []string, value any) {
	current := target
	for _, key := range path[:len(path)-1] {
		next, ok := current[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[key] = next
		}
		current = next
	}
	current[path[len(path)-1]] = value
}

func mergeMaps(dst map[string]any, src map[string]any) {
	for key, value := range src {
		srcSection, srcIsMap := value.(map[string]any)
		dstSection, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeMaps(dstSection, srcSection)
			continue
		}
		if srcIsMap {
			copied := map[string]any{}
			mergeMaps(copied, srcSection)
			dst[key] = copied
			continue
		}
		dst[key] = value
	}
}
