package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-orderfeed/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const eventLedgerCacheKeyPrefix = "orderfeed::event_ledger::v1"

// CachedEventLedger reads Seen through a cache and evicts the key on Record.
// Only positive lookups are cached so a new record is never hidden.
type CachedEventLedger struct {
	base  core.IdempotencyStore
	cache repositorycache.CacheService
}

func NewCachedEventLedger(base core.IdempotencyStore, cacheService repositorycache.CacheService) (*CachedEventLedger, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base event ledger is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: event ledger cache service is required")
	}
	return &CachedEventLedger{base: base, cache: cacheService}, nil
}

// EventLedgerCacheKey returns orderfeed::event_ledger::v1::<event_id> with the
// id URL-path escaped.
func EventLedgerCacheKey(eventID string) (string, error) {
	trimmed := strings.TrimSpace(eventID)
	if trimmed == "" {
		return "", core.BadInputError("event_id", "event id is required")
	}
	return eventLedgerCacheKeyPrefix + "::" + url.PathEscape(trimmed), nil
}

func (s *CachedEventLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return false, fmt.Errorf("sqlstore: cached event ledger is not configured")
	}
	cacheKey, err := EventLedgerCacheKey(eventID)
	if err != nil {
		return false, err
	}

	seen, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (bool, error) {
		found, fetchErr := s.base.Seen(ctx, eventID)
		if fetchErr != nil {
			return false, fetchErr
		}
		if !found {
			return false, errLedgerMiss
		}
		return true, nil
	})
	if errors.Is(err, errLedgerMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return seen, nil
}

func (s *CachedEventLedger) Record(ctx context.Context, record core.IdempotencyRecord) (bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return false, fmt.Errorf("sqlstore: cached event ledger is not configured")
	}
	cacheKey, err := EventLedgerCacheKey(record.EventID)
	if err != nil {
		return false, err
	}
	inserted, err := s.base.Record(ctx, record)
	if err != nil {
		return false, err
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return inserted, err
	}
	return inserted, nil
}

// errLedgerMiss keeps a negative lookup out of the cache.
var errLedgerMiss = errors.New("sqlstore: event not in ledger")
