package sqlstore

import (
	"fmt"
	"time"

	"github.com/goliatone/go-orderfeed/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	ledgerCacheTTL time.Duration

	eventLedger *EventLedgerStore
	ledger      core.IdempotencyStore
	orderStore  *OrderStore
}

type FactoryOption func(*RepositoryFactory)

// WithLedgerCache puts a read-through cache with the given TTL in front of
// the event ledger. A non-positive TTL disables it.
func WithLedgerCache(ttl time.Duration) FactoryOption {
	return func(f *RepositoryFactory) {
		f.ledgerCacheTTL = ttl
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if err := factory.Build(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if err := factory.Build(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// Build resolves the bun db from a persistence client or *bun.DB and wires
// the stores. Calling it again is a no-op.
func (f *RepositoryFactory) Build(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.eventLedger != nil && f.orderStore != nil {
		return nil
	}
	return f.initStores()
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

// Ledger returns the idempotency store, cached when configured.
func (f *RepositoryFactory) Ledger() core.IdempotencyStore {
	if f == nil {
		return nil
	}
	return f.ledger
}

func (f *RepositoryFactory) EventLedger() *EventLedgerStore {
	if f == nil {
		return nil
	}
	return f.eventLedger
}

func (f *RepositoryFactory) OrderStore() *OrderStore {
	if f == nil {
		return nil
	}
	return f.orderStore
}

func (f *RepositoryFactory) initStores() error {
	eventLedger, err := NewEventLedgerStore(f.db)
	if err != nil {
		return err
	}
	orderStore, err := NewOrderStore(f.db)
	if err != nil {
		return err
	}
	f.eventLedger = eventLedger
	f.orderStore = orderStore
	f.ledger = eventLedger

	if f.ledgerCacheTTL > 0 {
		config := repositorycache.DefaultConfig()
		config.TTL = f.ledgerCacheTTL
		cacheService, err := repositorycache.NewCacheService(config)
		if err != nil {
			return fmt.Errorf("sqlstore: event ledger cache: %w", err)
		}
		cached, err := NewCachedEventLedger(eventLedger, cacheService)
		if err != nil {
			return err
		}
		f.ledger = cached
	}
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
