package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-orderfeed/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// EventLedgerStore is the durable idempotency ledger keyed by event id.
type EventLedgerStore struct {
	db   *bun.DB
	repo repository.Repository[*eventRecord]
	now  func() time.Time
}

func NewEventLedgerStore(db *bun.DB) (*EventLedgerStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo, err := newRepository(db, eventHandlers(), "event ledger")
	if err != nil {
		return nil, err
	}
	return &EventLedgerStore{db: db, repo: repo, now: time.Now}, nil
}

func (s *EventLedgerStore) Seen(ctx context.Context, eventID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: event ledger store is not configured")
	}
	trimmed := strings.TrimSpace(eventID)
	if trimmed == "" {
		return false, core.BadInputError("event_id", "event id is required")
	}
	return s.db.NewSelect().
		Model((*eventRecord)(nil)).
		Where("event_id = ?", trimmed).
		Exists(ctx)
}

// Record inserts the ledger entry and reports whether a row was written. An
// existing entry for the same event id is left untouched.
func (s *EventLedgerStore) Record(ctx context.Context, in core.IdempotencyRecord) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: event ledger store is not configured")
	}
	in.EventID = strings.TrimSpace(in.EventID)
	if in.EventID == "" {
		return false, core.BadInputError("event_id", "event id is required")
	}
	record := newEventRecord(in, s.now().UTC())
	res, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (event_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

func (s *EventLedgerStore) Get(ctx context.Context, eventID string) (core.IdempotencyRecord, error) {
	if s == nil || s.repo == nil {
		return core.IdempotencyRecord{}, fmt.Errorf("sqlstore: event ledger store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("event_id", "=", strings.TrimSpace(eventID)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.IdempotencyRecord{}, err
	}
	if len(records) == 0 {
		return core.IdempotencyRecord{}, core.NotFoundError("event not recorded", map[string]any{
			"event_id": strings.TrimSpace(eventID),
		})
	}
	return records[0].toDomain(), nil
}

// ListByOrder returns the ledger entries of an order, oldest first.
func (s *EventLedgerStore) ListByOrder(ctx context.Context, orderID string) ([]core.IdempotencyRecord, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: event ledger store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("order_id", "=", strings.TrimSpace(orderID)),
		repository.OrderBy("received_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.IdempotencyRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}
