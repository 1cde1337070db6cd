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

// OrderStore persists normalized order rows. Every row kind is
// insert-or-ignore on its natural key so reprocessing an order is a no-op.
type OrderStore struct {
	db          *bun.DB
	itemRepo    repository.Repository[*orderItemRecord]
	paymentRepo repository.Repository[*orderPaymentRecord]
	benefitRepo repository.Repository[*orderBenefitRecord]
	now         func() time.Time
}

func NewOrderStore(db *bun.DB) (*OrderStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	itemRepo, err := newRepository(db, orderItemHandlers(), "order item")
	if err != nil {
		return nil, err
	}
	paymentRepo, err := newRepository(db, orderPaymentHandlers(), "order payment")
	if err != nil {
		return nil, err
	}
	benefitRepo, err := newRepository(db, orderBenefitHandlers(), "order benefit")
	if err != nil {
		return nil, err
	}
	return &OrderStore{
		db:          db,
		itemRepo:    itemRepo,
		paymentRepo: paymentRepo,
		benefitRepo: benefitRepo,
		now:         time.Now,
	}, nil
}

func (s *OrderStore) InsertOrder(ctx context.Context, order core.NormalizedOrder) (core.OrderInsertResult, error) {
	if s == nil || s.db == nil {
		return core.OrderInsertResult{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	orderID := strings.TrimSpace(order.OrderID)
	if orderID == "" {
		return core.OrderInsertResult{}, core.BadInputError("order_id", "order id is required")
	}
	now := s.now().UTC()

	var result core.OrderInsertResult
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, row := range order.Items {
			row.OrderID = orderID
			inserted, err := insertIgnore(ctx, tx, newOrderItemRecord(row, now), "(order_id, item_index)")
			if err != nil {
				return fmt.Errorf("sqlstore: insert order item %d: %w", row.ItemIndex, err)
			}
			result.Items += inserted
		}
		for _, row := range order.Payments {
			row.OrderID = orderID
			inserted, err := insertIgnore(ctx, tx, newOrderPaymentRecord(row, now), "(order_id, method_index)")
			if err != nil {
				return fmt.Errorf("sqlstore: insert order payment %d: %w", row.MethodIndex, err)
			}
			result.Payments += inserted
		}
		for _, row := range order.Benefits {
			row.OrderID = orderID
			inserted, err := insertIgnore(ctx, tx, newOrderBenefitRecord(row, now), "(order_id, benefit_index, sponsorship_index)")
			if err != nil {
				return fmt.Errorf("sqlstore: insert order benefit %d/%d: %w", row.BenefitIndex, row.SponsorshipIndex, err)
			}
			result.Benefits += inserted
		}
		return nil
	})
	if err != nil {
		return core.OrderInsertResult{}, err
	}
	return result, nil
}

// UpdateStatus sets the status of every item row of the order. An order with
// no rows yields zero affected rows and no error.
func (s *OrderStore) UpdateStatus(ctx context.Context, orderID string, status core.OrderStatus) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: order store is not configured")
	}
	trimmed := strings.TrimSpace(orderID)
	if trimmed == "" {
		return 0, core.BadInputError("order_id", "order id is required")
	}
	if strings.TrimSpace(string(status)) == "" {
		return 0, core.BadInputError("status", "status is required")
	}
	res, err := s.db.NewUpdate().
		Model((*orderItemRecord)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", s.now().UTC()).
		Where("order_id = ?", trimmed).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

func (s *OrderStore) GetOrder(ctx context.Context, orderID string) (core.OrderState, error) {
	if s == nil || s.itemRepo == nil {
		return core.OrderState{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	trimmed := strings.TrimSpace(orderID)
	items, _, err := s.itemRepo.List(ctx,
		repository.SelectBy("order_id", "=", trimmed),
		repository.OrderBy("item_index ASC"),
	)
	if err != nil {
		return core.OrderState{}, err
	}
	if len(items) == 0 {
		return core.OrderState{}, core.NotFoundError("order not found", map[string]any{"order_id": trimmed})
	}
	payments, _, err := s.paymentRepo.List(ctx,
		repository.SelectBy("order_id", "=", trimmed),
		repository.OrderBy("method_index ASC"),
	)
	if err != nil {
		return core.OrderState{}, err
	}
	benefits, _, err := s.benefitRepo.List(ctx,
		repository.SelectBy("order_id", "=", trimmed),
		repository.OrderBy("benefit_index ASC"),
		repository.OrderBy("sponsorship_index ASC"),
	)
	if err != nil {
		return core.OrderState{}, err
	}

	state := core.OrderState{
		OrderID:  trimmed,
		Status:   core.OrderStatus(items[0].Status),
		Items:    make([]core.OrderItemRow, 0, len(items)),
		Payments: make([]core.OrderPaymentRow, 0, len(payments)),
		Benefits: make([]core.OrderBenefitRow, 0, len(benefits)),
	}
	for _, item := range items {
		state.Items = append(state.Items, item.toDomain())
	}
	for _, payment := range payments {
		state.Payments = append(state.Payments, payment.toDomain())
	}
	for _, benefit := range benefits {
		state.Benefits = append(state.Benefits, benefit.toDomain())
	}
	return state, nil
}

func insertIgnore(ctx context.Context, tx bun.Tx, model any, conflictColumns string) (int, error) {
	res, err := tx.NewInsert().
		Model(model).
		On("CONFLICT " + conflictColumns + " DO NOTHING").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}
