package sqlstore

import (
	"time"

	"github.com/goliatone/go-orderfeed/core"
	"github.com/uptrace/bun"
)

type eventRecord struct {
	bun.BaseModel `bun:"table:marketplace_events,alias:me"`

	ID         string    `bun:"id,pk"`
	EventID    string    `bun:"event_id,notnull,unique"`
	OrderID    string    `bun:"order_id,notnull"`
	Code       string    `bun:"code,notnull"`
	ReceivedAt time.Time `bun:"received_at,nullzero,notnull,default:current_timestamp"`
}

type orderItemRecord struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID               string    `bun:"id,pk"`
	OrderID          string    `bun:"order_id,notnull,unique:uq_order_items_order_item"`
	ItemIndex        int       `bun:"item_index,notnull,unique:uq_order_items_order_item"`
	DisplayID        string    `bun:"display_id,notnull"`
	Name             string    `bun:"name,notnull"`
	Quantity         int       `bun:"quantity,notnull"`
	Price            float64   `bun:"price,notnull"`
	Extra            string    `bun:"extra,notnull"`
	Status           string    `bun:"status,notnull"`
	CustomerName     string    `bun:"customer_name,notnull"`
	CustomerDocument string    `bun:"customer_document,notnull"`
	OrderDate        *string   `bun:"order_date"`
	OrderTime        *string   `bun:"order_time"`
	DeliverAt        *string   `bun:"deliver_at"`
	OrderTiming      string    `bun:"order_timing,notnull"`
	DeliveryAddress  string    `bun:"delivery_address,notnull"`
	PickupCode       string    `bun:"pickup_code,notnull"`
	Source           string    `bun:"source,notnull"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type orderPaymentRecord struct {
	bun.BaseModel `bun:"table:order_payments,alias:op"`

	ID          string    `bun:"id,pk"`
	OrderID     string    `bun:"order_id,notnull,unique:uq_order_payments_order_method"`
	MethodIndex int       `bun:"method_index,notnull,unique:uq_order_payments_order_method"`
	Name        string    `bun:"name,notnull"`
	InPerson    bool      `bun:"in_person,notnull"`
	CardBrand   string    `bun:"card_brand,notnull"`
	Provider    string    `bun:"provider,notnull"`
	Amount      float64   `bun:"amount,notnull"`
	Liability   string    `bun:"liability,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type orderBenefitRecord struct {
	bun.BaseModel `bun:"table:order_benefits,alias:ob"`

	ID               string    `bun:"id,pk"`
	OrderID          string    `bun:"order_id,notnull,unique:uq_order_benefits_order_sponsorship"`
	BenefitIndex     int       `bun:"benefit_index,notnull,unique:uq_order_benefits_order_sponsorship"`
	SponsorshipIndex int       `bun:"sponsorship_index,notnull,unique:uq_order_benefits_order_sponsorship"`
	Target           string    `bun:"target,notnull"`
	Liability        string    `bun:"liability,notnull"`
	Amount           float64   `bun:"amount,notnull"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func newEventRecord(in core.IdempotencyRecord, now time.Time) *eventRecord {
	receivedAt := in.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = now
	}
	return &eventRecord{
		ID:         newRecordID(),
		EventID:    in.EventID,
		OrderID:    in.OrderID,
		Code:       in.Code,
		ReceivedAt: receivedAt.UTC(),
	}
}

func (r *eventRecord) toDomain() core.IdempotencyRecord {
	if r == nil {
		return core.IdempotencyRecord{}
	}
	return core.IdempotencyRecord{
		EventID:    r.EventID,
		OrderID:    r.OrderID,
		Code:       r.Code,
		ReceivedAt: r.ReceivedAt.UTC(),
	}
}

func newOrderItemRecord(row core.OrderItemRow, now time.Time) *orderItemRecord {
	return &orderItemRecord{
		ID:               newRecordID(),
		OrderID:          row.OrderID,
		ItemIndex:        row.ItemIndex,
		DisplayID:        row.DisplayID,
		Name:             row.Name,
		Quantity:         row.Quantity,
		Price:            row.Price,
		Extra:            row.Extra,
		Status:           string(row.Status),
		CustomerName:     row.CustomerName,
		CustomerDocument: row.CustomerDocument,
		OrderDate:        cloneStringPointer(row.OrderDate),
		OrderTime:        cloneStringPointer(row.OrderTime),
		DeliverAt:        cloneStringPointer(row.DeliverAt),
		OrderTiming:      row.OrderTiming,
		DeliveryAddress:  row.DeliveryAddress,
		PickupCode:       row.PickupCode,
		Source:           row.Source,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (r *orderItemRecord) toDomain() core.OrderItemRow {
	return core.OrderItemRow{
		OrderID:          r.OrderID,
		ItemIndex:        r.ItemIndex,
		DisplayID:        r.DisplayID,
		Name:             r.Name,
		Quantity:         r.Quantity,
		Price:            r.Price,
		Extra:            r.Extra,
		Status:           core.OrderStatus(r.Status),
		CustomerName:     r.CustomerName,
		CustomerDocument: r.CustomerDocument,
		OrderDate:        cloneStringPointer(r.OrderDate),
		OrderTime:        cloneStringPointer(r.OrderTime),
		DeliverAt:        cloneStringPointer(r.DeliverAt),
		OrderTiming:      r.OrderTiming,
		DeliveryAddress:  r.DeliveryAddress,
		PickupCode:       r.PickupCode,
		Source:           r.Source,
	}
}

func newOrderPaymentRecord(row core.OrderPaymentRow, now time.Time) *orderPaymentRecord {
	return &orderPaymentRecord{
		ID:          newRecordID(),
		OrderID:     row.OrderID,
		MethodIndex: row.MethodIndex,
		Name:        row.Name,
		InPerson:    row.InPerson,
		CardBrand:   row.CardBrand,
		Provider:    row.Provider,
		Amount:      row.Amount,
		Liability:   row.Liability,
		CreatedAt:   now,
	}
}

func (r *orderPaymentRecord) toDomain() core.OrderPaymentRow {
	return core.OrderPaymentRow{
		OrderID:     r.OrderID,
		MethodIndex: r.MethodIndex,
		Name:        r.Name,
		InPerson:    r.InPerson,
		CardBrand:   r.CardBrand,
		Provider:    r.Provider,
		Amount:      r.Amount,
		Liability:   r.Liability,
	}
}

func newOrderBenefitRecord(row core.OrderBenefitRow, now time.Time) *orderBenefitRecord {
	return &orderBenefitRecord{
		ID:               newRecordID(),
		OrderID:          row.OrderID,
		BenefitIndex:     row.BenefitIndex,
		SponsorshipIndex: row.SponsorshipIndex,
		Target:           row.Target,
		Liability:        row.Liability,
		Amount:           row.Amount,
		CreatedAt:        now,
	}
}

func (r *orderBenefitRecord) toDomain() core.OrderBenefitRow {
	return core.OrderBenefitRow{
		OrderID:          r.OrderID,
		BenefitIndex:     r.BenefitIndex,
		SponsorshipIndex: r.SponsorshipIndex,
		Target:           r.Target,
		Liability:        r.Liability,
		Amount:           r.Amount,
	}
}

func cloneStringPointer(in *string) *string {
	if in == nil {
		return nil
	}
	value := *in
	return &value
}
