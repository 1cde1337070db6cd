package query

import "strings"

const (
	TypeCredentialHealth    = "orderfeed.query.credential.health"
	TypeCancellationReasons = "orderfeed.query.order.cancellation_reasons"
	TypeOrderDetail         = "orderfeed.query.order.detail"
	TypeLocalOrder          = "orderfeed.query.order.local"
	TypePollingStatus       = "orderfeed.query.polling.status"
)

type CredentialHealthMessage struct{}

func (CredentialHealthMessage) Type() string { return TypeCredentialHealth }

func (CredentialHealthMessage) Validate() error { return nil }

type CancellationReasonsMessage struct {
	OrderID string
}

func (CancellationReasonsMessage) Type() string { return TypeCancellationReasons }

func (m CancellationReasonsMessage) Validate() error {
	return requireOrderID(m.OrderID)
}

// OrderDetailMessage asks for the normalized remote order without storing it.
type OrderDetailMessage struct {
	OrderID string
}

func (OrderDetailMessage) Type() string { return TypeOrderDetail }

func (m OrderDetailMessage) Validate() error {
	return requireOrderID(m.OrderID)
}

// LocalOrderMessage asks for the order rows already stored locally.
type LocalOrderMessage struct {
	OrderID string
}

func (LocalOrderMessage) Type() string { return TypeLocalOrder }

func (m LocalOrderMessage) Validate() error {
	return requireOrderID(m.OrderID)
}

type PollingStatusMessage struct{}

func (PollingStatusMessage) Type() string { return TypePollingStatus }

func (PollingStatusMessage) Validate() error { return nil }

func requireOrderID(orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return queryValidationError("orderId", "order id is required")
	}
	return nil
}
