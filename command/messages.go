package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-orderfeed/core"
)

const (
	TypePerformOrderAction = "orderfeed.command.order.action"
	TypeStartPolling       = "orderfeed.command.polling.start"
	TypeStopPolling        = "orderfeed.command.polling.stop"
)

// PerformOrderActionMessage asks the marketplace to move an order forward.
// NewStatus, when set, is written to the local order once the marketplace
// accepts the action.
type PerformOrderActionMessage struct {
	OrderID           string `json:"orderId"`
	Action            string `json:"action"`
	ReasonCode        string `json:"reasonCode"`
	ReasonDescription string `json:"reasonDescription"`
	NewStatus         string `json:"newStatus"`
}

func (PerformOrderActionMessage) Type() string { return TypePerformOrderAction }

func (m PerformOrderActionMessage) Validate() error {
	if strings.TrimSpace(m.OrderID) == "" {
		return commandValidationError("orderId", "order id is required")
	}
	action, ok := core.ParseOrderAction(m.Action)
	if !ok {
		return commandValidationError("action", fmt.Sprintf("unsupported action %q", strings.TrimSpace(m.Action)))
	}
	if action == core.ActionRequestCancellation && strings.TrimSpace(m.ReasonCode) == "" {
		return commandValidationError("reasonCode", "reasonCode is required for requestCancellation")
	}
	return nil
}

// StartPollingMessage starts the polling loop. An empty merchant list
// falls back to the configured merchants.
type StartPollingMessage struct {
	MerchantIDs []string `json:"merchantIds"`
}

func (StartPollingMessage) Type() string { return TypeStartPolling }

func (m StartPollingMessage) Validate() error {
	for index, id := range m.MerchantIDs {
		if strings.TrimSpace(id) == "" {
			return commandValidationError(fmt.Sprintf("merchantIds[%d]", index), "merchant id must not be empty")
		}
	}
	return nil
}

type StopPollingMessage struct{}

func (StopPollingMessage) Type() string { return TypeStopPolling }

func (StopPollingMessage) Validate() error { return nil }
