package command

import (
	"context"
	"strings"

	"github.com/goliatone/go-orderfeed/core"
	"github.com/goliatone/go-orderfeed/marketplace"

	gocmd "github.com/goliatone/go-command"
)

type OrderActionPerformer interface {
	PerformAction(ctx context.Context, in marketplace.ActionInput) (core.ActionResult, error)
}

type PollingController interface {
	Start(ctx context.Context, merchantIDs []string) bool
	Stop() bool
	Running() bool
}

// OrderActionOutcome is the stored result of PerformOrderActionCommand.
type OrderActionOutcome struct {
	core.ActionResult
	LocalStatus core.OrderStatus `json:"localStatus,omitempty"`
	LocalRows   int64            `json:"localRows"`
}

type PerformOrderActionCommand struct {
	performer OrderActionPerformer
	store     core.StatusUpdater
	observer  core.Observer
}

// NewPerformOrderActionCommand builds the command. store may be nil, in
// which case NewStatus is ignored.
func NewPerformOrderActionCommand(performer OrderActionPerformer, store core.StatusUpdater, logger core.Logger) *PerformOrderActionCommand {
	return &PerformOrderActionCommand{
		performer: performer,
		store:     store,
		observer:  core.NewObserver(logger, nil),
	}
}

func (c *PerformOrderActionCommand) Execute(ctx context.Context, msg PerformOrderActionMessage) error {
	if c == nil || c.performer == nil {
		return commandDependencyError("command: order action performer is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	action, _ := core.ParseOrderAction(msg.Action)
	result, err := c.performer.PerformAction(ctx, marketplace.ActionInput{
		OrderID:           strings.TrimSpace(msg.OrderID),
		Action:            action,
		ReasonCode:        msg.ReasonCode,
		ReasonDescription: msg.ReasonDescription,
	})
	if err != nil {
		return err
	}

	outcome := OrderActionOutcome{ActionResult: result}
	newStatus := core.OrderStatus(strings.TrimSpace(msg.NewStatus))
	if result.Accepted && newStatus != "" && c.store != nil {
		rows, updateErr := c.store.UpdateStatus(ctx, result.OrderID, newStatus)
		if updateErr != nil {
			c.observer.Warn(ctx, "command: local status update failed", map[string]any{
				"order_id": result.OrderID,
				"status":   string(newStatus),
				"error":    updateErr.Error(),
			})
		} else {
			outcome.LocalStatus = newStatus
			outcome.LocalRows = rows
		}
	}
	storeResult(ctx, outcome)
	return nil
}

// PollingToggle is the stored result of the polling commands.
type PollingToggle struct {
	Changed bool `json:"changed"`
	Running bool `json:"running"`
}

type StartPollingCommand struct {
	controller       PollingController
	defaultMerchants []string
}

func NewStartPollingCommand(controller PollingController, defaultMerchants []string) *StartPollingCommand {
	return &StartPollingCommand{
		controller:       controller,
		defaultMerchants: append([]string(nil), defaultMerchants...),
	}
}

// Execute starts polling. Starting a running loop is a no-op.
func (c *StartPollingCommand) Execute(ctx context.Context, msg StartPollingMessage) error {
	if c == nil || c.controller == nil {
		return commandDependencyError("command: polling controller is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	merchants := msg.MerchantIDs
	if len(merchants) == 0 {
		merchants = c.defaultMerchants
	}
	changed := c.controller.Start(ctx, merchants)
	storeResult(ctx, PollingToggle{Changed: changed, Running: c.controller.Running()})
	return nil
}

type StopPollingCommand struct {
	controller PollingController
}

func NewStopPollingCommand(controller PollingController) *StopPollingCommand {
	return &StopPollingCommand{controller: controller}
}

func (c *StopPollingCommand) Execute(ctx context.Context, _ StopPollingMessage) error {
	if c == nil || c.controller == nil {
		return commandDependencyError("command: polling controller is required")
	}
	changed := c.controller.Stop()
	storeResult(ctx, PollingToggle{Changed: changed, Running: c.controller.Running()})
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
