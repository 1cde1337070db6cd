package query

import (
	"github.com/goliatone/go-orderfeed/auth"
	"github.com/goliatone/go-orderfeed/core"
	"github.com/goliatone/go-orderfeed/marketplace"
	"github.com/goliatone/go-orderfeed/orders"
	"github.com/goliatone/go-orderfeed/polling"
	sqlstore "github.com/goliatone/go-orderfeed/store/sql"

	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[CredentialHealthMessage, core.CredentialHealth]        = (*CredentialHealthQuery)(nil)
	_ gocmd.Querier[CancellationReasonsMessage, []core.CancellationReason] = (*CancellationReasonsQuery)(nil)
	_ gocmd.Querier[OrderDetailMessage, core.NormalizedOrder]              = (*OrderDetailQuery)(nil)
	_ gocmd.Querier[LocalOrderMessage, core.OrderState]                    = (*LocalOrderQuery)(nil)
	_ gocmd.Querier[PollingStatusMessage, polling.Status]                  = (*PollingStatusQuery)(nil)

	_ CredentialHealthReader    = (*auth.CredentialCache)(nil)
	_ CancellationReasonsReader = (*marketplace.Client)(nil)
	_ OrderInspector            = (*orders.Fetcher)(nil)
	_ OrderReader               = (*sqlstore.OrderStore)(nil)
	_ PollingStatusReader       = (*polling.Loop)(nil)
)
