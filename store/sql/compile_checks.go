package sqlstore

import "github.com/goliatone/go-orderfeed/core"

var (
	_ core.IdempotencyStore = (*EventLedgerStore)(nil)
	_ core.IdempotencyStore = (*CachedEventLedger)(nil)
	_ core.OrderStore       = (*OrderStore)(nil)
	_ core.StatusUpdater    = (*OrderStore)(nil)
)
