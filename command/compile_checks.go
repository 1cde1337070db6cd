package command

import (
	"github.com/goliatone/go-orderfeed/marketplace"
	"github.com/goliatone/go-orderfeed/polling"

	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Commander[PerformOrderActionMessage] = (*PerformOrderActionCommand)(nil)
	_ gocmd.Commander[StartPollingMessage]       = (*StartPollingCommand)(nil)
	_ gocmd.Commander[StopPollingMessage]        = (*StopPollingCommand)(nil)

	_ OrderActionPerformer = (*marketplace.Client)(nil)
	_ PollingController    = (*polling.Loop)(nil)
)
