package balance

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/xiaomguo/sdl2-solid-dosing/internal/wire"
)

// Canceller provides best-effort cancellation of device-side work. Its
// calls log failures instead of raising so cleanup paths never block on
// device agreement.
type Canceller struct {
	gw *Gateway
}

// NewCanceller creates the cancellation facade.
func NewCanceller(gw *Gateway) *Canceller {
	return &Canceller{gw: gw}
}

// CancelActive cancels the currently active weighing task. Safe to call
// when no task is active; that case is logged, not failed.
func (c *Canceller) CancelActive(ctx context.Context) {
	log.Info().Msg("Attempting to cancel current weighing task")

	_, err := c.gw.Invoke(ctx, InvokeSpec{
		Service:     weighingTaskService,
		Method:      "CancelCurrentTask",
		WithSession: true,
	})
	if err == nil {
		log.Info().Msg("CancelCurrentTask command sent")
		return
	}

	if e, ok := AsError(err); ok && strings.Contains(strings.ToLower(e.ErrorMessage), "no active task") {
		log.Info().Msg("No active task to cancel, or task already completed")
		return
	}
	log.Warn().Err(err).Msg("Could not cancel current task")
}

// CancelAll cancels every pending asynchronous command on the device
// and forgets the locally tracked command ids regardless of the device
// response.
func (c *Canceller) CancelAll(ctx context.Context) {
	log.Info().Msg("Cancelling all pending commands on the device")

	_, err := c.gw.Invoke(ctx, InvokeSpec{
		Service: sessionService,
		Method:  "Cancel",
		Args: []wire.Arg{
			{Name: "CancelType", Value: "All"},
			{Name: "CommandId", Value: nil},
		},
		WithSession: true,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to cancel all commands")
	} else {
		log.Info().Msg("All pending commands cancelled on the device")
	}

	c.gw.ClearActiveCommands()
}
