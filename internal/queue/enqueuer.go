package queue

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Enqueuer publishes background tasks after a request commits. Failures are
// logged, not surfaced: a missed email never unwinds a placed order.
type Enqueuer struct {
	Client *asynq.Client
	Log    zerolog.Logger
}

// OrderConfirmation enqueues the confirmation email for a freshly placed
// order.
func (e *Enqueuer) OrderConfirmation(ctx context.Context, p OrderConfirmationPayload) {
	if e == nil || e.Client == nil {
		return
	}
	task, err := NewOrderConfirmationTask(p)
	if err != nil {
		e.Log.Error().Err(err).Str("order_number", p.OrderNumber).Msg("build confirmation task")
		return
	}
	info, err := e.Client.EnqueueContext(ctx, task, asynq.TaskID("order-confirmation:"+p.OrderNumber))
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return
		}
		e.Log.Error().Err(err).Str("order_number", p.OrderNumber).Msg("enqueue confirmation task")
		return
	}
	e.Log.Debug().Str("task_id", info.ID).Str("order_number", p.OrderNumber).Msg("confirmation task enqueued")
}
