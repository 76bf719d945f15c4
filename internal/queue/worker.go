package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/oakmart/storefront-api/internal/common"
)

// CartSweeper removes carts past their expiry.
type CartSweeper interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Handlers holds the worker-side task processors.
type Handlers struct {
	Email common.EmailSender
	Carts CartSweeper
	Log   zerolog.Logger
	Now   func() time.Time
}

// Register attaches every task handler to the mux.
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeOrderConfirmation, h.HandleOrderConfirmation)
	mux.HandleFunc(TypeCartSweep, h.HandleCartSweep)
}

// HandleOrderConfirmation sends the confirmation email for a placed order.
func (h *Handlers) HandleOrderConfirmation(ctx context.Context, t *asynq.Task) error {
	var p OrderConfirmationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode confirmation payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.Email == "" {
		return fmt.Errorf("confirmation payload missing email: %w", asynq.SkipRetry)
	}
	subject := fmt.Sprintf("Order %s confirmed", p.OrderNumber)
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Thanks for your order <strong>%s</strong>. We charged %s %d and will let you know when it ships.</p>",
		p.Name, p.OrderNumber, p.Currency, p.Total)
	if err := h.Email.Send(p.Email, subject, body); err != nil {
		return fmt.Errorf("send confirmation for %s: %w", p.OrderNumber, err)
	}
	h.Log.Info().Str("order_number", p.OrderNumber).Msg("confirmation email sent")
	return nil
}

// HandleCartSweep deletes carts whose TTL has lapsed.
func (h *Handlers) HandleCartSweep(ctx context.Context, _ *asynq.Task) error {
	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	removed, err := h.Carts.DeleteExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("sweep expired carts: %w", err)
	}
	if removed > 0 {
		h.Log.Info().Int64("removed", removed).Msg("expired carts swept")
	}
	return nil
}
