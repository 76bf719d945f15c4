package queue

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task type identifiers routed by the worker mux.
const (
	TypeOrderConfirmation = "email:order_confirmation"
	TypeCartSweep         = "cart:sweep"
)

// OrderConfirmationPayload carries everything the confirmation email needs so
// the worker never has to read the order back.
type OrderConfirmationPayload struct {
	OrderNumber string `json:"orderNumber"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Total       int64  `json:"total"`
	Currency    string `json:"currency"`
}

// NewOrderConfirmationTask builds the confirmation email task. Retries are
// capped because a confirmation that cannot be delivered within a day is
// stale anyway.
func NewOrderConfirmationTask(p OrderConfirmationPayload) (*asynq.Task, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeOrderConfirmation, raw, asynq.MaxRetry(5)), nil
}

// NewCartSweepTask builds the periodic expired-cart cleanup task.
func NewCartSweepTask() *asynq.Task {
	return asynq.NewTask(TypeCartSweep, nil, asynq.MaxRetry(1))
}
