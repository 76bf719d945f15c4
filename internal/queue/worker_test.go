package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/oakmart/storefront-api/internal/common"
	"github.com/oakmart/storefront-api/internal/queue"
)

type fakeSweeper struct {
	removed int64
	err     error
	seenAt  time.Time
}

func (f *fakeSweeper) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.seenAt = now
	return f.removed, f.err
}

func TestHandleOrderConfirmation(t *testing.T) {
	mail := &common.InMemoryEmail{}
	h := &queue.Handlers{Email: mail, Log: zerolog.Nop()}

	task, err := queue.NewOrderConfirmationTask(queue.OrderConfirmationPayload{
		OrderNumber: "ORD-20260301-ABCDEFGH",
		Email:       "jo@example.com",
		Name:        "Jo",
		Total:       25000,
		Currency:    "USD",
	})
	require.NoError(t, err)

	require.NoError(t, h.HandleOrderConfirmation(context.Background(), task))
	require.Len(t, mail.Outbox, 1)
	require.Equal(t, "jo@example.com", mail.Outbox[0].To)
	require.Contains(t, mail.Outbox[0].Subject, "ORD-20260301-ABCDEFGH")
}

func TestHandleOrderConfirmationBadPayloadSkipsRetry(t *testing.T) {
	h := &queue.Handlers{Email: common.NopEmailSender{}, Log: zerolog.Nop()}

	task := asynq.NewTask(queue.TypeOrderConfirmation, []byte("not json"))
	err := h.HandleOrderConfirmation(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)

	task = asynq.NewTask(queue.TypeOrderConfirmation, []byte(`{"orderNumber":"X"}`))
	err = h.HandleOrderConfirmation(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleCartSweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	sweeper := &fakeSweeper{removed: 4}
	h := &queue.Handlers{
		Carts: sweeper,
		Log:   zerolog.Nop(),
		Now:   func() time.Time { return now },
	}

	require.NoError(t, h.HandleCartSweep(context.Background(), queue.NewCartSweepTask()))
	require.Equal(t, now, sweeper.seenAt)

	sweeper.err = errors.New("db down")
	require.Error(t, h.HandleCartSweep(context.Background(), queue.NewCartSweepTask()))
}
