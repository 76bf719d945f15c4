package order_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oakmart/storefront-api/internal/order"
)

func TestStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to order.Status }{
		{order.StatusPending, order.StatusProcessing},
		{order.StatusPending, order.StatusCancelled},
		{order.StatusProcessing, order.StatusShipped},
		{order.StatusProcessing, order.StatusCancelled},
		{order.StatusShipped, order.StatusDelivered},
	}
	for _, tc := range allowed {
		require.True(t, order.CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	denied := []struct{ from, to order.Status }{
		{order.StatusPending, order.StatusShipped},
		{order.StatusPending, order.StatusDelivered},
		{order.StatusShipped, order.StatusCancelled},
		{order.StatusDelivered, order.StatusCancelled},
		{order.StatusDelivered, order.StatusProcessing},
		{order.StatusCancelled, order.StatusPending},
		{order.StatusCancelled, order.StatusProcessing},
		{order.StatusPending, order.StatusPending},
	}
	for _, tc := range denied {
		require.False(t, order.CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []order.Status{
		order.StatusPending, order.StatusProcessing, order.StatusShipped,
		order.StatusDelivered, order.StatusCancelled,
	} {
		require.True(t, order.ValidStatus(s))
	}
	require.False(t, order.ValidStatus("refunded"))
	require.False(t, order.ValidStatus(""))
}
