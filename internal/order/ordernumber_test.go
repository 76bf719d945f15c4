package order_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oakmart/storefront-api/internal/order"
)

func TestNewOrderNumberFormat(t *testing.T) {
	now := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	n := order.NewOrderNumber(now)
	require.Regexp(t, `^ORD-20260301-[0-9A-HJKMNP-TV-Z]{8}$`, n)
}

func TestNewOrderNumberUsesUTCDate(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	// 02:00 local on March 2nd is still March 1st in UTC
	now := time.Date(2026, 3, 2, 2, 0, 0, 0, jakarta)
	n := order.NewOrderNumber(now)
	require.Contains(t, n, "ORD-20260301-")
}

func TestNewOrderNumberVaries(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		seen[order.NewOrderNumber(now)] = true
	}
	// 8 random base32 chars make a same-instant collision vanishingly rare
	require.Greater(t, len(seen), 95)
}
