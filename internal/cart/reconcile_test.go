package cart_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/oakmart/storefront-api/internal/cart"
)

var (
	prodA = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	prodB = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

func item(p uuid.UUID, variant string, qty int, price int64) cart.LineItem {
	return cart.LineItem{ProductID: p, VariantName: variant, Qty: qty, UnitPrice: price}
}

func TestReconcileIdentityLaws(t *testing.T) {
	items := []cart.LineItem{item(prodA, "", 2, 1000), item(prodB, "XL", 1, 2500)}

	require.Equal(t, items, cart.Reconcile(nil, items))
	require.Equal(t, items, cart.Reconcile(items, nil))
}

func TestReconcileSumsDuplicateQuantities(t *testing.T) {
	guest := []cart.LineItem{item(prodA, "", 1, 10)}
	user := []cart.LineItem{item(prodA, "", 2, 10)}

	merged := cart.Reconcile(guest, user)
	require.Len(t, merged, 1)
	require.Equal(t, 3, merged[0].Qty)
	require.Equal(t, int64(10), merged[0].UnitPrice)
}

func TestReconcileVariantsAreDistinctLines(t *testing.T) {
	guest := []cart.LineItem{item(prodA, "M", 1, 10)}
	user := []cart.LineItem{item(prodA, "L", 2, 10)}

	merged := cart.Reconcile(guest, user)
	require.Len(t, merged, 2)
}

func TestReconcileUserPriceWins(t *testing.T) {
	guest := []cart.LineItem{item(prodA, "", 1, 1200)}
	user := []cart.LineItem{item(prodA, "", 1, 1000)}

	merged := cart.Reconcile(guest, user)
	require.Len(t, merged, 1)
	require.Equal(t, 2, merged[0].Qty)
	require.Equal(t, int64(1000), merged[0].UnitPrice)
}

func TestReconcileAppendsNewGuestLines(t *testing.T) {
	guest := []cart.LineItem{item(prodB, "", 4, 500)}
	user := []cart.LineItem{item(prodA, "", 1, 1000)}

	merged := cart.Reconcile(guest, user)
	require.Len(t, merged, 2)
	require.Equal(t, prodA, merged[0].ProductID)
	require.Equal(t, prodB, merged[1].ProductID)
	require.Equal(t, int64(500), merged[1].UnitPrice)
}

func TestReconcileQuantitiesCommutative(t *testing.T) {
	a := []cart.LineItem{item(prodA, "", 1, 10), item(prodB, "", 5, 20)}
	b := []cart.LineItem{item(prodA, "", 2, 10)}

	ab := quantities(cart.Reconcile(a, b))
	ba := quantities(cart.Reconcile(b, a))
	require.Equal(t, ab, ba)
}

func TestReconcileIdempotentAfterGuestCleared(t *testing.T) {
	guest := []cart.LineItem{item(prodA, "", 1, 10), item(prodB, "S", 2, 30)}
	user := []cart.LineItem{item(prodA, "", 2, 10)}

	merged := cart.Reconcile(guest, user)
	again := cart.Reconcile(nil, merged)
	require.Equal(t, merged, again)
}

func TestReconcileCollapsesGuestDuplicates(t *testing.T) {
	guest := []cart.LineItem{item(prodA, "", 1, 10), item(prodA, "", 2, 10)}

	merged := cart.Reconcile(guest, nil)
	require.Len(t, merged, 1)
	require.Equal(t, 3, merged[0].Qty)
}

func quantities(items []cart.LineItem) map[string]int {
	out := make(map[string]int, len(items))
	for _, it := range items {
		out[it.ProductID.String()+"/"+it.VariantName] += it.Qty
	}
	return out
}
