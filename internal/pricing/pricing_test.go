package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oakmart/storefront-api/internal/pricing"
)

var policy = pricing.Policy{
	Version:            "v1",
	FreeShippingThresh: 300,
	FlatShippingCost:   50,
	TaxBps:             0,
}

func TestComputeFreeShippingAtThreshold(t *testing.T) {
	items := []pricing.Item{{Qty: 2, UnitPrice: 150}}
	got, err := pricing.Compute(items, policy)
	require.NoError(t, err)
	require.Equal(t, int64(300), got.Subtotal)
	require.Equal(t, int64(0), got.Shipping)
	require.Equal(t, int64(0), got.Tax)
	require.Equal(t, int64(300), got.Total)
}

func TestComputeFlatShippingBelowThreshold(t *testing.T) {
	items := []pricing.Item{{Qty: 1, UnitPrice: 100}}
	got, err := pricing.Compute(items, policy)
	require.NoError(t, err)
	require.Equal(t, int64(100), got.Subtotal)
	require.Equal(t, int64(50), got.Shipping)
	require.Equal(t, int64(150), got.Total)
}

func TestComputeTaxBps(t *testing.T) {
	p := pricing.Policy{FreeShippingThresh: 100_000, FlatShippingCost: 900, TaxBps: 1800}
	items := []pricing.Item{
		{Qty: 3, UnitPrice: 25_000},
		{Qty: 1, UnitPrice: 10_000},
	}
	got, err := pricing.Compute(items, p)
	require.NoError(t, err)
	require.Equal(t, int64(85_000), got.Subtotal)
	require.Equal(t, int64(900), got.Shipping)
	require.Equal(t, int64(15_300), got.Tax)
	require.Equal(t, got.Subtotal+got.Shipping+got.Tax, got.Total)
}

func TestComputeTotalIdentity(t *testing.T) {
	cases := [][]pricing.Item{
		{},
		{{Qty: 1, UnitPrice: 0}},
		{{Qty: 5, UnitPrice: 19_999}},
		{{Qty: 2, UnitPrice: 150}, {Qty: 4, UnitPrice: 75}},
	}
	p := pricing.Policy{FreeShippingThresh: 30_000, FlatShippingCost: 5_000, TaxBps: 1100}
	for _, items := range cases {
		got, err := pricing.Compute(items, p)
		require.NoError(t, err)
		require.Equal(t, got.Subtotal+got.Shipping+got.Tax, got.Total)
	}
}

func TestComputeDeterministic(t *testing.T) {
	items := []pricing.Item{{Qty: 7, UnitPrice: 1234}, {Qty: 1, UnitPrice: 99}}
	first, err := pricing.Compute(items, policy)
	require.NoError(t, err)
	second, err := pricing.Compute(items, policy)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestComputeRejectsInvalidItems(t *testing.T) {
	_, err := pricing.Compute([]pricing.Item{{Qty: 0, UnitPrice: 100}}, policy)
	require.ErrorIs(t, err, pricing.ErrInvalidLineItem)

	_, err = pricing.Compute([]pricing.Item{{Qty: -2, UnitPrice: 100}}, policy)
	require.ErrorIs(t, err, pricing.ErrInvalidLineItem)

	_, err = pricing.Compute([]pricing.Item{{Qty: 1, UnitPrice: -1}}, policy)
	require.ErrorIs(t, err, pricing.ErrInvalidLineItem)
}
