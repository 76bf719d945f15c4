package pricing

import (
	"errors"
	"fmt"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// ErrInvalidLineItem indicates an item with a non-positive quantity or a
// negative unit price.
var ErrInvalidLineItem = errors.New("pricing: invalid line item")

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Policy is the single versioned pricing configuration. Every caller that
// displays or persists totals must receive the same Policy instance; totals
// frozen on an order are never recomputed against a newer policy.
type Policy struct {
	Version            string
	FreeShippingThresh Money
	FlatShippingCost   Money
	TaxBps             int
}

// Breakdown aggregates the computed pricing components.
type Breakdown struct {
	Subtotal Money
	Shipping Money
	Tax      Money
	Total    Money
}

// Compute calculates totals for the provided items under the policy.
//
// Shipping is free at or above the threshold, otherwise the flat cost
// applies. Tax is charged on the subtotal in basis points. The function is
// pure and deterministic.
func Compute(items []Item, p Policy) (Breakdown, error) {
	var subtotal Money
	for i, it := range items {
		if it.Qty < 1 {
			return Breakdown{}, fmt.Errorf("item %d: qty %d: %w", i, it.Qty, ErrInvalidLineItem)
		}
		if it.UnitPrice < 0 {
			return Breakdown{}, fmt.Errorf("item %d: unit price %d: %w", i, it.UnitPrice, ErrInvalidLineItem)
		}
		subtotal += Money(it.Qty) * it.UnitPrice
	}
	var shipping Money
	if subtotal < p.FreeShippingThresh {
		shipping = p.FlatShippingCost
	}
	tax := (subtotal * Money(p.TaxBps)) / 10000
	return Breakdown{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal + shipping + tax,
	}, nil
}
