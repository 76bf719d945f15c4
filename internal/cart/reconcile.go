package cart

import "github.com/google/uuid"

// LineItem is one product/variant line within a cart, with the unit price
// captured when the item was added.
type LineItem struct {
	ProductID   uuid.UUID
	VariantName string
	Title       string
	Slug        string
	Qty         int
	UnitPrice   int64
}

type lineKey struct {
	productID   uuid.UUID
	variantName string
}

// Reconcile merges a guest cart into a user cart. The result starts from the
// user items; guest quantities are added onto matching (product, variant)
// lines and unmatched guest lines are appended in their original order. When
// both sides carry the same line at different prices the user price wins —
// prices are never averaged or summed. Merging with an empty guest cart
// returns the user items unchanged, so the operation is idempotent once the
// guest cart has been consumed.
func Reconcile(guestItems, userItems []LineItem) []LineItem {
	merged := make([]LineItem, len(userItems))
	copy(merged, userItems)

	index := make(map[lineKey]int, len(merged))
	for i, it := range merged {
		index[lineKey{it.ProductID, it.VariantName}] = i
	}
	for _, g := range guestItems {
		key := lineKey{g.ProductID, g.VariantName}
		if i, ok := index[key]; ok {
			merged[i].Qty += g.Qty
			continue
		}
		merged = append(merged, g)
		index[key] = len(merged) - 1
	}
	return merged
}
