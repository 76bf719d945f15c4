package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oakmart/storefront-api/internal/cart"
	"github.com/oakmart/storefront-api/internal/obs"
	"github.com/oakmart/storefront-api/internal/pricing"
	"github.com/oakmart/storefront-api/internal/repo"
)

// ErrUnauthenticated is returned when no valid identity accompanies the
// request. It is never downgraded to a guest checkout.
var ErrUnauthenticated = errors.New("order: unauthenticated")

// ErrEmptyOrder is returned for a checkout with no line items.
var ErrEmptyOrder = errors.New("order: no items")

// ErrPersistenceFailed is returned when the order write fails. Nothing was
// written, so the caller may safely resubmit.
var ErrPersistenceFailed = errors.New("order: persistence failed")

// ProductNotFoundError identifies a line item whose product does not exist.
type ProductNotFoundError struct {
	ProductID uuid.UUID
}

func (e ProductNotFoundError) Error() string {
	return fmt.Sprintf("order: product %s not found", e.ProductID)
}

// CustomerInfo is the contact information captured on the order.
type CustomerInfo struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"omitempty,min=6"`
}

// Address is a shipping or billing address frozen onto the order.
type Address struct {
	ReceiverName string `json:"receiverName" validate:"required"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"addressLine1" validate:"required"`
	AddressLine2 string `json:"addressLine2"`
	City         string `json:"city" validate:"required"`
	Province     string `json:"province"`
	PostalCode   string `json:"postalCode" validate:"required"`
	Country      string `json:"country" validate:"required"`
}

// Input carries everything the assembler needs to build an order.
type Input struct {
	Items           []cart.LineItem
	Customer        CustomerInfo
	ShippingAddress Address
	BillingAddress  Address
	PaymentMethod   string
}

// Store is the order persistence surface used by the assembler. The write is
// a single call so no partial order can exist.
type Store interface {
	CreateWithItems(ctx context.Context, o repo.Order, items []repo.OrderItem) (repo.Order, error)
}

// ProductFinder resolves the product identifiers referenced by line items.
type ProductFinder interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]repo.Product, error)
}

const defaultNumberRetries = 3

// Assembler validates a priced cart and persists it as a durable order.
// Pricing uses the canonical policy; the persisted breakdown is
// authoritative and UI-supplied totals are never trusted.
type Assembler struct {
	Orders        Store
	Products      ProductFinder
	Policy        pricing.Policy
	Currency      string
	NumberRetries int
	Now           func() time.Time
}

func (a *Assembler) now() time.Time {
	if a != nil && a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Assemble checks every precondition before touching storage: the identity,
// the non-empty item list, then every referenced product. Any failure
// returns before a single write happens.
func (a *Assembler) Assemble(ctx context.Context, identity string, in Input) (repo.Order, error) {
	if a == nil || a.Orders == nil || a.Products == nil {
		return repo.Order{}, errors.New("order assembler not configured")
	}
	userID, err := uuid.Parse(identity)
	if identity == "" || err != nil {
		return repo.Order{}, ErrUnauthenticated
	}
	if len(in.Items) == 0 {
		return repo.Order{}, ErrEmptyOrder
	}

	ids := make([]uuid.UUID, 0, len(in.Items))
	seen := make(map[uuid.UUID]bool, len(in.Items))
	for _, it := range in.Items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	known, err := a.Products.GetByIDs(ctx, ids)
	if err != nil {
		return repo.Order{}, fmt.Errorf("resolve products: %w", err)
	}
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			return repo.Order{}, ProductNotFoundError{ProductID: id}
		}
	}

	pricingItems := make([]pricing.Item, 0, len(in.Items))
	for _, it := range in.Items {
		pricingItems = append(pricingItems, pricing.Item{Qty: it.Qty, UnitPrice: it.UnitPrice})
	}
	summary, err := pricing.Compute(pricingItems, a.Policy)
	if err != nil {
		return repo.Order{}, err
	}

	orderItems := make([]repo.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		orderItems = append(orderItems, repo.OrderItem{
			ProductID:   it.ProductID,
			VariantName: it.VariantName,
			Title:       it.Title,
			Slug:        it.Slug,
			Qty:         int32(it.Qty),
			UnitPrice:   it.UnitPrice,
			Subtotal:    int64(it.Qty) * it.UnitPrice,
		})
	}

	record := repo.Order{
		UserID:        userID,
		Status:        string(StatusPending),
		Currency:      a.Currency,
		PolicyVersion: a.Policy.Version,
		Subtotal:      summary.Subtotal,
		Shipping:      summary.Shipping,
		Tax:           summary.Tax,
		Total:         summary.Total,
		Customer:      toJSON(in.Customer),
		ShipAddress:   toJSON(in.ShippingAddress),
		BillAddress:   toJSON(in.BillingAddress),
		PaymentMethod: in.PaymentMethod,
		PaymentStatus: "pending",
	}

	retries := a.NumberRetries
	if retries <= 0 {
		retries = defaultNumberRetries
	}
	for attempt := 0; attempt < retries; attempt++ {
		record.OrderNumber = NewOrderNumber(a.now())
		created, err := a.Orders.CreateWithItems(ctx, record, orderItems)
		if err == nil {
			if obs.OrdersCreatedTotal != nil {
				obs.OrdersCreatedTotal.WithLabelValues(created.PaymentMethod).Inc()
			}
			return created, nil
		}
		if errors.Is(err, repo.ErrDuplicateOrderNumber) {
			if obs.OrderNumberCollisionsTotal != nil {
				obs.OrderNumberCollisionsTotal.Inc()
			}
			continue
		}
		return repo.Order{}, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	return repo.Order{}, fmt.Errorf("%w: order number collisions exhausted retries", ErrPersistenceFailed)
}

func toJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
