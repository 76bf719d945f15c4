package checkout_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/oakmart/storefront-api/internal/cart"
	"github.com/oakmart/storefront-api/internal/checkout"
	"github.com/oakmart/storefront-api/internal/order"
	"github.com/oakmart/storefront-api/internal/pricing"
	"github.com/oakmart/storefront-api/internal/repo"
)

type fakeCarts struct {
	cart    repo.Cart
	items   []repo.CartItem
	cleared []string
}

func (f *fakeCarts) Get(_ context.Context, cartID string) (repo.Cart, []repo.CartItem, error) {
	if cartID != f.cart.ID.String() {
		return repo.Cart{}, nil, cart.ErrNotFound
	}
	return f.cart, f.items, nil
}

func (f *fakeCarts) Clear(_ context.Context, cartID string) error {
	f.cleared = append(f.cleared, cartID)
	return nil
}

type fakeOrders struct {
	writes int
}

func (f *fakeOrders) CreateWithItems(_ context.Context, o repo.Order, _ []repo.OrderItem) (repo.Order, error) {
	f.writes++
	o.ID = uuid.New()
	return o, nil
}

type allProducts struct{}

func (allProducts) GetByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]repo.Product, error) {
	out := make(map[uuid.UUID]repo.Product, len(ids))
	for _, id := range ids {
		out[id] = repo.Product{ID: id, Active: true}
	}
	return out, nil
}

func validInput(cartID string) checkout.Input {
	return checkout.Input{
		CartID: cartID,
		Customer: order.CustomerInfo{
			Name:  "Jo",
			Email: "jo@example.com",
		},
		ShippingAddress: order.Address{
			ReceiverName: "Jo",
			AddressLine1: "1 Main St",
			City:         "Springfield",
			PostalCode:   "12345",
			Country:      "US",
		},
		PaymentMethod: "card",
	}
}

func newService(carts *fakeCarts, orders *fakeOrders) *checkout.Service {
	return &checkout.Service{
		Carts: carts,
		Assembler: &order.Assembler{
			Orders:   orders,
			Products: allProducts{},
			Policy: pricing.Policy{
				Version:            "2026-01",
				FreeShippingThresh: 30000,
				FlatShippingCost:   5000,
			},
			Currency: "USD",
			Now:      func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
		},
		Log: zerolog.Nop(),
	}
}

func TestCreateClearsCartAfterOrder(t *testing.T) {
	userID := uuid.New()
	carts := &fakeCarts{
		cart: repo.Cart{ID: uuid.New(), UserID: &userID, ExpiresAt: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)},
		items: []repo.CartItem{
			{ProductID: uuid.New(), Title: "Tee", Slug: "tee", Qty: 2, UnitPrice: 10000},
		},
	}
	orders := &fakeOrders{}
	svc := newService(carts, orders)

	out, err := svc.Create(context.Background(), userID.String(), validInput(carts.cart.ID.String()))
	require.NoError(t, err)
	require.Equal(t, 1, orders.writes)
	require.Equal(t, []string{carts.cart.ID.String()}, carts.cleared)
	require.Equal(t, int64(25000), out.Total)
	require.Equal(t, "USD", out.Currency)
	require.Equal(t, string(order.StatusPending), out.Status)
	require.NotEmpty(t, out.OrderNumber)
}

func TestCreateEmptyCart(t *testing.T) {
	userID := uuid.New()
	carts := &fakeCarts{
		cart: repo.Cart{ID: uuid.New(), UserID: &userID, ExpiresAt: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	orders := &fakeOrders{}
	svc := newService(carts, orders)

	_, err := svc.Create(context.Background(), userID.String(), validInput(carts.cart.ID.String()))
	require.ErrorIs(t, err, order.ErrEmptyOrder)
	require.Zero(t, orders.writes)
	require.Empty(t, carts.cleared)
}

func TestCreateForeignCart(t *testing.T) {
	owner := uuid.New()
	carts := &fakeCarts{
		cart: repo.Cart{ID: uuid.New(), UserID: &owner, ExpiresAt: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)},
		items: []repo.CartItem{
			{ProductID: uuid.New(), Qty: 1, UnitPrice: 100},
		},
	}
	orders := &fakeOrders{}
	svc := newService(carts, orders)

	_, err := svc.Create(context.Background(), uuid.NewString(), validInput(carts.cart.ID.String()))
	require.ErrorIs(t, err, checkout.ErrCartNotOwned)
	require.Zero(t, orders.writes)
}

func TestCreateUnknownCart(t *testing.T) {
	carts := &fakeCarts{cart: repo.Cart{ID: uuid.New()}}
	svc := newService(carts, &fakeOrders{})

	_, err := svc.Create(context.Background(), uuid.NewString(), validInput(uuid.NewString()))
	require.ErrorIs(t, err, cart.ErrNotFound)
}
