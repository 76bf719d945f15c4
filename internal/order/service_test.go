package order_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/oakmart/storefront-api/internal/cart"
	"github.com/oakmart/storefront-api/internal/order"
	"github.com/oakmart/storefront-api/internal/pricing"
	"github.com/oakmart/storefront-api/internal/repo"
)

type fakeOrderStore struct {
	writes   int
	failWith []error
	created  repo.Order
	items    []repo.OrderItem
}

func (f *fakeOrderStore) CreateWithItems(_ context.Context, o repo.Order, items []repo.OrderItem) (repo.Order, error) {
	f.writes++
	if len(f.failWith) > 0 {
		err := f.failWith[0]
		f.failWith = f.failWith[1:]
		if err != nil {
			return repo.Order{}, err
		}
	}
	o.ID = uuid.New()
	f.created = o
	f.items = items
	return o, nil
}

type fakeFinder struct {
	products map[uuid.UUID]repo.Product
	calls    int
}

func (f *fakeFinder) GetByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]repo.Product, error) {
	f.calls++
	out := make(map[uuid.UUID]repo.Product, len(ids))
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

var testPolicy = pricing.Policy{
	Version:            "2026-01",
	FreeShippingThresh: 30000,
	FlatShippingCost:   5000,
}

func newAssembler(store *fakeOrderStore, finder *fakeFinder) *order.Assembler {
	return &order.Assembler{
		Orders:   store,
		Products: finder,
		Policy:   testPolicy,
		Currency: "USD",
		Now:      func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func lineItem(id uuid.UUID, qty int, price int64) cart.LineItem {
	return cart.LineItem{ProductID: id, Title: "Tee", Slug: "tee", Qty: qty, UnitPrice: price}
}

func TestAssembleRequiresAuthentication(t *testing.T) {
	store := &fakeOrderStore{}
	a := newAssembler(store, &fakeFinder{})

	for _, identity := range []string{"", "not-a-uuid"} {
		_, err := a.Assemble(context.Background(), identity, order.Input{
			Items: []cart.LineItem{lineItem(uuid.New(), 1, 100)},
		})
		require.ErrorIs(t, err, order.ErrUnauthenticated)
	}
	require.Zero(t, store.writes)
}

func TestAssembleRejectsEmptyOrder(t *testing.T) {
	store := &fakeOrderStore{}
	finder := &fakeFinder{}
	a := newAssembler(store, finder)

	_, err := a.Assemble(context.Background(), uuid.NewString(), order.Input{})
	require.ErrorIs(t, err, order.ErrEmptyOrder)
	require.Zero(t, store.writes)
	require.Zero(t, finder.calls)
}

func TestAssembleRejectsUnknownProduct(t *testing.T) {
	known := uuid.New()
	missing := uuid.New()
	store := &fakeOrderStore{}
	finder := &fakeFinder{products: map[uuid.UUID]repo.Product{
		known: {ID: known, Active: true},
	}}
	a := newAssembler(store, finder)

	_, err := a.Assemble(context.Background(), uuid.NewString(), order.Input{
		Items: []cart.LineItem{lineItem(known, 1, 100), lineItem(missing, 2, 50)},
	})
	var notFound order.ProductNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, missing, notFound.ProductID)
	require.Zero(t, store.writes)
}

func TestAssembleFreezesPricing(t *testing.T) {
	prod := uuid.New()
	store := &fakeOrderStore{}
	finder := &fakeFinder{products: map[uuid.UUID]repo.Product{
		prod: {ID: prod, Active: true},
	}}
	a := newAssembler(store, finder)

	created, err := a.Assemble(context.Background(), uuid.NewString(), order.Input{
		Items:         []cart.LineItem{lineItem(prod, 2, 10000)},
		PaymentMethod: "card",
	})
	require.NoError(t, err)
	require.Equal(t, 1, store.writes)

	require.Equal(t, int64(20000), created.Subtotal)
	require.Equal(t, int64(5000), created.Shipping)
	require.Equal(t, int64(0), created.Tax)
	require.Equal(t, int64(25000), created.Total)
	require.Equal(t, "2026-01", created.PolicyVersion)
	require.Equal(t, string(order.StatusPending), created.Status)

	require.Len(t, store.items, 1)
	require.Equal(t, int64(20000), store.items[0].Subtotal)

	require.Regexp(t, `^ORD-20260301-[0-9A-HJKMNP-TV-Z]{8}$`, created.OrderNumber)
}

func TestAssembleRetriesDuplicateOrderNumber(t *testing.T) {
	prod := uuid.New()
	store := &fakeOrderStore{failWith: []error{repo.ErrDuplicateOrderNumber, nil}}
	finder := &fakeFinder{products: map[uuid.UUID]repo.Product{
		prod: {ID: prod, Active: true},
	}}
	a := newAssembler(store, finder)

	created, err := a.Assemble(context.Background(), uuid.NewString(), order.Input{
		Items: []cart.LineItem{lineItem(prod, 1, 100)},
	})
	require.NoError(t, err)
	require.Equal(t, 2, store.writes)
	require.NotEmpty(t, created.OrderNumber)
}

func TestAssembleGivesUpAfterRepeatedCollisions(t *testing.T) {
	prod := uuid.New()
	store := &fakeOrderStore{failWith: []error{
		repo.ErrDuplicateOrderNumber,
		repo.ErrDuplicateOrderNumber,
		repo.ErrDuplicateOrderNumber,
	}}
	finder := &fakeFinder{products: map[uuid.UUID]repo.Product{
		prod: {ID: prod, Active: true},
	}}
	a := newAssembler(store, finder)

	_, err := a.Assemble(context.Background(), uuid.NewString(), order.Input{
		Items: []cart.LineItem{lineItem(prod, 1, 100)},
	})
	require.ErrorIs(t, err, order.ErrPersistenceFailed)
	require.Equal(t, 3, store.writes)
}

func TestAssembleRejectsInvalidLineItems(t *testing.T) {
	prod := uuid.New()
	store := &fakeOrderStore{}
	finder := &fakeFinder{products: map[uuid.UUID]repo.Product{
		prod: {ID: prod, Active: true},
	}}
	a := newAssembler(store, finder)

	_, err := a.Assemble(context.Background(), uuid.NewString(), order.Input{
		Items: []cart.LineItem{lineItem(prod, 0, 100)},
	})
	require.ErrorIs(t, err, pricing.ErrInvalidLineItem)
	require.Zero(t, store.writes)
}
