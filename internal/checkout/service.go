package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oakmart/storefront-api/internal/cart"
	"github.com/oakmart/storefront-api/internal/obs"
	"github.com/oakmart/storefront-api/internal/order"
	"github.com/oakmart/storefront-api/internal/queue"
	"github.com/oakmart/storefront-api/internal/repo"
)

// ErrCartNotOwned is returned when the submitted cart belongs to a different
// user.
var ErrCartNotOwned = errors.New("checkout: cart belongs to another user")

// Input is the checkout request after validation.
type Input struct {
	CartID          string             `json:"cartId" validate:"required,uuid4"`
	Customer        order.CustomerInfo `json:"customer" validate:"required"`
	ShippingAddress order.Address      `json:"shippingAddress" validate:"required"`
	BillingAddress  order.Address      `json:"billingAddress"`
	PaymentMethod   string             `json:"paymentMethod" validate:"required,oneof=card bank_transfer cod"`
}

// Output is returned once the order is durable.
type Output struct {
	OrderNumber string `json:"orderNumber"`
	Status      string `json:"status"`
	Total       int64  `json:"total"`
	Currency    string `json:"currency"`
}

// CartReader is the slice of the cart service checkout depends on.
type CartReader interface {
	Get(ctx context.Context, cartID string) (repo.Cart, []repo.CartItem, error)
	Clear(ctx context.Context, cartID string) error
}

// Service turns a cart into an order: load, assemble, clear, notify. The
// assembler owns all validation and the durable write.
type Service struct {
	Carts     CartReader
	Assembler *order.Assembler
	Tasks     *queue.Enqueuer
	Log       zerolog.Logger
}

// Create places an order from the user's cart. The cart is cleared only
// after the order is durable; the confirmation email is queued best-effort.
func (s *Service) Create(ctx context.Context, userID string, in Input) (Output, error) {
	if s == nil || s.Carts == nil || s.Assembler == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	uID, err := uuid.Parse(userID)
	if err != nil || userID == "" {
		return Output{}, order.ErrUnauthenticated
	}

	c, items, err := s.Carts.Get(ctx, in.CartID)
	if err != nil {
		return Output{}, err
	}
	if c.UserID != nil && *c.UserID != uID {
		return Output{}, ErrCartNotOwned
	}

	if in.BillingAddress == (order.Address{}) {
		in.BillingAddress = in.ShippingAddress
	}
	created, err := s.Assembler.Assemble(ctx, userID, order.Input{
		Items:           cart.Lines(items),
		Customer:        in.Customer,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
		PaymentMethod:   in.PaymentMethod,
	})
	if err != nil {
		if obs.CheckoutTotal != nil {
			obs.CheckoutTotal.WithLabelValues("rejected").Inc()
		}
		return Output{}, fmt.Errorf("assemble order: %w", err)
	}
	if obs.CheckoutTotal != nil {
		obs.CheckoutTotal.WithLabelValues("created").Inc()
	}

	if err := s.Carts.Clear(ctx, in.CartID); err != nil {
		// the order is already durable, so only log the stale cart
		s.Log.Error().Err(err).Str("cart_id", in.CartID).Msg("clear cart after checkout")
	}

	if s.Tasks != nil {
		s.Tasks.OrderConfirmation(ctx, queue.OrderConfirmationPayload{
			OrderNumber: created.OrderNumber,
			Email:       in.Customer.Email,
			Name:        in.Customer.Name,
			Total:       created.Total,
			Currency:    created.Currency,
		})
	}

	return Output{
		OrderNumber: created.OrderNumber,
		Status:      created.Status,
		Total:       created.Total,
		Currency:    created.Currency,
	}, nil
}
