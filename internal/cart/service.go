package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oakmart/storefront-api/internal/lock"
	"github.com/oakmart/storefront-api/internal/obs"
	"github.com/oakmart/storefront-api/internal/repo"
)

// ErrNotFound indicates the requested cart or item could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// Store is the cart persistence surface the service depends on.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (repo.Cart, error)
	GetActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) (repo.Cart, error)
	GetActiveByAnon(ctx context.Context, anonID string, now time.Time) (repo.Cart, error)
	Create(ctx context.Context, userID *uuid.UUID, anonID *string, expiresAt time.Time) (repo.Cart, error)
	Touch(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListItems(ctx context.Context, cartID uuid.UUID) ([]repo.CartItem, error)
	FindItem(ctx context.Context, cartID, productID uuid.UUID, variantName string) (repo.CartItem, error)
	GetItemByID(ctx context.Context, id uuid.UUID) (repo.CartItem, error)
	CreateItem(ctx context.Context, it repo.CartItem) (repo.CartItem, error)
	UpdateItemQty(ctx context.Context, id uuid.UUID, qty int32) error
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error
	ClearItems(ctx context.Context, cartID uuid.UUID) error
}

// ProductLookup resolves products when a line is added so the unit price can
// be captured at add time.
type ProductLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (repo.Product, error)
}

// TxRunner executes fn against a transactional Store. The merge-and-delete
// pair in MergeOnLogin runs through it as one unit.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}

// PgTxRunner is the pgx implementation of TxRunner.
type PgTxRunner struct {
	Pool *pgxpool.Pool
}

// InTx runs fn inside a database transaction, committing when fn succeeds.
func (r PgTxRunner) InTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(ctx, repo.Carts{DB: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Service encapsulates cart domain operations.
type Service struct {
	Carts    Store
	Products ProductLookup
	Tx       TxRunner
	Locker   lock.Locker
	TTL      time.Duration
	LockTTL  time.Duration
	Now      func() time.Time
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// EnsureCart loads or creates a cart for the provided identifiers.
func (s *Service) EnsureCart(ctx context.Context, userID *string, anonID *string) (repo.Cart, error) {
	if s == nil || s.Carts == nil {
		return repo.Cart{}, errors.New("cart service not configured")
	}
	now := s.now()
	expires := now.Add(s.ttl())

	if userID != nil && *userID != "" {
		uid, err := uuid.Parse(*userID)
		if err != nil {
			return repo.Cart{}, fmt.Errorf("parse user id: %w", ErrInvalidInput)
		}
		c, err := s.Carts.GetActiveByUser(ctx, uid, now)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return s.Carts.Create(ctx, &uid, nil, expires)
			}
			return repo.Cart{}, err
		}
		_ = s.Carts.Touch(ctx, c.ID, expires)
		return c, nil
	}

	if anonID != nil && *anonID != "" {
		c, err := s.Carts.GetActiveByAnon(ctx, *anonID, now)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return s.Carts.Create(ctx, nil, anonID, expires)
			}
			return repo.Cart{}, err
		}
		_ = s.Carts.Touch(ctx, c.ID, expires)
		return c, nil
	}

	return repo.Cart{}, ErrInvalidInput
}

// Get loads a cart and its items, rejecting expired carts.
func (s *Service) Get(ctx context.Context, cartID string) (repo.Cart, []repo.CartItem, error) {
	if s == nil || s.Carts == nil {
		return repo.Cart{}, nil, errors.New("cart service not configured")
	}
	cID, err := uuid.Parse(cartID)
	if err != nil {
		return repo.Cart{}, nil, fmt.Errorf("parse cart id: %w", ErrInvalidInput)
	}
	c, err := s.Carts.GetByID(ctx, cID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return repo.Cart{}, nil, ErrNotFound
		}
		return repo.Cart{}, nil, err
	}
	if c.ExpiresAt.Before(s.now()) {
		return repo.Cart{}, nil, ErrNotFound
	}
	items, err := s.Carts.ListItems(ctx, c.ID)
	if err != nil {
		return repo.Cart{}, nil, err
	}
	return c, items, nil
}

// AddItem inserts or increments a cart line, capturing the product price at
// add time.
func (s *Service) AddItem(ctx context.Context, cartID string, productID string, variantName string, qty int) error {
	if s == nil || s.Carts == nil || s.Products == nil {
		return errors.New("cart service not configured")
	}
	if qty < 1 {
		return fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	cID, err := uuid.Parse(cartID)
	if err != nil {
		return fmt.Errorf("parse cart id: %w", ErrInvalidInput)
	}
	pID, err := uuid.Parse(productID)
	if err != nil {
		return fmt.Errorf("parse product id: %w", ErrInvalidInput)
	}

	expires := s.now().Add(s.ttl())
	existing, err := s.Carts.FindItem(ctx, cID, pID, variantName)
	if err == nil {
		if err := s.Carts.UpdateItemQty(ctx, existing.ID, existing.Qty+int32(qty)); err != nil {
			return err
		}
		_ = s.Carts.Touch(ctx, cID, expires)
		return nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return err
	}

	product, err := s.Products.GetByID(ctx, pID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("product %s: %w", productID, ErrNotFound)
		}
		return err
	}
	if _, err := s.Carts.CreateItem(ctx, repo.CartItem{
		CartID:      cID,
		ProductID:   pID,
		VariantName: variantName,
		Title:       product.Title,
		Slug:        product.Slug,
		Qty:         int32(qty),
		UnitPrice:   product.Price,
	}); err != nil {
		return err
	}
	_ = s.Carts.Touch(ctx, cID, expires)
	return nil
}

// UpdateQty replaces the quantity for a cart item.
func (s *Service) UpdateQty(ctx context.Context, itemID string, qty int) error {
	if s == nil || s.Carts == nil {
		return errors.New("cart service not configured")
	}
	if qty < 1 {
		return fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	id, err := uuid.Parse(itemID)
	if err != nil {
		return fmt.Errorf("parse item id: %w", ErrInvalidInput)
	}
	item, err := s.Carts.GetItemByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := s.Carts.UpdateItemQty(ctx, item.ID, int32(qty)); err != nil {
		return err
	}
	_ = s.Carts.Touch(ctx, item.CartID, s.now().Add(s.ttl()))
	return nil
}

// RemoveItem deletes a cart item.
func (s *Service) RemoveItem(ctx context.Context, cartID string, itemID string) error {
	if s == nil || s.Carts == nil {
		return errors.New("cart service not configured")
	}
	cID, err := uuid.Parse(cartID)
	if err != nil {
		return fmt.Errorf("parse cart id: %w", ErrInvalidInput)
	}
	iID, err := uuid.Parse(itemID)
	if err != nil {
		return fmt.Errorf("parse item id: %w", ErrInvalidInput)
	}
	if err := s.Carts.DeleteItem(ctx, cID, iID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	_ = s.Carts.Touch(ctx, cID, s.now().Add(s.ttl()))
	return nil
}

// Clear removes every item from the cart.
func (s *Service) Clear(ctx context.Context, cartID string) error {
	if s == nil || s.Carts == nil {
		return errors.New("cart service not configured")
	}
	cID, err := uuid.Parse(cartID)
	if err != nil {
		return fmt.Errorf("parse cart id: %w", ErrInvalidInput)
	}
	return s.Carts.ClearItems(ctx, cID)
}

// MergeOnLogin reconciles a guest cart into the signed-in user's cart. The
// merged lines replace the user cart's contents and the guest cart is
// deleted in the same transaction, so a repeated login finds no guest cart
// to merge and cannot double-count quantities. A Redis lock keyed on the
// guest cart serialises concurrent attempts.
func (s *Service) MergeOnLogin(ctx context.Context, guestCartID string, userID string) (uuid.UUID, error) {
	if s == nil || s.Tx == nil {
		return uuid.Nil, errors.New("cart service not configured")
	}
	gID, err := uuid.Parse(guestCartID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse guest cart id: %w", ErrInvalidInput)
	}
	uID, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse user id: %w", ErrInvalidInput)
	}

	var mergedCartID uuid.UUID
	merge := func(ctx context.Context) error {
		return s.Tx.InTx(ctx, func(ctx context.Context, store Store) error {
			guestCart, err := store.GetByID(ctx, gID)
			if err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					return ErrNotFound
				}
				return err
			}
			if guestCart.UserID != nil && *guestCart.UserID != uID {
				return fmt.Errorf("cart belongs to another user: %w", ErrInvalidInput)
			}

			now := s.now()
			expires := now.Add(s.ttl())
			userCart, err := store.GetActiveByUser(ctx, uID, now)
			if err != nil {
				if !errors.Is(err, repo.ErrNotFound) {
					return err
				}
				userCart, err = store.Create(ctx, &uID, nil, expires)
				if err != nil {
					return err
				}
			}

			guestItems, err := store.ListItems(ctx, guestCart.ID)
			if err != nil {
				return err
			}
			userItems, err := store.ListItems(ctx, userCart.ID)
			if err != nil {
				return err
			}

			merged := Reconcile(Lines(guestItems), Lines(userItems))
			if err := store.ClearItems(ctx, userCart.ID); err != nil {
				return err
			}
			for _, line := range merged {
				if _, err := store.CreateItem(ctx, repo.CartItem{
					CartID:      userCart.ID,
					ProductID:   line.ProductID,
					VariantName: line.VariantName,
					Title:       line.Title,
					Slug:        line.Slug,
					Qty:         int32(line.Qty),
					UnitPrice:   line.UnitPrice,
				}); err != nil {
					return err
				}
			}
			if err := store.Delete(ctx, guestCart.ID); err != nil {
				return err
			}
			if err := store.Touch(ctx, userCart.ID, expires); err != nil {
				return err
			}
			mergedCartID = userCart.ID
			return nil
		})
	}

	if s.Locker.R != nil {
		err = s.Locker.WithLock(ctx, "cart:merge:"+gID.String(), s.LockTTL, merge)
	} else {
		err = merge(ctx)
	}
	if err != nil {
		return uuid.Nil, err
	}
	if obs.CartsMergedTotal != nil {
		obs.CartsMergedTotal.Inc()
	}
	return mergedCartID, nil
}

// Lines converts stored cart rows into reconciler line items.
func Lines(items []repo.CartItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, LineItem{
			ProductID:   it.ProductID,
			VariantName: it.VariantName,
			Title:       it.Title,
			Slug:        it.Slug,
			Qty:         int(it.Qty),
			UnitPrice:   it.UnitPrice,
		})
	}
	return out
}
