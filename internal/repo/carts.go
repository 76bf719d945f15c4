package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Cart is a cart row owned by either an authenticated user or a guest.
type Cart struct {
	ID        uuid.UUID
	UserID    *uuid.UUID
	AnonID    *string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartItem is one product/variant line within a cart. UnitPrice is the price
// captured when the item was added, in minor units.
type CartItem struct {
	ID          uuid.UUID
	CartID      uuid.UUID
	ProductID   uuid.UUID
	VariantName string
	Title       string
	Slug        string
	Qty         int32
	UnitPrice   int64
}

// Carts provides access to the carts and cart_items tables.
type Carts struct {
	DB DBTX
}

// WithTx rebinds the repository to the provided transaction.
func (r Carts) WithTx(tx pgx.Tx) Carts {
	return Carts{DB: tx}
}

const cartColumns = `id, user_id, anon_id, expires_at, created_at, updated_at`

func scanCart(row pgx.Row) (Cart, error) {
	var c Cart
	if err := row.Scan(&c.ID, &c.UserID, &c.AnonID, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Cart{}, mapNoRows(err)
	}
	return c, nil
}

// GetByID loads a cart regardless of ownership.
func (r Carts) GetByID(ctx context.Context, id uuid.UUID) (Cart, error) {
	return scanCart(r.DB.QueryRow(ctx,
		`SELECT `+cartColumns+` FROM carts WHERE id = $1`, id))
}

// GetActiveByUser loads the newest unexpired cart owned by the user.
func (r Carts) GetActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) (Cart, error) {
	return scanCart(r.DB.QueryRow(ctx,
		`SELECT `+cartColumns+` FROM carts
		 WHERE user_id = $1 AND expires_at > $2
		 ORDER BY created_at DESC LIMIT 1`, userID, now))
}

// GetActiveByAnon loads the newest unexpired cart for the anonymous session.
func (r Carts) GetActiveByAnon(ctx context.Context, anonID string, now time.Time) (Cart, error) {
	return scanCart(r.DB.QueryRow(ctx,
		`SELECT `+cartColumns+` FROM carts
		 WHERE anon_id = $1 AND expires_at > $2
		 ORDER BY created_at DESC LIMIT 1`, anonID, now))
}

// Create inserts a cart for either a user or an anonymous session.
func (r Carts) Create(ctx context.Context, userID *uuid.UUID, anonID *string, expiresAt time.Time) (Cart, error) {
	return scanCart(r.DB.QueryRow(ctx,
		`INSERT INTO carts (id, user_id, anon_id, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+cartColumns, uuid.New(), userID, anonID, expiresAt))
}

// Touch extends the cart expiry.
func (r Carts) Touch(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	_, err := r.DB.Exec(ctx,
		`UPDATE carts SET expires_at = $2, updated_at = now() WHERE id = $1`, id, expiresAt)
	return err
}

// Delete removes a cart; cart_items are removed by the cascade.
func (r Carts) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM carts WHERE id = $1`, id)
	return err
}

// DeleteExpired removes carts whose expiry has passed and reports how many
// were swept.
func (r Carts) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, `DELETE FROM carts WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const cartItemColumns = `id, cart_id, product_id, variant_name, title, slug, qty, unit_price`

func scanCartItem(row pgx.Row) (CartItem, error) {
	var it CartItem
	if err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.VariantName, &it.Title, &it.Slug, &it.Qty, &it.UnitPrice); err != nil {
		return CartItem{}, mapNoRows(err)
	}
	return it, nil
}

// ListItems returns the items of a cart in insertion order.
func (r Carts) ListItems(ctx context.Context, cartID uuid.UUID) ([]CartItem, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+cartItemColumns+` FROM cart_items WHERE cart_id = $1 ORDER BY created_at, id`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CartItem
	for rows.Next() {
		var it CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.VariantName, &it.Title, &it.Slug, &it.Qty, &it.UnitPrice); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// FindItem locates the item for a (product, variant) pair within a cart.
func (r Carts) FindItem(ctx context.Context, cartID, productID uuid.UUID, variantName string) (CartItem, error) {
	return scanCartItem(r.DB.QueryRow(ctx,
		`SELECT `+cartItemColumns+` FROM cart_items
		 WHERE cart_id = $1 AND product_id = $2 AND variant_name = $3`,
		cartID, productID, variantName))
}

// GetItemByID loads a single cart item.
func (r Carts) GetItemByID(ctx context.Context, id uuid.UUID) (CartItem, error) {
	return scanCartItem(r.DB.QueryRow(ctx,
		`SELECT `+cartItemColumns+` FROM cart_items WHERE id = $1`, id))
}

// CreateItem inserts a new cart line.
func (r Carts) CreateItem(ctx context.Context, it CartItem) (CartItem, error) {
	id := it.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return scanCartItem(r.DB.QueryRow(ctx,
		`INSERT INTO cart_items (id, cart_id, product_id, variant_name, title, slug, qty, unit_price)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+cartItemColumns,
		id, it.CartID, it.ProductID, it.VariantName, it.Title, it.Slug, it.Qty, it.UnitPrice))
}

// UpdateItemQty replaces the quantity of a cart line.
func (r Carts) UpdateItemQty(ctx context.Context, id uuid.UUID, qty int32) error {
	tag, err := r.DB.Exec(ctx,
		`UPDATE cart_items SET qty = $2, updated_at = now() WHERE id = $1`, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteItem removes a single item scoped to the cart it belongs to.
func (r Carts) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx,
		`DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearItems removes every item from the cart.
func (r Carts) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return err
}
