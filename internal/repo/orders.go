package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Order is the durable record of a completed checkout. The pricing columns
// are frozen at creation and never recomputed.
type Order struct {
	ID            uuid.UUID
	OrderNumber   string
	UserID        uuid.UUID
	Status        string
	Currency      string
	PolicyVersion string
	Subtotal      int64
	Shipping      int64
	Tax           int64
	Total         int64
	Customer      []byte
	ShipAddress   []byte
	BillAddress   []byte
	PaymentMethod string
	PaymentStatus string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderItem is a frozen copy of a cart line at purchase time.
type OrderItem struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	VariantName string
	Title       string
	Slug        string
	Qty         int32
	UnitPrice   int64
	Subtotal    int64
}

// Orders provides access to the orders and order_items tables.
type Orders struct {
	DB   DBTX
	Pool *pgxpool.Pool
}

const orderColumns = `id, order_number, user_id, status, currency, policy_version,
	pricing_subtotal, pricing_shipping, pricing_tax, pricing_total,
	customer, shipping_address, billing_address,
	payment_method, payment_status, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.Currency, &o.PolicyVersion,
		&o.Subtotal, &o.Shipping, &o.Tax, &o.Total,
		&o.Customer, &o.ShipAddress, &o.BillAddress,
		&o.PaymentMethod, &o.PaymentStatus, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, mapNoRows(err)
	}
	return o, nil
}

// CreateWithItems persists the order and its items in one transaction. A
// rejected order number surfaces as ErrDuplicateOrderNumber with nothing
// written.
func (r Orders) CreateWithItems(ctx context.Context, o Order, items []OrderItem) (Order, error) {
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	id := o.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	created, err := scanOrder(tx.QueryRow(ctx,
		`INSERT INTO orders (id, order_number, user_id, status, currency, policy_version,
			pricing_subtotal, pricing_shipping, pricing_tax, pricing_total,
			customer, shipping_address, billing_address, payment_method, payment_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING `+orderColumns,
		id, o.OrderNumber, o.UserID, o.Status, o.Currency, o.PolicyVersion,
		o.Subtotal, o.Shipping, o.Tax, o.Total,
		o.Customer, o.ShipAddress, o.BillAddress, o.PaymentMethod, o.PaymentStatus))
	if err != nil {
		if isUniqueViolation(err, "orders_order_number_key") {
			return Order{}, ErrDuplicateOrderNumber
		}
		return Order{}, err
	}
	for _, it := range items {
		itemID := it.ID
		if itemID == uuid.Nil {
			itemID = uuid.New()
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO order_items (id, order_id, product_id, variant_name, title, slug, qty, unit_price, subtotal)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			itemID, created.ID, it.ProductID, it.VariantName, it.Title, it.Slug, it.Qty, it.UnitPrice, it.Subtotal); err != nil {
			return Order{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return created, nil
}

// GetByNumberForUser loads an order by its human-readable number scoped to
// the owning user.
func (r Orders) GetByNumberForUser(ctx context.Context, orderNumber string, userID uuid.UUID) (Order, error) {
	return scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_number = $1 AND user_id = $2`,
		orderNumber, userID))
}

// GetByID loads an order without ownership scoping. Used by back-office flows.
func (r Orders) GetByID(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

// ListForUser returns a page of the user's orders, newest first.
func (r Orders) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]Order, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.Currency, &o.PolicyVersion,
			&o.Subtotal, &o.Shipping, &o.Tax, &o.Total,
			&o.Customer, &o.ShipAddress, &o.BillAddress,
			&o.PaymentMethod, &o.PaymentStatus, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CountForUser returns the number of orders owned by the user.
func (r Orders) CountForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.DB.QueryRow(ctx, `SELECT count(*) FROM orders WHERE user_id = $1`, userID).Scan(&total)
	return total, err
}

// ListItems returns the frozen items of an order.
func (r Orders) ListItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT id, order_id, product_id, variant_name, title, slug, qty, unit_price, subtotal
		 FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantName, &it.Title, &it.Slug, &it.Qty, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// UpdateStatus sets the order status when the current status matches the
// expected value, reporting whether a row changed.
func (r Orders) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := r.DB.Exec(ctx,
		`UPDATE orders SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
