package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Product is a catalog product row. Price is stored in minor units.
type Product struct {
	ID        uuid.UUID
	Slug      string
	Title     string
	Price     int64
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Products provides access to the products table.
type Products struct {
	DB DBTX
}

// GetByID loads a single active product.
func (r Products) GetByID(ctx context.Context, id uuid.UUID) (Product, error) {
	row := r.DB.QueryRow(ctx,
		`SELECT id, slug, title, price, active, created_at, updated_at
		 FROM products WHERE id = $1 AND active`, id)
	var p Product
	if err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Price, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Product{}, mapNoRows(err)
	}
	return p, nil
}

// GetBySlug loads a single active product by its slug.
func (r Products) GetBySlug(ctx context.Context, slug string) (Product, error) {
	row := r.DB.QueryRow(ctx,
		`SELECT id, slug, title, price, active, created_at, updated_at
		 FROM products WHERE slug = $1 AND active`, slug)
	var p Product
	if err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Price, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Product{}, mapNoRows(err)
	}
	return p, nil
}

// GetByIDs resolves the provided identifiers to active products. Missing or
// inactive products are simply absent from the result.
func (r Products) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]Product{}, nil
	}
	rows, err := r.DB.Query(ctx,
		`SELECT id, slug, title, price, active, created_at, updated_at
		 FROM products WHERE id = ANY($1) AND active`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]Product, len(ids))
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Slug, &p.Title, &p.Price, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// List returns a page of active products ordered by title.
func (r Products) List(ctx context.Context, limit, offset int32) ([]Product, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT id, slug, title, price, active, created_at, updated_at
		 FROM products WHERE active ORDER BY title LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Slug, &p.Title, &p.Price, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Count returns the number of active products.
func (r Products) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.DB.QueryRow(ctx, `SELECT count(*) FROM products WHERE active`).Scan(&total)
	return total, err
}

// Create inserts a product. Used by the seeder tool.
func (r Products) Create(ctx context.Context, slug, title string, price int64) (Product, error) {
	row := r.DB.QueryRow(ctx,
		`INSERT INTO products (id, slug, title, price, active)
		 VALUES ($1, $2, $3, $4, true)
		 RETURNING id, slug, title, price, active, created_at, updated_at`,
		uuid.New(), slug, title, price)
	var p Product
	if err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Price, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Product{}, err
	}
	return p, nil
}

// WithTx rebinds the repository to the provided transaction.
func (r Products) WithTx(tx pgx.Tx) Products {
	return Products{DB: tx}
}
