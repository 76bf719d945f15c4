package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/oakmart/storefront-api/internal/repo"
)

// ErrNotFound indicates the product does not exist or is not published.
var ErrNotFound = errors.New("catalog: product not found")

type productProvider interface {
	GetBySlug(ctx context.Context, slug string) (repo.Product, error)
	List(ctx context.Context, limit, offset int32) ([]repo.Product, error)
	Count(ctx context.Context) (int64, error)
}

// ProductItem is the public product payload.
type ProductItem struct {
	ID    string `json:"id"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
	Price int64  `json:"price"`
}

// ListResult contains list data and pagination metadata.
type ListResult struct {
	Items []ProductItem `json:"items"`
	Total int64         `json:"total"`
	Page  int32         `json:"page"`
	Limit int32         `json:"limit"`
}

// Service serves the public catalog, read-through cached in Redis.
type Service struct {
	Products productProvider
	Cache    *Cache
}

// List returns a page of published products.
func (s *Service) List(ctx context.Context, page, limit int32) (ListResult, error) {
	if s == nil || s.Products == nil {
		return ListResult{}, errors.New("catalog service not configured")
	}
	key := fmt.Sprintf("catalog:list:%d:%d", page, limit)
	var cached ListResult
	if ok, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}

	offset := (page - 1) * limit
	products, err := s.Products.List(ctx, limit, offset)
	if err != nil {
		return ListResult{}, err
	}
	total, err := s.Products.Count(ctx)
	if err != nil {
		return ListResult{}, err
	}
	out := ListResult{
		Items: make([]ProductItem, 0, len(products)),
		Total: total,
		Page:  page,
		Limit: limit,
	}
	for _, p := range products {
		out.Items = append(out.Items, toItem(p))
	}
	_ = s.Cache.SetJSON(ctx, key, out)
	return out, nil
}

// GetBySlug returns a single published product.
func (s *Service) GetBySlug(ctx context.Context, slug string) (ProductItem, error) {
	if s == nil || s.Products == nil {
		return ProductItem{}, errors.New("catalog service not configured")
	}
	key := "catalog:product:" + slug
	var cached ProductItem
	if ok, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}

	p, err := s.Products.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ProductItem{}, ErrNotFound
		}
		return ProductItem{}, err
	}
	if !p.Active {
		return ProductItem{}, ErrNotFound
	}
	item := toItem(p)
	_ = s.Cache.SetJSON(ctx, key, item)
	return item, nil
}

func toItem(p repo.Product) ProductItem {
	return ProductItem{
		ID:    p.ID.String(),
		Slug:  p.Slug,
		Title: p.Title,
		Price: p.Price,
	}
}
