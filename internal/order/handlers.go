package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/oakmart/storefront-api/internal/common"
	"github.com/oakmart/storefront-api/internal/repo"
)

// Repository is the read/update surface the order handlers need.
type Repository interface {
	GetByNumberForUser(ctx context.Context, orderNumber string, userID uuid.UUID) (repo.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]repo.Order, error)
	CountForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	ListItems(ctx context.Context, orderID uuid.UUID) ([]repo.OrderItem, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
}

// Handler serves the customer-facing order endpoints. Every lookup is scoped
// to the authenticated user.
type Handler struct {
	Orders Repository
}

// List returns a page of the user's orders, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	p := common.ParsePagination(r)
	orders, err := h.Orders.ListForUser(r.Context(), userID, p.Limit, p.Offset())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	total, err := h.Orders.CountForUser(r.Context(), userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	out := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderSummaryJSON(o))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": out,
		"meta": map[string]any{"page": p.Page, "limit": p.Limit, "total": total},
	})
}

// Get returns a single order with its frozen items, looked up by order number.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	number := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "number")))
	o, err := h.Orders.GetByNumberForUser(r.Context(), number, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	items, err := h.Orders.ListItems(r.Context(), o.ID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orderDetailJSON(o, items)})
}

// Cancel cancels a pending order. Orders already being processed need
// back-office intervention.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}
	number := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "number")))
	o, err := h.Orders.GetByNumberForUser(r.Context(), number, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	if o.Status != string(StatusPending) {
		common.JSONError(w, http.StatusConflict, "INVALID_STATUS", "only pending orders can be cancelled", nil)
		return
	}
	changed, err := h.Orders.UpdateStatus(r.Context(), o.ID, string(StatusPending), string(StatusCancelled))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to cancel order", nil)
		return
	}
	if !changed {
		// lost the race with a concurrent status change
		common.JSONError(w, http.StatusConflict, "INVALID_STATUS", "order is no longer pending", nil)
		return
	}
	o.Status = string(StatusCancelled)
	common.JSON(w, http.StatusOK, map[string]any{"data": orderSummaryJSON(o)})
}

func authedUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw, ok := common.UserID(r.Context())
	if !ok || raw == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return uuid.Nil, false
	}
	return userID, true
}

func orderSummaryJSON(o repo.Order) map[string]any {
	return map[string]any{
		"orderNumber": o.OrderNumber,
		"status":      o.Status,
		"currency":    o.Currency,
		"pricing": map[string]any{
			"subtotal": o.Subtotal,
			"shipping": o.Shipping,
			"tax":      o.Tax,
			"total":    o.Total,
			"policy":   o.PolicyVersion,
		},
		"paymentMethod": o.PaymentMethod,
		"paymentStatus": o.PaymentStatus,
		"createdAt":     o.CreatedAt,
	}
}

func orderDetailJSON(o repo.Order, items []repo.OrderItem) map[string]any {
	out := orderSummaryJSON(o)
	itemList := make([]map[string]any, 0, len(items))
	for _, it := range items {
		entry := map[string]any{
			"productId": it.ProductID.String(),
			"title":     it.Title,
			"slug":      it.Slug,
			"qty":       it.Qty,
			"unitPrice": it.UnitPrice,
			"subtotal":  it.Subtotal,
		}
		if it.VariantName != "" {
			entry["variantName"] = it.VariantName
		}
		itemList = append(itemList, entry)
	}
	out["items"] = itemList
	out["customer"] = json.RawMessage(o.Customer)
	out["shippingAddress"] = json.RawMessage(o.ShipAddress)
	out["billingAddress"] = json.RawMessage(o.BillAddress)
	return out
}
