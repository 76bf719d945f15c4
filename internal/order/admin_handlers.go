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

// AdminRepository is the back-office surface for order management.
type AdminRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (repo.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
}

// AdminHandler serves back-office order operations. Routes using it must sit
// behind the admin role middleware.
type AdminHandler struct {
	Orders AdminRepository
}

// PatchStatus advances an order through its lifecycle. Transitions outside
// the state machine are rejected.
func (h *AdminHandler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	to := Status(strings.ToLower(strings.TrimSpace(payload.Status)))
	if !ValidStatus(to) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown status", nil)
		return
	}

	o, err := h.Orders.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	from := Status(o.Status)
	if !CanTransition(from, to) {
		common.JSONError(w, http.StatusConflict, "INVALID_STATUS",
			"cannot transition from "+o.Status+" to "+string(to), nil)
		return
	}
	changed, err := h.Orders.UpdateStatus(r.Context(), id, string(from), string(to))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update status", nil)
		return
	}
	if !changed {
		common.JSONError(w, http.StatusConflict, "INVALID_STATUS", "order status changed concurrently", nil)
		return
	}
	o.Status = string(to)
	common.JSON(w, http.StatusOK, map[string]any{"data": orderSummaryJSON(o)})
}
