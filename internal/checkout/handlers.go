package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"

	"github.com/oakmart/storefront-api/internal/cart"
	"github.com/oakmart/storefront-api/internal/common"
	"github.com/oakmart/storefront-api/internal/order"
	"github.com/oakmart/storefront-api/internal/pricing"
)

// Handler serves POST /checkout.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// Create validates the payload and places the order.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(in); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid checkout payload", validationDetails(err))
			return
		}
	}
	out, err := h.Svc.Create(r.Context(), userID, in)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}

func writeCheckoutError(w http.ResponseWriter, err error) {
	var notFound order.ProductNotFoundError
	switch {
	case errors.Is(err, order.ErrUnauthenticated):
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
	case errors.Is(err, order.ErrEmptyOrder):
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_ORDER", "cart has no items", nil)
	case errors.As(err, &notFound):
		common.JSONError(w, http.StatusUnprocessableEntity, "PRODUCT_NOT_FOUND",
			"a cart item references a product that no longer exists",
			map[string]any{"productId": notFound.ProductID.String()})
	case errors.Is(err, pricing.ErrInvalidLineItem):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_LINE_ITEM", err.Error(), nil)
	case errors.Is(err, ErrCartNotOwned):
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "cart belongs to another user", nil)
	case errors.Is(err, cart.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	case errors.Is(err, cart.ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, order.ErrPersistenceFailed):
		common.JSONError(w, http.StatusInternalServerError, "ORDER_PERSISTENCE_FAILED",
			"order could not be saved, nothing was charged", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout failed", nil)
	}
}

func validationDetails(err error) map[string]any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return map[string]any{"fields": fields}
}
