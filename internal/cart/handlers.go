package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/milsabores/backend-pasteleria/internal/common"
)

// CartIDHeader carries the guest cart identifier. Logged-in requests ignore
// it and use the authenticated user's cart instead.
const CartIDHeader = "X-Cart-Id"

// Handler exposes HTTP handlers for the cart endpoints.
type Handler struct {
	Service *Service
}

type addItemRequest struct {
	Code string `json:"codigo"`
	Qty  int    `json:"cantidad"`
}

type updateQtyRequest struct {
	Qty int `json:"cantidad"`
}

type couponRequest struct {
	Code string `json:"codigo"`
}

// Get handles GET /api/v1/cart. It creates the cart on first use.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	cart, err := h.Service.EnsureCart(r.Context(), h.userID(r), r.Header.Get(CartIDHeader))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeQuote(w, r, cart.ID)
}

// AddItem handles POST /api/v1/cart/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	cart, err := h.Service.EnsureCart(r.Context(), h.userID(r), r.Header.Get(CartIDHeader))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if _, err := h.Service.AddItem(r.Context(), cart.ID, req.Code, req.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeQuote(w, r, cart.ID)
}

// UpdateItem handles PUT /api/v1/cart/items/{code}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateQtyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	cartID := h.cartID(r)
	if _, err := h.Service.UpdateQty(r.Context(), cartID, chi.URLParam(r, "code"), req.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeQuote(w, r, cartID)
}

// RemoveItem handles DELETE /api/v1/cart/items/{code}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cartID := h.cartID(r)
	if _, err := h.Service.RemoveItem(r.Context(), cartID, chi.URLParam(r, "code")); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeQuote(w, r, cartID)
}

// ApplyCoupon handles POST /api/v1/cart/coupon.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	cartID := h.cartID(r)
	if _, err := h.Service.ApplyCoupon(r.Context(), cartID, req.Code); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeQuote(w, r, cartID)
}

// RemoveCoupon handles DELETE /api/v1/cart/coupon.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	cartID := h.cartID(r)
	if _, err := h.Service.RemoveCoupon(r.Context(), cartID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeQuote(w, r, cartID)
}

// Clear handles DELETE /api/v1/cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Clear(r.Context(), h.cartID(r)); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) userID(r *http.Request) string {
	if id, ok := common.UserID(r.Context()); ok {
		return id
	}
	return ""
}

func (h *Handler) cartID(r *http.Request) string {
	if id := h.userID(r); id != "" {
		return id
	}
	return strings.TrimSpace(r.Header.Get(CartIDHeader))
}

func (h *Handler) writeQuote(w http.ResponseWriter, r *http.Request, cartID string) {
	cart, err := h.Service.getCart(r.Context(), cartID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	quote, err := h.Service.PriceQuote(r.Context(), cart)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, quote)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	case errors.Is(err, ErrInvalidCoupon):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_COUPON", "coupon code is not valid", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart operation failed", nil)
	}
}
