package history

import (
	"net/http"
	"strconv"

	"github.com/milsabores/backend-pasteleria/internal/catalog"
	"github.com/milsabores/backend-pasteleria/internal/common"
	"github.com/milsabores/backend-pasteleria/internal/obs"
	"github.com/milsabores/backend-pasteleria/internal/store"
)

// Handler exposes the purchase history aggregation endpoints.
type Handler struct {
	Store   *store.Store
	Catalog *catalog.Service
}

// PurchaseSummary handles GET /api/v1/users/me/purchase-summary.
func (h *Handler) PurchaseSummary(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil || h.Catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "history service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	orders, err := h.Store.ListOrders(r.Context(), userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load orders", nil)
		return
	}
	summary := BuildPurchaseSummary(orders, userID, h.Catalog.All())
	if summary == nil {
		summary = []SummaryEntry{}
	}
	common.JSONData(w, http.StatusOK, summary)
}

// Recommendations handles GET /api/v1/users/me/recommendations.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil || h.Catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "history service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	limit := DefaultRecommendationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "limit must be a positive integer", nil)
			return
		}
		limit = parsed
	}
	orders, err := h.Store.ListOrders(r.Context(), userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load orders", nil)
		return
	}
	products := h.Catalog.All()
	summary := BuildPurchaseSummary(orders, userID, products)
	recommendations := RecommendedProducts(summary, products, limit)
	if recommendations == nil {
		recommendations = []Recommendation{}
	}
	obs.ObserveRecommendations(len(recommendations))
	common.JSONData(w, http.StatusOK, recommendations)
}
