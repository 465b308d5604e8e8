package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/milsabores/backend-pasteleria/internal/common"
)

// Handler exposes HTTP handlers for catalog browsing.
type Handler struct {
	Service *Service
}

// Products handles GET /api/v1/products.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	query := r.URL.Query()
	page, perPage := common.ParsePagination(r, 20)
	q := ListQuery{
		Category: query.Get("categoria"),
		Search:   query.Get("q"),
		Popular:  query.Get("popular") == "true" || query.Get("popular") == "1",
		Page:     page,
		Limit:    perPage,
	}
	items, total, err := h.Service.Products(r.Context(), q)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list products", nil)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	common.JSON(w, http.StatusOK, map[string]any{
		"data": items,
		"pagination": common.Pagination{
			Page:       page,
			PerPage:    perPage,
			TotalItems: total,
		},
	})
}

// ProductDetail handles GET /api/v1/products/{code}.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	code := chi.URLParam(r, "code")
	product, err := h.Service.ProductByCode(code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load product", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": product})
}

// Categories handles GET /api/v1/categories.
func (h *Handler) Categories(w http.ResponseWriter, _ *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Service.Categories()})
}
