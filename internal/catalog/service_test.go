package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(ServiceConfig{})
	require.NoError(t, err)
	return svc
}

func TestNewServiceLoadsEmbeddedCatalog(t *testing.T) {
	svc := newTestService(t)
	require.Len(t, svc.All(), 16)

	categories := svc.Categories()
	require.NotEmpty(t, categories)
	require.Equal(t, "Tortas Cuadradas", categories[0].Label)
	require.Equal(t, "tortas-cuadradas", categories[0].ID)
}

func TestProductsFilterByCategory(t *testing.T) {
	svc := newTestService(t)

	items, total, err := svc.Products(context.Background(), ListQuery{Category: "Tortas Cuadradas"})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	for _, p := range items {
		require.Equal(t, "Tortas Cuadradas", p.Category)
	}

	// Slug form matches the same section.
	_, total, err = svc.Products(context.Background(), ListQuery{Category: "tortas-cuadradas"})
	require.NoError(t, err)
	require.Equal(t, 2, total)
}

func TestProductsFilterPopularAndSearch(t *testing.T) {
	svc := newTestService(t)

	items, total, err := svc.Products(context.Background(), ListQuery{Popular: true})
	require.NoError(t, err)
	require.Equal(t, total, len(items))
	for _, p := range items {
		require.True(t, p.Popular)
	}

	items, total, err = svc.Products(context.Background(), ListQuery{Search: "chocolate"})
	require.NoError(t, err)
	require.NotZero(t, total)
	codes := make([]string, 0, len(items))
	for _, p := range items {
		codes = append(codes, p.Code)
	}
	require.Contains(t, codes, "TC001")
	require.Contains(t, codes, "PI001")
}

func TestProductsPagination(t *testing.T) {
	svc := newTestService(t)

	first, total, err := svc.Products(context.Background(), ListQuery{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 16, total)
	require.Len(t, first, 10)

	second, _, err := svc.Products(context.Background(), ListQuery{Page: 2, Limit: 10})
	require.NoError(t, err)
	require.Len(t, second, 6)
	require.NotEqual(t, first[0].Code, second[0].Code)

	beyond, _, err := svc.Products(context.Background(), ListQuery{Page: 5, Limit: 10})
	require.NoError(t, err)
	require.Empty(t, beyond)
}

func TestProductsCachesListings(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	svc, err := NewService(ServiceConfig{Cache: NewCache(client, time.Minute)})
	require.NoError(t, err)

	_, _, err = svc.Products(context.Background(), ListQuery{Category: "Tortas Cuadradas"})
	require.NoError(t, err)
	require.NotEmpty(t, client.Keys(context.Background(), "cat:list:*").Val())
}

func TestProductByCode(t *testing.T) {
	svc := newTestService(t)

	p, err := svc.ProductByCode(" tc001 ")
	require.NoError(t, err)
	require.Equal(t, "Torta Cuadrada de Chocolate", p.Name)

	_, err = svc.ProductByCode("XX999")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestProductDetailHandler(t *testing.T) {
	handler := &Handler{Service: newTestService(t)}

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("code", "PT002")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/PT002", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rr := httptest.NewRecorder()
	handler.ProductDetail(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Tarta de Santiago")

	rctx = chi.NewRouteContext()
	rctx.URLParams.Add("code", "XX999")
	req = httptest.NewRequest(http.MethodGet, "/api/v1/products/XX999", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rr = httptest.NewRecorder()
	handler.ProductDetail(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Body.String(), "NOT_FOUND")
}

func TestProductsHandlerPaginationEnvelope(t *testing.T) {
	handler := &Handler{Service: newTestService(t)}

	rr := httptest.NewRecorder()
	handler.Products(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products?page=2&limit=10", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "16", rr.Header().Get("X-Total-Count"))
	require.Contains(t, rr.Body.String(), `"pagination"`)
	require.Contains(t, rr.Body.String(), `"page":2`)
}
