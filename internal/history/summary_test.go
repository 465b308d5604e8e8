package history_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/milsabores/backend-pasteleria/internal/catalog"
	"github.com/milsabores/backend-pasteleria/internal/history"
	"github.com/milsabores/backend-pasteleria/internal/store"
)

var (
	january = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	june    = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
)

func testCatalog() []catalog.Product {
	return []catalog.Product{
		{Code: "X", Name: "Torta Cuadrada de Chocolate", Image: "/assets/products/X.jpg", Price: 45000},
		{Code: "Y", Name: "Mousse de Chocolate", Image: "/assets/products/Y.jpg", Price: 5000},
		{Code: "Z", Name: "Tarta de Santiago", Image: "/assets/products/Z.jpg", Price: 6000},
	}
}

func TestBuildPurchaseSummaryRanking(t *testing.T) {
	orders := []store.Order{
		{
			ID: "a", UserID: "u1", PlacedAt: january,
			Items: []store.OrderItem{{Code: "X", Name: "Torta", Qty: 1, UnitPrice: 45000}},
		},
		{
			ID: "b", UserID: "u1", PlacedAt: june,
			Items: []store.OrderItem{
				{Code: "X", Name: "Torta", Qty: 3, UnitPrice: 45000},
				{Code: "Y", Name: "Mousse", Qty: 1, UnitPrice: 5000},
			},
		},
	}

	summary := history.BuildPurchaseSummary(orders, "u1", testCatalog())
	require.Len(t, summary, 2)

	require.Equal(t, "X", summary[0].Code, "higher cumulative quantity ranks first")
	require.Equal(t, 4, summary[0].Qty)
	require.EqualValues(t, 4*45000, summary[0].Total)
	require.True(t, summary[0].LastPurchase.Equal(june))

	require.Equal(t, "Y", summary[1].Code)
	require.Equal(t, 1, summary[1].Qty)
}

func TestBuildPurchaseSummaryRecencyTieBreak(t *testing.T) {
	orders := []store.Order{
		{ID: "a", UserID: "u1", PlacedAt: january, Items: []store.OrderItem{{Code: "X", Qty: 2, UnitPrice: 100}}},
		{ID: "b", UserID: "u1", PlacedAt: june, Items: []store.OrderItem{{Code: "Y", Qty: 2, UnitPrice: 100}}},
	}

	summary := history.BuildPurchaseSummary(orders, "u1", testCatalog())
	require.Len(t, summary, 2)
	require.Equal(t, "Y", summary[0].Code, "equal quantities fall back to recency")
	require.Equal(t, "X", summary[1].Code)
}

func TestBuildPurchaseSummaryFiltersByUser(t *testing.T) {
	orders := []store.Order{
		{ID: "a", UserID: "u1", PlacedAt: january, Items: []store.OrderItem{{Code: "X", Qty: 1, UnitPrice: 100}}},
		{ID: "b", UserID: "u2", PlacedAt: june, Items: []store.OrderItem{{Code: "Y", Qty: 5, UnitPrice: 100}}},
	}

	summary := history.BuildPurchaseSummary(orders, "u1", testCatalog())
	require.Len(t, summary, 1)
	require.Equal(t, "X", summary[0].Code)
}

func TestBuildPurchaseSummaryEmptyGuards(t *testing.T) {
	orders := []store.Order{
		{ID: "a", UserID: "u1", PlacedAt: january, Items: []store.OrderItem{{Code: "X", Qty: 1, UnitPrice: 100}}},
	}

	require.Nil(t, history.BuildPurchaseSummary(orders, "", testCatalog()))
	require.Nil(t, history.BuildPurchaseSummary(nil, "u1", testCatalog()))
}

func TestBuildPurchaseSummaryNameFallbacks(t *testing.T) {
	orders := []store.Order{
		{
			ID: "a", UserID: "u1", PlacedAt: january,
			Items: []store.OrderItem{
				{Code: "X", Name: "Nombre Antiguo", Qty: 1, UnitPrice: 100},
				{Code: "GONE", Name: "Producto Descontinuado", Qty: 1, UnitPrice: 100},
				{Code: "GONE2", Qty: 1, UnitPrice: 100},
			},
		},
	}

	summary := history.BuildPurchaseSummary(orders, "u1", testCatalog())
	require.Len(t, summary, 3)

	byCode := map[string]history.SummaryEntry{}
	for _, e := range summary {
		byCode[e.Code] = e
	}
	require.Equal(t, "Torta Cuadrada de Chocolate", byCode["X"].Name, "catalog name wins over the embedded one")
	require.Equal(t, "/assets/products/X.jpg", byCode["X"].Image)
	require.Equal(t, "Producto Descontinuado", byCode["GONE"].Name, "embedded name used when code left the catalog")
	require.Equal(t, "Producto GONE2", byCode["GONE2"].Name, "placeholder generated from the code")
}

func TestBuildPurchaseSummaryKeepsFirstSeenOnEqualTimestamp(t *testing.T) {
	firstSeen := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	orders := []store.Order{
		{ID: "a", UserID: "u1", PlacedAt: firstSeen, Items: []store.OrderItem{{Code: "X", Qty: 1, UnitPrice: 100}}},
		{ID: "b", UserID: "u1", PlacedAt: firstSeen, Items: []store.OrderItem{{Code: "X", Qty: 1, UnitPrice: 100}}},
	}

	summary := history.BuildPurchaseSummary(orders, "u1", testCatalog())
	require.Len(t, summary, 1)
	require.Equal(t, 2, summary[0].Qty)
	require.True(t, summary[0].LastPurchase.Equal(firstSeen))
}

func TestRecommendedProductsTruncationAndDrop(t *testing.T) {
	summary := []history.SummaryEntry{
		{Code: "X", Qty: 10, Total: 1000, LastPurchase: june},
		{Code: "MISSING", Qty: 8, Total: 800, LastPurchase: june},
		{Code: "Y", Qty: 6, Total: 600, LastPurchase: january},
		{Code: "Z", Qty: 4, Total: 400, LastPurchase: january},
		{Code: "ALSO-MISSING", Qty: 2, Total: 200, LastPurchase: january},
	}

	recs := history.RecommendedProducts(summary, testCatalog(), 4)
	require.Len(t, recs, 3, "second-ranked code left the catalog and is dropped, not replaced")
	require.Equal(t, "X", recs[0].Code)
	require.Equal(t, "Y", recs[1].Code)
	require.Equal(t, "Z", recs[2].Code)

	require.True(t, recs[0].Recommended)
	require.Equal(t, 10, recs[0].Meta.Qty)
	require.EqualValues(t, 1000, recs[0].Meta.TotalSpent)
	require.True(t, recs[0].Meta.LastPurchase.Equal(june))
	require.EqualValues(t, 45000, recs[0].Price, "catalog record is carried whole")
}

func TestRecommendedProductsEmptySummary(t *testing.T) {
	require.Nil(t, history.RecommendedProducts(nil, testCatalog(), 4))
}

func TestRecommendedProductsDefaultLimit(t *testing.T) {
	summary := []history.SummaryEntry{
		{Code: "X", Qty: 5, LastPurchase: june},
		{Code: "Y", Qty: 4, LastPurchase: june},
		{Code: "Z", Qty: 3, LastPurchase: june},
	}
	recs := history.RecommendedProducts(summary, testCatalog(), 0)
	require.Len(t, recs, 3)
}

func TestRecommendedProductsDoesNotReRank(t *testing.T) {
	// Deliberately unsorted input: selection must respect the given order.
	summary := []history.SummaryEntry{
		{Code: "Z", Qty: 1, LastPurchase: january},
		{Code: "X", Qty: 99, LastPurchase: june},
	}
	recs := history.RecommendedProducts(summary, testCatalog(), 1)
	require.Len(t, recs, 1)
	require.Equal(t, "Z", recs[0].Code)
}
