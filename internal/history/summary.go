package history

import (
	"fmt"
	"sort"
	"time"

	"github.com/milsabores/backend-pasteleria/internal/catalog"
	"github.com/milsabores/backend-pasteleria/internal/pricing"
	"github.com/milsabores/backend-pasteleria/internal/store"
)

// DefaultRecommendationLimit bounds the promotional product list.
const DefaultRecommendationLimit = 4

// SummaryEntry aggregates a user's purchases of one product across the whole
// order history. JSON field names follow the storefront vocabulary.
type SummaryEntry struct {
	Code         string        `json:"codigo"`
	Name         string        `json:"nombre"`
	Image        string        `json:"imagen,omitempty"`
	Qty          int           `json:"cantidad"`
	Total        pricing.Money `json:"total"`
	LastPurchase time.Time     `json:"ultimaCompra"`
}

// RecommendationMeta carries the purchase figures attached to a recommended
// product.
type RecommendationMeta struct {
	Qty          int           `json:"cantidad"`
	LastPurchase time.Time     `json:"ultimaCompra"`
	TotalSpent   pricing.Money `json:"totalGastado"`
}

// Recommendation is a catalog product enriched with purchase metadata for
// promotional display.
type Recommendation struct {
	catalog.Product
	Recommended bool               `json:"recomendado"`
	Meta        RecommendationMeta `json:"recommendationMeta"`
}

// BuildPurchaseSummary aggregates the user's order history per product code,
// ranked by accumulated quantity descending, then by most recent purchase.
//
// An empty user id or order list yields nil. The catalog resolves display
// name and image only; purchases of codes no longer in the catalog still
// count, falling back to the line's own name or a placeholder built from the
// code. The most-recent timestamp uses a strict comparison, so an order tying
// an earlier one leaves the earlier value in place.
func BuildPurchaseSummary(orders []store.Order, userID string, products []catalog.Product) []SummaryEntry {
	if userID == "" || len(orders) == 0 {
		return nil
	}

	index := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		index[p.Code] = p
	}

	acc := make(map[string]*SummaryEntry)
	codes := make([]string, 0)

	for _, order := range orders {
		if order.UserID != userID {
			continue
		}
		for _, item := range order.Items {
			lineTotal := pricing.Money(item.Qty) * item.UnitPrice
			if entry, ok := acc[item.Code]; ok {
				entry.Qty += item.Qty
				entry.Total += lineTotal
				if order.PlacedAt.After(entry.LastPurchase) {
					entry.LastPurchase = order.PlacedAt
				}
				continue
			}
			entry := &SummaryEntry{
				Code:         item.Code,
				Name:         displayName(index, item),
				Qty:          item.Qty,
				Total:        lineTotal,
				LastPurchase: order.PlacedAt,
			}
			if p, ok := index[item.Code]; ok {
				entry.Image = p.Image
			}
			acc[item.Code] = entry
			codes = append(codes, item.Code)
		}
	}

	// Insertion order keeps the result deterministic beyond the sort keys.
	entries := make([]SummaryEntry, 0, len(codes))
	for _, code := range codes {
		entries = append(entries, *acc[code])
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Qty != entries[j].Qty {
			return entries[i].Qty > entries[j].Qty
		}
		return entries[i].LastPurchase.After(entries[j].LastPurchase)
	})
	return entries
}

func displayName(index map[string]catalog.Product, item store.OrderItem) string {
	if p, ok := index[item.Code]; ok {
		return p.Name
	}
	if item.Name != "" {
		return item.Name
	}
	if item.Code != "" {
		return fmt.Sprintf("Producto %s", item.Code)
	}
	return "Producto"
}

// RecommendedProducts selects up to limit entries from the head of an
// already-ranked summary and joins them with the catalog. Entries whose code
// has left the catalog are dropped silently, so the result may hold fewer
// than limit items. No re-ranking happens here.
func RecommendedProducts(summary []SummaryEntry, products []catalog.Product, limit int) []Recommendation {
	if len(summary) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = DefaultRecommendationLimit
	}
	if limit > len(summary) {
		limit = len(summary)
	}

	index := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		index[p.Code] = p
	}

	out := make([]Recommendation, 0, limit)
	for _, entry := range summary[:limit] {
		product, ok := index[entry.Code]
		if !ok {
			continue
		}
		out = append(out, Recommendation{
			Product:     product,
			Recommended: true,
			Meta: RecommendationMeta{
				Qty:          entry.Qty,
				LastPurchase: entry.LastPurchase,
				TotalSpent:   entry.Total,
			},
		})
	}
	return out
}
