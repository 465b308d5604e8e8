package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/milsabores/backend-pasteleria/internal/pricing"
)

//go:embed products.json
var productsJSON []byte

// Product is a bakery catalog record. Codes are unique and stable; JSON field
// names match the storefront's Spanish vocabulary.
type Product struct {
	Code        string        `json:"codigo"`
	Category    string        `json:"categoria"`
	Name        string        `json:"nombre"`
	Price       pricing.Money `json:"precio"`
	Image       string        `json:"imagen"`
	Description string        `json:"descripcion"`
	History     string        `json:"historia,omitempty"`
	Popular     bool          `json:"popular,omitempty"`
}

// Category is a display grouping derived from the catalog.
type Category struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// categoryOrder fixes the display order of the storefront sections.
var categoryOrder = []string{
	"Tortas Cuadradas",
	"Tortas Circulares",
	"Tortas Especiales",
	"Productos Sin Azúcar",
	"Productos Sin Gluten",
	"Productos Vegana",
	"Pastelería Tradicional",
	"Postres Individuales",
}

func loadProducts() ([]Product, error) {
	var products []Product
	if err := json.Unmarshal(productsJSON, &products); err != nil {
		return nil, fmt.Errorf("catalog: decode embedded products: %w", err)
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("catalog: embedded product list is empty")
	}
	return products, nil
}
