package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound indicates the product code does not exist in the catalog.
var ErrNotFound = errors.New("catalog: product not found")

// ListQuery filters and paginates a product listing.
type ListQuery struct {
	Category string
	Search   string
	Popular  bool
	Page     int
	Limit    int
}

// ServiceConfig configures the catalog service.
type ServiceConfig struct {
	Cache        *Cache
	DefaultLimit int
	MaxLimit     int
}

// Service serves the static bakery catalog. The product list is embedded at
// build time; Redis only accelerates repeated listings.
type Service struct {
	products     []Product
	index        map[string]Product
	categories   []Category
	cache        *Cache
	defaultLimit int
	maxLimit     int
}

// NewService loads the embedded catalog and prepares lookup indexes.
func NewService(cfg ServiceConfig) (*Service, error) {
	products, err := loadProducts()
	if err != nil {
		return nil, err
	}
	index := make(map[string]Product, len(products))
	for _, p := range products {
		if _, dup := index[p.Code]; dup {
			return nil, fmt.Errorf("catalog: duplicate product code %s", p.Code)
		}
		index[p.Code] = p
	}

	defaultLimit := cfg.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit <= 0 {
		maxLimit = 100
	}

	return &Service{
		products:     products,
		index:        index,
		categories:   deriveCategories(products),
		cache:        cfg.Cache,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

func deriveCategories(products []Product) []Category {
	seen := make(map[string]bool, len(categoryOrder))
	ordered := make([]string, 0, len(categoryOrder))
	for _, label := range categoryOrder {
		seen[label] = true
		ordered = append(ordered, label)
	}
	for _, p := range products {
		if !seen[p.Category] {
			seen[p.Category] = true
			ordered = append(ordered, p.Category)
		}
	}
	categories := make([]Category, 0, len(ordered))
	for _, label := range ordered {
		categories = append(categories, Category{ID: slugify(label), Label: label})
	}
	return categories
}

func slugify(value string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Products returns a filtered page of the catalog and the total match count.
func (s *Service) Products(ctx context.Context, q ListQuery) ([]Product, int, error) {
	if s == nil {
		return nil, 0, errors.New("catalog: service not configured")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}

	key := cacheKey("cat", "list", q.Category, q.Search, q.Popular, page, limit)
	var cached listPage
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached.Items, cached.Total, nil
	}

	matched := make([]Product, 0, len(s.products))
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	for _, p := range s.products {
		if q.Category != "" && p.Category != q.Category && slugify(p.Category) != q.Category {
			continue
		}
		if q.Popular && !p.Popular {
			continue
		}
		if needle != "" && !matches(p, needle) {
			continue
		}
		matched = append(matched, p)
	}

	total := len(matched)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	pageItems := matched[start:end]

	_ = s.cache.SetJSON(ctx, key, listPage{Items: pageItems, Total: total})
	return pageItems, total, nil
}

func matches(p Product, needle string) bool {
	return strings.Contains(strings.ToLower(p.Name), needle) ||
		strings.Contains(strings.ToLower(p.Description), needle) ||
		strings.Contains(strings.ToLower(p.Code), needle)
}

type listPage struct {
	Items []Product `json:"items"`
	Total int       `json:"total"`
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

// ProductByCode resolves a single product.
func (s *Service) ProductByCode(code string) (Product, error) {
	if s == nil {
		return Product{}, errors.New("catalog: service not configured")
	}
	p, ok := s.index[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

// Categories returns the catalog sections in display order.
func (s *Service) Categories() []Category {
	if s == nil {
		return nil
	}
	return s.categories
}

// All returns the full catalog in definition order.
func (s *Service) All() []Product {
	if s == nil {
		return nil
	}
	return s.products
}
