package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/milsabores/backend-pasteleria/internal/catalog"
	"github.com/milsabores/backend-pasteleria/internal/events"
	"github.com/milsabores/backend-pasteleria/internal/obs"
	"github.com/milsabores/backend-pasteleria/internal/pricing"
	"github.com/milsabores/backend-pasteleria/internal/store"
)

// ErrNotFound indicates the requested cart could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// ErrInvalidCoupon is returned when a coupon code is not recognized.
var ErrInvalidCoupon = errors.New("invalid coupon code")

// Service encapsulates cart domain operations. Carts are volatile documents
// with a sliding TTL; every mutation re-arms the expiry.
type Service struct {
	Store   *store.Store
	Catalog *catalog.Service
	Rules   pricing.Rules
	Events  *events.Bus
	TTL     time.Duration
	Now     func() time.Time
}

// Quote is a priced view of a cart.
type Quote struct {
	Cart  store.Cart    `json:"cart"`
	Price pricing.Quote `json:"price"`
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// EnsureCart loads or creates a cart. Logged-in users get one cart keyed by
// their user id; guests carry an opaque cart id issued on first use.
func (s *Service) EnsureCart(ctx context.Context, userID, cartID string) (store.Cart, error) {
	if s == nil || s.Store == nil {
		return store.Cart{}, errors.New("cart service not configured")
	}
	id := strings.TrimSpace(cartID)
	if uid := strings.TrimSpace(userID); uid != "" {
		id = uid
	}
	if id == "" {
		id = uuid.NewString()
	}

	cart, err := s.Store.GetCart(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return store.Cart{}, err
		}
		now := s.now().UTC()
		cart = store.Cart{
			ID:        id,
			UserID:    strings.TrimSpace(userID),
			Items:     []store.CartItem{},
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	if err := s.touch(ctx, &cart); err != nil {
		return store.Cart{}, err
	}
	return cart, nil
}

// AddItem inserts or increments a cart line for the given product code.
func (s *Service) AddItem(ctx context.Context, cartID, code string, qty int) (store.Cart, error) {
	if qty <= 0 {
		return store.Cart{}, fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	cart, err := s.getCart(ctx, cartID)
	if err != nil {
		return store.Cart{}, err
	}
	product, err := s.Catalog.ProductByCode(code)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return store.Cart{}, fmt.Errorf("unknown product %q: %w", code, ErrInvalidInput)
		}
		return store.Cart{}, err
	}

	found := false
	for i := range cart.Items {
		if cart.Items[i].Code == product.Code {
			cart.Items[i].Qty += qty
			found = true
			break
		}
	}
	if !found {
		cart.Items = append(cart.Items, store.CartItem{
			Code:      product.Code,
			Name:      product.Name,
			Qty:       qty,
			UnitPrice: product.Price,
		})
	}
	if err := s.touch(ctx, &cart); err != nil {
		return store.Cart{}, err
	}
	return cart, nil
}

// UpdateQty sets the quantity of a cart line. A quantity of zero removes it.
func (s *Service) UpdateQty(ctx context.Context, cartID, code string, qty int) (store.Cart, error) {
	if qty < 0 {
		return store.Cart{}, fmt.Errorf("qty cannot be negative: %w", ErrInvalidInput)
	}
	if qty == 0 {
		return s.RemoveItem(ctx, cartID, code)
	}
	cart, err := s.getCart(ctx, cartID)
	if err != nil {
		return store.Cart{}, err
	}
	normalized := strings.ToUpper(strings.TrimSpace(code))
	for i := range cart.Items {
		if cart.Items[i].Code == normalized {
			cart.Items[i].Qty = qty
			if err := s.touch(ctx, &cart); err != nil {
				return store.Cart{}, err
			}
			return cart, nil
		}
	}
	return store.Cart{}, fmt.Errorf("item %q not in cart: %w", code, ErrInvalidInput)
}

// RemoveItem deletes a cart line by product code.
func (s *Service) RemoveItem(ctx context.Context, cartID, code string) (store.Cart, error) {
	cart, err := s.getCart(ctx, cartID)
	if err != nil {
		return store.Cart{}, err
	}
	normalized := strings.ToUpper(strings.TrimSpace(code))
	kept := cart.Items[:0]
	for _, item := range cart.Items {
		if item.Code != normalized {
			kept = append(kept, item)
		}
	}
	cart.Items = kept
	if err := s.touch(ctx, &cart); err != nil {
		return store.Cart{}, err
	}
	return cart, nil
}

// ApplyCoupon attaches a coupon code to the cart. Unknown codes are rejected
// so the client can surface the error immediately.
func (s *Service) ApplyCoupon(ctx context.Context, cartID, code string) (store.Cart, error) {
	cart, err := s.getCart(ctx, cartID)
	if err != nil {
		return store.Cart{}, err
	}
	normalized := pricing.NormalizeCoupon(code)
	if !s.Rules.CouponValid(normalized) {
		obs.IncCouponApplied("rejected")
		return store.Cart{}, ErrInvalidCoupon
	}
	cart.CouponCode = normalized
	if err := s.touch(ctx, &cart); err != nil {
		return store.Cart{}, err
	}
	obs.IncCouponApplied("accepted")
	if s.Events != nil {
		_, _ = s.Events.Emit(ctx, events.TopicCouponApplied, cart.ID, map[string]string{"code": normalized})
	}
	return cart, nil
}

// RemoveCoupon detaches any coupon from the cart.
func (s *Service) RemoveCoupon(ctx context.Context, cartID string) (store.Cart, error) {
	cart, err := s.getCart(ctx, cartID)
	if err != nil {
		return store.Cart{}, err
	}
	cart.CouponCode = ""
	if err := s.touch(ctx, &cart); err != nil {
		return store.Cart{}, err
	}
	return cart, nil
}

// Clear empties the cart document entirely.
func (s *Service) Clear(ctx context.Context, cartID string) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	return s.Store.DeleteCart(ctx, strings.TrimSpace(cartID))
}

// PriceQuote computes the discounted totals for the cart. The birth date of
// the cart's owner, when known, drives the senior discount.
func (s *Service) PriceQuote(ctx context.Context, cart store.Cart) (Quote, error) {
	birthDate := ""
	if cart.UserID != "" {
		user, err := s.Store.GetUserByID(ctx, cart.UserID)
		if err == nil {
			birthDate = user.BirthDate
		} else if !errors.Is(err, store.ErrNotFound) {
			return Quote{}, err
		}
	}
	items := make([]pricing.Item, 0, len(cart.Items))
	for _, line := range cart.Items {
		items = append(items, pricing.Item{UnitPrice: pricing.Money(line.UnitPrice), Qty: line.Qty})
	}
	subtotal := pricing.SubtotalOf(items)
	quote := s.Rules.Compute(subtotal, cart.CouponCode, birthDate, s.now())
	if quote.SeniorDiscount > 0 {
		obs.IncSeniorDiscount()
	}
	return Quote{Cart: cart, Price: quote}, nil
}

func (s *Service) getCart(ctx context.Context, cartID string) (store.Cart, error) {
	if s == nil || s.Store == nil {
		return store.Cart{}, errors.New("cart service not configured")
	}
	id := strings.TrimSpace(cartID)
	if id == "" {
		return store.Cart{}, fmt.Errorf("cart id is required: %w", ErrInvalidInput)
	}
	cart, err := s.Store.GetCart(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Cart{}, ErrNotFound
		}
		return store.Cart{}, err
	}
	return cart, nil
}

func (s *Service) touch(ctx context.Context, cart *store.Cart) error {
	cart.UpdatedAt = s.now().UTC()
	return s.Store.SaveCart(ctx, *cart, s.ttl())
}
