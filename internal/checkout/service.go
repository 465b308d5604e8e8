package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/milsabores/backend-pasteleria/internal/cart"
	"github.com/milsabores/backend-pasteleria/internal/common"
	"github.com/milsabores/backend-pasteleria/internal/events"
	"github.com/milsabores/backend-pasteleria/internal/obs"
	"github.com/milsabores/backend-pasteleria/internal/store"
)

// Input is the checkout request payload.
type Input struct {
	DeliveryMethod string `json:"deliveryMethod" validate:"required,oneof=retiro despacho"`
	PickupBranch   string `json:"pickupBranch" validate:"required_if=DeliveryMethod retiro"`
	PickupSlot     string `json:"pickupSlot" validate:"required_if=DeliveryMethod retiro"`
	PaymentMethod  string `json:"paymentMethod" validate:"required,oneof=webpay transferencia efectivo"`
	Notes          string `json:"notes" validate:"max=500"`
}

// Output is returned after a successful checkout.
type Output struct {
	Order store.Order `json:"order"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Service turns a priced cart into an immutable order record.
type Service struct {
	Store   *store.Store
	CartSvc *cart.Service
	Events  *events.Bus
	Now     func() time.Time

	// OrderNumberBase offsets the order sequence so demo data and live
	// orders share one number space.
	OrderNumberBase int64
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create validates the cart, prices it, and appends the resulting order.
// The cart is deleted once the order is recorded.
func (s *Service) Create(ctx context.Context, userID string, in Input) (Output, error) {
	if s == nil || s.Store == nil || s.CartSvc == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return Output{}, common.NewAppError("UNAUTHORIZED", "authentication required", 401, nil)
	}
	if err := validate.Struct(in); err != nil {
		obs.IncOrderCreated(methodLabel(in.DeliveryMethod), "invalid")
		return Output{}, common.NewAppError("VALIDATION_ERROR", "invalid checkout payload", 400, err)
	}

	cartDoc, err := s.Store.GetCart(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Output{}, common.NewAppError("CART_EMPTY", "cart is empty", 422, err)
		}
		return Output{}, fmt.Errorf("load cart: %w", err)
	}
	if len(cartDoc.Items) == 0 {
		obs.IncOrderCreated(methodLabel(in.DeliveryMethod), "empty_cart")
		return Output{}, common.NewAppError("CART_EMPTY", "cart is empty", 422, nil)
	}

	quote, err := s.CartSvc.PriceQuote(ctx, cartDoc)
	if err != nil {
		return Output{}, fmt.Errorf("price cart: %w", err)
	}

	seq, err := s.Store.NextOrderNumber(ctx)
	if err != nil {
		return Output{}, fmt.Errorf("allocate order number: %w", err)
	}
	number := fmt.Sprintf("MS-%d", s.OrderNumberBase+seq)

	items := make([]store.OrderItem, 0, len(cartDoc.Items))
	for _, line := range cartDoc.Items {
		items = append(items, store.OrderItem{
			Code:      line.Code,
			Name:      line.Name,
			Qty:       line.Qty,
			UnitPrice: line.UnitPrice,
		})
	}

	couponCode := ""
	if quote.Price.CouponValid {
		couponCode = quote.Price.NormalizedCoupon
	}
	order := store.Order{
		ID:             uuid.NewString(),
		UserID:         userID,
		Number:         number,
		PlacedAt:       s.now().UTC(),
		Status:         "CONFIRMED",
		DeliveryMethod: in.DeliveryMethod,
		PickupBranch:   strings.TrimSpace(in.PickupBranch),
		PickupSlot:     strings.TrimSpace(in.PickupSlot),
		PaymentMethod:  in.PaymentMethod,
		Notes:          strings.TrimSpace(in.Notes),
		Subtotal:       quote.Price.Subtotal,
		CouponCode:     couponCode,
		CouponDiscount: quote.Price.CouponDiscount,
		SeniorDiscount: quote.Price.SeniorDiscount,
		Total:          quote.Price.Total,
		Items:          items,
	}
	if err := s.Store.AppendOrder(ctx, order); err != nil {
		return Output{}, fmt.Errorf("append order: %w", err)
	}
	if err := s.Store.DeleteCart(ctx, cartDoc.ID); err != nil {
		return Output{}, fmt.Errorf("clear cart: %w", err)
	}

	if s.Events != nil {
		payload := map[string]any{
			"number": order.Number,
			"userId": userID,
			"total":  order.Total,
		}
		if user, err := s.Store.GetUserByID(ctx, userID); err == nil {
			payload["email"] = user.Email
		}
		_, _ = s.Events.Emit(ctx, events.TopicOrderCreated, order.ID, payload)
	}

	obs.IncOrderCreated(methodLabel(in.DeliveryMethod), "created")
	return Output{Order: order}, nil
}

// methodLabel keeps metric label cardinality bounded to known methods.
func methodLabel(method string) string {
	switch method {
	case "retiro", "despacho":
		return method
	}
	return "unknown"
}
