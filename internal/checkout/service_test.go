package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/milsabores/backend-pasteleria/internal/cart"
	"github.com/milsabores/backend-pasteleria/internal/catalog"
	"github.com/milsabores/backend-pasteleria/internal/common"
	"github.com/milsabores/backend-pasteleria/internal/events"
	"github.com/milsabores/backend-pasteleria/internal/pricing"
	"github.com/milsabores/backend-pasteleria/internal/store"
)

var fixedNow = time.Date(2025, 8, 15, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	st := store.New(client)
	cat, err := catalog.NewService(catalog.ServiceConfig{})
	require.NoError(t, err)
	cartSvc := &cart.Service{
		Store:   st,
		Catalog: cat,
		Rules:   pricing.DefaultRules(),
		Now:     func() time.Time { return fixedNow },
	}
	svc := &Service{
		Store:           st,
		CartSvc:         cartSvc,
		Events:          &events.Bus{Store: st, Now: func() time.Time { return fixedNow }},
		Now:             func() time.Time { return fixedNow },
		OrderNumberBase: 1050,
	}
	return svc, st
}

func seedUserWithCart(t *testing.T, svc *Service, birthDate string) string {
	t.Helper()
	ctx := context.Background()
	user := store.User{
		ID:        "user-1",
		Email:     "cliente@milsabores.cl",
		FirstName: "Carmen",
		BirthDate: birthDate,
	}
	require.NoError(t, svc.Store.CreateUser(ctx, user, "hash"))
	_, err := svc.CartSvc.EnsureCart(ctx, user.ID, "")
	require.NoError(t, err)
	_, err = svc.CartSvc.AddItem(ctx, user.ID, "TC001", 1)
	require.NoError(t, err)
	return user.ID
}

func TestCreateOrderFromCart(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	userID := seedUserWithCart(t, svc, "1970-03-21")
	_, err := svc.CartSvc.ApplyCoupon(ctx, userID, "50MILSABORES")
	require.NoError(t, err)

	out, err := svc.Create(ctx, userID, Input{
		DeliveryMethod: "retiro",
		PickupBranch:   "Providencia",
		PickupSlot:     "2025-08-16T11:00",
		PaymentMethod:  "webpay",
	})
	require.NoError(t, err)

	order := out.Order
	require.Equal(t, "MS-1051", order.Number)
	require.Equal(t, "CONFIRMED", order.Status)
	require.Equal(t, fixedNow, order.PlacedAt)
	require.Equal(t, int64(45000), order.Subtotal)
	require.Equal(t, "50MILSABORES", order.CouponCode)
	require.Equal(t, int64(11250), order.CouponDiscount)
	require.Equal(t, int64(16875), order.SeniorDiscount)
	require.Equal(t, int64(16875), order.Total)
	require.Len(t, order.Items, 1)
	require.Equal(t, "TC001", order.Items[0].Code)

	// The cart is consumed by checkout.
	_, err = st.GetCart(ctx, userID)
	require.ErrorIs(t, err, store.ErrNotFound)

	orders, err := st.ListOrders(ctx, userID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, order.ID, orders[0].ID)
}

func TestCreateRejectsEmptyCart(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Store.CreateUser(ctx, store.User{ID: "user-2", Email: "otro@milsabores.cl"}, "hash"))

	_, err := svc.Create(ctx, "user-2", Input{
		DeliveryMethod: "retiro",
		PickupBranch:   "Centro",
		PickupSlot:     "2025-08-16T11:00",
		PaymentMethod:  "efectivo",
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "CART_EMPTY", appErr.Code)
}

func TestCreateValidatesPayload(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := seedUserWithCart(t, svc, "")

	cases := []Input{
		{DeliveryMethod: "drone", PaymentMethod: "webpay"},
		{DeliveryMethod: "retiro", PaymentMethod: "webpay"}, // missing pickup branch and slot
		{DeliveryMethod: "despacho", PaymentMethod: "bitcoin"},
	}
	for _, in := range cases {
		_, err := svc.Create(ctx, userID, in)
		var appErr *common.AppError
		require.ErrorAs(t, err, &appErr)
		require.Equal(t, "VALIDATION_ERROR", appErr.Code)
	}
}

func TestCreateRequiresUser(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), "", Input{
		DeliveryMethod: "despacho",
		PaymentMethod:  "webpay",
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "UNAUTHORIZED", appErr.Code)
}

func TestCreateSequentialNumbers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := seedUserWithCart(t, svc, "")

	out, err := svc.Create(ctx, userID, Input{
		DeliveryMethod: "despacho",
		PaymentMethod:  "transferencia",
	})
	require.NoError(t, err)
	require.Equal(t, "MS-1051", out.Order.Number)

	_, err = svc.CartSvc.EnsureCart(ctx, userID, "")
	require.NoError(t, err)
	_, err = svc.CartSvc.AddItem(ctx, userID, "TC002", 2)
	require.NoError(t, err)

	out2, err := svc.Create(ctx, userID, Input{
		DeliveryMethod: "despacho",
		PaymentMethod:  "transferencia",
	})
	require.NoError(t, err)
	require.Equal(t, "MS-1052", out2.Order.Number)
}
