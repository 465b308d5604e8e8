package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	redis "github.com/redis/go-redis/v9"

	"github.com/milsabores/backend-pasteleria/internal/store"
)

// Seeds the demo account and its order history so the storefront has data to
// show on first run. Safe to re-run: existing records are left untouched.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		log.Fatal("REDIS_URL is not set")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("Failed to parse REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to ping Redis: %v", err)
	}

	st := store.New(client)
	userID := seedDemoUser(ctx, st)
	seedDemoOrders(ctx, st, userID)

	log.Println("Seeding completed successfully!")
}

func seedDemoUser(ctx context.Context, st *store.Store) string {
	const email = "cliente@milsabores.cl"

	if existing, err := st.GetUserByEmail(ctx, email); err == nil {
		log.Printf("Demo user already present: %s", existing.ID)
		return existing.ID
	}

	hash, err := argon2id.CreateHash("MilSabores123", argon2id.DefaultParams)
	if err != nil {
		log.Fatalf("Failed to hash demo password: %v", err)
	}

	now := time.Now().UTC()
	user := store.User{
		ID:        uuid.NewString(),
		Email:     email,
		FirstName: "Carmen",
		LastName:  "Soto",
		Run:       "8.123.456-7",
		Phone:     "+56 9 8765 4321",
		BirthDate: "1970-03-21",
		Region:    "Región Metropolitana",
		Comuna:    "Providencia",
		Street:    "Av. Los Leones 1234",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.CreateUser(ctx, user, hash); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			log.Println("Demo user already present")
			if existing, lookupErr := st.GetUserByEmail(ctx, email); lookupErr == nil {
				return existing.ID
			}
		}
		log.Fatalf("Failed to seed demo user: %v", err)
	}
	log.Printf("Seeded demo user %s", user.ID)
	return user.ID
}

func seedDemoOrders(ctx context.Context, st *store.Store, userID string) {
	existing, err := st.ListOrders(ctx, userID)
	if err != nil {
		log.Fatalf("Failed to list demo orders: %v", err)
	}
	if len(existing) > 0 {
		log.Printf("Demo orders already present (%d), skipping", len(existing))
		return
	}

	// Names and prices reflect what the customer paid at the time, which may
	// differ from the current catalog.
	orders := []store.Order{
		{
			ID:             uuid.NewString(),
			UserID:         userID,
			Number:         "MS-1027",
			PlacedAt:       time.Date(2025, 6, 2, 11, 30, 0, 0, time.UTC),
			Status:         "ENTREGADO",
			DeliveryMethod: "retiro",
			PickupBranch:   "Providencia",
			PickupSlot:     "2025-06-03T11:00",
			PaymentMethod:  "webpay",
			Subtotal:       50000,
			Total:          50000,
			Items: []store.OrderItem{
				{Code: "TC001", Name: "Torta Cuadrada Chocolate", Qty: 1, UnitPrice: 44000},
				{Code: "PI001", Name: "Mousse Chocolate", Qty: 1, UnitPrice: 6000},
			},
		},
		{
			ID:             uuid.NewString(),
			UserID:         userID,
			Number:         "MS-1042",
			PlacedAt:       time.Date(2025, 7, 18, 16, 45, 0, 0, time.UTC),
			Status:         "ENTREGADO",
			DeliveryMethod: "despacho",
			PaymentMethod:  "transferencia",
			Subtotal:       61000,
			CouponCode:     "50MILSABORES",
			CouponDiscount: 15250,
			Total:          45750,
			Items: []store.OrderItem{
				{Code: "PT002", Name: "Tarta Santiago", Qty: 1, UnitPrice: 51000},
				{Code: "PV002", Name: "Galletas Veganas", Qty: 2, UnitPrice: 5000},
			},
		},
	}
	for _, ord := range orders {
		if err := st.AppendOrder(ctx, ord); err != nil {
			log.Fatalf("Failed to seed order %s: %v", ord.Number, err)
		}
		log.Printf("Seeded order %s", ord.Number)
	}
}
