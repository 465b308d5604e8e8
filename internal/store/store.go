package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrEmailTaken indicates a user with the same email already exists.
var ErrEmailTaken = errors.New("store: email already registered")

// User is an account record. Profile fields mirror the storefront
// registration form; BirthDate is an ISO-8601 date and may be empty.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Run          string    `json:"run"`
	Phone        string    `json:"phone"`
	BirthDate    string    `json:"birthDate"`
	Region       string    `json:"region"`
	Comuna       string    `json:"comuna"`
	Street       string    `json:"street"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type userRecord struct {
	User
	PasswordHash string `json:"passwordHash"`
}

// Session is a refresh-token session. Only the token hash is stored.
type Session struct {
	UserID    string    `json:"userId"`
	UserAgent string    `json:"userAgent,omitempty"`
	IP        string    `json:"ip,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CartItem is a cart line keyed by product code.
type CartItem struct {
	Code      string `json:"codigo"`
	Name      string `json:"nombre"`
	Qty       int    `json:"cantidad"`
	UnitPrice int64  `json:"precio"`
}

// Cart is a volatile cart document. UserID is empty for guest carts.
type Cart struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId,omitempty"`
	CouponCode string     `json:"couponCode,omitempty"`
	Items      []CartItem `json:"items"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// OrderItem is a purchased line. JSON field names follow the storefront's
// Spanish vocabulary, which the purchase history endpoints expose as-is.
type OrderItem struct {
	Code      string `json:"codigo"`
	Name      string `json:"nombre"`
	Qty       int    `json:"cantidad"`
	UnitPrice int64  `json:"precio"`
}

// Order is an immutable purchase record appended at checkout.
type Order struct {
	ID             string      `json:"id"`
	UserID         string      `json:"userId"`
	Number         string      `json:"number"`
	PlacedAt       time.Time   `json:"placedAt"`
	Status         string      `json:"status"`
	DeliveryMethod string      `json:"deliveryMethod"`
	PickupBranch   string      `json:"pickupBranch,omitempty"`
	PickupSlot     string      `json:"pickupSlot,omitempty"`
	PaymentMethod  string      `json:"paymentMethod"`
	Notes          string      `json:"notes,omitempty"`
	Subtotal       int64       `json:"subtotal"`
	CouponCode     string      `json:"couponCode,omitempty"`
	CouponDiscount int64       `json:"couponDiscount"`
	SeniorDiscount int64       `json:"seniorDiscount"`
	Total          int64       `json:"total"`
	Items          []OrderItem `json:"items"`
}

// Event is an append-only domain event record.
type Event struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

const (
	keyUser      = "ms:user:"
	keyUserEmail = "ms:user:email:"
	keySession   = "ms:session:"
	keyCart      = "ms:cart:"
	keyOrders    = "ms:orders:"
	keyOrder     = "ms:order:"
	keyOrderSeq  = "ms:seq:order"
	keyEvents    = "ms:events"
)

// maxEvents caps the event log length.
const maxEvents = 1000

// Store persists storefront state in Redis. Everything in it is volatile by
// design: the service is the backend counterpart of a browser-local-storage
// app and keeps no durable database.
type Store struct {
	R *redis.Client
}

// New constructs a Store around the provided client.
func New(client *redis.Client) *Store {
	return &Store{R: client}
}

func (s *Store) ready() error {
	if s == nil || s.R == nil {
		return errors.New("store: not configured")
	}
	return nil
}

// CreateUser registers the user, reserving the email atomically.
func (s *Store) CreateUser(ctx context.Context, u User, passwordHash string) error {
	if err := s.ready(); err != nil {
		return err
	}
	reserved, err := s.R.SetNX(ctx, keyUserEmail+u.Email, u.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("reserve email: %w", err)
	}
	if !reserved {
		return ErrEmailTaken
	}
	return s.writeUser(ctx, u, passwordHash)
}

// UpdateUser replaces the stored profile. The email index is not touched;
// email changes are not supported.
func (s *Store) UpdateUser(ctx context.Context, u User, passwordHash string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.writeUser(ctx, u, passwordHash)
}

func (s *Store) writeUser(ctx context.Context, u User, passwordHash string) error {
	rec := userRecord{User: u, PasswordHash: passwordHash}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.R.Set(ctx, keyUser+u.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// GetUserByID loads a user by identifier.
func (s *Store) GetUserByID(ctx context.Context, id string) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	data, err := s.R.Get(ctx, keyUser+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	var rec userRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}
	u := rec.User
	u.PasswordHash = rec.PasswordHash
	return u, nil
}

// GetUserByEmail resolves the email index and loads the user.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	id, err := s.R.Get(ctx, keyUserEmail+email).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return s.GetUserByID(ctx, id)
}

// CreateSession stores a refresh session under the token hash.
func (s *Store) CreateSession(ctx context.Context, tokenHash string, sess Session, ttl time.Duration) error {
	if err := s.ready(); err != nil {
		return err
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.R.Set(ctx, keySession+tokenHash, data, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// GetSession loads a refresh session by token hash.
func (s *Store) GetSession(ctx context.Context, tokenHash string) (Session, error) {
	if err := s.ready(); err != nil {
		return Session{}, err
	}
	data, err := s.R.Get(ctx, keySession+tokenHash).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return sess, nil
}

// DeleteSession revokes a refresh session.
func (s *Store) DeleteSession(ctx context.Context, tokenHash string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.R.Del(ctx, keySession+tokenHash).Err()
}

// SaveCart writes the cart document with a sliding TTL.
func (s *Store) SaveCart(ctx context.Context, cart Cart, ttl time.Duration) error {
	if err := s.ready(); err != nil {
		return err
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.R.Set(ctx, keyCart+cart.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// GetCart loads a cart document.
func (s *Store) GetCart(ctx context.Context, id string) (Cart, error) {
	if err := s.ready(); err != nil {
		return Cart{}, err
	}
	data, err := s.R.Get(ctx, keyCart+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Cart{}, ErrNotFound
		}
		return Cart{}, err
	}
	var cart Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return Cart{}, fmt.Errorf("decode cart: %w", err)
	}
	return cart, nil
}

// DeleteCart removes a cart document.
func (s *Store) DeleteCart(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.R.Del(ctx, keyCart+id).Err()
}

// NextOrderNumber returns the next value of the order sequence.
func (s *Store) NextOrderNumber(ctx context.Context) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	return s.R.Incr(ctx, keyOrderSeq).Result()
}

// AppendOrder stores the order and pushes it onto the user's history, newest
// first. Orders are never mutated or deleted afterwards.
func (s *Store) AppendOrder(ctx context.Context, order Order) error {
	if err := s.ready(); err != nil {
		return err
	}
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}
	pipe := s.R.TxPipeline()
	pipe.Set(ctx, keyOrder+order.ID, data, 0)
	pipe.LPush(ctx, keyOrders+order.UserID, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append order: %w", err)
	}
	return nil
}

// ListOrders returns the user's order history, newest first.
func (s *Store) ListOrders(ctx context.Context, userID string) ([]Order, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	raw, err := s.R.LRange(ctx, keyOrders+userID, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	orders := make([]Order, 0, len(raw))
	for _, entry := range raw {
		var order Order
		if err := json.Unmarshal([]byte(entry), &order); err != nil {
			return nil, fmt.Errorf("decode order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// GetOrder loads a single order by identifier.
func (s *Store) GetOrder(ctx context.Context, id string) (Order, error) {
	if err := s.ready(); err != nil {
		return Order{}, err
	}
	data, err := s.R.Get(ctx, keyOrder+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	var order Order
	if err := json.Unmarshal(data, &order); err != nil {
		return Order{}, fmt.Errorf("decode order: %w", err)
	}
	return order, nil
}

// AppendEvent pushes a domain event onto the capped event log.
func (s *Store) AppendEvent(ctx context.Context, ev Event) error {
	if err := s.ready(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	pipe := s.R.TxPipeline()
	pipe.LPush(ctx, keyEvents, data)
	pipe.LTrim(ctx, keyEvents, 0, maxEvents-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}
