package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/milsabores/backend-pasteleria/internal/common"
	"github.com/milsabores/backend-pasteleria/internal/store"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 24 * time.Hour
)

// Service coordinates authentication, account profiles, and session persistence.
type Service struct {
	store      *store.Store
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	signer     jwa.SignatureAlgorithm
	validator  TokenValidator
	issuer     string
	audience   string
	clockSkew  time.Duration
}

// Config configures the auth service.
type Config struct {
	Store           *store.Store
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Issuer          string
	Audience        string
	ClockSkew       time.Duration
}

// RegisterInput carries the registration form fields.
type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Run       string `json:"run"`
	Phone     string `json:"phone"`
	BirthDate string `json:"birthDate"`
	Region    string `json:"region"`
	Comuna    string `json:"comuna"`
	Street    string `json:"street"`
}

// ProfileUpdate carries the editable profile fields. Nil pointers leave the
// stored value untouched.
type ProfileUpdate struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Phone     *string `json:"phone"`
	BirthDate *string `json:"birthDate"`
	Region    *string `json:"region"`
	Comuna    *string `json:"comuna"`
	Street    *string `json:"street"`
}

// LoginResult bundles token material returned after a successful login.
type LoginResult struct {
	User          store.User `json:"user"`
	AccessToken   string     `json:"access_token"`
	RefreshToken  string     `json:"refresh_token"`
	AccessExpiry  time.Time  `json:"access_expires_at"`
	RefreshExpiry time.Time  `json:"refresh_expires_at"`
}

// RefreshResult represents the outcome of a refresh operation.
type RefreshResult struct {
	AccessToken   string    `json:"access_token"`
	AccessExpiry  time.Time `json:"access_expires_at"`
	RefreshToken  string    `json:"refresh_token"`
	RefreshExpiry time.Time `json:"refresh_expires_at"`
}

// NewService constructs a Service instance with sane defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("auth: store is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}

	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "backend-pasteleria"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "milsabores-web"
	}
	clockSkew := cfg.ClockSkew
	if clockSkew < 0 {
		clockSkew = 0
	}

	return &Service{
		store:      cfg.Store,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
		signer:     jwa.HS256,
		validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			ClockSkew: clockSkew,
			Algorithm: jwa.HS256,
		},
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Register creates a new user account with the supplied profile.
func (s *Service) Register(ctx context.Context, in RegisterInput) (store.User, error) {
	normalizedEmail := strings.TrimSpace(strings.ToLower(in.Email))
	if normalizedEmail == "" {
		return store.User{}, common.NewAppError("VALIDATION_ERROR", "email is required", httpStatusBadRequest, nil)
	}
	if len(in.Password) < 8 {
		return store.User{}, common.NewAppError("VALIDATION_ERROR", "password must be at least 8 characters", httpStatusBadRequest, nil)
	}
	if strings.TrimSpace(in.FirstName) == "" {
		return store.User{}, common.NewAppError("VALIDATION_ERROR", "firstName is required", httpStatusBadRequest, nil)
	}
	birthDate := strings.TrimSpace(in.BirthDate)
	if birthDate != "" {
		if _, err := time.Parse("2006-01-02", birthDate); err != nil {
			return store.User{}, common.NewAppError("VALIDATION_ERROR", "birthDate must be an ISO date (YYYY-MM-DD)", httpStatusBadRequest, nil)
		}
	}

	hash, err := argon2id.CreateHash(in.Password, argon2id.DefaultParams)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := store.User{
		ID:        uuid.NewString(),
		Email:     normalizedEmail,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Run:       strings.TrimSpace(in.Run),
		Phone:     strings.TrimSpace(in.Phone),
		BirthDate: birthDate,
		Region:    strings.TrimSpace(in.Region),
		Comuna:    strings.TrimSpace(in.Comuna),
		Street:    strings.TrimSpace(in.Street),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateUser(ctx, user, hash); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return store.User{}, common.NewAppError("EMAIL_ALREADY_USED", "email is already registered", httpStatusConflict, err)
		}
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login verifies credentials and issues a new JWT/refresh token pair.
func (s *Service) Login(ctx context.Context, email, password, userAgent, ip string) (LoginResult, error) {
	normalizedEmail := strings.TrimSpace(strings.ToLower(email))
	if normalizedEmail == "" || password == "" {
		return LoginResult{}, common.NewAppError("INVALID_CREDENTIALS", "invalid email or password", httpStatusUnauthorized, nil)
	}

	user, err := s.store.GetUserByEmail(ctx, normalizedEmail)
	if err != nil {
		return LoginResult{}, common.NewAppError("INVALID_CREDENTIALS", "invalid email or password", httpStatusUnauthorized, nil)
	}

	ok, err := argon2id.ComparePasswordAndHash(password, user.PasswordHash)
	if err != nil || !ok {
		return LoginResult{}, common.NewAppError("INVALID_CREDENTIALS", "invalid email or password", httpStatusUnauthorized, nil)
	}

	accessToken, accessExpiry, err := s.signAccessToken(user.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, refreshExpiry, err := s.createSession(ctx, user.ID, userAgent, ip)
	if err != nil {
		return LoginResult{}, fmt.Errorf("create session: %w", err)
	}

	user.PasswordHash = ""
	return LoginResult{
		User:          user,
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		AccessExpiry:  accessExpiry,
		RefreshExpiry: refreshExpiry,
	}, nil
}

// Logout revokes the refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	token := strings.TrimSpace(refreshToken)
	if token == "" {
		return nil
	}
	return s.store.DeleteSession(ctx, hashRefreshToken(token))
}

// Refresh validates and rotates a refresh token, issuing a fresh token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (RefreshResult, error) {
	token := strings.TrimSpace(refreshToken)
	if token == "" {
		return RefreshResult{}, common.NewAppError("UNAUTHORIZED", "invalid refresh token", httpStatusUnauthorized, nil)
	}

	hashed := hashRefreshToken(token)
	session, err := s.store.GetSession(ctx, hashed)
	if err != nil {
		return RefreshResult{}, common.NewAppError("UNAUTHORIZED", "invalid refresh token", httpStatusUnauthorized, nil)
	}
	if s.now().After(session.ExpiresAt) {
		_ = s.store.DeleteSession(ctx, hashed)
		return RefreshResult{}, common.NewAppError("UNAUTHORIZED", "invalid refresh token", httpStatusUnauthorized, nil)
	}

	accessToken, accessExpiry, err := s.signAccessToken(session.UserID)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("sign access token: %w", err)
	}

	newRefresh, refreshExpiry, err := s.createSession(ctx, session.UserID, session.UserAgent, session.IP)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("rotate session token: %w", err)
	}
	_ = s.store.DeleteSession(ctx, hashed)

	return RefreshResult{
		AccessToken:   accessToken,
		AccessExpiry:  accessExpiry,
		RefreshToken:  newRefresh,
		RefreshExpiry: refreshExpiry,
	}, nil
}

// Me fetches the current authenticated user.
func (s *Service) Me(ctx context.Context, userID string) (store.User, error) {
	if strings.TrimSpace(userID) == "" {
		return store.User{}, common.NewAppError("UNAUTHORIZED", "unauthorized", httpStatusUnauthorized, nil)
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return store.User{}, common.NewAppError("UNAUTHORIZED", "unauthorized", httpStatusUnauthorized, nil)
	}
	user.PasswordHash = ""
	return user, nil
}

// UpdateProfile applies the provided profile changes to the user record.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (store.User, error) {
	if strings.TrimSpace(userID) == "" {
		return store.User{}, common.NewAppError("UNAUTHORIZED", "unauthorized", httpStatusUnauthorized, nil)
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.User{}, common.NewAppError("NOT_FOUND", "user not found", httpStatusNotFound, err)
		}
		return store.User{}, fmt.Errorf("load user: %w", err)
	}

	if in.BirthDate != nil {
		birthDate := strings.TrimSpace(*in.BirthDate)
		if birthDate != "" {
			if _, err := time.Parse("2006-01-02", birthDate); err != nil {
				return store.User{}, common.NewAppError("VALIDATION_ERROR", "birthDate must be an ISO date (YYYY-MM-DD)", httpStatusBadRequest, nil)
			}
		}
		user.BirthDate = birthDate
	}
	if in.FirstName != nil {
		if strings.TrimSpace(*in.FirstName) == "" {
			return store.User{}, common.NewAppError("VALIDATION_ERROR", "firstName cannot be empty", httpStatusBadRequest, nil)
		}
		user.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		user.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Phone != nil {
		user.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Region != nil {
		user.Region = strings.TrimSpace(*in.Region)
	}
	if in.Comuna != nil {
		user.Comuna = strings.TrimSpace(*in.Comuna)
	}
	if in.Street != nil {
		user.Street = strings.TrimSpace(*in.Street)
	}
	user.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateUser(ctx, user, user.PasswordHash); err != nil {
		return store.User{}, fmt.Errorf("update user: %w", err)
	}
	user.PasswordHash = ""
	return user, nil
}

// ParseAccessToken validates an access token and returns the subject (user ID).
func (s *Service) ParseAccessToken(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", common.NewAppError("UNAUTHORIZED", "missing token", httpStatusUnauthorized, nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", httpStatusUnauthorized, err)
	}
	if s.validator.Algorithm != "" && algorithm != s.validator.Algorithm {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", httpStatusUnauthorized, fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret))
	if err != nil {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", httpStatusUnauthorized, err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", httpStatusUnauthorized, err)
	}
	return parsed.Subject(), nil
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		if alg == jwa.NoSignature {
			return "", errors.New("auth: token uses none algorithm")
		}
		if algorithm == "" {
			algorithm = alg
		} else if algorithm != alg {
			return "", fmt.Errorf("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}

func (s *Service) signAccessToken(userID string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)
	builder := jwt.NewBuilder().
		Subject(userID).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.clockSkew)).
		Expiration(expiresAt)
	token, err := builder.Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(s.signer, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

func (s *Service) createSession(ctx context.Context, userID, userAgent, ip string) (string, time.Time, error) {
	token, err := generateToken(48)
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := s.now().Add(s.refreshTTL)
	session := store.Session{
		UserID:    userID,
		UserAgent: strings.TrimSpace(userAgent),
		IP:        strings.TrimSpace(ip),
		ExpiresAt: expiresAt,
	}
	if err := s.store.CreateSession(ctx, hashRefreshToken(token), session, s.refreshTTL); err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func generateToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

const httpStatusBadRequest = 400
const httpStatusUnauthorized = 401
const httpStatusNotFound = 404
const httpStatusConflict = 409
