package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"authapi/internal/model"
)

// PurposePasswordReset tags tokens that may only be spent on a password reset.
const PurposePasswordReset = "password_reset"

var (
	// ErrTokenExpired is returned when a token's exp claim has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers every other verification failure.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenInvalidPurpose is returned when a verified token is not a reset token.
	ErrTokenInvalidPurpose = errors.New("invalid token purpose")
)

// Claims are carried by access and refresh tokens.
type Claims struct {
	UserID string     `json:"userId"`
	Email  string     `json:"email"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Identity converts verified claims into the caller identity.
func (c *Claims) Identity() *Identity {
	id := &Identity{
		UserID: uuid.MustParse(c.UserID),
		Email:  c.Email,
		Role:   c.Role,
	}
	if c.IssuedAt != nil {
		id.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
	}
	return id
}

// ResetClaims are carried by password reset tokens.
type ResetClaims struct {
	Email   string     `json:"email"`
	Role    model.Role `json:"role"`
	Purpose string     `json:"purpose"`
	jwt.RegisteredClaims
}

// Config holds signing keys and lifetimes for the three token classes.
type Config struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
	ResetSecret   string
	ResetTTL      time.Duration
}

// JWTService handles JWT token generation and validation.
type JWTService struct {
	access  keyPair
	refresh keyPair
	reset   keyPair
	now     func() time.Time
}

type keyPair struct {
	secret []byte
	ttl    time.Duration
}

// Option customises a JWTService.
type Option func(*JWTService)

// WithClock overrides the clock used for iat and exp.
func WithClock(now func() time.Time) Option {
	return func(s *JWTService) { s.now = now }
}

// NewJWTService validates cfg and returns a ready service. A missing secret is an error
// so misconfiguration surfaces at startup rather than on the first request.
func NewJWTService(cfg Config, opts ...Option) (*JWTService, error) {
	if cfg.AccessSecret == "" {
		return nil, errors.New("access token secret is required")
	}
	if cfg.RefreshSecret == "" {
		return nil, errors.New("refresh token secret is required")
	}
	if cfg.ResetSecret == "" {
		cfg.ResetSecret = cfg.AccessSecret
	}
	for name, ttl := range map[string]time.Duration{
		"access": cfg.AccessTTL, "refresh": cfg.RefreshTTL, "reset": cfg.ResetTTL,
	} {
		if ttl <= 0 {
			return nil, fmt.Errorf("%s token ttl must be positive", name)
		}
	}

	s := &JWTService{
		access:  keyPair{secret: []byte(cfg.AccessSecret), ttl: cfg.AccessTTL},
		refresh: keyPair{secret: []byte(cfg.RefreshSecret), ttl: cfg.RefreshTTL},
		reset:   keyPair{secret: []byte(cfg.ResetSecret), ttl: cfg.ResetTTL},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AccessTTL returns the lifetime of access tokens.
func (s *JWTService) AccessTTL() time.Duration { return s.access.ttl }

// RefreshTTL returns the lifetime of refresh tokens.
func (s *JWTService) RefreshTTL() time.Duration { return s.refresh.ttl }

// IssueAccessToken generates a new access token for the user.
func (s *JWTService) IssueAccessToken(userID uuid.UUID, email string, role model.Role) (string, error) {
	return s.sign(s.access, s.sessionClaims(userID, email, role, s.access.ttl))
}

// IssueRefreshToken generates a new refresh token for the user.
func (s *JWTService) IssueRefreshToken(userID uuid.UUID, email string, role model.Role) (string, error) {
	claims := s.sessionClaims(userID, email, role, s.refresh.ttl)
	claims.ID = uuid.NewString()
	return s.sign(s.refresh, claims)
}

// IssueResetToken generates a short-lived token that authorises one password change.
func (s *JWTService) IssueResetToken(email string, role model.Role) (string, error) {
	now := s.now()
	claims := &ResetClaims{
		Email:   email,
		Role:    role,
		Purpose: PurposePasswordReset,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.reset.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return s.sign(s.reset, claims)
}

// VerifyAccessToken validates an access token and returns its claims.
func (s *JWTService) VerifyAccessToken(token string) (*Claims, error) {
	return s.verifySession(s.access, token)
}

// VerifyRefreshToken validates a refresh token and returns its claims.
func (s *JWTService) VerifyRefreshToken(token string) (*Claims, error) {
	return s.verifySession(s.refresh, token)
}

// VerifyResetToken validates a reset token, including its purpose claim.
func (s *JWTService) VerifyResetToken(token string) (*ResetClaims, error) {
	claims := &ResetClaims{}
	if err := s.parse(s.reset, token, claims); err != nil {
		return nil, err
	}
	if claims.Purpose != PurposePasswordReset {
		return nil, ErrTokenInvalidPurpose
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: missing email", ErrTokenInvalid)
	}
	return claims, nil
}

func (s *JWTService) sessionClaims(userID uuid.UUID, email string, role model.Role, ttl time.Duration) *Claims {
	now := s.now()
	return &Claims{
		UserID: userID.String(),
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
}

func (s *JWTService) sign(k keyPair, claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(k.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *JWTService) verifySession(k keyPair, token string) (*Claims, error) {
	claims := &Claims{}
	if err := s.parse(k, token, claims); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, fmt.Errorf("%w: missing or malformed userId", ErrTokenInvalid)
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, claims.Role)
	}
	return claims, nil
}

func (s *JWTService) parse(k keyPair, token string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return k.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return ErrTokenInvalid
	}
	return nil
}
