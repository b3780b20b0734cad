// Package auth verifies the signed identity tokens presented by dashboard
// users and decides who may perform administrative operations.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrNoSecret     = errors.New("token signing secret is not configured")
)

// Identity is the authenticated caller of one HTTP request.
type Identity struct {
	UserID string
	// CloudToken is forwarded to the storage cluster on uploads.
	CloudToken string
	Admin      bool
	ExpiresAt  time.Time
}

// Claims is the token payload. The field names are shared with tokens
// issued by the login service.
type Claims struct {
	CloudToken string `json:"cloudToken"`
	UserID     string `json:"userId"`
	jwt.RegisteredClaims
}

type TokenConfig struct {
	Secret    string
	AdminUser string
	TTL       time.Duration
}

// TokenManager issues and validates HS256 identity tokens.
type TokenManager struct {
	secret    []byte
	adminUser string
	ttl       time.Duration
	now       func() time.Time
}

func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if cfg.Secret == "" {
		return nil, ErrNoSecret
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &TokenManager{
		secret:    []byte(cfg.Secret),
		adminUser: cfg.AdminUser,
		ttl:       cfg.TTL,
		now:       time.Now,
	}, nil
}

// GenerateToken signs a token for userID carrying cloudToken.
func (tm *TokenManager) GenerateToken(userID, cloudToken string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}
	now := tm.now()
	claims := Claims{
		CloudToken: cloudToken,
		UserID:     userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies raw and returns the identity it carries.
func (tm *TokenManager) ValidateToken(raw string) (*Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing userId", ErrInvalidToken)
	}

	identity := &Identity{
		UserID:     claims.UserID,
		CloudToken: claims.CloudToken,
		Admin:      tm.adminUser != "" && claims.UserID == tm.adminUser,
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
