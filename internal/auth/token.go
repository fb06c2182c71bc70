package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hongminglow/medimate-be/internal/models"
)

// ErrInvalidToken is returned for every verification failure: bad signature,
// expiry, malformed input, or a token of the wrong kind.
var ErrInvalidToken = errors.New("invalid token")

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

// AccessClaims authorise requests.
type AccessClaims struct {
	UserID string      `json:"userId"`
	Role   models.Role `json:"role"`
	Type   string      `json:"typ"`
	jwt.RegisteredClaims
}

// RefreshClaims only carry identity; role is re-read from storage on refresh.
type RefreshClaims struct {
	UserID string `json:"userId"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies the signed access and refresh tokens.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// TokenConfig groups the inputs to NewTokenManager.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// NewTokenManager creates a manager. An empty refresh secret falls back to the access secret.
func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if cfg.AccessSecret == "" {
		return nil, errors.New("auth: access secret is required")
	}
	refresh := cfg.RefreshSecret
	if refresh == "" {
		refresh = cfg.AccessSecret
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &TokenManager{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(refresh),
		issuer:        cfg.Issuer,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}, nil
}

// AccessTTL is used for cookie Max-Age.
func (t *TokenManager) AccessTTL() time.Duration { return t.accessTTL }

// RefreshTTL is used for cookie Max-Age.
func (t *TokenManager) RefreshTTL() time.Duration { return t.refreshTTL }

func (t *TokenManager) registered(userID string, ttl time.Duration) jwt.RegisteredClaims {
	now := t.now()
	return jwt.RegisteredClaims{
		Issuer:    t.issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

// IssueAccess signs an access token for the user and role.
func (t *TokenManager) IssueAccess(userID string, role models.Role) (string, error) {
	claims := AccessClaims{
		UserID:           userID,
		Role:             role,
		Type:             typeAccess,
		RegisteredClaims: t.registered(userID, t.accessTTL),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.accessSecret)
}

// IssueRefresh signs a refresh token for the user.
func (t *TokenManager) IssueRefresh(userID string) (string, error) {
	claims := RefreshClaims{
		UserID:           userID,
		Type:             typeRefresh,
		RegisteredClaims: t.registered(userID, t.refreshTTL),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.refreshSecret)
}

func (t *TokenManager) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	return opts
}

// VerifyAccess validates signature, expiry and kind of an access token.
func (t *TokenManager) VerifyAccess(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.accessSecret, nil
	}, t.parserOptions()...)
	if err != nil || claims.Type != typeAccess || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefresh validates signature, expiry and kind of a refresh token.
func (t *TokenManager) VerifyRefresh(raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.refreshSecret, nil
	}, t.parserOptions()...)
	if err != nil || claims.Type != typeRefresh || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
