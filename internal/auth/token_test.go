package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/medimate-be/internal/models"
)

func newManager(t *testing.T, refreshSecret string) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: refreshSecret,
		Issuer:        "medimate-test",
		AccessTTL:     time.Hour,
		RefreshTTL:    7 * 24 * time.Hour,
	})
	require.NoError(t, err)
	return m
}

func TestNewTokenManager_RequiresSecret(t *testing.T) {
	_, err := NewTokenManager(TokenConfig{})
	assert.Error(t, err)
}

func TestAccessToken_RoundTrip(t *testing.T) {
	m := newManager(t, "refresh-secret")

	raw, err := m.IssueAccess("u-1", models.RoleDoctor)
	require.NoError(t, err)

	claims, err := m.VerifyAccess(raw)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, models.RoleDoctor, claims.Role)
	assert.Equal(t, "medimate-test", claims.Issuer)

	exp := claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time)
	assert.Equal(t, time.Hour, exp)
}

func TestRefreshToken_RoundTrip(t *testing.T) {
	m := newManager(t, "refresh-secret")

	raw, err := m.IssueRefresh("u-1")
	require.NoError(t, err)

	claims, err := m.VerifyRefresh(raw)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, 7*24*time.Hour, claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time))
}

func TestTokens_KindsAreNotInterchangeable(t *testing.T) {
	// Shared secret so only the typ claim tells them apart.
	m := newManager(t, "")

	access, err := m.IssueAccess("u-1", models.RolePatient)
	require.NoError(t, err)
	refresh, err := m.IssueRefresh("u-1")
	require.NoError(t, err)

	_, err = m.VerifyRefresh(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = m.VerifyAccess(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Expired(t *testing.T) {
	m := newManager(t, "refresh-secret")
	issued := time.Now().Add(-2 * time.Hour)
	m.now = func() time.Time { return issued }

	raw, err := m.IssueAccess("u-1", models.RolePatient)
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.VerifyAccess(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_WrongSecret(t *testing.T) {
	m := newManager(t, "refresh-secret")
	other, err := NewTokenManager(TokenConfig{AccessSecret: "other", Issuer: "medimate-test"})
	require.NoError(t, err)

	raw, err := other.IssueAccess("u-1", models.RolePatient)
	require.NoError(t, err)

	_, err = m.VerifyAccess(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	m := newManager(t, "refresh-secret")
	claims := AccessClaims{
		UserID:           "u-1",
		Role:             models.RoleAdmin,
		Type:             typeAccess,
		RegisteredClaims: m.registered("u-1", time.Hour),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("access-secret"))
	require.NoError(t, err)

	_, err = m.VerifyAccess(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Malformed(t *testing.T) {
	m := newManager(t, "refresh-secret")
	for _, raw := range []string{"", "abc", "a.b.c"} {
		_, err := m.VerifyAccess(raw)
		assert.ErrorIs(t, err, ErrInvalidToken, raw)
		_, err = m.VerifyRefresh(raw)
		assert.ErrorIs(t, err, ErrInvalidToken, raw)
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()
	_, ok := IdentityFromContext(ctx)
	assert.False(t, ok)

	ctx = WithIdentity(ctx, Identity{UserID: "u-1", Role: models.RoleCaregiver})
	id, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u-1", id.UserID)
	assert.Equal(t, models.RoleCaregiver, id.Role)
}
