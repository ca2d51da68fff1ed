package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService(t *testing.T, accessTTL, refreshTTL time.Duration) TokenService {
	t.Helper()

	svc, err := NewTokenService(accessTTL, refreshTTL, "lead-engine", "lead-engine-clients", "test-secret-key-for-unit-tests")
	require.NoError(t, err)
	return svc
}

func TestNewTokenService(t *testing.T) {
	t.Run("RequiresSecret", func(t *testing.T) {
		_, err := NewTokenService(time.Hour, 24*time.Hour, "iss", "aud", "")
		assert.Error(t, err)
	})

	t.Run("Valid", func(t *testing.T) {
		svc, err := NewTokenService(time.Hour, 24*time.Hour, "iss", "aud", "secret")
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})
}

func TestGenerateAndValidateTokens(t *testing.T) {
	svc := newTestTokenService(t, time.Hour, 24*time.Hour)
	orgID := uuid.NewString()

	access, refresh, err := svc.GenerateTokens(42, orgID)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	assert.NotEqual(t, access, refresh)

	t.Run("AccessClaims", func(t *testing.T) {
		claims, err := svc.ValidateToken(access)
		require.NoError(t, err)
		assert.Equal(t, int64(42), claims.UserID)
		assert.Equal(t, orgID, claims.OrganizationID)
		assert.Equal(t, "access", claims.TokenType)
		assert.NotEmpty(t, claims.TokenID)
		assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
	})

	t.Run("RefreshClaims", func(t *testing.T) {
		claims, err := svc.ValidateToken(refresh)
		require.NoError(t, err)
		assert.Equal(t, "refresh", claims.TokenType)
	})

	t.Run("UniqueTokenIDs", func(t *testing.T) {
		accessClaims, err := svc.ValidateToken(access)
		require.NoError(t, err)
		refreshClaims, err := svc.ValidateToken(refresh)
		require.NoError(t, err)
		assert.NotEqual(t, accessClaims.TokenID, refreshClaims.TokenID)
	})
}

func TestValidateTokenRejections(t *testing.T) {
	svc := newTestTokenService(t, time.Hour, 24*time.Hour)

	t.Run("Garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-jwt")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other, err := NewTokenService(time.Hour, 24*time.Hour, "lead-engine", "lead-engine-clients", "a-different-secret")
		require.NoError(t, err)

		access, _, err := other.GenerateTokens(42, uuid.NewString())
		require.NoError(t, err)

		_, err = svc.ValidateToken(access)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("Expired", func(t *testing.T) {
		expired := newTestTokenService(t, -time.Minute, -time.Minute)
		access, _, err := expired.GenerateTokens(42, uuid.NewString())
		require.NoError(t, err)

		_, err = expired.ValidateToken(access)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})
}

func TestRefreshToken(t *testing.T) {
	svc := newTestTokenService(t, time.Hour, 24*time.Hour)
	orgID := uuid.NewString()

	access, refresh, err := svc.GenerateTokens(42, orgID)
	require.NoError(t, err)

	t.Run("IssuesNewPair", func(t *testing.T) {
		newAccess, newRefresh, err := svc.RefreshToken(refresh)
		require.NoError(t, err)
		require.NotEmpty(t, newAccess)
		require.NotEmpty(t, newRefresh)

		claims, err := svc.ValidateToken(newAccess)
		require.NoError(t, err)
		assert.Equal(t, int64(42), claims.UserID)
		assert.Equal(t, orgID, claims.OrganizationID)
		assert.Equal(t, "access", claims.TokenType)
	})

	t.Run("AccessTokenIsNotARefreshToken", func(t *testing.T) {
		_, _, err := svc.RefreshToken(access)
		assert.Error(t, err)
	})

	t.Run("GarbageRefreshToken", func(t *testing.T) {
		_, _, err := svc.RefreshToken("not-a-jwt")
		assert.Error(t, err)
	})
}
