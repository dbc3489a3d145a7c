package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAccessSecret  = "access-secret-32-chars-long!!!!!"
	testRefreshSecret = "refresh-secret-32-chars-long!!!!"
)

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	mgr := NewJWTManager(testAccessSecret, testRefreshSecret, 15*time.Minute, 7*24*time.Hour)

	t.Run("access token", func(t *testing.T) {
		pair, tokenID, err := mgr.GenerateTokenPair("user-123", "ana@example.com")
		require.NoError(t, err)
		assert.NotEmpty(t, tokenID)
		assert.Equal(t, int64(900), pair.ExpiresIn)
		assert.Equal(t, "Bearer", pair.TokenType)

		claims, err := mgr.ValidateAccessToken(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "user-123", claims.UserID)
		assert.Equal(t, "ana@example.com", claims.Email)
		assert.Equal(t, "user-123", claims.Subject)
	})

	t.Run("refresh token carries the stored id", func(t *testing.T) {
		pair, tokenID, err := mgr.GenerateTokenPair("user-456", "rui@example.com")
		require.NoError(t, err)

		claims, err := mgr.ValidateRefreshToken(pair.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, "user-456", claims.UserID)
		assert.Equal(t, tokenID, claims.TokenID)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := mgr.ValidateAccessToken("invalid-token")
		assert.Error(t, err)
	})

	t.Run("tokens are not interchangeable", func(t *testing.T) {
		pair, _, err := mgr.GenerateTokenPair("user-789", "x@example.com")
		require.NoError(t, err)

		_, err = mgr.ValidateRefreshToken(pair.AccessToken)
		assert.Error(t, err)
		_, err = mgr.ValidateAccessToken(pair.RefreshToken)
		assert.Error(t, err)
	})

	t.Run("same secret still separated by audience", func(t *testing.T) {
		shared := NewJWTManager(testAccessSecret, testAccessSecret, time.Minute, time.Hour)
		pair, _, err := shared.GenerateTokenPair("user-1", "x@example.com")
		require.NoError(t, err)

		_, err = shared.ValidateAccessToken(pair.RefreshToken)
		assert.ErrorIs(t, err, jwt.ErrTokenInvalidAudience)
	})
}

func TestJWTManager_Expiry(t *testing.T) {
	mgr := NewJWTManager(testAccessSecret, testRefreshSecret, 15*time.Minute, time.Hour)
	issued := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mgr.now = func() time.Time { return issued }

	pair, _, err := mgr.GenerateTokenPair("user-exp", "exp@example.com")
	require.NoError(t, err)

	mgr.now = func() time.Time { return issued.Add(14 * time.Minute) }
	_, err = mgr.ValidateAccessToken(pair.AccessToken)
	assert.NoError(t, err)

	mgr.now = func() time.Time { return issued.Add(16 * time.Minute) }
	_, err = mgr.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = mgr.ValidateRefreshToken(pair.RefreshToken)
	assert.NoError(t, err, "refresh outlives access")
}

func TestJWTManager_RejectsOtherAlgorithms(t *testing.T) {
	mgr := NewJWTManager(testAccessSecret, testRefreshSecret, time.Minute, time.Hour)

	claims := AccessClaims{UserID: "u", RegisteredClaims: mgr.registered("u", audienceAccess, time.Minute)}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testAccessSecret))
	require.NoError(t, err)

	_, err = mgr.ValidateAccessToken(tok)
	assert.Error(t, err)
}
