package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-testing"

func TestGenerateToken(t *testing.T) {
	t.Run("generate valid token", func(t *testing.T) {
		userID := int64(123)
		token, err := GenerateToken(userID, testSecret, 24)

		require.NoError(t, err)
		assert.NotEmpty(t, token)

		claims, err := ParseToken(token, testSecret)
		require.NoError(t, err)
		assert.Equal(t, userID, claims.UserID)
	})

	t.Run("different user IDs produce different tokens", func(t *testing.T) {
		token1, err := GenerateToken(1, testSecret, 24)
		require.NoError(t, err)

		token2, err := GenerateToken(2, testSecret, 24)
		require.NoError(t, err)

		assert.NotEqual(t, token1, token2)
	})

	t.Run("expiry honors expireHours", func(t *testing.T) {
		token, err := GenerateToken(1, testSecret, 2)
		require.NoError(t, err)

		claims, err := ParseToken(token, testSecret)
		require.NoError(t, err)

		expected := time.Now().Add(2 * time.Hour)
		assert.WithinDuration(t, expected, claims.ExpiresAt.Time, time.Minute)
	})
}

func TestParseToken(t *testing.T) {
	t.Run("wrong secret rejected", func(t *testing.T) {
		token, err := GenerateToken(1, testSecret, 24)
		require.NoError(t, err)

		_, err = ParseToken(token, "another-secret")
		assert.Error(t, err)
	})

	t.Run("garbage rejected", func(t *testing.T) {
		_, err := ParseToken("not.a.token", testSecret)
		assert.Error(t, err)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		token, err := GenerateToken(1, testSecret, -1)
		require.NoError(t, err)

		_, err = ParseToken(token, testSecret)
		assert.Error(t, err)
	})
}
