package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerifyToken(t *testing.T) {
	manager := NewJWTManager("test-secret", 1, 7)

	tokenString, err := manager.GenerateToken(42, "alice@x.com")
	require.NoError(t, err)

	claims, err := manager.VerifyToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "alice@x.com", claims.Email)
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	manager := NewJWTManager("test-secret", 1, 7)
	other := NewJWTManager("another-secret", 1, 7)

	tokenString, err := manager.GenerateToken(1, "bob@x.com")
	require.NoError(t, err)

	_, err = other.VerifyToken(tokenString)
	require.Error(t, err)
}

func TestVerifyGarbageToken(t *testing.T) {
	manager := NewJWTManager("test-secret", 1, 7)
	_, err := manager.VerifyToken("not.a.jwt")
	require.Error(t, err)
}
