package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashRoundtrip(t *testing.T) {
	ph := NewPasswordHasher()

	hash, err := ph.HashPassword("korrekt pferd batterie klammer")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")

	ok, err := ph.VerifyPassword("korrekt pferd batterie klammer", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ph.VerifyPassword("falsches passwort", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	ph := NewPasswordHasher()
	_, err := ph.VerifyPassword("egal", "not-a-valid-hash")
	assert.Error(t, err)
}

func TestJWTRoundtrip(t *testing.T) {
	h := NewJWTHandler("test-secret", time.Hour)
	userID := uuid.New()

	token, err := h.GenerateAccessToken(userID, "installer1", "installer")
	require.NoError(t, err)

	claims, err := h.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "installer1", claims.Username)
	assert.Equal(t, "installer", claims.Role)
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	h := NewJWTHandler("secret-a", time.Hour)
	token, err := h.GenerateAccessToken(uuid.New(), "x", "operator")
	require.NoError(t, err)

	other := NewJWTHandler("secret-b", time.Hour)
	_, err = other.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestJWTRejectsExpiredToken(t *testing.T) {
	h := NewJWTHandler("test-secret", -time.Minute)
	token, err := h.GenerateAccessToken(uuid.New(), "x", "operator")
	require.NoError(t, err)

	_, err = h.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestRolePermissions(t *testing.T) {
	a := &AuthService{}
	assert.Equal(t, []Permission{PermOperator}, a.roleToPermissions("operator"))
	assert.Equal(t, []Permission{PermOperator, PermInstaller}, a.roleToPermissions("installer"))
	assert.Equal(t, []Permission{PermOperator, PermInstaller, PermAdmin}, a.roleToPermissions("admin"))
	// Unbekannte Rollen fallen auf Operator zurück.
	assert.Equal(t, []Permission{PermOperator}, a.roleToPermissions(""))
}
