package auth

import (
	"testing"
	"time"

	"github.com/mwhitfield/aegis/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *TokenManager {
	return NewTokenManager(
		"access-secret-for-testing-only!!",
		"refresh-secret-for-testing-only!",
		"aegis-test",
		time.Hour, 7*24*time.Hour, 5*time.Minute,
	)
}

func TestTokenManager_GenerateAndValidate(t *testing.T) {
	tm := newTestManager()

	for _, tokenType := range []string{models.TokenTypeAccess, models.TokenTypeRefresh, models.TokenTypeTwoFactor} {
		signed, err := tm.Generate(tokenType, "user_1", "+15551234567", "session_1", "user")
		require.NoError(t, err)

		claims, err := tm.Validate(signed, tokenType)
		require.NoError(t, err)
		assert.Equal(t, tokenType, claims.Type)
		assert.Equal(t, "user_1", claims.Subject)
		assert.Equal(t, "+15551234567", claims.Identifier)
		assert.Equal(t, "session_1", claims.SessionID)
		assert.Equal(t, "user", claims.Role)
		assert.NotEmpty(t, claims.ID, "every token carries a unique jti")
	}
}

func TestTokenManager_Validate_RejectsWrongType(t *testing.T) {
	tm := newTestManager()

	refresh, err := tm.Generate(models.TokenTypeRefresh, "user_1", "", "session_1", "")
	require.NoError(t, err)
	pending, err := tm.Generate(models.TokenTypeTwoFactor, "user_1", "", "", "")
	require.NoError(t, err)

	// Refresh tokens are signed with a different secret entirely.
	_, err = tm.Validate(refresh, models.TokenTypeAccess)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)

	// Pending-2FA tokens share the access secret but not the audience.
	_, err = tm.Validate(pending, models.TokenTypeAccess)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
}

func TestTokenManager_Validate_RejectsForeignIssuer(t *testing.T) {
	tm := newTestManager()
	other := NewTokenManager(
		"access-secret-for-testing-only!!",
		"refresh-secret-for-testing-only!",
		"someone-else",
		time.Hour, 7*24*time.Hour, 5*time.Minute,
	)

	signed, err := other.Generate(models.TokenTypeAccess, "user_1", "", "", "")
	require.NoError(t, err)

	_, err = tm.Validate(signed, models.TokenTypeAccess)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
}

func TestTokenManager_Validate_ExpiredToken(t *testing.T) {
	tm := NewTokenManager(
		"access-secret-for-testing-only!!",
		"refresh-secret-for-testing-only!",
		"aegis-test",
		-time.Minute, 7*24*time.Hour, 5*time.Minute,
	)

	signed, err := tm.Generate(models.TokenTypeAccess, "user_1", "", "", "")
	require.NoError(t, err)

	_, err = tm.Validate(signed, models.TokenTypeAccess)
	assert.ErrorIs(t, err, models.ErrTokenExpired)
}

func TestTokenManager_Generate_UnknownType(t *testing.T) {
	tm := newTestManager()

	_, err := tm.Generate("session", "user_1", "", "", "")
	assert.Error(t, err)
}

func TestFingerprint_StableAndOpaque(t *testing.T) {
	a := Fingerprint("some.jwt.token")
	b := Fingerprint("some.jwt.token")
	c := Fingerprint("other.jwt.token")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64, "sha256 hex digest")
	assert.NotContains(t, a, ".")
}
