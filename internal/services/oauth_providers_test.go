package services

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnverifiedEmailClaim(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "apple_1",
		"email": "user@example.com",
	})
	signed, err := token.SignedString([]byte("signature-is-not-checked-here"))
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", unverifiedEmailClaim(signed))
}

func TestUnverifiedEmailClaim_Malformed(t *testing.T) {
	assert.Empty(t, unverifiedEmailClaim("not-a-jwt"))
	assert.Empty(t, unverifiedEmailClaim(""))
}
