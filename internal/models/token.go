package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the "type" claim. Access and refresh tokens are
// additionally signed with distinct secrets so a token presented for the
// wrong purpose fails signature verification, not just the type check.
const (
	TokenTypeAccess    = "access"
	TokenTypeRefresh   = "refresh"
	TokenTypeTwoFactor = "2fa_pending"
)

// Audience values, one namespace per token type.
const (
	AudienceAccess    = "aegis:access"
	AudienceRefresh   = "aegis:refresh"
	AudienceTwoFactor = "aegis:2fa"
)

// TokenClaims is the payload carried inside signed tokens.
// Subject is the user id, ID is the unique token id (jti).
type TokenClaims struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	Role       string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	ExpiresIn        int64  `json:"expiresIn"`        // access token lifetime in seconds
	RefreshExpiresIn int64  `json:"refreshExpiresIn"` // refresh token lifetime in seconds
	TokenType        string `json:"tokenType"`
}

// TokenValidation is the introspection result for a presented token.
type TokenValidation struct {
	Valid      bool      `json:"valid"`
	UserID     string    `json:"userId,omitempty"`
	Identifier string    `json:"identifier,omitempty"`
	SessionID  string    `json:"sessionId,omitempty"`
	TokenType  string    `json:"tokenType,omitempty"`
	ExpiresAt  time.Time `json:"expiresAt,omitempty"`
}
