package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mwhitfield/aegis/internal/models"
)

// TokenManager handles JWT generation and validation. Access and refresh
// tokens are signed with distinct secrets and carry distinct audiences, so
// a token presented for the wrong purpose fails signature verification
// before the type claim is ever consulted.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	tempExpiry    time.Duration
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(accessSecret, refreshSecret, issuer string, accessExpiry, refreshExpiry, tempExpiry time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		issuer:        issuer,
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		tempExpiry:    tempExpiry,
	}
}

// AccessExpiry returns the configured access token lifetime.
func (tm *TokenManager) AccessExpiry() time.Duration { return tm.accessExpiry }

// RefreshExpiry returns the configured refresh token lifetime.
func (tm *TokenManager) RefreshExpiry() time.Duration { return tm.refreshExpiry }

func (tm *TokenManager) keyAndAudience(tokenType string) ([]byte, string, time.Duration, error) {
	switch tokenType {
	case models.TokenTypeAccess:
		return tm.accessSecret, models.AudienceAccess, tm.accessExpiry, nil
	case models.TokenTypeRefresh:
		return tm.refreshSecret, models.AudienceRefresh, tm.refreshExpiry, nil
	case models.TokenTypeTwoFactor:
		// Pending-2FA tokens share the access secret but live in their own
		// audience namespace, so they are never accepted as access tokens.
		return tm.accessSecret, models.AudienceTwoFactor, tm.tempExpiry, nil
	default:
		return nil, "", 0, fmt.Errorf("unknown token type: %s", tokenType)
	}
}

// Generate creates a signed token of the given type.
func (tm *TokenManager) Generate(tokenType, userID, identifier, sessionID, role string) (string, error) {
	key, audience, expiry, err := tm.keyAndAudience(tokenType)
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := &models.TokenClaims{
		Type:       tokenType,
		Identifier: identifier,
		SessionID:  sessionID,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   userID,
			Issuer:    tm.issuer,
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}

	return signed, nil
}

// Validate verifies a token against the key namespace of the expected type
// and returns its claims. A structurally valid token of the wrong type is
// a terminal validation failure.
func (tm *TokenManager) Validate(tokenString, expectedType string) (*models.TokenClaims, error) {
	key, audience, _, err := tm.keyAndAudience(expectedType)
	if err != nil {
		return nil, err
	}

	claims := &models.TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	}, jwt.WithIssuer(tm.issuer), jwt.WithAudience(audience))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", models.ErrTokenInvalid, err)
	}

	if !token.Valid || claims.Type != expectedType {
		return nil, models.ErrTokenInvalid
	}

	return claims, nil
}

// Fingerprint returns the blacklist key for a token. The raw token never
// goes into the cache.
func Fingerprint(tokenString string) string {
	sum := sha256.Sum256([]byte(tokenString))
	return hex.EncodeToString(sum[:])
}
