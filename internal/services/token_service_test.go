package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mwhitfield/aegis/internal/auth"
	"github.com/mwhitfield/aegis/internal/cache"
	"github.com/mwhitfield/aegis/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenManager() *auth.TokenManager {
	return auth.NewTokenManager(
		"access-secret-for-testing-only!!",
		"refresh-secret-for-testing-only!",
		"aegis-test",
		time.Hour,
		7*24*time.Hour,
		5*time.Minute,
	)
}

func newTestBlacklist(t *testing.T) Blacklist {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cache.NewFromClient(client, slog.Default())
}

func TestTokenService_IssuePair(t *testing.T) {
	service := NewTokenService(newTestTokenManager(), &MockSessionRepository{}, newTestBlacklist(t), 30*time.Second, slog.Default())

	pair, refreshID, err := service.IssuePair(context.Background(), "user_1", "user@example.com", "session_1", "user")
	require.NoError(t, err)

	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, int64(3600), pair.ExpiresIn)
	assert.Equal(t, int64(604800), pair.RefreshExpiresIn)
	assert.NotEmpty(t, refreshID)

	claims, err := service.ValidateAccessToken(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user_1", claims.Subject)
	assert.Equal(t, "session_1", claims.SessionID)
	assert.Equal(t, "user", claims.Role)
}

func TestTokenService_ValidateAccessToken_RejectsRefreshToken(t *testing.T) {
	service := NewTokenService(newTestTokenManager(), &MockSessionRepository{}, newTestBlacklist(t), 30*time.Second, slog.Default())

	pair, _, err := service.IssuePair(context.Background(), "user_1", "user@example.com", "session_1", "user")
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(context.Background(), pair.RefreshToken)
	assert.Error(t, err, "a refresh token must not pass access validation")
}

func TestTokenService_ValidateAccessToken_BlacklistUnavailableFailsClosed(t *testing.T) {
	deny := &MockBlacklist{
		IsTokenBlacklistedFunc: func(ctx context.Context, fingerprint string) (bool, error) {
			return false, context.DeadlineExceeded
		},
	}
	service := NewTokenService(newTestTokenManager(), &MockSessionRepository{}, deny, 30*time.Second, slog.Default())

	pair, _, err := service.IssuePair(context.Background(), "user_1", "user@example.com", "session_1", "user")
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, models.ErrServiceUnavailable)
}

func TestTokenService_Refresh_RotatesToken(t *testing.T) {
	session := &models.Session{
		ID:        "session_1",
		UserID:    "user_1",
		IsActive:  true,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	sessions := &MockSessionRepository{
		GetByIDFunc: func(ctx context.Context, sessionID string) (*models.Session, error) {
			return session, nil
		},
		UpdateRefreshTokenFunc: func(ctx context.Context, sessionID, refreshTokenID string) error {
			session.RefreshTokenID = refreshTokenID
			return nil
		},
	}
	service := NewTokenService(newTestTokenManager(), sessions, newTestBlacklist(t), 30*time.Second, slog.Default())

	pair, refreshID, err := service.IssuePair(context.Background(), "user_1", "user@example.com", "session_1", "user")
	require.NoError(t, err)
	session.RefreshTokenID = refreshID

	rotated, err := service.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
	assert.NotEqual(t, refreshID, session.RefreshTokenID, "session must be rebound to the new refresh jti")

	// The rotated-out token is dead: it is blacklisted, and even past the
	// blacklist it no longer matches the session binding.
	_, err = service.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
}

func TestTokenService_Refresh_ReuseRevokesSession(t *testing.T) {
	revoked := false
	session := &models.Session{
		ID:             "session_1",
		UserID:         "user_1",
		RefreshTokenID: "some-other-jti",
		IsActive:       true,
		ExpiresAt:      time.Now().Add(24 * time.Hour),
	}
	sessions := &MockSessionRepository{
		GetByIDFunc: func(ctx context.Context, sessionID string) (*models.Session, error) {
			return session, nil
		},
		RevokeFunc: func(ctx context.Context, sessionID, reason string) error {
			revoked = true
			return nil
		},
	}
	service := NewTokenService(newTestTokenManager(), sessions, newTestBlacklist(t), 30*time.Second, slog.Default())

	pair, _, err := service.IssuePair(context.Background(), "user_1", "user@example.com", "session_1", "user")
	require.NoError(t, err)

	_, err = service.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
	assert.True(t, revoked, "session must be revoked on refresh token reuse")
}

func TestTokenService_Refresh_RevokedSession(t *testing.T) {
	sessions := &MockSessionRepository{
		GetByIDFunc: func(ctx context.Context, sessionID string) (*models.Session, error) {
			return &models.Session{
				ID:        sessionID,
				IsActive:  false,
				ExpiresAt: time.Now().Add(24 * time.Hour),
			}, nil
		},
	}
	service := NewTokenService(newTestTokenManager(), sessions, newTestBlacklist(t), 30*time.Second, slog.Default())

	pair, _, err := service.IssuePair(context.Background(), "user_1", "user@example.com", "session_1", "user")
	require.NoError(t, err)

	_, err = service.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, models.ErrSessionRevoked)
}

func TestTokenService_Revoke_KillsAccessToken(t *testing.T) {
	service := NewTokenService(newTestTokenManager(), &MockSessionRepository{}, newTestBlacklist(t), 30*time.Second, slog.Default())

	pair, _, err := service.IssuePair(context.Background(), "user_1", "user@example.com", "session_1", "user")
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(context.Background(), pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, service.Revoke(context.Background(), pair.AccessToken, models.TokenTypeAccess))

	_, err = service.ValidateAccessToken(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
}

func TestTokenService_Revoke_InvalidTokenIsSilent(t *testing.T) {
	service := NewTokenService(newTestTokenManager(), &MockSessionRepository{}, newTestBlacklist(t), 30*time.Second, slog.Default())

	assert.NoError(t, service.Revoke(context.Background(), "not-a-token", models.TokenTypeAccess))
}

func TestTokenService_TwoFactorToken_RoundTrip(t *testing.T) {
	service := NewTokenService(newTestTokenManager(), &MockSessionRepository{}, newTestBlacklist(t), 30*time.Second, slog.Default())

	token, err := service.IssueTwoFactorToken(context.Background(), "user_1", "user@example.com")
	require.NoError(t, err)

	claims, err := service.ValidateTwoFactorToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user_1", claims.Subject)
	assert.Equal(t, models.TokenTypeTwoFactor, claims.Type)

	// A pending-2FA token never passes as an access token.
	_, err = service.ValidateAccessToken(context.Background(), token)
	assert.Error(t, err)
}

func TestTokenService_Introspect(t *testing.T) {
	service := NewTokenService(newTestTokenManager(), &MockSessionRepository{}, newTestBlacklist(t), 30*time.Second, slog.Default())

	pair, _, err := service.IssuePair(context.Background(), "user_1", "user@example.com", "session_1", "user")
	require.NoError(t, err)

	result := service.Introspect(context.Background(), pair.AccessToken, models.TokenTypeAccess)
	assert.True(t, result.Valid)
	assert.Equal(t, "user_1", result.UserID)
	assert.Equal(t, "session_1", result.SessionID)

	result = service.Introspect(context.Background(), "garbage", models.TokenTypeAccess)
	assert.False(t, result.Valid)
}
