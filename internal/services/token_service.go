package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mwhitfield/aegis/internal/auth"
	"github.com/mwhitfield/aegis/internal/models"
)

// SessionRepository is the persistence contract the token service needs:
// refresh rotation is bound to session state.
type SessionRepository interface {
	Upsert(ctx context.Context, s *models.Session) (*models.Session, error)
	GetByID(ctx context.Context, sessionID string) (*models.Session, error)
	UpdateRefreshToken(ctx context.Context, sessionID, refreshTokenID string) error
	Touch(ctx context.Context, sessionID string) error
	Revoke(ctx context.Context, sessionID, reason string) error
	RevokeAll(ctx context.Context, userID, exceptSessionID, reason string) (int64, error)
	ListActive(ctx context.Context, userID string) ([]*models.Session, error)
	DeleteStale(ctx context.Context, retention time.Duration) (int64, error)
}

// Blacklist is the distributed deny-list for revoked tokens.
type Blacklist interface {
	BlacklistToken(ctx context.Context, fingerprint string, ttl time.Duration) error
	IsTokenBlacklisted(ctx context.Context, fingerprint string) (bool, error)
}

// TokenService issues, validates, rotates, and revokes tokens. The
// blacklist is consulted before signature verification so a revoked token
// is dead even while cryptographically valid, and a blacklist outage
// fails closed.
type TokenService struct {
	tokens   *auth.TokenManager
	sessions SessionRepository
	deny     Blacklist
	skew     time.Duration
	logger   *slog.Logger
}

// NewTokenService creates a new TokenService. skew pads blacklist TTLs
// against clock drift between instances.
func NewTokenService(tokens *auth.TokenManager, sessions SessionRepository, deny Blacklist, skew time.Duration, log *slog.Logger) *TokenService {
	return &TokenService{
		tokens:   tokens,
		sessions: sessions,
		deny:     deny,
		skew:     skew,
		logger:   log,
	}
}

// IssuePair mints an access/refresh pair for a session. Returns the pair
// and the refresh token's jti for binding to the session row.
func (s *TokenService) IssuePair(ctx context.Context, userID, identifier, sessionID, role string) (*models.TokenPair, string, error) {
	accessToken, err := s.tokens.Generate(models.TokenTypeAccess, userID, identifier, sessionID, role)
	if err != nil {
		return nil, "", err
	}

	refreshToken, err := s.tokens.Generate(models.TokenTypeRefresh, userID, identifier, sessionID, role)
	if err != nil {
		return nil, "", err
	}

	refreshClaims, err := s.tokens.Validate(refreshToken, models.TokenTypeRefresh)
	if err != nil {
		return nil, "", err
	}

	pair := &models.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		ExpiresIn:        int64(s.tokens.AccessExpiry().Seconds()),
		RefreshExpiresIn: int64(s.tokens.RefreshExpiry().Seconds()),
		TokenType:        "Bearer",
	}

	return pair, refreshClaims.ID, nil
}

// IssueTwoFactorToken mints the short-lived token that carries a login
// between OTP verification and the second factor.
func (s *TokenService) IssueTwoFactorToken(ctx context.Context, userID, identifier string) (string, error) {
	return s.tokens.Generate(models.TokenTypeTwoFactor, userID, identifier, "", "")
}

// ValidateTwoFactorToken verifies a pending-2FA token.
func (s *TokenService) ValidateTwoFactorToken(ctx context.Context, token string) (*models.TokenClaims, error) {
	blocked, err := s.deny.IsTokenBlacklisted(ctx, auth.Fingerprint(token))
	if err != nil {
		return nil, models.ErrServiceUnavailable
	}
	if blocked {
		return nil, models.ErrTokenInvalid
	}

	return s.tokens.Validate(token, models.TokenTypeTwoFactor)
}

// ValidateAccessToken verifies an access token: blacklist first, then
// signature, audience, and type.
func (s *TokenService) ValidateAccessToken(ctx context.Context, token string) (*models.TokenClaims, error) {
	blocked, err := s.deny.IsTokenBlacklisted(ctx, auth.Fingerprint(token))
	if err != nil {
		s.logger.Error("blacklist unavailable, denying token", slog.String("error", err.Error()))
		return nil, models.ErrServiceUnavailable
	}
	if blocked {
		return nil, models.ErrTokenInvalid
	}

	return s.tokens.Validate(token, models.TokenTypeAccess)
}

// Refresh rotates a refresh token. The presented token must be the one
// currently bound to a live session; presenting a stale (already rotated)
// token is treated as theft and revokes the session outright.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	fingerprint := auth.Fingerprint(refreshToken)

	blocked, err := s.deny.IsTokenBlacklisted(ctx, fingerprint)
	if err != nil {
		return nil, models.ErrServiceUnavailable
	}
	if blocked {
		return nil, models.ErrTokenInvalid
	}

	claims, err := s.tokens.Validate(refreshToken, models.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrTokenInvalid
		}
		return nil, err
	}

	if !session.Live(time.Now()) {
		return nil, models.ErrSessionRevoked
	}

	if session.RefreshTokenID != claims.ID {
		// Reuse of a rotated token. Kill the session so the holder of the
		// current token is cut off too.
		if err := s.sessions.Revoke(ctx, session.ID, "refresh token reuse detected"); err != nil && !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to revoke session on token reuse", slog.String("error", err.Error()))
		}
		s.logger.Warn("refresh token reuse detected",
			slog.String("session_id", session.ID),
			slog.String("user_id", session.UserID),
		)
		return nil, models.ErrTokenInvalid
	}

	pair, newRefreshID, err := s.IssuePair(ctx, claims.Subject, claims.Identifier, session.ID, claims.Role)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.UpdateRefreshToken(ctx, session.ID, newRefreshID); err != nil {
		return nil, err
	}

	// The old token stays blacklisted for its remaining lifetime plus the
	// configured skew, then ages out of the cache on its own.
	if err := s.blacklistClaims(ctx, fingerprint, claims); err != nil {
		s.logger.Error("failed to blacklist rotated token", slog.String("error", err.Error()))
	}

	return pair, nil
}

// Revoke blacklists a presented token for its remaining lifetime. Invalid
// and expired tokens are accepted silently; revocation is idempotent.
func (s *TokenService) Revoke(ctx context.Context, token, tokenType string) error {
	claims, err := s.tokens.Validate(token, tokenType)
	if err != nil {
		return nil
	}

	return s.blacklistClaims(ctx, auth.Fingerprint(token), claims)
}

// Introspect reports whether a token is currently valid, without erroring
// on invalid input.
func (s *TokenService) Introspect(ctx context.Context, token, tokenType string) *models.TokenValidation {
	var claims *models.TokenClaims
	var err error

	switch tokenType {
	case models.TokenTypeRefresh:
		blocked, berr := s.deny.IsTokenBlacklisted(ctx, auth.Fingerprint(token))
		if berr != nil || blocked {
			return &models.TokenValidation{Valid: false}
		}
		claims, err = s.tokens.Validate(token, models.TokenTypeRefresh)
	default:
		claims, err = s.ValidateAccessToken(ctx, token)
	}
	if err != nil {
		return &models.TokenValidation{Valid: false}
	}

	return &models.TokenValidation{
		Valid:      true,
		UserID:     claims.Subject,
		Identifier: claims.Identifier,
		SessionID:  claims.SessionID,
		TokenType:  claims.Type,
		ExpiresAt:  claims.ExpiresAt.Time,
	}
}

func (s *TokenService) blacklistClaims(ctx context.Context, fingerprint string, claims *models.TokenClaims) error {
	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		return nil
	}
	return s.deny.BlacklistToken(ctx, fingerprint, remaining+s.skew)
}
