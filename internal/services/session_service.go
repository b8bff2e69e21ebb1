package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/mwhitfield/aegis/internal/models"
)

// SessionService manages device-scoped login sessions.
type SessionService struct {
	repo       SessionRepository
	expiryDays int
	logger     *slog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(repo SessionRepository, expiryDays int, log *slog.Logger) *SessionService {
	return &SessionService{
		repo:       repo,
		expiryDays: expiryDays,
		logger:     log,
	}
}

// Establish creates or refreshes the active session for a (user, device)
// pair. A login on a device with an existing active session takes that
// session over rather than stacking a second one.
func (s *SessionService) Establish(ctx context.Context, userID, refreshTokenID string, client models.ClientInfo) (*models.Session, error) {
	session := &models.Session{
		UserID:         userID,
		DeviceID:       client.DeviceID,
		DeviceType:     client.DeviceType,
		DeviceName:     client.DeviceName,
		PushToken:      client.PushToken,
		RefreshTokenID: refreshTokenID,
		IPAddress:      client.IPAddress,
		UserAgent:      client.UserAgent,
		ExpiresAt:      time.Now().AddDate(0, 0, s.expiryDays),
	}

	created, err := s.repo.Upsert(ctx, session)
	if err != nil {
		return nil, err
	}

	s.logger.Info("session established",
		slog.String("session_id", created.ID),
		slog.String("user_id", userID),
		slog.String("device_id", client.DeviceID),
	)

	return created, nil
}

// List returns the user's active sessions.
func (s *SessionService) List(ctx context.Context, userID string) ([]*models.Session, error) {
	return s.repo.ListActive(ctx, userID)
}

// Revoke revokes one session. Callers may only revoke their own sessions;
// a session owned by someone else is reported as not found rather than
// forbidden, so session ids cannot be probed.
func (s *SessionService) Revoke(ctx context.Context, userID, sessionID, reason string) error {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.UserID != userID {
		return models.ErrNotFound
	}

	if err := s.repo.Revoke(ctx, sessionID, reason); err != nil {
		return err
	}

	s.logger.Info("session revoked",
		slog.String("session_id", sessionID),
		slog.String("user_id", userID),
		slog.String("reason", reason),
	)

	return nil
}

// RevokeAll revokes every session of a user except, optionally, the
// caller's current one. Returns the number revoked.
func (s *SessionService) RevokeAll(ctx context.Context, userID, exceptSessionID, reason string) (int64, error) {
	count, err := s.repo.RevokeAll(ctx, userID, exceptSessionID, reason)
	if err != nil {
		return 0, err
	}

	s.logger.Info("sessions revoked",
		slog.String("user_id", userID),
		slog.Int64("count", count),
		slog.String("reason", reason),
	)

	return count, nil
}

// BindRefreshToken attaches a freshly minted refresh token to a session.
func (s *SessionService) BindRefreshToken(ctx context.Context, sessionID, refreshTokenID string) error {
	return s.repo.UpdateRefreshToken(ctx, sessionID, refreshTokenID)
}

// Touch refreshes the session's activity timestamp.
func (s *SessionService) Touch(ctx context.Context, sessionID string) error {
	return s.repo.Touch(ctx, sessionID)
}

// CleanupStale removes revoked and expired sessions past retention.
func (s *SessionService) CleanupStale(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteStale(ctx, retention)
}
