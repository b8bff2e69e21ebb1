package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mwhitfield/aegis/internal/database"
	"github.com/mwhitfield/aegis/internal/models"
)

// SessionRepository handles database operations for login sessions
type SessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `
	id, user_id, device_id, device_type, device_name, push_token,
	refresh_token_id, ip_address, user_agent, created_at, last_active_at,
	expires_at, is_active, revoked_at, revoked_reason
`

// Upsert creates a session or, when an active session already exists for
// the same (user, device), updates it in place. The conflict target is the
// partial unique index on active sessions, so the operation is a single
// atomic statement and concurrent logins on one device cannot produce two
// active rows.
func (r *SessionRepository) Upsert(ctx context.Context, s *models.Session) (*models.Session, error) {
	query := `
		INSERT INTO sessions (
			id, user_id, device_id, device_type, device_name, push_token,
			refresh_token_id, ip_address, user_agent, last_active_at, expires_at, is_active
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), $10, TRUE)
		ON CONFLICT (user_id, device_id) WHERE is_active
		DO UPDATE SET
			device_type     = EXCLUDED.device_type,
			device_name     = EXCLUDED.device_name,
			push_token      = EXCLUDED.push_token,
			refresh_token_id = EXCLUDED.refresh_token_id,
			ip_address      = EXCLUDED.ip_address,
			user_agent      = EXCLUDED.user_agent,
			last_active_at  = NOW(),
			expires_at      = EXCLUDED.expires_at
		RETURNING ` + sessionColumns

	if s.ID == "" {
		s.ID = uuid.New().String()
	}

	row := r.db.Pool.QueryRow(ctx, query,
		s.ID, s.UserID, s.DeviceID, s.DeviceType, s.DeviceName, s.PushToken,
		s.RefreshTokenID, s.IPAddress, s.UserAgent, s.ExpiresAt,
	)

	session, err := scanSession(row)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return session, nil
}

// GetByID returns a session by its id, active or not
func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	session, err := scanSession(r.db.Pool.QueryRow(ctx, query, sessionID))
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return session, nil
}

// UpdateRefreshToken binds a new refresh token to the session after rotation
func (r *SessionRepository) UpdateRefreshToken(ctx context.Context, sessionID, refreshTokenID string) error {
	query := `
		UPDATE sessions
		SET refresh_token_id = $2, last_active_at = NOW()
		WHERE id = $1 AND is_active
	`

	result, err := r.db.Pool.Exec(ctx, query, sessionID, refreshTokenID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// Touch updates the session's last-active timestamp
func (r *SessionRepository) Touch(ctx context.Context, sessionID string) error {
	query := `UPDATE sessions SET last_active_at = NOW() WHERE id = $1 AND is_active`

	_, err := r.db.Pool.Exec(ctx, query, sessionID)
	return database.MapPostgresError(err)
}

// Revoke marks a session inactive with a reason. The row is retained for
// audit until the retention sweep removes it.
func (r *SessionRepository) Revoke(ctx context.Context, sessionID, reason string) error {
	query := `
		UPDATE sessions
		SET is_active = FALSE, revoked_at = NOW(), revoked_reason = $2
		WHERE id = $1 AND is_active
	`

	result, err := r.db.Pool.Exec(ctx, query, sessionID, reason)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// RevokeAll revokes every active session of a user, optionally sparing one
// (the caller's current session). Returns the number of sessions revoked.
func (r *SessionRepository) RevokeAll(ctx context.Context, userID, exceptSessionID, reason string) (int64, error) {
	query := `
		UPDATE sessions
		SET is_active = FALSE, revoked_at = NOW(), revoked_reason = $3
		WHERE user_id = $1 AND is_active AND ($2 = '' OR id <> $2)
	`

	result, err := r.db.Pool.Exec(ctx, query, userID, exceptSessionID, reason)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

// ListActive returns all active, unexpired sessions for a user, most
// recently active first
func (r *SessionRepository) ListActive(ctx context.Context, userID string) ([]*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND is_active AND expires_at > NOW()
		ORDER BY last_active_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	sessions := []*models.Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, database.MapPostgresError(err)
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

// DeleteStale removes revoked or expired sessions past the retention window
func (r *SessionRepository) DeleteStale(ctx context.Context, retention time.Duration) (int64, error) {
	query := `
		DELETE FROM sessions
		WHERE (NOT is_active AND revoked_at < $1)
		   OR (expires_at < $1)
	`

	result, err := r.db.Pool.Exec(ctx, query, time.Now().Add(-retention))
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var s models.Session
	err := row.Scan(
		&s.ID, &s.UserID, &s.DeviceID, &s.DeviceType, &s.DeviceName, &s.PushToken,
		&s.RefreshTokenID, &s.IPAddress, &s.UserAgent, &s.CreatedAt, &s.LastActiveAt,
		&s.ExpiresAt, &s.IsActive, &s.RevokedAt, &s.RevokedReason,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
