package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mwhitfield/aegis/internal/database"
	"github.com/mwhitfield/aegis/internal/models"
)

// TwoFactorRepository handles database operations for 2FA enrollments
type TwoFactorRepository struct {
	db *database.DB
}

// NewTwoFactorRepository creates a new TwoFactorRepository
func NewTwoFactorRepository(db *database.DB) *TwoFactorRepository {
	return &TwoFactorRepository{db: db}
}

const twoFactorColumns = `
	id, user_id, method, secret_encrypted, secret_nonce, backup_codes,
	enabled, pending, created_at, activated_at, last_used_at
`

// Create stores a pending enrollment. A user has at most one enrollment;
// re-running setup before activation replaces the pending row. Conflicting
// with an enabled enrollment updates nothing and surfaces as ErrNotFound,
// which the service maps to a conflict for the caller.
func (r *TwoFactorRepository) Create(ctx context.Context, secret *models.TwoFactorSecret) (*models.TwoFactorSecret, error) {
	if secret.ID == "" {
		secret.ID = uuid.New().String()
	}

	codes, err := json.Marshal(secret.BackupCodes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal backup codes: %w", err)
	}

	query := `
		INSERT INTO two_factor_secrets (
			id, user_id, method, secret_encrypted, secret_nonce, backup_codes, enabled, pending
		)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, TRUE)
		ON CONFLICT (user_id) DO UPDATE SET
			method           = EXCLUDED.method,
			secret_encrypted = EXCLUDED.secret_encrypted,
			secret_nonce     = EXCLUDED.secret_nonce,
			backup_codes     = EXCLUDED.backup_codes,
			created_at       = NOW()
		WHERE two_factor_secrets.pending
		RETURNING ` + twoFactorColumns

	row := r.db.Pool.QueryRow(ctx, query,
		secret.ID, secret.UserID, secret.Method,
		secret.SecretEncrypted, secret.SecretNonce, codes,
	)

	created, err := scanTwoFactor(row)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return created, nil
}

// GetByUserID returns the user's enrollment, pending or enabled
func (r *TwoFactorRepository) GetByUserID(ctx context.Context, userID string) (*models.TwoFactorSecret, error) {
	query := `SELECT ` + twoFactorColumns + ` FROM two_factor_secrets WHERE user_id = $1`

	secret, err := scanTwoFactor(r.db.Pool.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return secret, nil
}

// Activate flips a pending enrollment to enabled
func (r *TwoFactorRepository) Activate(ctx context.Context, userID string) error {
	query := `
		UPDATE two_factor_secrets
		SET enabled = TRUE, pending = FALSE, activated_at = NOW()
		WHERE user_id = $1 AND pending
	`

	result, err := r.db.Pool.Exec(ctx, query, userID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// UpdateBackupCodes replaces the user's backup code set
func (r *TwoFactorRepository) UpdateBackupCodes(ctx context.Context, userID string, codes []models.BackupCodeEntry) error {
	payload, err := json.Marshal(codes)
	if err != nil {
		return fmt.Errorf("failed to marshal backup codes: %w", err)
	}

	query := `UPDATE two_factor_secrets SET backup_codes = $2 WHERE user_id = $1`

	result, err := r.db.Pool.Exec(ctx, query, userID, payload)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// SetLastUsed records the moment a TOTP code was accepted. The timestamp
// backs the replay check for the current time window.
func (r *TwoFactorRepository) SetLastUsed(ctx context.Context, userID string, usedAt time.Time) error {
	query := `UPDATE two_factor_secrets SET last_used_at = $2 WHERE user_id = $1`

	_, err := r.db.Pool.Exec(ctx, query, userID, usedAt)
	return database.MapPostgresError(err)
}

// Delete removes the user's enrollment entirely
func (r *TwoFactorRepository) Delete(ctx context.Context, userID string) error {
	query := `DELETE FROM two_factor_secrets WHERE user_id = $1`

	result, err := r.db.Pool.Exec(ctx, query, userID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// DeleteStalePending removes pending enrollments never activated within
// the given age
func (r *TwoFactorRepository) DeleteStalePending(ctx context.Context, maxAge time.Duration) (int64, error) {
	query := `DELETE FROM two_factor_secrets WHERE pending AND created_at < $1`

	result, err := r.db.Pool.Exec(ctx, query, time.Now().Add(-maxAge))
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

func scanTwoFactor(row rowScanner) (*models.TwoFactorSecret, error) {
	var s models.TwoFactorSecret
	var codes []byte
	err := row.Scan(
		&s.ID, &s.UserID, &s.Method, &s.SecretEncrypted, &s.SecretNonce, &codes,
		&s.Enabled, &s.Pending, &s.CreatedAt, &s.ActivatedAt, &s.LastUsedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(codes) > 0 {
		if err := json.Unmarshal(codes, &s.BackupCodes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal backup codes: %w", err)
		}
	}

	return &s, nil
}
