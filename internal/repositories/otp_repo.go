package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mwhitfield/aegis/internal/database"
	"github.com/mwhitfield/aegis/internal/models"
)

// OTPRepository handles database operations for one-time passcodes
type OTPRepository struct {
	db *database.DB
}

// NewOTPRepository creates a new OTPRepository
func NewOTPRepository(db *database.DB) *OTPRepository {
	return &OTPRepository{db: db}
}

const otpColumns = `
	id, identifier, channel, code_hash, attempts, created_at, expires_at, consumed_at
`

// Create stores a new passcode for an identifier. Any passcode still live
// for the same identifier is consumed first, so only the latest code can
// ever verify.
func (r *OTPRepository) Create(ctx context.Context, rec *models.OTPRecord) (*models.OTPRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	var created *models.OTPRecord
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		invalidate := `
			UPDATE otp_records
			SET consumed_at = NOW()
			WHERE identifier = $1 AND consumed_at IS NULL
		`
		if _, err := tx.Exec(ctx, invalidate, rec.Identifier); err != nil {
			return err
		}

		insert := `
			INSERT INTO otp_records (id, identifier, channel, code_hash, expires_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING ` + otpColumns

		row := tx.QueryRow(ctx, insert, rec.ID, rec.Identifier, rec.Channel, rec.CodeHash, rec.ExpiresAt)
		var err error
		created, err = scanOTP(row)
		return err
	})
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return created, nil
}

// IncrementAttempts atomically bumps the attempt counter on the live
// passcode for an identifier and returns the updated record. The increment
// happens before the hash is compared, so concurrent guesses each consume
// an attempt. ErrNotFound means no live passcode exists.
func (r *OTPRepository) IncrementAttempts(ctx context.Context, identifier string) (*models.OTPRecord, error) {
	query := `
		UPDATE otp_records
		SET attempts = attempts + 1
		WHERE identifier = $1 AND consumed_at IS NULL AND expires_at > NOW()
		RETURNING ` + otpColumns

	rec, err := scanOTP(r.db.Pool.QueryRow(ctx, query, identifier))
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return rec, nil
}

// Consume marks a passcode as used. Returns ErrNotFound if it was already
// consumed, which makes consumption single-shot under concurrency.
func (r *OTPRepository) Consume(ctx context.Context, id string) error {
	query := `
		UPDATE otp_records
		SET consumed_at = NOW()
		WHERE id = $1 AND consumed_at IS NULL
	`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// DeleteExpired removes passcodes past their expiry
func (r *OTPRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM otp_records WHERE expires_at < NOW()`

	result, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

func scanOTP(row rowScanner) (*models.OTPRecord, error) {
	var rec models.OTPRecord
	err := row.Scan(
		&rec.ID, &rec.Identifier, &rec.Channel, &rec.CodeHash,
		&rec.Attempts, &rec.CreatedAt, &rec.ExpiresAt, &rec.ConsumedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
