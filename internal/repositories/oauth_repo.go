package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/mwhitfield/aegis/internal/database"
	"github.com/mwhitfield/aegis/internal/models"
)

// OAuthRepository handles database operations for OAuth provider links
type OAuthRepository struct {
	db *database.DB
}

// NewOAuthRepository creates a new OAuthRepository
func NewOAuthRepository(db *database.DB) *OAuthRepository {
	return &OAuthRepository{db: db}
}

const oauthColumns = `id, user_id, provider, external_id, email, created_at`

// Create links a provider identity to a user. The unique index on
// (provider, external_id) makes a second link of the same identity an
// ErrConflict.
func (r *OAuthRepository) Create(ctx context.Context, conn *models.OAuthConnection) (*models.OAuthConnection, error) {
	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}

	query := `
		INSERT INTO oauth_connections (id, user_id, provider, external_id, email)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + oauthColumns

	row := r.db.Pool.QueryRow(ctx, query, conn.ID, conn.UserID, conn.Provider, conn.ExternalID, conn.Email)

	created, err := scanOAuth(row)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return created, nil
}

// GetByProviderIdentity looks up a link by provider and external id
func (r *OAuthRepository) GetByProviderIdentity(ctx context.Context, provider, externalID string) (*models.OAuthConnection, error) {
	query := `
		SELECT ` + oauthColumns + `
		FROM oauth_connections
		WHERE provider = $1 AND external_id = $2
	`

	conn, err := scanOAuth(r.db.Pool.QueryRow(ctx, query, provider, externalID))
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return conn, nil
}

// GetByUserProvider returns the user's link for one provider
func (r *OAuthRepository) GetByUserProvider(ctx context.Context, userID, provider string) (*models.OAuthConnection, error) {
	query := `
		SELECT ` + oauthColumns + `
		FROM oauth_connections
		WHERE user_id = $1 AND provider = $2
	`

	conn, err := scanOAuth(r.db.Pool.QueryRow(ctx, query, userID, provider))
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return conn, nil
}

// ListByUserID returns all provider links for a user
func (r *OAuthRepository) ListByUserID(ctx context.Context, userID string) ([]*models.OAuthConnection, error) {
	query := `
		SELECT ` + oauthColumns + `
		FROM oauth_connections
		WHERE user_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	conns := []*models.OAuthConnection{}
	for rows.Next() {
		conn, err := scanOAuth(rows)
		if err != nil {
			return nil, database.MapPostgresError(err)
		}
		conns = append(conns, conn)
	}

	return conns, rows.Err()
}

// CountByUserID returns how many provider links a user has
func (r *OAuthRepository) CountByUserID(ctx context.Context, userID string) (int64, error) {
	query := `SELECT COUNT(*) FROM oauth_connections WHERE user_id = $1`

	var count int64
	if err := r.db.Pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}

	return count, nil
}

// Delete removes a user's link for one provider
func (r *OAuthRepository) Delete(ctx context.Context, userID, provider string) error {
	query := `DELETE FROM oauth_connections WHERE user_id = $1 AND provider = $2`

	result, err := r.db.Pool.Exec(ctx, query, userID, provider)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func scanOAuth(row rowScanner) (*models.OAuthConnection, error) {
	var c models.OAuthConnection
	err := row.Scan(&c.ID, &c.UserID, &c.Provider, &c.ExternalID, &c.Email, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
