package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mwhitfield/aegis/internal/database"
	"github.com/mwhitfield/aegis/internal/models"
)

// BlockedIPRepository handles database operations for the IP blocklist
type BlockedIPRepository struct {
	db *database.DB
}

// NewBlockedIPRepository creates a new BlockedIPRepository
func NewBlockedIPRepository(db *database.DB) *BlockedIPRepository {
	return &BlockedIPRepository{db: db}
}

const blockedIPColumns = `
	id, ip_address, cidr_range, reason, is_permanent, expires_at, blocked_by, created_at
`

// Create upserts a blocklist entry. A lapsed temporary row for the same
// ip_address is refreshed in place rather than blocking the insert; a row
// still in force maps to ErrConflict.
func (r *BlockedIPRepository) Create(ctx context.Context, entry *models.BlockedIP) (*models.BlockedIP, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO blocked_ips (id, ip_address, cidr_range, reason, is_permanent, expires_at, blocked_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ip_address) DO UPDATE SET
			cidr_range = EXCLUDED.cidr_range,
			reason = EXCLUDED.reason,
			is_permanent = EXCLUDED.is_permanent,
			expires_at = EXCLUDED.expires_at,
			blocked_by = EXCLUDED.blocked_by,
			created_at = NOW()
		WHERE NOT blocked_ips.is_permanent AND blocked_ips.expires_at < NOW()
		RETURNING ` + blockedIPColumns

	row := r.db.Pool.QueryRow(ctx, query,
		entry.ID, entry.IPAddress, entry.CIDRRange, entry.Reason,
		entry.IsPermanent, entry.ExpiresAt, entry.BlockedBy,
	)

	created, err := scanBlockedIP(row)
	if err != nil {
		// The DO UPDATE filter skips rows still in force; no row back
		// means the address is already actively blocked.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrConflict
		}
		return nil, database.MapPostgresError(err)
	}

	return created, nil
}

// GetByID returns a blocklist entry by id
func (r *BlockedIPRepository) GetByID(ctx context.Context, id string) (*models.BlockedIP, error) {
	query := `SELECT ` + blockedIPColumns + ` FROM blocked_ips WHERE id = $1`

	entry, err := scanBlockedIP(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return entry, nil
}

// GetByIP returns the entry whose ip_address exactly matches
func (r *BlockedIPRepository) GetByIP(ctx context.Context, ip string) (*models.BlockedIP, error) {
	query := `SELECT ` + blockedIPColumns + ` FROM blocked_ips WHERE ip_address = $1`

	entry, err := scanBlockedIP(r.db.Pool.QueryRow(ctx, query, ip))
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return entry, nil
}

// List returns blocklist entries, newest first
func (r *BlockedIPRepository) List(ctx context.Context, limit, offset int) ([]*models.BlockedIP, error) {
	query := `
		SELECT ` + blockedIPColumns + `
		FROM blocked_ips
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	entries := []*models.BlockedIP{}
	for rows.Next() {
		entry, err := scanBlockedIP(rows)
		if err != nil {
			return nil, database.MapPostgresError(err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// CountActive returns the number of entries currently in force
func (r *BlockedIPRepository) CountActive(ctx context.Context) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM blocked_ips
		WHERE is_permanent OR expires_at > NOW()
	`

	var count int64
	if err := r.db.Pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}

	return count, nil
}

// ListCIDRs returns entries that block a range rather than a single address.
// The caller walks them for containment; ranges are few by construction.
func (r *BlockedIPRepository) ListCIDRs(ctx context.Context) ([]*models.BlockedIP, error) {
	query := `
		SELECT ` + blockedIPColumns + `
		FROM blocked_ips
		WHERE cidr_range IS NOT NULL
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	entries := []*models.BlockedIP{}
	for rows.Next() {
		entry, err := scanBlockedIP(rows)
		if err != nil {
			return nil, database.MapPostgresError(err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Delete removes a blocklist entry by id
func (r *BlockedIPRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM blocked_ips WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// DeleteExpired removes lapsed temporary entries and returns their
// addresses so the caller can evict cache entries.
func (r *BlockedIPRepository) DeleteExpired(ctx context.Context) ([]string, error) {
	query := `
		DELETE FROM blocked_ips
		WHERE NOT is_permanent AND expires_at < NOW()
		RETURNING ip_address
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	ips := []string{}
	for rows.Next() {
		var ip string
		if err := rows.Scan(&ip); err != nil {
			return nil, database.MapPostgresError(err)
		}
		ips = append(ips, ip)
	}

	return ips, rows.Err()
}

func scanBlockedIP(row rowScanner) (*models.BlockedIP, error) {
	var b models.BlockedIP
	err := row.Scan(
		&b.ID, &b.IPAddress, &b.CIDRRange, &b.Reason,
		&b.IsPermanent, &b.ExpiresAt, &b.BlockedBy, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
