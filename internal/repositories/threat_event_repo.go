package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mwhitfield/aegis/internal/database"
	"github.com/mwhitfield/aegis/internal/models"
)

// ThreatEventRepository handles database operations for threat events
type ThreatEventRepository struct {
	db *database.DB
}

// NewThreatEventRepository creates a new ThreatEventRepository
func NewThreatEventRepository(db *database.DB) *ThreatEventRepository {
	return &ThreatEventRepository{db: db}
}

const threatEventColumns = `
	id, event_type, severity, source_ip, target_user_id, target_email,
	description, details, resolved, resolved_by, resolved_at, created_at
`

// Create appends a threat event
func (r *ThreatEventRepository) Create(ctx context.Context, event *models.ThreatEvent) (*models.ThreatEvent, error) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	query := `
		INSERT INTO threat_events (
			id, event_type, severity, source_ip, target_user_id, target_email, description, details
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + threatEventColumns

	row := r.db.Pool.QueryRow(ctx, query,
		event.ID, event.EventType, event.Severity, event.SourceIP,
		event.TargetUserID, event.TargetEmail, event.Description, event.Details,
	)

	created, err := scanThreatEvent(row)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return created, nil
}

// GetByID returns a threat event by id
func (r *ThreatEventRepository) GetByID(ctx context.Context, id string) (*models.ThreatEvent, error) {
	query := `SELECT ` + threatEventColumns + ` FROM threat_events WHERE id = $1`

	event, err := scanThreatEvent(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return event, nil
}

// Resolve marks an event resolved. Resolving an already resolved event is
// a no-op, so the operation is idempotent.
func (r *ThreatEventRepository) Resolve(ctx context.Context, id, resolvedBy string) (*models.ThreatEvent, error) {
	query := `
		UPDATE threat_events
		SET resolved = TRUE, resolved_by = $2, resolved_at = NOW()
		WHERE id = $1 AND NOT resolved
	`

	if _, err := r.db.Pool.Exec(ctx, query, id, resolvedBy); err != nil {
		return nil, database.MapPostgresError(err)
	}

	// Zero rows affected means it was resolved earlier; return the current
	// row either way. A missing row is ErrNotFound.
	return r.GetByID(ctx, id)
}

// List returns events filtered by optional type and severity, newest first
func (r *ThreatEventRepository) List(ctx context.Context, eventType, severity string, limit, offset int) ([]*models.ThreatEvent, error) {
	query := `
		SELECT ` + threatEventColumns + `
		FROM threat_events
		WHERE ($1 = '' OR event_type = $1)
		  AND ($2 = '' OR severity = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.Pool.Query(ctx, query, eventType, severity, limit, offset)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	events := []*models.ThreatEvent{}
	for rows.Next() {
		event, err := scanThreatEvent(rows)
		if err != nil {
			return nil, database.MapPostgresError(err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

// CountBySourceSince counts events of a type from one source IP inside a
// sliding window. Drives threshold detection.
func (r *ThreatEventRepository) CountBySourceSince(ctx context.Context, sourceIP, eventType string, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM threat_events
		WHERE source_ip = $1 AND event_type = $2 AND created_at >= $3
	`

	var count int64
	if err := r.db.Pool.QueryRow(ctx, query, sourceIP, eventType, since).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}

	return count, nil
}

// CountSince counts all events created after the given instant
func (r *ThreatEventRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM threat_events WHERE created_at >= $1`

	var count int64
	if err := r.db.Pool.QueryRow(ctx, query, since).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}

	return count, nil
}

// CountUnresolved counts events not yet resolved
func (r *ThreatEventRepository) CountUnresolved(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM threat_events WHERE NOT resolved`

	var count int64
	if err := r.db.Pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}

	return count, nil
}

// CountByTypeSince groups recent events by type
func (r *ThreatEventRepository) CountByTypeSince(ctx context.Context, since time.Time) (map[string]int64, error) {
	query := `
		SELECT event_type, COUNT(*)
		FROM threat_events
		WHERE created_at >= $1
		GROUP BY event_type
	`

	return r.countGrouped(ctx, query, since)
}

// CountBySeveritySince groups recent events by severity
func (r *ThreatEventRepository) CountBySeveritySince(ctx context.Context, since time.Time) (map[string]int64, error) {
	query := `
		SELECT severity, COUNT(*)
		FROM threat_events
		WHERE created_at >= $1
		GROUP BY severity
	`

	return r.countGrouped(ctx, query, since)
}

// DeleteOlderThan removes events past the retention window
func (r *ThreatEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM threat_events WHERE created_at < $1`

	result, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

func (r *ThreatEventRepository) countGrouped(ctx context.Context, query string, args ...any) (map[string]int64, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, database.MapPostgresError(err)
		}
		counts[key] = count
	}

	return counts, rows.Err()
}

func scanThreatEvent(row rowScanner) (*models.ThreatEvent, error) {
	var e models.ThreatEvent
	err := row.Scan(
		&e.ID, &e.EventType, &e.Severity, &e.SourceIP, &e.TargetUserID, &e.TargetEmail,
		&e.Description, &e.Details, &e.Resolved, &e.ResolvedBy, &e.ResolvedAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
