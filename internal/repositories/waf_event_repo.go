package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mwhitfield/aegis/internal/database"
	"github.com/mwhitfield/aegis/internal/models"
)

// WafEventRepository handles database operations for WAF match events
type WafEventRepository struct {
	db *database.DB
}

// NewWafEventRepository creates a new WafEventRepository
func NewWafEventRepository(db *database.DB) *WafEventRepository {
	return &WafEventRepository{db: db}
}

const wafEventColumns = `
	id, rule_id, rule_name, category, action_taken, source_ip, request_method,
	request_path, matched_pattern, matched_content, severity, user_agent, created_at
`

// Create appends a match event
func (r *WafEventRepository) Create(ctx context.Context, event *models.WafEvent) (*models.WafEvent, error) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	query := `
		INSERT INTO waf_events (
			id, rule_id, rule_name, category, action_taken, source_ip, request_method,
			request_path, matched_pattern, matched_content, severity, user_agent
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + wafEventColumns

	row := r.db.Pool.QueryRow(ctx, query,
		event.ID, event.RuleID, event.RuleName, event.Category, event.ActionTaken,
		event.SourceIP, event.RequestMethod, event.RequestPath, event.MatchedPattern,
		event.MatchedContent, event.Severity, event.UserAgent,
	)

	created, err := scanWafEvent(row)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return created, nil
}

// List returns events filtered by optional category, newest first
func (r *WafEventRepository) List(ctx context.Context, category string, limit, offset int) ([]*models.WafEvent, error) {
	query := `
		SELECT ` + wafEventColumns + `
		FROM waf_events
		WHERE ($1 = '' OR category = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, category, limit, offset)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	events := []*models.WafEvent{}
	for rows.Next() {
		event, err := scanWafEvent(rows)
		if err != nil {
			return nil, database.MapPostgresError(err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

// CountSince counts events created after the given instant
func (r *WafEventRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM waf_events WHERE created_at >= $1`

	var count int64
	if err := r.db.Pool.QueryRow(ctx, query, since).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}

	return count, nil
}

// CountByCategorySince groups recent events by category
func (r *WafEventRepository) CountByCategorySince(ctx context.Context, since time.Time) (map[string]int64, error) {
	query := `
		SELECT category, COUNT(*)
		FROM waf_events
		WHERE created_at >= $1
		GROUP BY category
	`

	return r.countGrouped(ctx, query, since)
}

// CountByActionSince groups recent events by the action taken
func (r *WafEventRepository) CountByActionSince(ctx context.Context, since time.Time) (map[string]int64, error) {
	query := `
		SELECT action_taken, COUNT(*)
		FROM waf_events
		WHERE created_at >= $1
		GROUP BY action_taken
	`

	return r.countGrouped(ctx, query, since)
}

// DeleteOlderThan removes events past the retention window
func (r *WafEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM waf_events WHERE created_at < $1`

	result, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

func (r *WafEventRepository) countGrouped(ctx context.Context, query string, args ...any) (map[string]int64, error) {
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

func scanWafEvent(row rowScanner) (*models.WafEvent, error) {
	var e models.WafEvent
	err := row.Scan(
		&e.ID, &e.RuleID, &e.RuleName, &e.Category, &e.ActionTaken, &e.SourceIP,
		&e.RequestMethod, &e.RequestPath, &e.MatchedPattern, &e.MatchedContent,
		&e.Severity, &e.UserAgent, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
