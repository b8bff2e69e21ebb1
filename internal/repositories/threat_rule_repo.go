package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/mwhitfield/aegis/internal/database"
	"github.com/mwhitfield/aegis/internal/models"
)

// ThreatRuleRepository handles database operations for detection rules
type ThreatRuleRepository struct {
	db *database.DB
}

// NewThreatRuleRepository creates a new ThreatRuleRepository
func NewThreatRuleRepository(db *database.DB) *ThreatRuleRepository {
	return &ThreatRuleRepository{db: db}
}

const threatRuleColumns = `
	id, name, rule_type, threshold, window_minutes, severity, action,
	auto_block_duration_hours, enabled, created_at
`

// Create inserts a detection rule
func (r *ThreatRuleRepository) Create(ctx context.Context, rule *models.ThreatRule) (*models.ThreatRule, error) {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	query := `
		INSERT INTO threat_rules (
			id, name, rule_type, threshold, window_minutes, severity, action,
			auto_block_duration_hours, enabled
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + threatRuleColumns

	row := r.db.Pool.QueryRow(ctx, query,
		rule.ID, rule.Name, rule.RuleType, rule.Threshold, rule.WindowMinutes,
		rule.Severity, rule.Action, rule.AutoBlockDurationHours, rule.Enabled,
	)

	created, err := scanThreatRule(row)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return created, nil
}

// List returns all detection rules
func (r *ThreatRuleRepository) List(ctx context.Context) ([]*models.ThreatRule, error) {
	query := `SELECT ` + threatRuleColumns + ` FROM threat_rules ORDER BY created_at ASC`

	return r.queryRules(ctx, query)
}

// ListEnabledByType returns enabled rules for one attack pattern
func (r *ThreatRuleRepository) ListEnabledByType(ctx context.Context, ruleType string) ([]*models.ThreatRule, error) {
	query := `
		SELECT ` + threatRuleColumns + `
		FROM threat_rules
		WHERE rule_type = $1 AND enabled
		ORDER BY created_at ASC
	`

	return r.queryRules(ctx, query, ruleType)
}

// Delete removes a detection rule by id
func (r *ThreatRuleRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM threat_rules WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *ThreatRuleRepository) queryRules(ctx context.Context, query string, args ...any) ([]*models.ThreatRule, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	rules := []*models.ThreatRule{}
	for rows.Next() {
		rule, err := scanThreatRule(rows)
		if err != nil {
			return nil, database.MapPostgresError(err)
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

func scanThreatRule(row rowScanner) (*models.ThreatRule, error) {
	var t models.ThreatRule
	err := row.Scan(
		&t.ID, &t.Name, &t.RuleType, &t.Threshold, &t.WindowMinutes,
		&t.Severity, &t.Action, &t.AutoBlockDurationHours, &t.Enabled, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
