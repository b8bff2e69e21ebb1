package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/mwhitfield/aegis/internal/database"
	"github.com/mwhitfield/aegis/internal/models"
)

// WafRuleRepository handles database operations for WAF rules
type WafRuleRepository struct {
	db *database.DB
}

// NewWafRuleRepository creates a new WafRuleRepository
func NewWafRuleRepository(db *database.DB) *WafRuleRepository {
	return &WafRuleRepository{db: db}
}

const wafRuleColumns = `
	id, name, description, category, pattern, severity, priority, enabled,
	action, created_at, updated_at
`

// Create inserts a WAF rule. Rule names are unique.
func (r *WafRuleRepository) Create(ctx context.Context, rule *models.WafRule) (*models.WafRule, error) {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	query := `
		INSERT INTO waf_rules (id, name, description, category, pattern, severity, priority, enabled, action)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + wafRuleColumns

	row := r.db.Pool.QueryRow(ctx, query,
		rule.ID, rule.Name, rule.Description, rule.Category, rule.Pattern,
		rule.Severity, rule.Priority, rule.Enabled, rule.Action,
	)

	created, err := scanWafRule(row)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return created, nil
}

// GetByID returns a WAF rule by id
func (r *WafRuleRepository) GetByID(ctx context.Context, id string) (*models.WafRule, error) {
	query := `SELECT ` + wafRuleColumns + ` FROM waf_rules WHERE id = $1`

	rule, err := scanWafRule(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return rule, nil
}

// Update replaces the mutable fields of a rule
func (r *WafRuleRepository) Update(ctx context.Context, rule *models.WafRule) (*models.WafRule, error) {
	query := `
		UPDATE waf_rules
		SET name = $2, description = $3, category = $4, pattern = $5,
		    severity = $6, priority = $7, enabled = $8, action = $9,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + wafRuleColumns

	row := r.db.Pool.QueryRow(ctx, query,
		rule.ID, rule.Name, rule.Description, rule.Category, rule.Pattern,
		rule.Severity, rule.Priority, rule.Enabled, rule.Action,
	)

	updated, err := scanWafRule(row)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return updated, nil
}

// SetEnabled toggles a rule without touching its definition
func (r *WafRuleRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	query := `UPDATE waf_rules SET enabled = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query, id, enabled)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// List returns all rules ordered by priority then name
func (r *WafRuleRepository) List(ctx context.Context) ([]*models.WafRule, error) {
	query := `SELECT ` + wafRuleColumns + ` FROM waf_rules ORDER BY priority ASC, name ASC`

	return r.queryRules(ctx, query)
}

// ListEnabledOrdered returns enabled rules in evaluation order
// (ascending priority; lower numbers run first)
func (r *WafRuleRepository) ListEnabledOrdered(ctx context.Context) ([]*models.WafRule, error) {
	query := `
		SELECT ` + wafRuleColumns + `
		FROM waf_rules
		WHERE enabled
		ORDER BY priority ASC, name ASC
	`

	return r.queryRules(ctx, query)
}

// Count returns the total number of rules
func (r *WafRuleRepository) Count(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM waf_rules`)
}

// CountEnabled returns the number of enabled rules
func (r *WafRuleRepository) CountEnabled(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM waf_rules WHERE enabled`)
}

// Delete removes a rule by id
func (r *WafRuleRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM waf_rules WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *WafRuleRepository) count(ctx context.Context, query string) (int64, error) {
	var count int64
	if err := r.db.Pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

func (r *WafRuleRepository) queryRules(ctx context.Context, query string, args ...any) ([]*models.WafRule, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	rules := []*models.WafRule{}
	for rows.Next() {
		rule, err := scanWafRule(rows)
		if err != nil {
			return nil, database.MapPostgresError(err)
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

func scanWafRule(row rowScanner) (*models.WafRule, error) {
	var w models.WafRule
	err := row.Scan(
		&w.ID, &w.Name, &w.Description, &w.Category, &w.Pattern, &w.Severity,
		&w.Priority, &w.Enabled, &w.Action, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
