package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/mwhitfield/aegis/internal/database"
	"github.com/mwhitfield/aegis/internal/models"
)

// GeoRuleRepository handles database operations for geo block rules
type GeoRuleRepository struct {
	db *database.DB
}

// NewGeoRuleRepository creates a new GeoRuleRepository
func NewGeoRuleRepository(db *database.DB) *GeoRuleRepository {
	return &GeoRuleRepository{db: db}
}

const geoRuleColumns = `id, country_code, allow, enabled, created_at`

// Create inserts a geo rule. One rule per country code.
func (r *GeoRuleRepository) Create(ctx context.Context, rule *models.GeoBlockRule) (*models.GeoBlockRule, error) {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	query := `
		INSERT INTO geo_block_rules (id, country_code, allow, enabled)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + geoRuleColumns

	row := r.db.Pool.QueryRow(ctx, query, rule.ID, rule.CountryCode, rule.Allow, rule.Enabled)

	created, err := scanGeoRule(row)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return created, nil
}

// List returns all geo rules ordered by country code
func (r *GeoRuleRepository) List(ctx context.Context) ([]*models.GeoBlockRule, error) {
	query := `SELECT ` + geoRuleColumns + ` FROM geo_block_rules ORDER BY country_code ASC`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	rules := []*models.GeoBlockRule{}
	for rows.Next() {
		rule, err := scanGeoRule(rows)
		if err != nil {
			return nil, database.MapPostgresError(err)
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// GetEnabledByCountry returns the enabled rule for a country, if any
func (r *GeoRuleRepository) GetEnabledByCountry(ctx context.Context, countryCode string) (*models.GeoBlockRule, error) {
	query := `
		SELECT ` + geoRuleColumns + `
		FROM geo_block_rules
		WHERE country_code = $1 AND enabled
	`

	rule, err := scanGeoRule(r.db.Pool.QueryRow(ctx, query, countryCode))
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return rule, nil
}

// CountEnabled returns the number of enabled geo rules
func (r *GeoRuleRepository) CountEnabled(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM geo_block_rules WHERE enabled`

	var count int64
	if err := r.db.Pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}

	return count, nil
}

// Delete removes a geo rule by id
func (r *GeoRuleRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM geo_block_rules WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func scanGeoRule(row rowScanner) (*models.GeoBlockRule, error) {
	var g models.GeoBlockRule
	err := row.Scan(&g.ID, &g.CountryCode, &g.Allow, &g.Enabled, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}
