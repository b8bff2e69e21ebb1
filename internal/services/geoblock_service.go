package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mwhitfield/aegis/internal/models"
	"github.com/mwhitfield/aegis/pkg/logger"
)

// GeoRuleRepository is the persistence contract for geo block rules.
type GeoRuleRepository interface {
	Create(ctx context.Context, rule *models.GeoBlockRule) (*models.GeoBlockRule, error)
	List(ctx context.Context) ([]*models.GeoBlockRule, error)
	GetEnabledByCountry(ctx context.Context, countryCode string) (*models.GeoBlockRule, error)
	CountEnabled(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id string) error
}

// GeoBlockService answers country-level allow/deny. Country resolution is
// the edge proxy's job (it stamps the country header); this service only
// applies policy to the resolved code.
type GeoBlockService struct {
	repo   GeoRuleRepository
	audit  *logger.AuditLogger
	logger *slog.Logger
}

// NewGeoBlockService creates a new GeoBlockService.
func NewGeoBlockService(repo GeoRuleRepository, audit *logger.AuditLogger, log *slog.Logger) *GeoBlockService {
	return &GeoBlockService{
		repo:   repo,
		audit:  audit,
		logger: log,
	}
}

// Allowed reports whether requests from a country may proceed. An unknown
// or empty country code is allowed: geo blocking is an explicit deny
// mechanism, not an allowlist.
func (s *GeoBlockService) Allowed(ctx context.Context, countryCode string) (bool, error) {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	if code == "" {
		return true, nil
	}

	rule, err := s.repo.GetEnabledByCountry(ctx, code)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return true, nil
		}
		return false, err
	}

	return rule.Allow, nil
}

// CreateRule adds a geo rule. Country codes are two-letter ISO 3166-1.
func (s *GeoBlockService) CreateRule(ctx context.Context, countryCode string, allow, enabled bool, actor string) (*models.GeoBlockRule, error) {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	if len(code) != 2 {
		return nil, fmt.Errorf("%w: country code must be two letters", models.ErrValidation)
	}

	rule, err := s.repo.Create(ctx, &models.GeoBlockRule{
		CountryCode: code,
		Allow:       allow,
		Enabled:     enabled,
	})
	if err != nil {
		return nil, err
	}

	s.audit.LogSecurityAction("geo_rule_created", actor, code, map[string]string{
		"allow": fmt.Sprintf("%t", allow),
	})

	return rule, nil
}

// ListRules returns all geo rules.
func (s *GeoBlockService) ListRules(ctx context.Context) ([]*models.GeoBlockRule, error) {
	return s.repo.List(ctx)
}

// DeleteRule removes a geo rule.
func (s *GeoBlockService) DeleteRule(ctx context.Context, id, actor string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.audit.LogSecurityAction("geo_rule_deleted", actor, id, nil)

	return nil
}
