package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/mwhitfield/aegis/internal/models"
	pkglogger "github.com/mwhitfield/aegis/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGeoBlockService(repo *MockGeoRuleRepository) *GeoBlockService {
	logger := slog.Default()
	return NewGeoBlockService(repo, pkglogger.NewAuditLogger(logger), logger)
}

func TestGeoBlockService_Allowed_NoRuleMeansAllowed(t *testing.T) {
	service := newGeoBlockService(&MockGeoRuleRepository{})

	allowed, err := service.Allowed(context.Background(), "SE")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestGeoBlockService_Allowed_EmptyCountryIsAllowed(t *testing.T) {
	repo := &MockGeoRuleRepository{
		GetEnabledByCountryFunc: func(ctx context.Context, countryCode string) (*models.GeoBlockRule, error) {
			t.Fatal("empty country code must not hit the repository")
			return nil, nil
		},
	}
	service := newGeoBlockService(repo)

	allowed, err := service.Allowed(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestGeoBlockService_Allowed_DenyRule(t *testing.T) {
	repo := &MockGeoRuleRepository{
		GetEnabledByCountryFunc: func(ctx context.Context, countryCode string) (*models.GeoBlockRule, error) {
			return &models.GeoBlockRule{CountryCode: countryCode, Allow: false, Enabled: true}, nil
		},
	}
	service := newGeoBlockService(repo)

	allowed, err := service.Allowed(context.Background(), "XX")
	require.NoError(t, err)
	assert.False(t, allowed)

	// Lookup is case-insensitive: the code is normalized before the query.
	allowed, err = service.Allowed(context.Background(), " xx ")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestGeoBlockService_CreateRule_NormalizesCode(t *testing.T) {
	var created *models.GeoBlockRule
	repo := &MockGeoRuleRepository{
		CreateFunc: func(ctx context.Context, rule *models.GeoBlockRule) (*models.GeoBlockRule, error) {
			rule.ID = "geo_1"
			created = rule
			return rule, nil
		},
	}
	service := newGeoBlockService(repo)

	rule, err := service.CreateRule(context.Background(), "se", false, true, "admin_1")
	require.NoError(t, err)
	assert.Equal(t, "SE", rule.CountryCode)
	assert.Equal(t, "SE", created.CountryCode)
}

func TestGeoBlockService_CreateRule_RejectsBadCode(t *testing.T) {
	service := newGeoBlockService(&MockGeoRuleRepository{})

	_, err := service.CreateRule(context.Background(), "SWE", false, true, "admin_1")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = service.CreateRule(context.Background(), "", false, true, "admin_1")
	assert.ErrorIs(t, err, models.ErrValidation)
}
