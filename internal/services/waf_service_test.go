package services

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/mwhitfield/aegis/internal/models"
	pkglogger "github.com/mwhitfield/aegis/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWafService(rules *MockWafRuleRepository, events *MockWafEventRepository, enabled bool, mode string) *WafService {
	logger := slog.Default()
	return NewWafService(rules, events, enabled, mode, pkglogger.NewAuditLogger(logger), logger)
}

func sqlInjectionRule() *models.WafRule {
	return &models.WafRule{
		ID:       "waf_1",
		Name:     "sql injection",
		Category: "SQLI",
		Pattern:  `union\s+select`,
		Severity: models.SeverityCritical,
		Priority: 10,
		Enabled:  true,
		Action:   models.ActionBlock,
	}
}

func TestWafService_Evaluate_BlockMode(t *testing.T) {
	var persisted *models.WafEvent
	rules := &MockWafRuleRepository{
		ListEnabledOrderedFunc: func(ctx context.Context) ([]*models.WafRule, error) {
			return []*models.WafRule{sqlInjectionRule()}, nil
		},
	}
	events := &MockWafEventRepository{
		CreateFunc: func(ctx context.Context, event *models.WafEvent) (*models.WafEvent, error) {
			event.ID = "wafevent_1"
			persisted = event
			return event, nil
		},
	}
	service := newWafService(rules, events, true, models.WafModeBlock)

	result, err := service.Evaluate(context.Background(), &models.WafRequest{
		SourceIP: "203.0.113.10",
		Method:   "POST",
		Path:     "/v1/auth/otp/login",
		Body:     `{"code":"1 UNION SELECT * FROM users"}`,
	})
	require.NoError(t, err)

	assert.False(t, result.Allowed)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, models.ActionBlock, result.Violations[0].Action)

	require.NotNil(t, persisted)
	assert.Equal(t, models.ActionBlock, persisted.ActionTaken)
	assert.Equal(t, "SQLI", persisted.Category)
}

func TestWafService_Evaluate_DetectModeDowngradesBlock(t *testing.T) {
	var persisted *models.WafEvent
	rules := &MockWafRuleRepository{
		ListEnabledOrderedFunc: func(ctx context.Context) ([]*models.WafRule, error) {
			return []*models.WafRule{sqlInjectionRule()}, nil
		},
	}
	events := &MockWafEventRepository{
		CreateFunc: func(ctx context.Context, event *models.WafEvent) (*models.WafEvent, error) {
			persisted = event
			return event, nil
		},
	}
	service := newWafService(rules, events, true, models.WafModeDetect)

	result, err := service.Evaluate(context.Background(), &models.WafRequest{
		Path: "/search",
		Body: "union select password from users",
	})
	require.NoError(t, err)

	// Detection still records the match, but the request passes.
	assert.True(t, result.Allowed)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, models.ActionLog, result.Violations[0].Action)
	require.NotNil(t, persisted)
	assert.Equal(t, models.ActionLog, persisted.ActionTaken)
}

func TestWafService_Evaluate_Disabled(t *testing.T) {
	rules := &MockWafRuleRepository{
		ListEnabledOrderedFunc: func(ctx context.Context) ([]*models.WafRule, error) {
			t.Fatal("disabled WAF must not load rules")
			return nil, nil
		},
	}
	service := newWafService(rules, &MockWafEventRepository{}, false, models.WafModeBlock)

	result, err := service.Evaluate(context.Background(), &models.WafRequest{Body: "union select"})
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Empty(t, result.Violations)
}

func TestWafService_Evaluate_CaseInsensitive(t *testing.T) {
	rules := &MockWafRuleRepository{
		ListEnabledOrderedFunc: func(ctx context.Context) ([]*models.WafRule, error) {
			return []*models.WafRule{sqlInjectionRule()}, nil
		},
	}
	service := newWafService(rules, &MockWafEventRepository{}, true, models.WafModeBlock)

	result, err := service.Evaluate(context.Background(), &models.WafRequest{Body: "UnIoN sElEcT"})
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestWafService_Evaluate_InspectsQueryAndHeaders(t *testing.T) {
	rule := &models.WafRule{
		ID:       "waf_2",
		Name:     "path traversal",
		Category: "TRAVERSAL",
		Pattern:  `\.\./`,
		Severity: models.SeverityHigh,
		Enabled:  true,
		Action:   models.ActionBlock,
	}
	rules := &MockWafRuleRepository{
		ListEnabledOrderedFunc: func(ctx context.Context) ([]*models.WafRule, error) {
			return []*models.WafRule{rule}, nil
		},
	}
	service := newWafService(rules, &MockWafEventRepository{}, true, models.WafModeBlock)

	result, err := service.Evaluate(context.Background(), &models.WafRequest{
		Path:        "/files",
		QueryParams: map[string]string{"name": "../../etc/passwd"},
	})
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	result, err = service.Evaluate(context.Background(), &models.WafRequest{
		Path:    "/files",
		Headers: map[string]string{"X-Filename": "../secret"},
	})
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestWafService_Evaluate_InvalidPatternIsolated(t *testing.T) {
	broken := &models.WafRule{
		ID:      "waf_broken",
		Name:    "broken",
		Pattern: "([unclosed",
		Enabled: true,
		Action:  models.ActionBlock,
	}
	rules := &MockWafRuleRepository{
		ListEnabledOrderedFunc: func(ctx context.Context) ([]*models.WafRule, error) {
			return []*models.WafRule{broken, sqlInjectionRule()}, nil
		},
	}
	service := newWafService(rules, &MockWafEventRepository{}, true, models.WafModeBlock)

	// The broken rule is skipped; the valid one still fires.
	result, err := service.Evaluate(context.Background(), &models.WafRequest{Body: "union select"})
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Len(t, result.Violations, 1)
}

func TestWafService_Evaluate_TruncatesMatchedContent(t *testing.T) {
	rule := &models.WafRule{
		ID:       "waf_3",
		Name:     "long match",
		Category: "TEST",
		Pattern:  "A+",
		Severity: models.SeverityLow,
		Enabled:  true,
		Action:   models.ActionLog,
	}
	rules := &MockWafRuleRepository{
		ListEnabledOrderedFunc: func(ctx context.Context) ([]*models.WafRule, error) {
			return []*models.WafRule{rule}, nil
		},
	}
	var persisted *models.WafEvent
	events := &MockWafEventRepository{
		CreateFunc: func(ctx context.Context, event *models.WafEvent) (*models.WafEvent, error) {
			persisted = event
			return event, nil
		},
	}
	service := newWafService(rules, events, true, models.WafModeBlock)

	_, err := service.Evaluate(context.Background(), &models.WafRequest{Body: strings.Repeat("A", 2000)})
	require.NoError(t, err)

	require.NotNil(t, persisted)
	assert.Len(t, persisted.MatchedContent, matchedContentLimit)
}

func TestWafService_CreateRule_RejectsInvalidPattern(t *testing.T) {
	service := newWafService(&MockWafRuleRepository{}, &MockWafEventRepository{}, true, models.WafModeBlock)

	_, err := service.CreateRule(context.Background(), &models.WafRule{
		Name:    "broken",
		Pattern: "([unclosed",
		Action:  models.ActionBlock,
	}, "admin_1")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestWafService_Stats(t *testing.T) {
	rules := &MockWafRuleRepository{
		CountFunc:        func(ctx context.Context) (int64, error) { return 12, nil },
		CountEnabledFunc: func(ctx context.Context) (int64, error) { return 9, nil },
	}
	service := newWafService(rules, &MockWafEventRepository{}, true, models.WafModeDetect)

	stats, err := service.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), stats.TotalRules)
	assert.Equal(t, int64(9), stats.ActiveRules)
	assert.Equal(t, models.WafModeDetect, stats.WafMode)
	assert.True(t, stats.WafEnabled)
}
