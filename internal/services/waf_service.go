package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/mwhitfield/aegis/internal/models"
	"github.com/mwhitfield/aegis/pkg/logger"
)

const matchedContentLimit = 500

// WafRuleRepository is the persistence contract for WAF rules.
type WafRuleRepository interface {
	Create(ctx context.Context, rule *models.WafRule) (*models.WafRule, error)
	GetByID(ctx context.Context, id string) (*models.WafRule, error)
	Update(ctx context.Context, rule *models.WafRule) (*models.WafRule, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
	List(ctx context.Context) ([]*models.WafRule, error)
	ListEnabledOrdered(ctx context.Context) ([]*models.WafRule, error)
	Count(ctx context.Context) (int64, error)
	CountEnabled(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id string) error
}

// WafEventRepository is the persistence contract for WAF match events.
type WafEventRepository interface {
	Create(ctx context.Context, event *models.WafEvent) (*models.WafEvent, error)
	List(ctx context.Context, category string, limit, offset int) ([]*models.WafEvent, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	CountByCategorySince(ctx context.Context, since time.Time) (map[string]int64, error)
	CountByActionSince(ctx context.Context, since time.Time) (map[string]int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// WafService evaluates inbound requests against pattern rules.
//
// In BLOCK mode a matching BLOCK rule denies the request; in DETECT mode
// the action is downgraded to LOG but the event is still persisted, so a
// new rule set can be watched in production before it starts rejecting
// traffic.
type WafService struct {
	rules   WafRuleRepository
	events  WafEventRepository
	enabled bool
	mode    string
	audit   *logger.AuditLogger
	logger  *slog.Logger

	mu       sync.Mutex
	compiled map[string]compiledPattern
}

type compiledPattern struct {
	pattern string
	re      *regexp.Regexp
}

// NewWafService creates a new WafService.
func NewWafService(rules WafRuleRepository, events WafEventRepository, enabled bool, mode string, audit *logger.AuditLogger, log *slog.Logger) *WafService {
	return &WafService{
		rules:    rules,
		events:   events,
		enabled:  enabled,
		mode:     mode,
		audit:    audit,
		logger:   log,
		compiled: map[string]compiledPattern{},
	}
}

// Evaluate runs every enabled rule, in ascending priority, over the
// request content. Rules are isolated from each other: a broken pattern
// or a failed event write skips that rule and the rest still run.
func (s *WafService) Evaluate(ctx context.Context, req *models.WafRequest) (*models.WafValidationResult, error) {
	result := &models.WafValidationResult{Allowed: true}
	if !s.enabled {
		return result, nil
	}

	rules, err := s.rules.ListEnabledOrdered(ctx)
	if err != nil {
		return nil, err
	}

	content := s.requestContent(req)

	for _, rule := range rules {
		re, err := s.compile(rule)
		if err != nil {
			s.logger.Error("skipping rule with invalid pattern",
				slog.String("rule", rule.Name),
				slog.String("error", err.Error()),
			)
			continue
		}

		matched := re.FindString(content)
		if matched == "" && !re.MatchString(content) {
			continue
		}

		action := rule.Action
		if s.mode == models.WafModeDetect && action == models.ActionBlock {
			action = models.ActionLog
		}

		if len(matched) > matchedContentLimit {
			matched = matched[:matchedContentLimit]
		}

		event := &models.WafEvent{
			RuleID:         rule.ID,
			RuleName:       rule.Name,
			Category:       rule.Category,
			ActionTaken:    action,
			SourceIP:       req.SourceIP,
			RequestMethod:  req.Method,
			RequestPath:    req.Path,
			MatchedPattern: rule.Pattern,
			MatchedContent: matched,
			Severity:       rule.Severity,
			UserAgent:      req.UserAgent,
		}
		if _, err := s.events.Create(ctx, event); err != nil {
			s.logger.Error("failed to persist waf event",
				slog.String("rule", rule.Name),
				slog.String("error", err.Error()),
			)
		}

		s.audit.LogThreatEvent("WAF_"+rule.Category, rule.Severity, req.SourceIP,
			fmt.Sprintf("rule %q matched %s %s", rule.Name, req.Method, req.Path))

		result.Violations = append(result.Violations, models.WafViolation{
			RuleID:         rule.ID,
			RuleName:       rule.Name,
			Category:       rule.Category,
			Severity:       rule.Severity,
			MatchedPattern: rule.Pattern,
			MatchedContent: matched,
			Action:         action,
		})

		if action == models.ActionBlock {
			result.Allowed = false
		}
	}

	return result, nil
}

// requestContent flattens the parts of the request the rules inspect:
// path, body, query values, and header values.
func (s *WafService) requestContent(req *models.WafRequest) string {
	parts := make([]string, 0, 2+len(req.QueryParams)+len(req.Headers))
	parts = append(parts, req.Path, req.Body)
	for _, v := range req.QueryParams {
		parts = append(parts, v)
	}
	for _, v := range req.Headers {
		parts = append(parts, v)
	}

	content := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if content != "" {
			content += "\n"
		}
		content += p
	}
	return content
}

func (s *WafService) compile(rule *models.WafRule) (*regexp.Regexp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.compiled[rule.ID]; ok && c.pattern == rule.Pattern {
		return c.re, nil
	}

	re, err := regexp.Compile("(?i)" + rule.Pattern)
	if err != nil {
		return nil, err
	}

	s.compiled[rule.ID] = compiledPattern{pattern: rule.Pattern, re: re}
	return re, nil
}

// CreateRule adds a WAF rule after checking the pattern compiles.
func (s *WafService) CreateRule(ctx context.Context, rule *models.WafRule, actor string) (*models.WafRule, error) {
	if _, err := regexp.Compile("(?i)" + rule.Pattern); err != nil {
		return nil, fmt.Errorf("%w: invalid pattern: %v", models.ErrValidation, err)
	}
	if rule.Action != models.ActionBlock && rule.Action != models.ActionLog {
		return nil, fmt.Errorf("%w: action must be BLOCK or LOG", models.ErrValidation)
	}

	created, err := s.rules.Create(ctx, rule)
	if err != nil {
		return nil, err
	}

	s.audit.LogSecurityAction("waf_rule_created", actor, created.Name, map[string]string{
		"category": created.Category,
		"action":   created.Action,
	})

	return created, nil
}

// UpdateRule replaces a rule's definition after checking the pattern.
func (s *WafService) UpdateRule(ctx context.Context, rule *models.WafRule, actor string) (*models.WafRule, error) {
	if _, err := regexp.Compile("(?i)" + rule.Pattern); err != nil {
		return nil, fmt.Errorf("%w: invalid pattern: %v", models.ErrValidation, err)
	}

	updated, err := s.rules.Update(ctx, rule)
	if err != nil {
		return nil, err
	}

	s.audit.LogSecurityAction("waf_rule_updated", actor, updated.Name, nil)

	return updated, nil
}

// SetRuleEnabled toggles a rule.
func (s *WafService) SetRuleEnabled(ctx context.Context, id string, enabled bool, actor string) error {
	if err := s.rules.SetEnabled(ctx, id, enabled); err != nil {
		return err
	}

	s.audit.LogSecurityAction("waf_rule_toggled", actor, id, map[string]string{
		"enabled": fmt.Sprintf("%t", enabled),
	})

	return nil
}

// GetRule returns one rule.
func (s *WafService) GetRule(ctx context.Context, id string) (*models.WafRule, error) {
	return s.rules.GetByID(ctx, id)
}

// ListRules returns all rules in evaluation order.
func (s *WafService) ListRules(ctx context.Context) ([]*models.WafRule, error) {
	return s.rules.List(ctx)
}

// DeleteRule removes a rule.
func (s *WafService) DeleteRule(ctx context.Context, id, actor string) error {
	if err := s.rules.Delete(ctx, id); err != nil {
		return err
	}

	s.audit.LogSecurityAction("waf_rule_deleted", actor, id, nil)

	return nil
}

// ListEvents returns match events with an optional category filter.
func (s *WafService) ListEvents(ctx context.Context, category string, limit, offset int) ([]*models.WafEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.events.List(ctx, category, limit, offset)
}

// Config reports the running firewall configuration.
func (s *WafService) Config() *models.WafConfig {
	return &models.WafConfig{Enabled: s.enabled, Mode: s.mode}
}

// Stats assembles the WAF activity summary.
func (s *WafService) Stats(ctx context.Context) (*models.WafStats, error) {
	now := time.Now()
	last24h := now.Add(-24 * time.Hour)
	last7d := now.Add(-7 * 24 * time.Hour)

	stats := &models.WafStats{
		WafMode:    s.mode,
		WafEnabled: s.enabled,
	}

	var err error
	if stats.TotalEventsLast24h, err = s.events.CountSince(ctx, last24h); err != nil {
		return nil, err
	}
	if stats.TotalEventsLast7d, err = s.events.CountSince(ctx, last7d); err != nil {
		return nil, err
	}
	if stats.TotalRules, err = s.rules.Count(ctx); err != nil {
		return nil, err
	}
	if stats.ActiveRules, err = s.rules.CountEnabled(ctx); err != nil {
		return nil, err
	}
	if stats.EventsByCategory, err = s.events.CountByCategorySince(ctx, last7d); err != nil {
		return nil, err
	}
	if stats.EventsByAction, err = s.events.CountByActionSince(ctx, last7d); err != nil {
		return nil, err
	}

	return stats, nil
}

// CleanupOldEvents enforces event retention.
func (s *WafService) CleanupOldEvents(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return s.events.DeleteOlderThan(ctx, cutoff)
}
