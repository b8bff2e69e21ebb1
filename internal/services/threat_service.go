package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mwhitfield/aegis/internal/models"
	"github.com/mwhitfield/aegis/pkg/logger"
)

// ThreatEventRepository is the persistence contract for threat events.
type ThreatEventRepository interface {
	Create(ctx context.Context, event *models.ThreatEvent) (*models.ThreatEvent, error)
	GetByID(ctx context.Context, id string) (*models.ThreatEvent, error)
	Resolve(ctx context.Context, id, resolvedBy string) (*models.ThreatEvent, error)
	List(ctx context.Context, eventType, severity string, limit, offset int) ([]*models.ThreatEvent, error)
	CountBySourceSince(ctx context.Context, sourceIP, eventType string, since time.Time) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	CountUnresolved(ctx context.Context) (int64, error)
	CountByTypeSince(ctx context.Context, since time.Time) (map[string]int64, error)
	CountBySeveritySince(ctx context.Context, since time.Time) (map[string]int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ThreatRuleRepository is the persistence contract for detection rules.
type ThreatRuleRepository interface {
	Create(ctx context.Context, rule *models.ThreatRule) (*models.ThreatRule, error)
	List(ctx context.Context) ([]*models.ThreatRule, error)
	ListEnabledByType(ctx context.Context, ruleType string) ([]*models.ThreatRule, error)
	Delete(ctx context.Context, id string) error
}

// AutoBlocker lets threat detection place temporary IP blocks without a
// direct dependency on the blocklist service.
type AutoBlocker interface {
	AutoBlock(ctx context.Context, ip, reason string, hours int) error
}

// GeoRuleCounter supplies the geo-rule figure for the dashboard.
type GeoRuleCounter interface {
	CountEnabled(ctx context.Context) (int64, error)
}

// BlockedIPCounter supplies the blocklist figure for the dashboard.
type BlockedIPCounter interface {
	CountActive(ctx context.Context) (int64, error)
}

// ThreatService records security signals, runs threshold detection over
// them, and serves the operations dashboard.
type ThreatService struct {
	events  ThreatEventRepository
	rules   ThreatRuleRepository
	blocker AutoBlocker
	geo     GeoRuleCounter
	blocks  BlockedIPCounter
	audit   *logger.AuditLogger
	logger  *slog.Logger
}

// NewThreatService creates a new ThreatService.
func NewThreatService(
	events ThreatEventRepository,
	rules ThreatRuleRepository,
	blocker AutoBlocker,
	geo GeoRuleCounter,
	blocks BlockedIPCounter,
	audit *logger.AuditLogger,
	log *slog.Logger,
) *ThreatService {
	return &ThreatService{
		events:  events,
		rules:   rules,
		blocker: blocker,
		geo:     geo,
		blocks:  blocks,
		audit:   audit,
		logger:  log,
	}
}

// RecordLoginFailure persists a LOGIN_FAILURE event and runs brute-force
// detection for its source IP. Detection failures are logged, never
// surfaced: a broken rule must not break the login path.
func (s *ThreatService) RecordLoginFailure(ctx context.Context, sourceIP, targetUserID, targetEmail, reason string) {
	event := &models.ThreatEvent{
		EventType:    models.ThreatEventLoginFailure,
		Severity:     models.SeverityLow,
		SourceIP:     sourceIP,
		TargetUserID: targetUserID,
		TargetEmail:  targetEmail,
		Description:  "login attempt failed",
		Details:      reason,
	}

	if _, err := s.events.Create(ctx, event); err != nil {
		s.logger.Error("failed to record login failure", slog.String("error", err.Error()))
		return
	}

	s.detectBruteForce(ctx, sourceIP, targetUserID, targetEmail)
}

// detectBruteForce evaluates each enabled brute-force rule over its own
// sliding window. The count includes the failure just recorded. A rule
// fires whenever the count has reached its threshold, so a burst that
// jumps past the threshold still detects; an existing BRUTE_FORCE event
// for the source inside the window suppresses duplicates.
func (s *ThreatService) detectBruteForce(ctx context.Context, sourceIP, targetUserID, targetEmail string) {
	rules, err := s.rules.ListEnabledByType(ctx, models.ThreatEventBruteForce)
	if err != nil {
		s.logger.Error("failed to load detection rules", slog.String("error", err.Error()))
		return
	}

	for _, rule := range rules {
		since := time.Now().Add(-time.Duration(rule.WindowMinutes) * time.Minute)
		count, err := s.events.CountBySourceSince(ctx, sourceIP, models.ThreatEventLoginFailure, since)
		if err != nil {
			s.logger.Error("failed to count login failures",
				slog.String("rule", rule.Name),
				slog.String("error", err.Error()),
			)
			continue
		}

		if count < int64(rule.Threshold) {
			continue
		}

		fired, err := s.events.CountBySourceSince(ctx, sourceIP, models.ThreatEventBruteForce, since)
		if err != nil {
			s.logger.Error("failed to count detection events",
				slog.String("rule", rule.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		if fired > 0 {
			continue
		}

		description := fmt.Sprintf("%d failed logins within %d minutes", count, rule.WindowMinutes)
		if _, err := s.events.Create(ctx, &models.ThreatEvent{
			EventType:    models.ThreatEventBruteForce,
			Severity:     rule.Severity,
			SourceIP:     sourceIP,
			TargetUserID: targetUserID,
			TargetEmail:  targetEmail,
			Description:  description,
			Details:      fmt.Sprintf("rule=%s threshold=%d", rule.Name, rule.Threshold),
		}); err != nil {
			s.logger.Error("failed to record brute force event",
				slog.String("rule", rule.Name),
				slog.String("error", err.Error()),
			)
			continue
		}

		s.audit.LogThreatEvent(models.ThreatEventBruteForce, rule.Severity, sourceIP, description)

		if rule.Action == models.ActionBlock && rule.AutoBlockDurationHours != nil {
			reason := fmt.Sprintf("brute force: %s", description)
			if err := s.blocker.AutoBlock(ctx, sourceIP, reason, *rule.AutoBlockDurationHours); err != nil {
				s.logger.Error("failed to auto-block source",
					slog.String("ip", sourceIP),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// ListEvents returns threat events with optional type/severity filters.
func (s *ThreatService) ListEvents(ctx context.Context, eventType, severity string, limit, offset int) ([]*models.ThreatEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.events.List(ctx, eventType, severity, limit, offset)
}

// ResolveEvent marks an event handled. Idempotent.
func (s *ThreatService) ResolveEvent(ctx context.Context, id, resolvedBy string) (*models.ThreatEvent, error) {
	event, err := s.events.Resolve(ctx, id, resolvedBy)
	if err != nil {
		return nil, err
	}

	s.audit.LogSecurityAction("threat_resolved", resolvedBy, id, nil)

	return event, nil
}

// Dashboard assembles the operations summary.
func (s *ThreatService) Dashboard(ctx context.Context) (*models.ThreatDashboard, error) {
	now := time.Now()
	last24h := now.Add(-24 * time.Hour)
	last7d := now.Add(-7 * 24 * time.Hour)

	dashboard := &models.ThreatDashboard{}

	var err error
	if dashboard.TotalThreatsLast24h, err = s.events.CountSince(ctx, last24h); err != nil {
		return nil, err
	}
	if dashboard.TotalThreatsLast7d, err = s.events.CountSince(ctx, last7d); err != nil {
		return nil, err
	}
	if dashboard.UnresolvedThreats, err = s.events.CountUnresolved(ctx); err != nil {
		return nil, err
	}
	if dashboard.ThreatsByType, err = s.events.CountByTypeSince(ctx, last7d); err != nil {
		return nil, err
	}
	if dashboard.ThreatsBySeverity, err = s.events.CountBySeveritySince(ctx, last7d); err != nil {
		return nil, err
	}
	if dashboard.TotalBlockedIPs, err = s.blocks.CountActive(ctx); err != nil {
		return nil, err
	}
	if dashboard.ActiveGeoBlockRules, err = s.geo.CountEnabled(ctx); err != nil {
		return nil, err
	}

	return dashboard, nil
}

// CreateRule adds a detection rule.
func (s *ThreatService) CreateRule(ctx context.Context, rule *models.ThreatRule) (*models.ThreatRule, error) {
	if rule.Threshold <= 0 || rule.WindowMinutes <= 0 {
		return nil, fmt.Errorf("%w: threshold and window must be positive", models.ErrValidation)
	}
	return s.rules.Create(ctx, rule)
}

// ListRules returns all detection rules.
func (s *ThreatService) ListRules(ctx context.Context) ([]*models.ThreatRule, error) {
	return s.rules.List(ctx)
}

// DeleteRule removes a detection rule.
func (s *ThreatService) DeleteRule(ctx context.Context, id string) error {
	return s.rules.Delete(ctx, id)
}

// CleanupOldEvents enforces event retention.
func (s *ThreatService) CleanupOldEvents(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return s.events.DeleteOlderThan(ctx, cutoff)
}
