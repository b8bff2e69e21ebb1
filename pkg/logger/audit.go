package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserID        string
	Identifier    string
	SessionID     string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger is the shared event sink for authentication outcomes and
// security actions. Both the login path and the threat/WAF services write
// through it.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogAuthAttempt logs login, refresh, and two-factor outcomes
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.Identifier != "" {
		attrs = append(attrs, slog.String("identifier", SanitizedIdentifier(event.Identifier)))
	}
	if event.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", event.SessionID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}

	if event.Success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
	}
}

// LogSecurityAction logs blocklist and rule administration actions
func (al *AuditLogger) LogSecurityAction(eventType, actor, target string, metadata map[string]string) {
	attrs := []slog.Attr{
		slog.String("audit_type", "security"),
		slog.String("event_type", eventType),
		slog.String("actor", actor),
		slog.String("target", target),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	for key, val := range metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
}

// LogThreatEvent logs a detected threat at a level matching its severity
func (al *AuditLogger) LogThreatEvent(eventType, severity, sourceIP, description string) {
	attrs := []slog.Attr{
		slog.String("audit_type", "threat"),
		slog.String("event_type", eventType),
		slog.String("severity", severity),
		slog.String("source_ip", sourceIP),
		slog.String("description", description),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	level := slog.LevelInfo
	if severity == "HIGH" || severity == "CRITICAL" {
		level = slog.LevelWarn
	}

	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}
