package models

import "time"

// Threat event types.
const (
	ThreatEventLoginFailure = "LOGIN_FAILURE"
	ThreatEventBruteForce   = "BRUTE_FORCE"
)

// Threat severities.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// Rule actions.
const (
	ActionLog   = "LOG"
	ActionBlock = "BLOCK"
)

// BlockedIP is a blocklist entry for an exact IP or a CIDR range.
// Temporary entries carry ExpiresAt; the block check is always time-aware,
// so an expired entry stops blocking before the cleanup sweep removes it.
type BlockedIP struct {
	ID          string     `json:"id"`
	IPAddress   string     `json:"ipAddress"`
	CIDRRange   *string    `json:"cidrRange,omitempty"`
	Reason      string     `json:"reason"`
	IsPermanent bool       `json:"isPermanent"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	BlockedBy   string     `json:"blockedBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// ActiveAt reports whether the entry still blocks at the given instant.
func (b *BlockedIP) ActiveAt(now time.Time) bool {
	if b.IsPermanent {
		return true
	}
	return b.ExpiresAt != nil && b.ExpiresAt.After(now)
}

// GeoBlockRule allows or denies a country code.
type GeoBlockRule struct {
	ID          string    `json:"id"`
	CountryCode string    `json:"countryCode"`
	Allow       bool      `json:"allow"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ThreatRule configures detection for one attack pattern.
type ThreatRule struct {
	ID                     string    `json:"id"`
	Name                   string    `json:"name"`
	RuleType               string    `json:"ruleType"`
	Threshold              int       `json:"threshold"`
	WindowMinutes          int       `json:"windowMinutes"`
	Severity               string    `json:"severity"`
	Action                 string    `json:"action"`
	AutoBlockDurationHours *int      `json:"autoBlockDurationHours,omitempty"`
	Enabled                bool      `json:"enabled"`
	CreatedAt              time.Time `json:"createdAt"`
}

// ThreatEvent records a notable security signal. Mutated only by
// resolution, which is a terminal transition.
type ThreatEvent struct {
	ID           string     `json:"id"`
	EventType    string     `json:"eventType"`
	Severity     string     `json:"severity"`
	SourceIP     string     `json:"sourceIp"`
	TargetUserID string     `json:"targetUserId,omitempty"`
	TargetEmail  string     `json:"targetEmail,omitempty"`
	Description  string     `json:"description"`
	Details      string     `json:"details,omitempty"`
	Resolved     bool       `json:"resolved"`
	ResolvedBy   string     `json:"resolvedBy,omitempty"`
	ResolvedAt   *time.Time `json:"resolvedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// ThreatDashboard is the aggregated summary for security operations.
type ThreatDashboard struct {
	TotalThreatsLast24h int64            `json:"totalThreatsLast24h"`
	TotalThreatsLast7d  int64            `json:"totalThreatsLast7d"`
	TotalBlockedIPs     int64            `json:"totalBlockedIps"`
	ActiveGeoBlockRules int64            `json:"activeGeoBlockRules"`
	UnresolvedThreats   int64            `json:"unresolvedThreats"`
	ThreatsByType       map[string]int64 `json:"threatsByType"`
	ThreatsBySeverity   map[string]int64 `json:"threatsBySeverity"`
}
