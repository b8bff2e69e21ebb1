package models

import "time"

// WAF operating modes.
const (
	WafModeDetect = "DETECT"
	WafModeBlock  = "BLOCK"
)

// WafRule is a pattern rule evaluated against inbound request content.
type WafRule struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category"`
	Pattern     string    `json:"pattern"`
	Severity    string    `json:"severity"`
	Priority    int       `json:"priority"`
	Enabled     bool      `json:"enabled"`
	Action      string    `json:"action"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// WafEvent is the write-once audit record of a rule match.
type WafEvent struct {
	ID             string    `json:"id"`
	RuleID         string    `json:"ruleId"`
	RuleName       string    `json:"ruleName"`
	Category       string    `json:"category"`
	ActionTaken    string    `json:"actionTaken"`
	SourceIP       string    `json:"sourceIp"`
	RequestMethod  string    `json:"requestMethod"`
	RequestPath    string    `json:"requestPath"`
	MatchedPattern string    `json:"matchedPattern"`
	MatchedContent string    `json:"matchedContent"`
	Severity       string    `json:"severity"`
	UserAgent      string    `json:"userAgent,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// WafRequest is the request content submitted for evaluation.
type WafRequest struct {
	SourceIP    string            `json:"sourceIp"`
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	Body        string            `json:"body,omitempty"`
	QueryParams map[string]string `json:"queryParams,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	UserAgent   string            `json:"userAgent,omitempty"`
}

// WafViolation is one rule match within a validation result.
type WafViolation struct {
	RuleID         string `json:"ruleId"`
	RuleName       string `json:"ruleName"`
	Category       string `json:"category"`
	Severity       string `json:"severity"`
	MatchedPattern string `json:"matchedPattern"`
	MatchedContent string `json:"matchedContent"`
	Action         string `json:"action"` // effective action after mode is applied
}

// WafValidationResult is the outcome of evaluating a request.
type WafValidationResult struct {
	Allowed    bool           `json:"allowed"`
	Violations []WafViolation `json:"violations,omitempty"`
}

// WafConfig is the running firewall configuration.
type WafConfig struct {
	Enabled bool   `json:"enabled"`
	Mode    string `json:"mode"`
}

// WafStats is the aggregated WAF activity summary.
type WafStats struct {
	TotalEventsLast24h int64            `json:"totalEventsLast24h"`
	TotalEventsLast7d  int64            `json:"totalEventsLast7d"`
	TotalRules         int64            `json:"totalRules"`
	ActiveRules        int64            `json:"activeRules"`
	WafMode            string           `json:"wafMode"`
	WafEnabled         bool             `json:"wafEnabled"`
	EventsByCategory   map[string]int64 `json:"eventsByCategory"`
	EventsByAction     map[string]int64 `json:"eventsByAction"`
}
