package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mwhitfield/aegis/internal/auth"
	"github.com/mwhitfield/aegis/internal/models"
	"github.com/mwhitfield/aegis/internal/services"
	pkghttp "github.com/mwhitfield/aegis/pkg/http"
	"github.com/mwhitfield/aegis/pkg/iputil"
)

// ThreatServiceInterface defines the threat operations contract.
type ThreatServiceInterface interface {
	ListEvents(ctx context.Context, eventType, severity string, limit, offset int) ([]*models.ThreatEvent, error)
	ResolveEvent(ctx context.Context, id, resolvedBy string) (*models.ThreatEvent, error)
	Dashboard(ctx context.Context) (*models.ThreatDashboard, error)
	CreateRule(ctx context.Context, rule *models.ThreatRule) (*models.ThreatRule, error)
	ListRules(ctx context.Context) ([]*models.ThreatRule, error)
	DeleteRule(ctx context.Context, id string) error
}

// IPBlockServiceInterface defines the blocklist administration contract.
type IPBlockServiceInterface interface {
	Block(ctx context.Context, req services.BlockIPRequest) (*models.BlockedIP, error)
	Unblock(ctx context.Context, id, actor string) error
	List(ctx context.Context, limit, offset int) ([]*models.BlockedIP, error)
	IsBlocked(ctx context.Context, ip string) (bool, error)
}

// GeoBlockServiceInterface defines the geo rule administration contract.
type GeoBlockServiceInterface interface {
	CreateRule(ctx context.Context, countryCode string, allow, enabled bool, actor string) (*models.GeoBlockRule, error)
	ListRules(ctx context.Context) ([]*models.GeoBlockRule, error)
	DeleteRule(ctx context.Context, id, actor string) error
}

// SecurityHandler handles the security operations API. Admin only.
type SecurityHandler struct {
	threats ThreatServiceInterface
	blocks  IPBlockServiceInterface
	geo     GeoBlockServiceInterface
}

// NewSecurityHandler creates a new SecurityHandler.
func NewSecurityHandler(threats ThreatServiceInterface, blocks IPBlockServiceInterface, geo GeoBlockServiceInterface) *SecurityHandler {
	return &SecurityHandler{
		threats: threats,
		blocks:  blocks,
		geo:     geo,
	}
}

// BlockIPRequestBody describes a manual blocklist entry.
type BlockIPRequestBody struct {
	IPAddress   string `json:"ipAddress" validate:"required,max=64"`
	CIDRRange   string `json:"cidrRange,omitempty" validate:"omitempty,max=64"`
	Reason      string `json:"reason" validate:"required,max=512"`
	IsPermanent bool   `json:"isPermanent"`
	Hours       int    `json:"hours,omitempty" validate:"omitempty,gte=1,lte=8760"`
}

// CreateThreatRuleRequest describes a detection rule.
type CreateThreatRuleRequest struct {
	Name                   string `json:"name" validate:"required,max=128"`
	RuleType               string `json:"ruleType" validate:"required,oneof=BRUTE_FORCE"`
	Threshold              int    `json:"threshold" validate:"required,gte=1"`
	WindowMinutes          int    `json:"windowMinutes" validate:"required,gte=1"`
	Severity               string `json:"severity" validate:"required,oneof=LOW MEDIUM HIGH CRITICAL"`
	Action                 string `json:"action" validate:"required,oneof=LOG BLOCK"`
	AutoBlockDurationHours *int   `json:"autoBlockDurationHours,omitempty" validate:"omitempty,gte=1,lte=8760"`
	Enabled                bool   `json:"enabled"`
}

// CreateGeoRuleRequest describes a country rule.
type CreateGeoRuleRequest struct {
	CountryCode string `json:"countryCode" validate:"required,len=2"`
	Allow       bool   `json:"allow"`
	Enabled     bool   `json:"enabled"`
}

// Dashboard handles GET /v1/security/dashboard
func (h *SecurityHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.threats.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, dashboard)
}

// ListEvents handles GET /v1/security/events
func (h *SecurityHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	events, err := h.threats.ListEvents(r.Context(),
		r.URL.Query().Get("type"),
		r.URL.Query().Get("severity"),
		limit, offset,
	)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

// ResolveEvent handles POST /v1/security/events/{eventID}/resolve
func (h *SecurityHandler) ResolveEvent(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	event, err := h.threats.ResolveEvent(r.Context(), chi.URLParam(r, "eventID"), claims.Subject)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, event)
}

// CreateThreatRule handles POST /v1/security/rules
func (h *SecurityHandler) CreateThreatRule(w http.ResponseWriter, r *http.Request) {
	var req CreateThreatRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	rule, err := h.threats.CreateRule(r.Context(), &models.ThreatRule{
		Name:                   req.Name,
		RuleType:               req.RuleType,
		Threshold:              req.Threshold,
		WindowMinutes:          req.WindowMinutes,
		Severity:               req.Severity,
		Action:                 req.Action,
		AutoBlockDurationHours: req.AutoBlockDurationHours,
		Enabled:                req.Enabled,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, rule)
}

// ListThreatRules handles GET /v1/security/rules
func (h *SecurityHandler) ListThreatRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.threats.ListRules(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

// DeleteThreatRule handles DELETE /v1/security/rules/{ruleID}
func (h *SecurityHandler) DeleteThreatRule(w http.ResponseWriter, r *http.Request) {
	if err := h.threats.DeleteRule(r.Context(), chi.URLParam(r, "ruleID")); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// BlockIP handles POST /v1/security/blocked-ips
func (h *SecurityHandler) BlockIP(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req BlockIPRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	entry, err := h.blocks.Block(r.Context(), services.BlockIPRequest{
		IPAddress:   req.IPAddress,
		CIDRRange:   req.CIDRRange,
		Reason:      req.Reason,
		IsPermanent: req.IsPermanent,
		Hours:       req.Hours,
		BlockedBy:   claims.Subject,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, entry)
}

// UnblockIP handles DELETE /v1/security/blocked-ips/{blockID}
func (h *SecurityHandler) UnblockIP(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	if err := h.blocks.Unblock(r.Context(), chi.URLParam(r, "blockID"), claims.Subject); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "unblocked"})
}

// CheckIP handles GET /v1/security/blocked-ips/check
func (h *SecurityHandler) CheckIP(w http.ResponseWriter, r *http.Request) {
	ip := r.URL.Query().Get("ip")
	if !iputil.IsValidIP(ip) {
		pkghttp.WriteBadRequest(w, "invalid ip parameter")
		return
	}

	blocked, err := h.blocks.IsBlocked(r.Context(), ip)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"ipAddress": ip,
		"blocked":   blocked,
	})
}

// ListBlockedIPs handles GET /v1/security/blocked-ips
func (h *SecurityHandler) ListBlockedIPs(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	entries, err := h.blocks.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"blockedIps": entries})
}

// CreateGeoRule handles POST /v1/security/geo-rules
func (h *SecurityHandler) CreateGeoRule(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req CreateGeoRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	rule, err := h.geo.CreateRule(r.Context(), req.CountryCode, req.Allow, req.Enabled, claims.Subject)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, rule)
}

// ListGeoRules handles GET /v1/security/geo-rules
func (h *SecurityHandler) ListGeoRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.geo.ListRules(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

// DeleteGeoRule handles DELETE /v1/security/geo-rules/{ruleID}
func (h *SecurityHandler) DeleteGeoRule(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	if err := h.geo.DeleteRule(r.Context(), chi.URLParam(r, "ruleID"), claims.Subject); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
