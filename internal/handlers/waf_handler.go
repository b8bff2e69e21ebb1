package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mwhitfield/aegis/internal/auth"
	"github.com/mwhitfield/aegis/internal/models"
	pkghttp "github.com/mwhitfield/aegis/pkg/http"
)

// WafServiceInterface defines the WAF administration contract.
type WafServiceInterface interface {
	CreateRule(ctx context.Context, rule *models.WafRule, actor string) (*models.WafRule, error)
	UpdateRule(ctx context.Context, rule *models.WafRule, actor string) (*models.WafRule, error)
	SetRuleEnabled(ctx context.Context, id string, enabled bool, actor string) error
	GetRule(ctx context.Context, id string) (*models.WafRule, error)
	ListRules(ctx context.Context) ([]*models.WafRule, error)
	DeleteRule(ctx context.Context, id, actor string) error
	ListEvents(ctx context.Context, category string, limit, offset int) ([]*models.WafEvent, error)
	Config() *models.WafConfig
	Stats(ctx context.Context) (*models.WafStats, error)
	Evaluate(ctx context.Context, req *models.WafRequest) (*models.WafValidationResult, error)
}

// WafHandler handles WAF administration HTTP requests. Admin only.
type WafHandler struct {
	service WafServiceInterface
}

// NewWafHandler creates a new WafHandler.
func NewWafHandler(service WafServiceInterface) *WafHandler {
	return &WafHandler{service: service}
}

// WafRuleRequest describes a WAF rule.
type WafRuleRequest struct {
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description,omitempty" validate:"omitempty,max=512"`
	Category    string `json:"category" validate:"required,max=64"`
	Pattern     string `json:"pattern" validate:"required,max=1024"`
	Severity    string `json:"severity" validate:"required,oneof=LOW MEDIUM HIGH CRITICAL"`
	Priority    int    `json:"priority" validate:"gte=0,lte=10000"`
	Enabled     bool   `json:"enabled"`
	Action      string `json:"action" validate:"required,oneof=LOG BLOCK"`
}

// ToggleRequest enables or disables a rule.
type ToggleRequest struct {
	Enabled bool `json:"enabled"`
}

// CreateRule handles POST /v1/waf/rules
func (h *WafHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req WafRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	rule, err := h.service.CreateRule(r.Context(), &models.WafRule{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Pattern:     req.Pattern,
		Severity:    req.Severity,
		Priority:    req.Priority,
		Enabled:     req.Enabled,
		Action:      req.Action,
	}, claims.Subject)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, rule)
}

// UpdateRule handles PUT /v1/waf/rules/{ruleID}
func (h *WafHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req WafRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	rule, err := h.service.UpdateRule(r.Context(), &models.WafRule{
		ID:          chi.URLParam(r, "ruleID"),
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Pattern:     req.Pattern,
		Severity:    req.Severity,
		Priority:    req.Priority,
		Enabled:     req.Enabled,
		Action:      req.Action,
	}, claims.Subject)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, rule)
}

// ToggleRule handles PATCH /v1/waf/rules/{ruleID}
func (h *WafHandler) ToggleRule(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req ToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}

	if err := h.service.SetRuleEnabled(r.Context(), chi.URLParam(r, "ruleID"), req.Enabled, claims.Subject); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

// GetRule handles GET /v1/waf/rules/{ruleID}
func (h *WafHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.service.GetRule(r.Context(), chi.URLParam(r, "ruleID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, rule)
}

// ListRules handles GET /v1/waf/rules
func (h *WafHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.ListRules(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

// DeleteRule handles DELETE /v1/waf/rules/{ruleID}
func (h *WafHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	if err := h.service.DeleteRule(r.Context(), chi.URLParam(r, "ruleID"), claims.Subject); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListEvents handles GET /v1/waf/events
func (h *WafHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	events, err := h.service.ListEvents(r.Context(), r.URL.Query().Get("category"), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

// GetConfig handles GET /v1/waf/config
func (h *WafHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, h.service.Config())
}

// Stats handles GET /v1/waf/stats
func (h *WafHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, stats)
}

// Validate handles POST /v1/waf/validate: dry-run evaluation of a request
// payload against the active rule set, for testing rules before rollout.
func (h *WafHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req models.WafRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}

	result, err := h.service.Evaluate(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}
