package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mwhitfield/aegis/internal/auth"
	"github.com/mwhitfield/aegis/internal/services"
	pkghttp "github.com/mwhitfield/aegis/pkg/http"
)

// TwoFactorServiceInterface defines the 2FA management contract.
type TwoFactorServiceInterface interface {
	Setup(ctx context.Context, userID, accountName string) (*services.TwoFactorSetup, error)
	Activate(ctx context.Context, userID, code string) error
	Disable(ctx context.Context, userID, code string) error
	RegenerateBackupCodes(ctx context.Context, userID, code string) ([]string, error)
	Status(ctx context.Context, userID string) (*services.TwoFactorStatus, error)
}

// TwoFactorHandler handles 2FA management HTTP requests. All endpoints
// require an authenticated caller.
type TwoFactorHandler struct {
	service TwoFactorServiceInterface
}

// NewTwoFactorHandler creates a new TwoFactorHandler.
func NewTwoFactorHandler(service TwoFactorServiceInterface) *TwoFactorHandler {
	return &TwoFactorHandler{service: service}
}

// TwoFactorCodeRequest carries a TOTP or backup code.
type TwoFactorCodeRequest struct {
	Code string `json:"code" validate:"required,min=4,max=10"`
}

// Setup handles POST /v1/2fa/setup
func (h *TwoFactorHandler) Setup(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	setup, err := h.service.Setup(r.Context(), claims.Subject, claims.Identifier)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, setup)
}

// Activate handles POST /v1/2fa/activate
func (h *TwoFactorHandler) Activate(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req TwoFactorCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.Activate(r.Context(), claims.Subject, req.Code); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "enabled"})
}

// Disable handles POST /v1/2fa/disable
func (h *TwoFactorHandler) Disable(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req TwoFactorCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.Disable(r.Context(), claims.Subject, req.Code); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
}

// RegenerateBackupCodes handles POST /v1/2fa/backup-codes
func (h *TwoFactorHandler) RegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req TwoFactorCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	codes, err := h.service.RegenerateBackupCodes(r.Context(), claims.Subject, req.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"backupCodes": codes})
}

// Status handles GET /v1/2fa/status
func (h *TwoFactorHandler) Status(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	status, err := h.service.Status(r.Context(), claims.Subject)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, status)
}
