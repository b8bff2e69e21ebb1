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

// OAuthServiceInterface defines the provider link management contract.
type OAuthServiceInterface interface {
	Link(ctx context.Context, userID, provider, assertion string) (*models.OAuthConnection, error)
	Unlink(ctx context.Context, userID, provider string) error
	List(ctx context.Context, userID string) ([]*models.OAuthConnection, error)
}

// OAuthHandler handles provider link HTTP requests.
type OAuthHandler struct {
	service OAuthServiceInterface
}

// NewOAuthHandler creates a new OAuthHandler.
func NewOAuthHandler(service OAuthServiceInterface) *OAuthHandler {
	return &OAuthHandler{service: service}
}

// LinkRequest attaches a provider identity to the calling user.
type LinkRequest struct {
	Provider  string `json:"provider" validate:"required,oneof=google facebook apple github"`
	Assertion string `json:"assertion" validate:"required"`
}

// Link handles POST /v1/oauth/connections
func (h *OAuthHandler) Link(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req LinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	conn, err := h.service.Link(r.Context(), claims.Subject, req.Provider, req.Assertion)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, conn)
}

// Unlink handles DELETE /v1/oauth/connections/{provider}
func (h *OAuthHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	provider := chi.URLParam(r, "provider")
	if err := h.service.Unlink(r.Context(), claims.Subject, provider); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "unlinked"})
}

// List handles GET /v1/oauth/connections
func (h *OAuthHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	conns, err := h.service.List(r.Context(), claims.Subject)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"connections": conns})
}
