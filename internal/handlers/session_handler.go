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

// SessionServiceInterface defines the session management contract.
type SessionServiceInterface interface {
	List(ctx context.Context, userID string) ([]*models.Session, error)
	Revoke(ctx context.Context, userID, sessionID, reason string) error
	RevokeAll(ctx context.Context, userID, exceptSessionID, reason string) (int64, error)
}

// SessionHandler handles session management HTTP requests.
type SessionHandler struct {
	service SessionServiceInterface
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(service SessionServiceInterface) *SessionHandler {
	return &SessionHandler{service: service}
}

// RevokeAllRequest controls whether the caller's own session survives.
type RevokeAllRequest struct {
	KeepCurrent bool `json:"keepCurrent"`
}

// List handles GET /v1/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	sessions, err := h.service.List(r.Context(), claims.Subject)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// The caller's current session is flagged so clients can label it.
	type sessionView struct {
		*models.Session
		Current bool `json:"current"`
	}
	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, sessionView{Session: s, Current: s.ID == claims.SessionID})
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"sessions": views})
}

// Revoke handles DELETE /v1/sessions/{sessionID}
func (h *SessionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		pkghttp.WriteBadRequest(w, "session id is required")
		return
	}

	if err := h.service.Revoke(r.Context(), claims.Subject, sessionID, "revoked by user"); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// RevokeAll handles POST /v1/sessions/revoke-all
func (h *SessionHandler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req RevokeAllRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	except := ""
	if req.KeepCurrent {
		except = claims.SessionID
	}

	count, err := h.service.RevokeAll(r.Context(), claims.Subject, except, "revoked all by user")
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"revoked": count})
}
