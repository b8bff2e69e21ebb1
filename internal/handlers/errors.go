package handlers

import (
	"errors"
	"net/http"

	"github.com/mwhitfield/aegis/internal/models"
	pkghttp "github.com/mwhitfield/aegis/pkg/http"
)

// writeServiceError maps sentinel errors from the service layer to HTTP
// responses. Anything unmapped is an internal error and is not echoed to
// the client.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		pkghttp.WriteBadRequest(w, err.Error())
	case errors.Is(err, models.ErrInvalidCode):
		pkghttp.WriteError(w, http.StatusUnauthorized, "INVALID_CODE", "invalid or expired code")
	case errors.Is(err, models.ErrTokenExpired):
		pkghttp.WriteError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "token expired")
	case errors.Is(err, models.ErrTokenInvalid), errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "invalid token")
	case errors.Is(err, models.ErrSessionRevoked):
		pkghttp.WriteUnauthorized(w, "session revoked")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "forbidden")
	case errors.Is(err, models.ErrLastLoginMethod):
		pkghttp.WriteConflict(w, "cannot remove the last remaining login method")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "resource not found")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "resource already exists")
	case errors.Is(err, models.ErrRateLimited):
		pkghttp.WriteTooManyRequests(w, "too many attempts")
	case errors.Is(err, models.ErrServiceUnavailable):
		pkghttp.WriteServiceUnavailable(w, "a dependent service is unavailable")
	default:
		pkghttp.WriteInternalError(w, "internal error")
	}
}
