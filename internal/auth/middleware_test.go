package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mwhitfield/aegis/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator struct {
	claims *models.TokenClaims
	err    error
}

func (s *stubValidator) ValidateAccessToken(ctx context.Context, token string) (*models.TokenClaims, error) {
	return s.claims, s.err
}

func runMiddleware(t *testing.T, validator AccessValidator, authHeader string) (*httptest.ResponseRecorder, *models.TokenClaims) {
	t.Helper()

	var captured *models.TokenClaims
	handler := Middleware(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetUserFromContext(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, captured
}

func TestMiddleware_ValidToken(t *testing.T) {
	validator := &stubValidator{claims: &models.TokenClaims{Type: models.TokenTypeAccess, Role: "user"}}

	rec, claims := runMiddleware(t, validator, "Bearer good-token")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, claims)
	assert.Equal(t, "user", claims.Role)
}

func TestMiddleware_MissingHeader(t *testing.T) {
	rec, _ := runMiddleware(t, &stubValidator{}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_MalformedHeader(t *testing.T) {
	for _, header := range []string{"Bearer", "Bearer ", "Basic dXNlcg==", "bearer token"} {
		rec, _ := runMiddleware(t, &stubValidator{}, header)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestMiddleware_ExpiredToken(t *testing.T) {
	validator := &stubValidator{err: models.ErrTokenExpired}

	rec, _ := runMiddleware(t, validator, "Bearer stale-token")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "TOKEN_EXPIRED")
}

func TestMiddleware_BlacklistUnavailableFailsClosed(t *testing.T) {
	validator := &stubValidator{err: models.ErrServiceUnavailable}

	rec, _ := runMiddleware(t, validator, "Bearer some-token")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// No claims in context at all.
	req := httptest.NewRequest(http.MethodGet, "/v1/security/blocked-ips", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong role.
	ctx := context.WithValue(req.Context(), UserContextKey, &models.TokenClaims{Role: "user"})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(ctx))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Matching role.
	ctx = context.WithValue(req.Context(), UserContextKey, &models.TokenClaims{Role: "admin"})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(ctx))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer abc.def.ghi")

	token, ok := BearerToken(req)
	require.True(t, ok)
	assert.Equal(t, "abc.def.ghi", token)
}
