package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mwhitfield/aegis/internal/models"
	pkghttp "github.com/mwhitfield/aegis/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBlockChecker struct {
	blocked bool
	err     error
	lastIP  string
}

func (s *stubBlockChecker) IsBlocked(ctx context.Context, ip string) (bool, error) {
	s.lastIP = ip
	return s.blocked, s.err
}

type stubGeoChecker struct {
	allowed     bool
	err         error
	lastCountry string
	called      bool
}

func (s *stubGeoChecker) Allowed(ctx context.Context, countryCode string) (bool, error) {
	s.called = true
	s.lastCountry = countryCode
	return s.allowed, s.err
}

func gateRequest(t *testing.T, blocks *stubBlockChecker, geo *stubGeoChecker, country string) *httptest.ResponseRecorder {
	t.Helper()

	handler := SecurityGate(blocks, geo, &pkghttp.IPConfig{}, slog.Default())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/otp/request", nil)
	req.RemoteAddr = "203.0.113.10:54321"
	if country != "" {
		req.Header.Set("X-Country-Code", country)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSecurityGate_CleanRequestPasses(t *testing.T) {
	blocks := &stubBlockChecker{}
	geo := &stubGeoChecker{allowed: true}

	rec := gateRequest(t, blocks, geo, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "203.0.113.10", blocks.lastIP)
	assert.False(t, geo.called, "no country header, no geo lookup")
}

func TestSecurityGate_BlockedIP(t *testing.T) {
	blocks := &stubBlockChecker{blocked: true}

	rec := gateRequest(t, blocks, &stubGeoChecker{allowed: true}, "")

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSecurityGate_BlockCheckFailureFailsClosed(t *testing.T) {
	blocks := &stubBlockChecker{err: errors.New("redis down")}

	rec := gateRequest(t, blocks, &stubGeoChecker{allowed: true}, "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSecurityGate_BlockedCountry(t *testing.T) {
	geo := &stubGeoChecker{allowed: false}

	rec := gateRequest(t, &stubBlockChecker{}, geo, "XX")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "XX", geo.lastCountry)
}

func TestSecurityGate_AllowedCountry(t *testing.T) {
	geo := &stubGeoChecker{allowed: true}

	rec := gateRequest(t, &stubBlockChecker{}, geo, "SE")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, geo.called)
}

type stubWaf struct {
	result  *models.WafValidationResult
	err     error
	lastReq *models.WafRequest
}

func (s *stubWaf) Evaluate(ctx context.Context, req *models.WafRequest) (*models.WafValidationResult, error) {
	s.lastReq = req
	return s.result, s.err
}

func TestWafGate_AllowedRequestKeepsBody(t *testing.T) {
	waf := &stubWaf{result: &models.WafValidationResult{Allowed: true}}

	var seenBody string
	handler := WafGate(waf, &pkghttp.IPConfig{}, slog.Default())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			seenBody = string(body)
			w.WriteHeader(http.StatusOK)
		}),
	)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/otp/login?device=ios", strings.NewReader(`{"code":"123456"}`))
	req.RemoteAddr = "203.0.113.10:54321"
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"code":"123456"}`, seenBody, "body is restored for the handler")

	require.NotNil(t, waf.lastReq)
	assert.Equal(t, `{"code":"123456"}`, waf.lastReq.Body)
	assert.Equal(t, "ios", waf.lastReq.QueryParams["device"])
	assert.NotContains(t, waf.lastReq.Headers, "Authorization", "credentials are not inspected")
}

func TestWafGate_BlockedRequest(t *testing.T) {
	waf := &stubWaf{result: &models.WafValidationResult{Allowed: false}}

	handler := WafGate(waf, &pkghttp.IPConfig{}, slog.Default())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("blocked request must not reach the handler")
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/search?q=union+select", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWafGate_EvaluationFailureFailsClosed(t *testing.T) {
	waf := &stubWaf{err: errors.New("rule load failed")}

	handler := WafGate(waf, &pkghttp.IPConfig{}, slog.Default())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("request must not reach the handler when inspection fails")
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
