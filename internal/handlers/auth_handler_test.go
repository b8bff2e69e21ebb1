package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mwhitfield/aegis/internal/models"
	"github.com/mwhitfield/aegis/internal/services"
	pkghttp "github.com/mwhitfield/aegis/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockAuthService implements AuthServiceInterface for handler tests.
type MockAuthService struct {
	RequestCodeFunc       func(ctx context.Context, identifier, channel string) error
	LoginWithCodeFunc     func(ctx context.Context, identifier, code string, client models.ClientInfo) (*services.LoginResult, error)
	LoginWithOAuthFunc    func(ctx context.Context, provider, assertion string, client models.ClientInfo) (*services.LoginResult, error)
	CompleteTwoFactorFunc func(ctx context.Context, twoFactorToken, code string, client models.ClientInfo) (*services.LoginResult, error)
	RefreshFunc           func(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	LogoutFunc            func(ctx context.Context, accessToken, refreshToken string) error
}

func (m *MockAuthService) RequestCode(ctx context.Context, identifier, channel string) error {
	if m.RequestCodeFunc != nil {
		return m.RequestCodeFunc(ctx, identifier, channel)
	}
	return nil
}

func (m *MockAuthService) LoginWithCode(ctx context.Context, identifier, code string, client models.ClientInfo) (*services.LoginResult, error) {
	if m.LoginWithCodeFunc != nil {
		return m.LoginWithCodeFunc(ctx, identifier, code, client)
	}
	return &services.LoginResult{Tokens: &models.TokenPair{AccessToken: "access", RefreshToken: "refresh"}}, nil
}

func (m *MockAuthService) LoginWithOAuth(ctx context.Context, provider, assertion string, client models.ClientInfo) (*services.LoginResult, error) {
	if m.LoginWithOAuthFunc != nil {
		return m.LoginWithOAuthFunc(ctx, provider, assertion, client)
	}
	return &services.LoginResult{Tokens: &models.TokenPair{AccessToken: "access", RefreshToken: "refresh"}}, nil
}

func (m *MockAuthService) CompleteTwoFactor(ctx context.Context, twoFactorToken, code string, client models.ClientInfo) (*services.LoginResult, error) {
	if m.CompleteTwoFactorFunc != nil {
		return m.CompleteTwoFactorFunc(ctx, twoFactorToken, code, client)
	}
	return &services.LoginResult{Tokens: &models.TokenPair{AccessToken: "access", RefreshToken: "refresh"}}, nil
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return &models.TokenPair{AccessToken: "rotated-access", RefreshToken: "rotated-refresh"}, nil
}

func (m *MockAuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, accessToken, refreshToken)
	}
	return nil
}

// MockIntrospector implements TokenIntrospector for handler tests.
type MockIntrospector struct {
	IntrospectFunc func(ctx context.Context, token, tokenType string) *models.TokenValidation
}

func (m *MockIntrospector) Introspect(ctx context.Context, token, tokenType string) *models.TokenValidation {
	if m.IntrospectFunc != nil {
		return m.IntrospectFunc(ctx, token, tokenType)
	}
	return &models.TokenValidation{Valid: false}
}

func newAuthHandler(service AuthServiceInterface, introspect TokenIntrospector) *AuthHandler {
	return NewAuthHandler(service, introspect, &pkghttp.IPConfig{})
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.10:54321"
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestAuthHandler_RequestCode_Accepted(t *testing.T) {
	var gotIdentifier, gotChannel string
	service := &MockAuthService{
		RequestCodeFunc: func(ctx context.Context, identifier, channel string) error {
			gotIdentifier, gotChannel = identifier, channel
			return nil
		},
	}
	handler := newAuthHandler(service, &MockIntrospector{})

	rec := postJSON(t, handler.RequestCode, "/v1/auth/otp/request", RequestCodeRequest{
		Identifier: "+15551234567",
		Channel:    "sms",
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "+15551234567", gotIdentifier)
	assert.Equal(t, "sms", gotChannel)
}

func TestAuthHandler_RequestCode_ValidationFailure(t *testing.T) {
	handler := newAuthHandler(&MockAuthService{}, &MockIntrospector{})

	// Unknown channel never reaches the service.
	rec := postJSON(t, handler.RequestCode, "/v1/auth/otp/request", RequestCodeRequest{
		Identifier: "+15551234567",
		Channel:    "carrier-pigeon",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_RequestCode_RateLimited(t *testing.T) {
	service := &MockAuthService{
		RequestCodeFunc: func(ctx context.Context, identifier, channel string) error {
			return models.ErrRateLimited
		},
	}
	handler := newAuthHandler(service, &MockIntrospector{})

	rec := postJSON(t, handler.RequestCode, "/v1/auth/otp/request", RequestCodeRequest{
		Identifier: "+15551234567",
		Channel:    "sms",
	})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestAuthHandler_Login_Success(t *testing.T) {
	var gotClient models.ClientInfo
	service := &MockAuthService{
		LoginWithCodeFunc: func(ctx context.Context, identifier, code string, client models.ClientInfo) (*services.LoginResult, error) {
			gotClient = client
			return &services.LoginResult{
				Tokens:    &models.TokenPair{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 3600},
				SessionID: "session_1",
			}, nil
		},
	}
	handler := newAuthHandler(service, &MockIntrospector{})

	rec := postJSON(t, handler.Login, "/v1/auth/otp/login", LoginRequest{
		Identifier: "+15551234567",
		Code:       "482910",
		DeviceID:   "device_1",
		DeviceType: "ios",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "203.0.113.10", gotClient.IPAddress)
	assert.Equal(t, "device_1", gotClient.DeviceID)

	var result services.LoginResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "session_1", result.SessionID)
	require.NotNil(t, result.Tokens)
	assert.Equal(t, int64(3600), result.Tokens.ExpiresIn)
}

func TestAuthHandler_Login_InvalidCode(t *testing.T) {
	service := &MockAuthService{
		LoginWithCodeFunc: func(ctx context.Context, identifier, code string, client models.ClientInfo) (*services.LoginResult, error) {
			return nil, models.ErrInvalidCode
		},
	}
	handler := newAuthHandler(service, &MockIntrospector{})

	rec := postJSON(t, handler.Login, "/v1/auth/otp/login", LoginRequest{
		Identifier: "+15551234567",
		Code:       "000000",
		DeviceID:   "device_1",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_CODE")
}

func TestAuthHandler_Login_MissingDeviceID(t *testing.T) {
	handler := newAuthHandler(&MockAuthService{}, &MockIntrospector{})

	rec := postJSON(t, handler.Login, "/v1/auth/otp/login", LoginRequest{
		Identifier: "+15551234567",
		Code:       "482910",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_OAuthLogin_UnsupportedProvider(t *testing.T) {
	handler := newAuthHandler(&MockAuthService{}, &MockIntrospector{})

	rec := postJSON(t, handler.OAuthLogin, "/v1/auth/oauth/login", OAuthLoginRequest{
		Provider:  "myspace",
		Assertion: "assertion",
		DeviceID:  "device_1",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_CompleteTwoFactor_SuspendedUser(t *testing.T) {
	service := &MockAuthService{
		CompleteTwoFactorFunc: func(ctx context.Context, twoFactorToken, code string, client models.ClientInfo) (*services.LoginResult, error) {
			return nil, models.ErrForbidden
		},
	}
	handler := newAuthHandler(service, &MockIntrospector{})

	rec := postJSON(t, handler.CompleteTwoFactor, "/v1/auth/2fa/login", TwoFactorLoginRequest{
		TwoFactorToken: "pending-token",
		Code:           "482910",
		DeviceID:       "device_1",
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthHandler_Refresh_RevokedSession(t *testing.T) {
	service := &MockAuthService{
		RefreshFunc: func(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
			return nil, models.ErrSessionRevoked
		},
	}
	handler := newAuthHandler(service, &MockIntrospector{})

	rec := postJSON(t, handler.Refresh, "/v1/auth/refresh", RefreshRequest{RefreshToken: "stale"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_Logout_PassesBearerToken(t *testing.T) {
	var gotAccess, gotRefresh string
	service := &MockAuthService{
		LogoutFunc: func(ctx context.Context, accessToken, refreshToken string) error {
			gotAccess, gotRefresh = accessToken, refreshToken
			return nil
		},
	}
	handler := newAuthHandler(service, &MockIntrospector{})

	body, err := json.Marshal(LogoutRequest{RefreshToken: "refresh-token"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer access-token")
	rec := httptest.NewRecorder()
	handler.Logout(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "access-token", gotAccess)
	assert.Equal(t, "refresh-token", gotRefresh)
}

func TestAuthHandler_Introspect_DefaultsToAccess(t *testing.T) {
	var gotType string
	introspector := &MockIntrospector{
		IntrospectFunc: func(ctx context.Context, token, tokenType string) *models.TokenValidation {
			gotType = tokenType
			return &models.TokenValidation{Valid: true, UserID: "user_1"}
		},
	}
	handler := newAuthHandler(&MockAuthService{}, introspector)

	rec := postJSON(t, handler.Introspect, "/v1/auth/introspect", IntrospectRequest{Token: "some-token"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.TokenTypeAccess, gotType)

	var validation models.TokenValidation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &validation))
	assert.True(t, validation.Valid)
	assert.Equal(t, "user_1", validation.UserID)
}
