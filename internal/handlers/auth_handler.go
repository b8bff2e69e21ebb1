package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mwhitfield/aegis/internal/models"
	"github.com/mwhitfield/aegis/internal/services"
	pkghttp "github.com/mwhitfield/aegis/pkg/http"
)

// AuthServiceInterface defines the login orchestration contract.
type AuthServiceInterface interface {
	RequestCode(ctx context.Context, identifier, channel string) error
	LoginWithCode(ctx context.Context, identifier, code string, client models.ClientInfo) (*services.LoginResult, error)
	LoginWithOAuth(ctx context.Context, provider, assertion string, client models.ClientInfo) (*services.LoginResult, error)
	CompleteTwoFactor(ctx context.Context, twoFactorToken, code string, client models.ClientInfo) (*services.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
}

// TokenIntrospector reports whether a presented token is currently valid.
type TokenIntrospector interface {
	Introspect(ctx context.Context, token, tokenType string) *models.TokenValidation
}

// AuthHandler handles authentication HTTP requests.
type AuthHandler struct {
	service    AuthServiceInterface
	introspect TokenIntrospector
	ipConfig   *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(service AuthServiceInterface, introspect TokenIntrospector, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:    service,
		introspect: introspect,
		ipConfig:   ipConfig,
	}
}

// RequestCodeRequest asks for a login passcode.
type RequestCodeRequest struct {
	Identifier string `json:"identifier" validate:"required,min=3,max=254"`
	Channel    string `json:"channel" validate:"required,oneof=sms email"`
}

// LoginRequest presents a passcode for login.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required,min=3,max=254"`
	Code       string `json:"code" validate:"required,min=4,max=10"`
	DeviceID   string `json:"deviceId" validate:"required,max=128"`
	DeviceType string `json:"deviceType,omitempty" validate:"omitempty,max=32"`
	DeviceName string `json:"deviceName,omitempty" validate:"omitempty,max=128"`
	PushToken  string `json:"pushToken,omitempty" validate:"omitempty,max=4096"`
}

// OAuthLoginRequest presents a provider assertion for login.
type OAuthLoginRequest struct {
	Provider   string `json:"provider" validate:"required,oneof=google facebook apple github"`
	Assertion  string `json:"assertion" validate:"required"`
	DeviceID   string `json:"deviceId" validate:"required,max=128"`
	DeviceType string `json:"deviceType,omitempty" validate:"omitempty,max=32"`
	DeviceName string `json:"deviceName,omitempty" validate:"omitempty,max=128"`
	PushToken  string `json:"pushToken,omitempty" validate:"omitempty,max=4096"`
}

// TwoFactorLoginRequest completes a login pending its second factor.
type TwoFactorLoginRequest struct {
	TwoFactorToken string `json:"twoFactorToken" validate:"required"`
	Code           string `json:"code" validate:"required,min=4,max=10"`
	DeviceID       string `json:"deviceId" validate:"required,max=128"`
	DeviceType     string `json:"deviceType,omitempty" validate:"omitempty,max=32"`
	DeviceName     string `json:"deviceName,omitempty" validate:"omitempty,max=128"`
	PushToken      string `json:"pushToken,omitempty" validate:"omitempty,max=4096"`
}

// RefreshRequest rotates a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// LogoutRequest revokes the current session's tokens.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}

// IntrospectRequest checks a token's validity.
type IntrospectRequest struct {
	Token     string `json:"token" validate:"required"`
	TokenType string `json:"tokenType,omitempty" validate:"omitempty,oneof=access refresh"`
}

// RequestCode handles POST /v1/auth/otp/request
func (h *AuthHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req RequestCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.RequestCode(r.Context(), req.Identifier, req.Channel); err != nil {
		writeServiceError(w, err)
		return
	}

	// 202 regardless of whether the identifier exists, so the endpoint
	// cannot be used to enumerate accounts.
	pkghttp.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

// Login handles POST /v1/auth/otp/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.LoginWithCode(r.Context(), req.Identifier, req.Code, h.clientInfo(r, req.DeviceID, req.DeviceType, req.DeviceName, req.PushToken))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// OAuthLogin handles POST /v1/auth/oauth/login
func (h *AuthHandler) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req OAuthLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.LoginWithOAuth(r.Context(), req.Provider, req.Assertion, h.clientInfo(r, req.DeviceID, req.DeviceType, req.DeviceName, req.PushToken))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// CompleteTwoFactor handles POST /v1/auth/2fa/login
func (h *AuthHandler) CompleteTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req TwoFactorLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.CompleteTwoFactor(r.Context(), req.TwoFactorToken, req.Code, h.clientInfo(r, req.DeviceID, req.DeviceType, req.DeviceName, req.PushToken))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// Refresh handles POST /v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, pair)
}

// Logout handles POST /v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	accessToken, _ := bearerToken(r)
	if err := h.service.Logout(r.Context(), accessToken, req.RefreshToken); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Introspect handles POST /v1/auth/introspect
func (h *AuthHandler) Introspect(w http.ResponseWriter, r *http.Request) {
	var req IntrospectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	tokenType := req.TokenType
	if tokenType == "" {
		tokenType = models.TokenTypeAccess
	}

	pkghttp.WriteJSON(w, http.StatusOK, h.introspect.Introspect(r.Context(), req.Token, tokenType))
}

func (h *AuthHandler) clientInfo(r *http.Request, deviceID, deviceType, deviceName, pushToken string) models.ClientInfo {
	return models.ClientInfo{
		IPAddress:  pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent:  r.UserAgent(),
		DeviceID:   deviceID,
		DeviceType: deviceType,
		DeviceName: deviceName,
		PushToken:  pushToken,
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(authHeader) > len(prefix) && authHeader[:len(prefix)] == prefix {
		return authHeader[len(prefix):], true
	}
	return "", false
}
