package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mwhitfield/aegis/internal/models"
	"github.com/mwhitfield/aegis/pkg/logger"
)

// LoginResult is the outcome of a login attempt. When the account has a
// second factor enabled, Tokens is nil and TwoFactorToken carries the
// login to the completion step.
type LoginResult struct {
	Tokens         *models.TokenPair     `json:"tokens,omitempty"`
	User           *models.DirectoryUser `json:"user,omitempty"`
	SessionID      string                `json:"sessionId,omitempty"`
	IsNewUser      bool                  `json:"isNewUser"`
	TwoFactor      bool                  `json:"twoFactorRequired"`
	TwoFactorToken string                `json:"twoFactorToken,omitempty"`
}

// AuthService orchestrates the login flows: passcode verification,
// optional second factor, session establishment, and token issuance.
type AuthService struct {
	otp       *OTPService
	tokens    *TokenService
	sessions  *SessionService
	twoFactor *TwoFactorService
	oauth     *OAuthService
	directory UserDirectory
	threats   *ThreatService
	audit     *logger.AuditLogger
	logger    *slog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	otp *OTPService,
	tokens *TokenService,
	sessions *SessionService,
	twoFactor *TwoFactorService,
	oauth *OAuthService,
	directory UserDirectory,
	threats *ThreatService,
	audit *logger.AuditLogger,
	log *slog.Logger,
) *AuthService {
	return &AuthService{
		otp:       otp,
		tokens:    tokens,
		sessions:  sessions,
		twoFactor: twoFactor,
		oauth:     oauth,
		directory: directory,
		threats:   threats,
		audit:     audit,
		logger:    log,
	}
}

// RequestCode dispatches a login passcode.
func (s *AuthService) RequestCode(ctx context.Context, identifier, channel string) error {
	return s.otp.RequestCode(ctx, identifier, channel)
}

// LoginWithCode verifies a passcode and logs the user in. Failed
// verifications feed threat detection; the failure reason is never leaked
// to the caller beyond the sentinel error.
func (s *AuthService) LoginWithCode(ctx context.Context, identifier, code string, client models.ClientInfo) (*LoginResult, error) {
	if err := s.otp.VerifyCode(ctx, identifier, code); err != nil {
		if errors.Is(err, models.ErrInvalidCode) || errors.Is(err, models.ErrRateLimited) {
			s.threats.RecordLoginFailure(ctx, client.IPAddress, "", identifier, "invalid passcode")
			s.audit.LogAuthAttempt(logger.AuditEvent{
				EventType:     "otp_login",
				Identifier:    identifier,
				IPAddress:     client.IPAddress,
				UserAgent:     client.UserAgent,
				Success:       false,
				FailureReason: "invalid passcode",
			})
		}
		return nil, err
	}

	user, created, err := s.directory.FindOrCreate(ctx, identifier)
	if err != nil {
		return nil, err
	}

	return s.completeLogin(ctx, user, created, identifier, "otp_login", client)
}

// LoginWithOAuth verifies a provider assertion and logs the user in,
// provisioning the identity link on first use.
func (s *AuthService) LoginWithOAuth(ctx context.Context, provider, assertion string, client models.ClientInfo) (*LoginResult, error) {
	identity, err := s.oauth.VerifyAssertion(ctx, provider, assertion)
	if err != nil {
		if errors.Is(err, models.ErrTokenInvalid) || errors.Is(err, models.ErrTokenExpired) {
			s.threats.RecordLoginFailure(ctx, client.IPAddress, "", "", "invalid oauth assertion")
			s.audit.LogAuthAttempt(logger.AuditEvent{
				EventType:     "oauth_login",
				IPAddress:     client.IPAddress,
				UserAgent:     client.UserAgent,
				Success:       false,
				FailureReason: "invalid assertion",
			})
		}
		return nil, err
	}

	user, created, err := s.oauth.ResolveUser(ctx, identity)
	if err != nil {
		return nil, err
	}

	return s.completeLogin(ctx, user, created, user.Identifier, "oauth_login", client)
}

// CompleteTwoFactor finishes a login held open by the second factor.
func (s *AuthService) CompleteTwoFactor(ctx context.Context, twoFactorToken, code string, client models.ClientInfo) (*LoginResult, error) {
	claims, err := s.tokens.ValidateTwoFactorToken(ctx, twoFactorToken)
	if err != nil {
		return nil, err
	}

	if err := s.twoFactor.Verify(ctx, claims.Subject, code); err != nil {
		if errors.Is(err, models.ErrInvalidCode) {
			s.threats.RecordLoginFailure(ctx, client.IPAddress, claims.Subject, claims.Identifier, "invalid second factor")
			s.audit.LogAuthAttempt(logger.AuditEvent{
				EventType:     "two_factor",
				UserID:        claims.Subject,
				IPAddress:     client.IPAddress,
				UserAgent:     client.UserAgent,
				Success:       false,
				FailureReason: "invalid second factor",
			})
		}
		return nil, err
	}

	user, err := s.directory.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user.Status == models.UserStatusSuspended {
		return nil, models.ErrForbidden
	}

	// The pending token is single-use; burn it for its remaining life.
	if err := s.tokens.Revoke(ctx, twoFactorToken, models.TokenTypeTwoFactor); err != nil {
		s.logger.Error("failed to burn pending token", slog.String("error", err.Error()))
	}

	return s.issueSession(ctx, user, false, claims.Identifier, "two_factor", client)
}

// Refresh rotates a refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	return s.tokens.Refresh(ctx, refreshToken)
}

// Logout revokes the presented tokens and their session.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	claims, err := s.tokens.ValidateAccessToken(ctx, accessToken)
	if err != nil {
		// Expired or already revoked; nothing left to do for the session.
		return nil
	}

	if err := s.tokens.Revoke(ctx, accessToken, models.TokenTypeAccess); err != nil {
		return err
	}
	if refreshToken != "" {
		if err := s.tokens.Revoke(ctx, refreshToken, models.TokenTypeRefresh); err != nil {
			return err
		}
	}

	if claims.SessionID != "" {
		if err := s.sessions.Revoke(ctx, claims.Subject, claims.SessionID, "logout"); err != nil && !errors.Is(err, models.ErrNotFound) {
			return err
		}
	}

	s.audit.LogAuthAttempt(logger.AuditEvent{
		EventType: "logout",
		UserID:    claims.Subject,
		SessionID: claims.SessionID,
		Success:   true,
	})

	return nil
}

func (s *AuthService) completeLogin(ctx context.Context, user *models.DirectoryUser, created bool, identifier, flow string, client models.ClientInfo) (*LoginResult, error) {
	if user.Status == models.UserStatusSuspended {
		s.audit.LogAuthAttempt(logger.AuditEvent{
			EventType:     flow,
			UserID:        user.ID,
			Identifier:    identifier,
			IPAddress:     client.IPAddress,
			Success:       false,
			FailureReason: "account suspended",
		})
		return nil, models.ErrForbidden
	}

	enabled, err := s.twoFactor.Enabled(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if enabled {
		pending, err := s.tokens.IssueTwoFactorToken(ctx, user.ID, identifier)
		if err != nil {
			return nil, err
		}

		s.audit.LogAuthAttempt(logger.AuditEvent{
			EventType:  flow,
			UserID:     user.ID,
			Identifier: identifier,
			IPAddress:  client.IPAddress,
			Success:    true,
			Metadata:   map[string]string{"two_factor": "pending"},
		})

		return &LoginResult{
			User:           user,
			IsNewUser:      created,
			TwoFactor:      true,
			TwoFactorToken: pending,
		}, nil
	}

	return s.issueSession(ctx, user, created, identifier, flow, client)
}

func (s *AuthService) issueSession(ctx context.Context, user *models.DirectoryUser, created bool, identifier, flow string, client models.ClientInfo) (*LoginResult, error) {
	// Session first, tokens second: the session id rides in the token
	// claims, then the refresh jti is bound back onto the session row.
	session, err := s.sessions.Establish(ctx, user.ID, "", client)
	if err != nil {
		return nil, err
	}

	pair, refreshID, err := s.tokens.IssuePair(ctx, user.ID, identifier, session.ID, user.Role)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.BindRefreshToken(ctx, session.ID, refreshID); err != nil {
		return nil, err
	}

	s.audit.LogAuthAttempt(logger.AuditEvent{
		EventType:  flow,
		UserID:     user.ID,
		Identifier: identifier,
		SessionID:  session.ID,
		IPAddress:  client.IPAddress,
		UserAgent:  client.UserAgent,
		Success:    true,
	})

	return &LoginResult{
		Tokens:    pair,
		User:      user,
		SessionID: session.ID,
		IsNewUser: created,
	}, nil
}
