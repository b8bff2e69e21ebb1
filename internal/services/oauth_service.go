package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mwhitfield/aegis/internal/models"
	"github.com/mwhitfield/aegis/pkg/logger"
)

// OAuthRepository is the persistence contract for provider links.
type OAuthRepository interface {
	Create(ctx context.Context, conn *models.OAuthConnection) (*models.OAuthConnection, error)
	GetByProviderIdentity(ctx context.Context, provider, externalID string) (*models.OAuthConnection, error)
	GetByUserProvider(ctx context.Context, userID, provider string) (*models.OAuthConnection, error)
	ListByUserID(ctx context.Context, userID string) ([]*models.OAuthConnection, error)
	CountByUserID(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, userID, provider string) error
}

// OAuthService manages provider identity links.
type OAuthService struct {
	repo      OAuthRepository
	verifiers map[string]ProviderVerifier
	directory UserDirectory
	logger    *slog.Logger
}

// NewOAuthService creates a new OAuthService.
func NewOAuthService(repo OAuthRepository, verifiers map[string]ProviderVerifier, directory UserDirectory, log *slog.Logger) *OAuthService {
	return &OAuthService{
		repo:      repo,
		verifiers: verifiers,
		directory: directory,
		logger:    log,
	}
}

// VerifyAssertion validates a provider assertion and returns the verified
// identity.
func (s *OAuthService) VerifyAssertion(ctx context.Context, provider, assertion string) (*models.OAuthIdentity, error) {
	verifier, ok := s.verifiers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported provider %q", models.ErrValidation, provider)
	}

	identity, err := verifier.Verify(ctx, assertion)
	if err != nil {
		return nil, err
	}

	return identity, nil
}

// ResolveUser maps a verified identity to a local user, provisioning the
// link (and, for first-time logins, the user) as needed. The bool reports
// whether the user was just created.
func (s *OAuthService) ResolveUser(ctx context.Context, identity *models.OAuthIdentity) (*models.DirectoryUser, bool, error) {
	conn, err := s.repo.GetByProviderIdentity(ctx, identity.Provider, identity.ExternalID)
	if err == nil {
		user, gerr := s.directory.GetByID(ctx, conn.UserID)
		return user, false, gerr
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, false, err
	}

	if identity.Email == "" {
		return nil, false, fmt.Errorf("%w: provider supplied no email for first login", models.ErrValidation)
	}

	user, created, err := s.directory.FindOrCreateByEmail(ctx, identity.Email, identity.Name)
	if err != nil {
		return nil, false, err
	}

	if _, err := s.repo.Create(ctx, &models.OAuthConnection{
		UserID:     user.ID,
		Provider:   identity.Provider,
		ExternalID: identity.ExternalID,
		Email:      identity.Email,
	}); err != nil && !errors.Is(err, models.ErrConflict) {
		return nil, false, err
	}

	s.logger.Info("oauth identity linked on login",
		slog.String("user_id", user.ID),
		slog.String("provider", identity.Provider),
		slog.String("email", logger.SanitizedEmail(identity.Email)),
	)

	return user, created, nil
}

// Link attaches a provider identity to an authenticated user. The identity
// must not already be linked anywhere, and the user gets one link per
// provider.
func (s *OAuthService) Link(ctx context.Context, userID, provider, assertion string) (*models.OAuthConnection, error) {
	identity, err := s.VerifyAssertion(ctx, provider, assertion)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByProviderIdentity(ctx, provider, identity.ExternalID); err == nil {
		return nil, models.ErrConflict
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	conn, err := s.repo.Create(ctx, &models.OAuthConnection{
		UserID:     userID,
		Provider:   provider,
		ExternalID: identity.ExternalID,
		Email:      identity.Email,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("oauth identity linked",
		slog.String("user_id", userID),
		slog.String("provider", provider),
	)

	return conn, nil
}

// Unlink removes a provider link. Refused when it would leave the user
// with no way to log in: no other links and no directory identifier to
// receive a passcode.
func (s *OAuthService) Unlink(ctx context.Context, userID, provider string) error {
	if !models.KnownProvider(provider) {
		return fmt.Errorf("%w: unsupported provider %q", models.ErrValidation, provider)
	}

	if _, err := s.repo.GetByUserProvider(ctx, userID, provider); err != nil {
		return err
	}

	count, err := s.repo.CountByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if count <= 1 {
		user, derr := s.directory.GetByID(ctx, userID)
		if derr != nil {
			return derr
		}
		if user.Phone == "" && user.Email == "" {
			return models.ErrLastLoginMethod
		}
	}

	if err := s.repo.Delete(ctx, userID, provider); err != nil {
		return err
	}

	s.logger.Info("oauth identity unlinked",
		slog.String("user_id", userID),
		slog.String("provider", provider),
	)

	return nil
}

// List returns the user's provider links.
func (s *OAuthService) List(ctx context.Context, userID string) ([]*models.OAuthConnection, error) {
	return s.repo.ListByUserID(ctx, userID)
}
