package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/mwhitfield/aegis/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOAuthService(repo *MockOAuthRepository, verifier *MockProviderVerifier, directory *MockUserDirectory) *OAuthService {
	verifiers := map[string]ProviderVerifier{
		models.ProviderGoogle: verifier,
		models.ProviderGitHub: verifier,
	}
	return NewOAuthService(repo, verifiers, directory, slog.Default())
}

func googleIdentity() *models.OAuthIdentity {
	return &models.OAuthIdentity{
		Provider:   models.ProviderGoogle,
		ExternalID: "google-sub-1",
		Email:      "user@example.com",
		Name:       "Test User",
	}
}

func TestOAuthService_VerifyAssertion_UnknownProvider(t *testing.T) {
	service := newOAuthService(&MockOAuthRepository{}, &MockProviderVerifier{}, &MockUserDirectory{})

	_, err := service.VerifyAssertion(context.Background(), "myspace", "assertion")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestOAuthService_ResolveUser_ExistingLink(t *testing.T) {
	repo := &MockOAuthRepository{
		GetByProviderIdentityFunc: func(ctx context.Context, provider, externalID string) (*models.OAuthConnection, error) {
			return &models.OAuthConnection{UserID: "user_1", Provider: provider, ExternalID: externalID}, nil
		},
	}
	directory := &MockUserDirectory{
		GetByIDFunc: func(ctx context.Context, userID string) (*models.DirectoryUser, error) {
			return &models.DirectoryUser{ID: userID, Status: models.UserStatusActive}, nil
		},
	}
	service := newOAuthService(repo, &MockProviderVerifier{}, directory)

	user, created, err := service.ResolveUser(context.Background(), googleIdentity())
	require.NoError(t, err)
	assert.Equal(t, "user_1", user.ID)
	assert.False(t, created)
}

func TestOAuthService_ResolveUser_FirstLoginProvisions(t *testing.T) {
	var linked *models.OAuthConnection
	repo := &MockOAuthRepository{
		CreateFunc: func(ctx context.Context, conn *models.OAuthConnection) (*models.OAuthConnection, error) {
			conn.ID = "oauth_1"
			linked = conn
			return conn, nil
		},
	}
	directory := &MockUserDirectory{
		FindOrCreateByEmailFunc: func(ctx context.Context, email, name string) (*models.DirectoryUser, bool, error) {
			return &models.DirectoryUser{ID: "user_new", Email: email, Status: models.UserStatusActive}, true, nil
		},
	}
	service := newOAuthService(repo, &MockProviderVerifier{}, directory)

	user, created, err := service.ResolveUser(context.Background(), googleIdentity())
	require.NoError(t, err)
	assert.Equal(t, "user_new", user.ID)
	assert.True(t, created)
	require.NotNil(t, linked)
	assert.Equal(t, "google-sub-1", linked.ExternalID)
}

func TestOAuthService_ResolveUser_NoEmail(t *testing.T) {
	service := newOAuthService(&MockOAuthRepository{}, &MockProviderVerifier{}, &MockUserDirectory{})

	identity := googleIdentity()
	identity.Email = ""

	_, _, err := service.ResolveUser(context.Background(), identity)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestOAuthService_Link_IdentityAlreadyLinked(t *testing.T) {
	verifier := &MockProviderVerifier{
		VerifyFunc: func(ctx context.Context, assertion string) (*models.OAuthIdentity, error) {
			return googleIdentity(), nil
		},
	}
	repo := &MockOAuthRepository{
		GetByProviderIdentityFunc: func(ctx context.Context, provider, externalID string) (*models.OAuthConnection, error) {
			return &models.OAuthConnection{UserID: "someone_else"}, nil
		},
	}
	service := newOAuthService(repo, verifier, &MockUserDirectory{})

	_, err := service.Link(context.Background(), "user_1", models.ProviderGoogle, "assertion")
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestOAuthService_Link_Success(t *testing.T) {
	verifier := &MockProviderVerifier{
		VerifyFunc: func(ctx context.Context, assertion string) (*models.OAuthIdentity, error) {
			return googleIdentity(), nil
		},
	}
	service := newOAuthService(&MockOAuthRepository{}, verifier, &MockUserDirectory{})

	conn, err := service.Link(context.Background(), "user_1", models.ProviderGoogle, "assertion")
	require.NoError(t, err)
	assert.Equal(t, "user_1", conn.UserID)
	assert.Equal(t, models.ProviderGoogle, conn.Provider)
}

func TestOAuthService_Unlink_LastLoginMethod(t *testing.T) {
	repo := &MockOAuthRepository{
		GetByUserProviderFunc: func(ctx context.Context, userID, provider string) (*models.OAuthConnection, error) {
			return &models.OAuthConnection{UserID: userID, Provider: provider}, nil
		},
		CountByUserIDFunc: func(ctx context.Context, userID string) (int64, error) { return 1, nil },
	}
	directory := &MockUserDirectory{
		GetByIDFunc: func(ctx context.Context, userID string) (*models.DirectoryUser, error) {
			// No phone, no email: this link is the only way in.
			return &models.DirectoryUser{ID: userID, Status: models.UserStatusActive}, nil
		},
	}
	service := newOAuthService(repo, &MockProviderVerifier{}, directory)

	err := service.Unlink(context.Background(), "user_1", models.ProviderGoogle)
	assert.ErrorIs(t, err, models.ErrLastLoginMethod)
}

func TestOAuthService_Unlink_AllowedWithOtherIdentifier(t *testing.T) {
	deleted := false
	repo := &MockOAuthRepository{
		GetByUserProviderFunc: func(ctx context.Context, userID, provider string) (*models.OAuthConnection, error) {
			return &models.OAuthConnection{UserID: userID, Provider: provider}, nil
		},
		CountByUserIDFunc: func(ctx context.Context, userID string) (int64, error) { return 1, nil },
		DeleteFunc: func(ctx context.Context, userID, provider string) error {
			deleted = true
			return nil
		},
	}
	directory := &MockUserDirectory{
		GetByIDFunc: func(ctx context.Context, userID string) (*models.DirectoryUser, error) {
			return &models.DirectoryUser{ID: userID, Phone: "+15551234567", Status: models.UserStatusActive}, nil
		},
	}
	service := newOAuthService(repo, &MockProviderVerifier{}, directory)

	require.NoError(t, service.Unlink(context.Background(), "user_1", models.ProviderGoogle))
	assert.True(t, deleted)
}

func TestOAuthService_Unlink_NotLinked(t *testing.T) {
	service := newOAuthService(&MockOAuthRepository{}, &MockProviderVerifier{}, &MockUserDirectory{})

	err := service.Unlink(context.Background(), "user_1", models.ProviderGoogle)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
