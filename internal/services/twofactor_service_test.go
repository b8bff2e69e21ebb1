package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mwhitfield/aegis/internal/auth"
	"github.com/mwhitfield/aegis/internal/models"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTOTPManager(t *testing.T) *auth.TOTPManager {
	t.Helper()
	manager, err := auth.NewTOTPManager([]byte("0123456789abcdef0123456789abcdef"), "AegisTest")
	require.NoError(t, err)
	return manager
}

// setupEnrollment runs Setup against an in-memory repo and returns the
// service, the stored enrollment, and the raw secret for minting codes.
func setupEnrollment(t *testing.T) (*TwoFactorService, *models.TwoFactorSecret, *TwoFactorSetup) {
	t.Helper()

	var stored *models.TwoFactorSecret
	repo := &MockTwoFactorRepository{
		CreateFunc: func(ctx context.Context, secret *models.TwoFactorSecret) (*models.TwoFactorSecret, error) {
			secret.ID = "2fa_1"
			secret.Pending = true
			stored = secret
			return secret, nil
		},
		GetByUserIDFunc: func(ctx context.Context, userID string) (*models.TwoFactorSecret, error) {
			if stored == nil {
				return nil, models.ErrNotFound
			}
			return stored, nil
		},
		ActivateFunc: func(ctx context.Context, userID string) error {
			stored.Pending = false
			stored.Enabled = true
			return nil
		},
		UpdateBackupCodesFunc: func(ctx context.Context, userID string, codes []models.BackupCodeEntry) error {
			stored.BackupCodes = codes
			return nil
		},
		DeleteFunc: func(ctx context.Context, userID string) error {
			stored = nil
			return nil
		},
	}

	service := NewTwoFactorService(repo, newTestTOTPManager(t), 8, slog.Default())

	setup, err := service.Setup(context.Background(), "user_1", "user@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored)

	return service, stored, setup
}

func TestTwoFactorService_Setup(t *testing.T) {
	_, stored, setup := setupEnrollment(t)

	assert.NotEmpty(t, setup.Secret)
	assert.NotEmpty(t, setup.QRCode)
	assert.Len(t, setup.BackupCodes, 8)
	for _, code := range setup.BackupCodes {
		assert.Len(t, code, 8)
	}

	assert.True(t, stored.Pending)
	assert.False(t, stored.Enabled)
	// Secret is stored encrypted, never in the clear
	assert.NotEqual(t, []byte(setup.Secret), stored.SecretEncrypted)
}

func TestTwoFactorService_Setup_AlreadyEnabled(t *testing.T) {
	repo := &MockTwoFactorRepository{
		GetByUserIDFunc: func(ctx context.Context, userID string) (*models.TwoFactorSecret, error) {
			return &models.TwoFactorSecret{UserID: userID, Enabled: true}, nil
		},
	}
	service := NewTwoFactorService(repo, newTestTOTPManager(t), 8, slog.Default())

	_, err := service.Setup(context.Background(), "user_1", "user@example.com")
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestTwoFactorService_Activate(t *testing.T) {
	service, stored, setup := setupEnrollment(t)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)

	require.NoError(t, service.Activate(context.Background(), "user_1", code))
	assert.True(t, stored.Enabled)
	assert.False(t, stored.Pending)
}

func TestTwoFactorService_Activate_WrongCode(t *testing.T) {
	service, stored, _ := setupEnrollment(t)

	err := service.Activate(context.Background(), "user_1", "000000")
	assert.ErrorIs(t, err, models.ErrInvalidCode)
	assert.False(t, stored.Enabled)
}

func TestTwoFactorService_Verify_BackupCodeBurnsOnce(t *testing.T) {
	service, stored, setup := setupEnrollment(t)
	stored.Enabled = true
	stored.Pending = false

	backupCode := setup.BackupCodes[0]

	require.NoError(t, service.Verify(context.Background(), "user_1", backupCode))
	assert.Equal(t, 7, stored.UnusedBackupCodes())

	// The same backup code cannot be used twice.
	err := service.Verify(context.Background(), "user_1", backupCode)
	assert.ErrorIs(t, err, models.ErrInvalidCode)
}

func TestTwoFactorService_Verify_NotEnrolled(t *testing.T) {
	service := NewTwoFactorService(&MockTwoFactorRepository{}, newTestTOTPManager(t), 8, slog.Default())

	err := service.Verify(context.Background(), "user_1", "123456")
	assert.ErrorIs(t, err, models.ErrInvalidCode)
}

func TestTwoFactorService_Disable_RequiresValidCode(t *testing.T) {
	service, stored, setup := setupEnrollment(t)
	stored.Enabled = true
	stored.Pending = false

	err := service.Disable(context.Background(), "user_1", "000000")
	assert.ErrorIs(t, err, models.ErrInvalidCode)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)

	require.NoError(t, service.Disable(context.Background(), "user_1", code))

	enabled, err := service.Enabled(context.Background(), "user_1")
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestTwoFactorService_RegenerateBackupCodes(t *testing.T) {
	service, stored, setup := setupEnrollment(t)
	stored.Enabled = true
	stored.Pending = false

	oldCode := setup.BackupCodes[0]

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)

	fresh, err := service.RegenerateBackupCodes(context.Background(), "user_1", code)
	require.NoError(t, err)
	assert.Len(t, fresh, 8)
	assert.NotContains(t, fresh, oldCode)
	assert.Equal(t, 8, stored.UnusedBackupCodes())
}

func TestTwoFactorService_Status(t *testing.T) {
	service, stored, _ := setupEnrollment(t)

	status, err := service.Status(context.Background(), "user_1")
	require.NoError(t, err)
	assert.True(t, status.Pending)
	assert.False(t, status.Enabled)
	assert.Equal(t, models.TwoFactorMethodTOTP, status.Method)
	assert.Equal(t, 8, status.BackupCodesLeft)

	stored.Enabled = true
	stored.Pending = false

	status, err = service.Status(context.Background(), "user_1")
	require.NoError(t, err)
	assert.True(t, status.Enabled)
}

func TestTwoFactorService_Status_NotEnrolled(t *testing.T) {
	service := NewTwoFactorService(&MockTwoFactorRepository{}, newTestTOTPManager(t), 8, slog.Default())

	status, err := service.Status(context.Background(), "user_1")
	require.NoError(t, err)
	assert.False(t, status.Enabled)
	assert.False(t, status.Pending)
}
