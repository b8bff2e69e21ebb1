package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mwhitfield/aegis/internal/auth"
	"github.com/mwhitfield/aegis/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// TwoFactorRepository is the persistence contract for 2FA enrollments.
type TwoFactorRepository interface {
	Create(ctx context.Context, secret *models.TwoFactorSecret) (*models.TwoFactorSecret, error)
	GetByUserID(ctx context.Context, userID string) (*models.TwoFactorSecret, error)
	Activate(ctx context.Context, userID string) error
	UpdateBackupCodes(ctx context.Context, userID string, codes []models.BackupCodeEntry) error
	SetLastUsed(ctx context.Context, userID string, usedAt time.Time) error
	Delete(ctx context.Context, userID string) error
	DeleteStalePending(ctx context.Context, maxAge time.Duration) (int64, error)
}

// TwoFactorSetup is the result of starting an enrollment. BackupCodes are
// the raw codes, shown exactly once.
type TwoFactorSetup struct {
	Secret      string   `json:"secret"`
	QRCode      string   `json:"qrCode"`
	BackupCodes []string `json:"backupCodes"`
}

// TwoFactorStatus summarizes a user's enrollment.
type TwoFactorStatus struct {
	Enabled         bool       `json:"enabled"`
	Pending         bool       `json:"pending"`
	Method          string     `json:"method,omitempty"`
	BackupCodesLeft int        `json:"backupCodesLeft"`
	ActivatedAt     *time.Time `json:"activatedAt,omitempty"`
}

// TwoFactorService manages TOTP enrollments and verification.
type TwoFactorService struct {
	repo            TwoFactorRepository
	totp            *auth.TOTPManager
	backupCodeCount int
	logger          *slog.Logger
}

// NewTwoFactorService creates a new TwoFactorService.
func NewTwoFactorService(repo TwoFactorRepository, totp *auth.TOTPManager, backupCodeCount int, log *slog.Logger) *TwoFactorService {
	return &TwoFactorService{
		repo:            repo,
		totp:            totp,
		backupCodeCount: backupCodeCount,
		logger:          log,
	}
}

// Setup starts an enrollment: generates a secret, the provisioning QR, and
// a fresh backup code set. Enrollment stays pending until the first
// successful verification. A user with 2FA already enabled must disable it
// first.
func (s *TwoFactorService) Setup(ctx context.Context, userID, accountName string) (*TwoFactorSetup, error) {
	existing, err := s.repo.GetByUserID(ctx, userID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.Enabled {
		return nil, models.ErrConflict
	}

	encrypted, nonce, secret, qr, err := s.totp.GenerateSecretWithQR(accountName)
	if err != nil {
		return nil, err
	}

	rawCodes, entries, err := s.newBackupCodes()
	if err != nil {
		return nil, err
	}

	enrollment := &models.TwoFactorSecret{
		UserID:          userID,
		Method:          models.TwoFactorMethodTOTP,
		SecretEncrypted: encrypted,
		SecretNonce:     nonce,
		BackupCodes:     entries,
	}

	if _, err := s.repo.Create(ctx, enrollment); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Guarded upsert refused to touch an enabled enrollment.
			return nil, models.ErrConflict
		}
		return nil, err
	}

	s.logger.Info("two-factor enrollment started", slog.String("user_id", userID))

	return &TwoFactorSetup{
		Secret:      secret,
		QRCode:      qr,
		BackupCodes: rawCodes,
	}, nil
}

// Activate completes enrollment with a first valid code from the
// authenticator app.
func (s *TwoFactorService) Activate(ctx context.Context, userID, code string) error {
	enrollment, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if !enrollment.Pending {
		return models.ErrConflict
	}

	ok, err := s.checkTOTP(enrollment, code)
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrInvalidCode
	}

	if err := s.repo.Activate(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.SetLastUsed(ctx, userID, time.Now()); err != nil {
		return err
	}

	s.logger.Info("two-factor enabled", slog.String("user_id", userID))

	return nil
}

// Verify checks a login code against the enabled enrollment. Accepts a
// current TOTP code or an unused backup code; a backup code is burned by
// the check.
func (s *TwoFactorService) Verify(ctx context.Context, userID, code string) error {
	enrollment, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrInvalidCode
		}
		return err
	}
	if !enrollment.Enabled {
		return models.ErrInvalidCode
	}

	ok, err := s.checkTOTP(enrollment, code)
	if err != nil {
		return err
	}
	if ok {
		return s.repo.SetLastUsed(ctx, userID, time.Now())
	}

	if s.burnBackupCode(enrollment, code) {
		if err := s.repo.UpdateBackupCodes(ctx, userID, enrollment.BackupCodes); err != nil {
			return err
		}
		s.logger.Info("backup code used",
			slog.String("user_id", userID),
			slog.Int("remaining", enrollment.UnusedBackupCodes()),
		)
		return nil
	}

	return models.ErrInvalidCode
}

// Disable removes the enrollment. Requires a currently valid code so a
// stolen access token alone cannot strip the second factor.
func (s *TwoFactorService) Disable(ctx context.Context, userID, code string) error {
	if err := s.Verify(ctx, userID, code); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, userID); err != nil {
		return err
	}

	s.logger.Info("two-factor disabled", slog.String("user_id", userID))

	return nil
}

// RegenerateBackupCodes replaces the backup code set. Requires a valid
// code; returns the new raw codes, shown exactly once.
func (s *TwoFactorService) RegenerateBackupCodes(ctx context.Context, userID, code string) ([]string, error) {
	if err := s.Verify(ctx, userID, code); err != nil {
		return nil, err
	}

	rawCodes, entries, err := s.newBackupCodes()
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateBackupCodes(ctx, userID, entries); err != nil {
		return nil, err
	}

	s.logger.Info("backup codes regenerated", slog.String("user_id", userID))

	return rawCodes, nil
}

// Status reports the user's enrollment state.
func (s *TwoFactorService) Status(ctx context.Context, userID string) (*TwoFactorStatus, error) {
	enrollment, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return &TwoFactorStatus{}, nil
		}
		return nil, err
	}

	return &TwoFactorStatus{
		Enabled:         enrollment.Enabled,
		Pending:         enrollment.Pending,
		Method:          enrollment.Method,
		BackupCodesLeft: enrollment.UnusedBackupCodes(),
		ActivatedAt:     enrollment.ActivatedAt,
	}, nil
}

// Enabled reports whether the user has an active second factor.
func (s *TwoFactorService) Enabled(ctx context.Context, userID string) (bool, error) {
	enrollment, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return enrollment.Enabled, nil
}

// CleanupStalePending drops enrollments never activated within maxAge.
func (s *TwoFactorService) CleanupStalePending(ctx context.Context, maxAge time.Duration) (int64, error) {
	return s.repo.DeleteStalePending(ctx, maxAge)
}

func (s *TwoFactorService) checkTOTP(enrollment *models.TwoFactorSecret, code string) (bool, error) {
	secret, err := s.totp.DecryptSecret(enrollment.SecretEncrypted, enrollment.SecretNonce)
	if err != nil {
		return false, fmt.Errorf("failed to decrypt enrollment secret: %w", err)
	}

	ok, err := s.totp.ValidateTOTP(string(secret), code, enrollment.LastUsedAt)
	if err != nil {
		// Replay and malformed input both read as an invalid code.
		return false, nil
	}

	return ok, nil
}

func (s *TwoFactorService) newBackupCodes() ([]string, []models.BackupCodeEntry, error) {
	rawCodes, err := s.totp.GenerateBackupCodes(s.backupCodeCount)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	entries := make([]models.BackupCodeEntry, 0, len(rawCodes))
	for _, raw := range rawCodes {
		hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to hash backup code: %w", err)
		}
		entries = append(entries, models.BackupCodeEntry{
			CodeHash:  string(hash),
			CreatedAt: now,
		})
	}

	return rawCodes, entries, nil
}

func (s *TwoFactorService) burnBackupCode(enrollment *models.TwoFactorSecret, code string) bool {
	now := time.Now()
	for i := range enrollment.BackupCodes {
		entry := &enrollment.BackupCodes[i]
		if entry.UsedAt != nil {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(entry.CodeHash), []byte(code)) == nil {
			entry.UsedAt = &now
			return true
		}
	}
	return false
}
