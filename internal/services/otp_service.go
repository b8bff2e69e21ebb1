package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/mwhitfield/aegis/internal/models"
	"github.com/mwhitfield/aegis/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

// OTPRepository is the persistence contract for one-time passcodes.
type OTPRepository interface {
	Create(ctx context.Context, rec *models.OTPRecord) (*models.OTPRecord, error)
	IncrementAttempts(ctx context.Context, identifier string) (*models.OTPRecord, error)
	Consume(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// CooldownStore throttles code sends per identifier across instances.
type CooldownStore interface {
	AcquireCooldown(ctx context.Context, identifier string, ttl time.Duration) (bool, error)
	ReleaseCooldown(ctx context.Context, identifier string) error
}

// OTPService issues and verifies one-time passcodes.
type OTPService struct {
	repo        OTPRepository
	cooldowns   CooldownStore
	senders     map[string]CodeSender
	codeLength  int
	ttl         time.Duration
	cooldown    time.Duration
	maxAttempts int
	logger      *slog.Logger
}

// NewOTPService creates a new OTPService. senders maps channel name to
// its delivery implementation.
func NewOTPService(
	repo OTPRepository,
	cooldowns CooldownStore,
	senders map[string]CodeSender,
	codeLength int,
	ttl, cooldown time.Duration,
	maxAttempts int,
	log *slog.Logger,
) *OTPService {
	return &OTPService{
		repo:        repo,
		cooldowns:   cooldowns,
		senders:     senders,
		codeLength:  codeLength,
		ttl:         ttl,
		cooldown:    cooldown,
		maxAttempts: maxAttempts,
		logger:      log,
	}
}

// RequestCode generates a passcode and dispatches it over the requested
// channel. At most one send per identifier per cooldown window; issuing a
// new code invalidates any previous live code.
func (s *OTPService) RequestCode(ctx context.Context, identifier, channel string) error {
	sender, ok := s.senders[channel]
	if !ok {
		return fmt.Errorf("%w: unsupported channel %q", models.ErrValidation, channel)
	}

	acquired, err := s.cooldowns.AcquireCooldown(ctx, identifier, s.cooldown)
	if err != nil {
		return models.ErrServiceUnavailable
	}
	if !acquired {
		return models.ErrRateLimited
	}

	code, err := s.generateCode()
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash code: %w", err)
	}

	rec := &models.OTPRecord{
		Identifier: identifier,
		Channel:    channel,
		CodeHash:   string(hash),
		ExpiresAt:  time.Now().Add(s.ttl),
	}

	if _, err := s.repo.Create(ctx, rec); err != nil {
		return fmt.Errorf("failed to store code: %w", err)
	}

	if err := sender.Send(ctx, identifier, code); err != nil {
		// The stored code is unusable to the caller now; drop the cooldown
		// so a retry is not locked out for the full window.
		_ = s.cooldowns.ReleaseCooldown(ctx, identifier)
		return models.ErrServiceUnavailable
	}

	s.logger.Info("passcode issued",
		slog.String("identifier", logger.SanitizedIdentifier(identifier)),
		slog.String("channel", channel),
	)

	return nil
}

// VerifyCode checks a presented passcode. Every call consumes an attempt
// before the hash comparison, including calls past the attempt limit, and
// a correct code verifies exactly once.
func (s *OTPService) VerifyCode(ctx context.Context, identifier, code string) error {
	rec, err := s.repo.IncrementAttempts(ctx, identifier)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrInvalidCode
		}
		return err
	}

	if rec.Attempts > s.maxAttempts {
		s.logger.Warn("passcode attempt limit exceeded",
			slog.String("identifier", logger.SanitizedIdentifier(identifier)),
			slog.Int("attempts", rec.Attempts),
		)
		return models.ErrRateLimited
	}

	if bcrypt.CompareHashAndPassword([]byte(rec.CodeHash), []byte(code)) != nil {
		return models.ErrInvalidCode
	}

	if err := s.repo.Consume(ctx, rec.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Lost the race to a concurrent verify of the same code.
			return models.ErrInvalidCode
		}
		return err
	}

	_ = s.cooldowns.ReleaseCooldown(ctx, identifier)

	s.logger.Info("passcode verified",
		slog.String("identifier", logger.SanitizedIdentifier(identifier)),
	)

	return nil
}

// CleanupExpired removes lapsed passcodes.
func (s *OTPService) CleanupExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx)
}

func (s *OTPService) generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < s.codeLength; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%0*d", s.codeLength, n), nil
}
