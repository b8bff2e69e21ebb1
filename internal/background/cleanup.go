package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/mwhitfield/aegis/internal/services"
)

// CleanupManager periodically sweeps expired state: passcodes, stale
// sessions, abandoned 2FA enrollments, lapsed IP blocks, and aged threat
// and WAF events. Everything it deletes is already inert (expiry is
// enforced at read time); the sweep only reclaims storage.
type CleanupManager struct {
	otp       *services.OTPService
	sessions  *services.SessionService
	twoFactor *services.TwoFactorService
	blocks    *services.IPBlockService
	threats   *services.ThreatService
	waf       *services.WafService

	sessionRetention time.Duration
	threatRetention  int
	interval         time.Duration
	logger           *slog.Logger
	stopCh           chan struct{}
}

// NewCleanupManager creates a new cleanup manager.
func NewCleanupManager(
	otp *services.OTPService,
	sessions *services.SessionService,
	twoFactor *services.TwoFactorService,
	blocks *services.IPBlockService,
	threats *services.ThreatService,
	waf *services.WafService,
	sessionRetention time.Duration,
	threatRetentionDays int,
	interval time.Duration,
	logger *slog.Logger,
) *CleanupManager {
	return &CleanupManager{
		otp:              otp,
		sessions:         sessions,
		twoFactor:        twoFactor,
		blocks:           blocks,
		threats:          threats,
		waf:              waf,
		sessionRetention: sessionRetention,
		threatRetention:  threatRetentionDays,
		interval:         interval,
		logger:           logger,
		stopCh:           make(chan struct{}),
	}
}

// Start begins the periodic sweeps. Blocks until Stop or ctx cancellation.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.run(ctx)

	for {
		select {
		case <-ticker.C:
			cm.run(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// Stop signals the cleanup manager to stop.
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}

func (cm *CleanupManager) run(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	cm.sweep("passcodes", func() (int64, error) {
		return cm.otp.CleanupExpired(sweepCtx)
	})
	cm.sweep("sessions", func() (int64, error) {
		return cm.sessions.CleanupStale(sweepCtx, cm.sessionRetention)
	})
	cm.sweep("pending_enrollments", func() (int64, error) {
		return cm.twoFactor.CleanupStalePending(sweepCtx, 24*time.Hour)
	})
	cm.sweep("ip_blocks", func() (int64, error) {
		return cm.blocks.CleanupExpired(sweepCtx)
	})
	cm.sweep("threat_events", func() (int64, error) {
		return cm.threats.CleanupOldEvents(sweepCtx, cm.threatRetention)
	})
	cm.sweep("waf_events", func() (int64, error) {
		return cm.waf.CleanupOldEvents(sweepCtx, cm.threatRetention)
	})
}

func (cm *CleanupManager) sweep(name string, fn func() (int64, error)) {
	removed, err := fn()
	if err != nil {
		cm.logger.Error("cleanup sweep failed",
			slog.String("sweep", name),
			slog.Any("error", err),
		)
		return
	}

	if removed > 0 {
		cm.logger.Info("cleanup sweep completed",
			slog.String("sweep", name),
			slog.Int64("removed", removed),
		)
	}
}
