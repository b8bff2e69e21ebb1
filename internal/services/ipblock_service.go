package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mwhitfield/aegis/internal/models"
	"github.com/mwhitfield/aegis/pkg/iputil"
	"github.com/mwhitfield/aegis/pkg/logger"
)

// BlockedIPRepository is the persistence contract for the IP blocklist.
type BlockedIPRepository interface {
	Create(ctx context.Context, entry *models.BlockedIP) (*models.BlockedIP, error)
	GetByID(ctx context.Context, id string) (*models.BlockedIP, error)
	GetByIP(ctx context.Context, ip string) (*models.BlockedIP, error)
	List(ctx context.Context, limit, offset int) ([]*models.BlockedIP, error)
	CountActive(ctx context.Context) (int64, error)
	ListCIDRs(ctx context.Context) ([]*models.BlockedIP, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) ([]string, error)
}

// BlockVerdictCache caches positive block verdicts across instances.
type BlockVerdictCache interface {
	CacheBlockedIP(ctx context.Context, ip string, ttl time.Duration) error
	IsBlockedIPCached(ctx context.Context, ip string) (bool, error)
	EvictBlockedIP(ctx context.Context, ip string) error
}

// BlockIPRequest describes a manual or automatic block.
type BlockIPRequest struct {
	IPAddress   string `json:"ipAddress" validate:"required"`
	CIDRRange   string `json:"cidrRange,omitempty"`
	Reason      string `json:"reason" validate:"required"`
	IsPermanent bool   `json:"isPermanent"`
	Hours       int    `json:"hours,omitempty"`
	BlockedBy   string `json:"-"`
}

// IPBlockService maintains the IP blocklist and answers the per-request
// block check. Only positive verdicts are cached; a cache miss always goes
// to the database, so an unblock takes effect within the cache TTL at
// worst (sooner, because unblock evicts).
type IPBlockService struct {
	repo     BlockedIPRepository
	verdicts BlockVerdictCache
	cacheTTL time.Duration
	audit    *logger.AuditLogger
	logger   *slog.Logger
}

// NewIPBlockService creates a new IPBlockService.
func NewIPBlockService(repo BlockedIPRepository, verdicts BlockVerdictCache, cacheTTL time.Duration, audit *logger.AuditLogger, log *slog.Logger) *IPBlockService {
	return &IPBlockService{
		repo:     repo,
		verdicts: verdicts,
		cacheTTL: cacheTTL,
		audit:    audit,
		logger:   log,
	}
}

// Block adds a blocklist entry. Either a single address or a CIDR range;
// temporary blocks need a positive duration.
func (s *IPBlockService) Block(ctx context.Context, req BlockIPRequest) (*models.BlockedIP, error) {
	entry := &models.BlockedIP{
		IPAddress:   req.IPAddress,
		Reason:      req.Reason,
		IsPermanent: req.IsPermanent,
		BlockedBy:   req.BlockedBy,
	}

	if req.CIDRRange != "" {
		if !iputil.IsValidCIDR(req.CIDRRange) {
			return nil, fmt.Errorf("%w: invalid CIDR range %q", models.ErrValidation, req.CIDRRange)
		}
		cidr := req.CIDRRange
		entry.CIDRRange = &cidr
	} else if !iputil.IsValidIP(req.IPAddress) {
		return nil, fmt.Errorf("%w: invalid IP address %q", models.ErrValidation, req.IPAddress)
	}

	if !req.IsPermanent {
		if req.Hours <= 0 {
			return nil, fmt.Errorf("%w: temporary blocks need a positive duration", models.ErrValidation)
		}
		expires := time.Now().Add(time.Duration(req.Hours) * time.Hour)
		entry.ExpiresAt = &expires
	}

	created, err := s.repo.Create(ctx, entry)
	if err != nil {
		return nil, err
	}

	if created.CIDRRange == nil {
		if err := s.verdicts.CacheBlockedIP(ctx, created.IPAddress, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache block verdict", slog.String("error", err.Error()))
		}
	}

	s.audit.LogSecurityAction("ip_blocked", req.BlockedBy, req.IPAddress, map[string]string{
		"reason":    req.Reason,
		"permanent": fmt.Sprintf("%t", req.IsPermanent),
	})

	return created, nil
}

// AutoBlock is the threat-detection entry point: blocks an address for a
// fixed number of hours. A lapsed temporary entry the cleanup sweep has
// not removed yet is refreshed by the upsert; an entry still in force is
// tolerated, since the address is already blocked.
func (s *IPBlockService) AutoBlock(ctx context.Context, ip, reason string, hours int) error {
	_, err := s.Block(ctx, BlockIPRequest{
		IPAddress: ip,
		Reason:    reason,
		Hours:     hours,
		BlockedBy: "threat-detection",
	})
	if errors.Is(err, models.ErrConflict) {
		return nil
	}
	return err
}

// Unblock removes an entry and evicts its cached verdict.
func (s *IPBlockService) Unblock(ctx context.Context, id, actor string) error {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.verdicts.EvictBlockedIP(ctx, entry.IPAddress); err != nil {
		s.logger.Warn("failed to evict block verdict", slog.String("error", err.Error()))
	}

	s.audit.LogSecurityAction("ip_unblocked", actor, entry.IPAddress, nil)

	return nil
}

// List returns blocklist entries.
func (s *IPBlockService) List(ctx context.Context, limit, offset int) ([]*models.BlockedIP, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

// IsBlocked answers the per-request gate. Checks the verdict cache, then
// the exact entry, then walks CIDR entries. Expired entries never block;
// expiry is enforced here, not by the cleanup sweep.
func (s *IPBlockService) IsBlocked(ctx context.Context, ip string) (bool, error) {
	cached, err := s.verdicts.IsBlockedIPCached(ctx, ip)
	if err != nil {
		s.logger.Warn("block verdict cache unavailable", slog.String("error", err.Error()))
	} else if cached {
		return true, nil
	}

	now := time.Now()

	entry, err := s.repo.GetByIP(ctx, ip)
	if err == nil && entry.ActiveAt(now) {
		s.cacheVerdict(ctx, ip)
		return true, nil
	}
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return false, err
	}

	ranges, err := s.repo.ListCIDRs(ctx)
	if err != nil {
		return false, err
	}
	for _, r := range ranges {
		if r.CIDRRange == nil || !r.ActiveAt(now) {
			continue
		}
		if iputil.InCIDR(ip, *r.CIDRRange) {
			s.cacheVerdict(ctx, ip)
			return true, nil
		}
	}

	return false, nil
}

// CleanupExpired drops lapsed temporary entries and evicts their verdicts.
func (s *IPBlockService) CleanupExpired(ctx context.Context) (int64, error) {
	ips, err := s.repo.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}

	for _, ip := range ips {
		if err := s.verdicts.EvictBlockedIP(ctx, ip); err != nil {
			s.logger.Warn("failed to evict block verdict",
				slog.String("ip", ip),
				slog.String("error", err.Error()),
			)
		}
	}

	return int64(len(ips)), nil
}

func (s *IPBlockService) cacheVerdict(ctx context.Context, ip string) {
	if err := s.verdicts.CacheBlockedIP(ctx, ip, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache block verdict", slog.String("error", err.Error()))
	}
}
