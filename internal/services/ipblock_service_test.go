package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mwhitfield/aegis/internal/models"
	pkglogger "github.com/mwhitfield/aegis/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIPBlockService(repo *MockBlockedIPRepository, verdicts *MockBlockVerdictCache) *IPBlockService {
	logger := slog.Default()
	return NewIPBlockService(repo, verdicts, 5*time.Minute, pkglogger.NewAuditLogger(logger), logger)
}

func TestIPBlockService_Block_Temporary(t *testing.T) {
	var created *models.BlockedIP
	repo := &MockBlockedIPRepository{
		CreateFunc: func(ctx context.Context, entry *models.BlockedIP) (*models.BlockedIP, error) {
			entry.ID = "block_1"
			created = entry
			return entry, nil
		},
	}
	cachedIP := ""
	verdicts := &MockBlockVerdictCache{
		CacheBlockedIPFunc: func(ctx context.Context, ip string, ttl time.Duration) error {
			cachedIP = ip
			return nil
		},
	}
	service := newIPBlockService(repo, verdicts)

	entry, err := service.Block(context.Background(), BlockIPRequest{
		IPAddress: "203.0.113.10",
		Reason:    "abuse",
		Hours:     24,
		BlockedBy: "admin_1",
	})
	require.NoError(t, err)

	require.NotNil(t, created.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), *created.ExpiresAt, time.Minute)
	assert.False(t, entry.IsPermanent)
	assert.Equal(t, "203.0.113.10", cachedIP, "exact-IP blocks warm the verdict cache")
}

func TestIPBlockService_Block_InvalidInput(t *testing.T) {
	service := newIPBlockService(&MockBlockedIPRepository{}, &MockBlockVerdictCache{})

	_, err := service.Block(context.Background(), BlockIPRequest{IPAddress: "not-an-ip", Reason: "x", Hours: 1})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = service.Block(context.Background(), BlockIPRequest{IPAddress: "203.0.113.10", CIDRRange: "bad/cidr", Reason: "x", Hours: 1})
	assert.ErrorIs(t, err, models.ErrValidation)

	// Temporary block without a duration
	_, err = service.Block(context.Background(), BlockIPRequest{IPAddress: "203.0.113.10", Reason: "x"})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestIPBlockService_Block_CIDRSkipsVerdictCache(t *testing.T) {
	verdicts := &MockBlockVerdictCache{
		CacheBlockedIPFunc: func(ctx context.Context, ip string, ttl time.Duration) error {
			t.Fatal("CIDR blocks must not cache a single-IP verdict")
			return nil
		},
	}
	service := newIPBlockService(&MockBlockedIPRepository{}, verdicts)

	_, err := service.Block(context.Background(), BlockIPRequest{
		IPAddress:   "203.0.113.0",
		CIDRRange:   "203.0.113.0/24",
		Reason:      "abusive range",
		IsPermanent: true,
	})
	require.NoError(t, err)
}

func TestIPBlockService_AutoBlock_TolerantOfActiveEntry(t *testing.T) {
	repo := &MockBlockedIPRepository{
		CreateFunc: func(ctx context.Context, entry *models.BlockedIP) (*models.BlockedIP, error) {
			return nil, models.ErrConflict
		},
	}
	service := newIPBlockService(repo, &MockBlockVerdictCache{})

	assert.NoError(t, service.AutoBlock(context.Background(), "203.0.113.10", "brute force", 24))
}

func TestIPBlockService_AutoBlock_ReblocksAfterLapse(t *testing.T) {
	// The repository upsert refreshes a lapsed temporary row the sweep has
	// not removed yet; the mock mirrors that.
	lapsed := time.Now().Add(-time.Hour)
	stored := &models.BlockedIP{ID: "block_1", IPAddress: "203.0.113.10", ExpiresAt: &lapsed}
	repo := &MockBlockedIPRepository{
		CreateFunc: func(ctx context.Context, entry *models.BlockedIP) (*models.BlockedIP, error) {
			entry.ID = stored.ID
			stored = entry
			return entry, nil
		},
		GetByIPFunc: func(ctx context.Context, ip string) (*models.BlockedIP, error) {
			return stored, nil
		},
	}
	service := newIPBlockService(repo, &MockBlockVerdictCache{})

	blocked, err := service.IsBlocked(context.Background(), "203.0.113.10")
	require.NoError(t, err)
	require.False(t, blocked)

	require.NoError(t, service.AutoBlock(context.Background(), "203.0.113.10", "brute force", 24))

	blocked, err = service.IsBlocked(context.Background(), "203.0.113.10")
	require.NoError(t, err)
	assert.True(t, blocked, "a repeat offender is re-blockable before the sweep runs")
}

func TestIPBlockService_IsBlocked_CacheHitShortCircuits(t *testing.T) {
	repo := &MockBlockedIPRepository{
		GetByIPFunc: func(ctx context.Context, ip string) (*models.BlockedIP, error) {
			t.Fatal("cache hit must not reach the database")
			return nil, nil
		},
	}
	verdicts := &MockBlockVerdictCache{
		IsBlockedIPCachedFunc: func(ctx context.Context, ip string) (bool, error) {
			return true, nil
		},
	}
	service := newIPBlockService(repo, verdicts)

	blocked, err := service.IsBlocked(context.Background(), "203.0.113.10")
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestIPBlockService_IsBlocked_ExactEntry(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	repo := &MockBlockedIPRepository{
		GetByIPFunc: func(ctx context.Context, ip string) (*models.BlockedIP, error) {
			return &models.BlockedIP{IPAddress: ip, ExpiresAt: &expires}, nil
		},
	}
	service := newIPBlockService(repo, &MockBlockVerdictCache{})

	blocked, err := service.IsBlocked(context.Background(), "203.0.113.10")
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestIPBlockService_IsBlocked_ExpiredEntryDoesNotBlock(t *testing.T) {
	expired := time.Now().Add(-time.Hour)
	repo := &MockBlockedIPRepository{
		GetByIPFunc: func(ctx context.Context, ip string) (*models.BlockedIP, error) {
			return &models.BlockedIP{IPAddress: ip, ExpiresAt: &expired}, nil
		},
	}
	service := newIPBlockService(repo, &MockBlockVerdictCache{})

	blocked, err := service.IsBlocked(context.Background(), "203.0.113.10")
	require.NoError(t, err)
	assert.False(t, blocked, "expired entries stop blocking before the sweep removes them")
}

func TestIPBlockService_IsBlocked_CIDRMatch(t *testing.T) {
	cidr := "203.0.113.0/24"
	repo := &MockBlockedIPRepository{
		ListCIDRsFunc: func(ctx context.Context) ([]*models.BlockedIP, error) {
			return []*models.BlockedIP{
				{IPAddress: "203.0.113.0", CIDRRange: &cidr, IsPermanent: true},
			}, nil
		},
	}
	service := newIPBlockService(repo, &MockBlockVerdictCache{})

	blocked, err := service.IsBlocked(context.Background(), "203.0.113.77")
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = service.IsBlocked(context.Background(), "198.51.100.1")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestIPBlockService_Unblock_EvictsVerdict(t *testing.T) {
	evicted := ""
	repo := &MockBlockedIPRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.BlockedIP, error) {
			return &models.BlockedIP{ID: id, IPAddress: "203.0.113.10"}, nil
		},
	}
	verdicts := &MockBlockVerdictCache{
		EvictBlockedIPFunc: func(ctx context.Context, ip string) error {
			evicted = ip
			return nil
		},
	}
	service := newIPBlockService(repo, verdicts)

	require.NoError(t, service.Unblock(context.Background(), "block_1", "admin_1"))
	assert.Equal(t, "203.0.113.10", evicted)
}

func TestIPBlockService_CleanupExpired_EvictsEachVerdict(t *testing.T) {
	var evicted []string
	repo := &MockBlockedIPRepository{
		DeleteExpiredFunc: func(ctx context.Context) ([]string, error) {
			return []string{"203.0.113.10", "203.0.113.11"}, nil
		},
	}
	verdicts := &MockBlockVerdictCache{
		EvictBlockedIPFunc: func(ctx context.Context, ip string) error {
			evicted = append(evicted, ip)
			return nil
		},
	}
	service := newIPBlockService(repo, verdicts)

	removed, err := service.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	assert.Equal(t, []string{"203.0.113.10", "203.0.113.11"}, evicted)
}
