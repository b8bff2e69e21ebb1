package services

import (
	"context"
	"time"

	"github.com/mwhitfield/aegis/internal/models"
)

// MockOTPRepository implements OTPRepository for testing
type MockOTPRepository struct {
	CreateFunc            func(ctx context.Context, rec *models.OTPRecord) (*models.OTPRecord, error)
	IncrementAttemptsFunc func(ctx context.Context, identifier string) (*models.OTPRecord, error)
	ConsumeFunc           func(ctx context.Context, id string) error
	DeleteExpiredFunc     func(ctx context.Context) (int64, error)
}

func (m *MockOTPRepository) Create(ctx context.Context, rec *models.OTPRecord) (*models.OTPRecord, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, rec)
	}
	rec.ID = "otp_123"
	return rec, nil
}

func (m *MockOTPRepository) IncrementAttempts(ctx context.Context, identifier string) (*models.OTPRecord, error) {
	if m.IncrementAttemptsFunc != nil {
		return m.IncrementAttemptsFunc(ctx, identifier)
	}
	return nil, models.ErrNotFound
}

func (m *MockOTPRepository) Consume(ctx context.Context, id string) error {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, id)
	}
	return nil
}

func (m *MockOTPRepository) DeleteExpired(ctx context.Context) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx)
	}
	return 0, nil
}

// MockCooldownStore implements CooldownStore for testing
type MockCooldownStore struct {
	AcquireCooldownFunc func(ctx context.Context, identifier string, ttl time.Duration) (bool, error)
	ReleaseCooldownFunc func(ctx context.Context, identifier string) error
}

func (m *MockCooldownStore) AcquireCooldown(ctx context.Context, identifier string, ttl time.Duration) (bool, error) {
	if m.AcquireCooldownFunc != nil {
		return m.AcquireCooldownFunc(ctx, identifier, ttl)
	}
	return true, nil
}

func (m *MockCooldownStore) ReleaseCooldown(ctx context.Context, identifier string) error {
	if m.ReleaseCooldownFunc != nil {
		return m.ReleaseCooldownFunc(ctx, identifier)
	}
	return nil
}

// MockCodeSender implements CodeSender for testing
type MockCodeSender struct {
	SendFunc func(ctx context.Context, identifier, code string) error
}

func (m *MockCodeSender) Send(ctx context.Context, identifier, code string) error {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, identifier, code)
	}
	return nil
}

// MockSessionRepository implements SessionRepository for testing
type MockSessionRepository struct {
	UpsertFunc             func(ctx context.Context, s *models.Session) (*models.Session, error)
	GetByIDFunc            func(ctx context.Context, sessionID string) (*models.Session, error)
	UpdateRefreshTokenFunc func(ctx context.Context, sessionID, refreshTokenID string) error
	TouchFunc              func(ctx context.Context, sessionID string) error
	RevokeFunc             func(ctx context.Context, sessionID, reason string) error
	RevokeAllFunc          func(ctx context.Context, userID, exceptSessionID, reason string) (int64, error)
	ListActiveFunc         func(ctx context.Context, userID string) ([]*models.Session, error)
	DeleteStaleFunc        func(ctx context.Context, retention time.Duration) (int64, error)
}

func (m *MockSessionRepository) Upsert(ctx context.Context, s *models.Session) (*models.Session, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, s)
	}
	s.ID = "session_123"
	s.CreatedAt = time.Now()
	s.LastActiveAt = time.Now()
	return s, nil
}

func (m *MockSessionRepository) GetByID(ctx context.Context, sessionID string) (*models.Session, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, sessionID)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionRepository) UpdateRefreshToken(ctx context.Context, sessionID, refreshTokenID string) error {
	if m.UpdateRefreshTokenFunc != nil {
		return m.UpdateRefreshTokenFunc(ctx, sessionID, refreshTokenID)
	}
	return nil
}

func (m *MockSessionRepository) Touch(ctx context.Context, sessionID string) error {
	if m.TouchFunc != nil {
		return m.TouchFunc(ctx, sessionID)
	}
	return nil
}

func (m *MockSessionRepository) Revoke(ctx context.Context, sessionID, reason string) error {
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, sessionID, reason)
	}
	return nil
}

func (m *MockSessionRepository) RevokeAll(ctx context.Context, userID, exceptSessionID, reason string) (int64, error) {
	if m.RevokeAllFunc != nil {
		return m.RevokeAllFunc(ctx, userID, exceptSessionID, reason)
	}
	return 0, nil
}

func (m *MockSessionRepository) ListActive(ctx context.Context, userID string) ([]*models.Session, error) {
	if m.ListActiveFunc != nil {
		return m.ListActiveFunc(ctx, userID)
	}
	return []*models.Session{}, nil
}

func (m *MockSessionRepository) DeleteStale(ctx context.Context, retention time.Duration) (int64, error) {
	if m.DeleteStaleFunc != nil {
		return m.DeleteStaleFunc(ctx, retention)
	}
	return 0, nil
}

// MockBlacklist implements Blacklist for testing
type MockBlacklist struct {
	BlacklistTokenFunc     func(ctx context.Context, fingerprint string, ttl time.Duration) error
	IsTokenBlacklistedFunc func(ctx context.Context, fingerprint string) (bool, error)
}

func (m *MockBlacklist) BlacklistToken(ctx context.Context, fingerprint string, ttl time.Duration) error {
	if m.BlacklistTokenFunc != nil {
		return m.BlacklistTokenFunc(ctx, fingerprint, ttl)
	}
	return nil
}

func (m *MockBlacklist) IsTokenBlacklisted(ctx context.Context, fingerprint string) (bool, error) {
	if m.IsTokenBlacklistedFunc != nil {
		return m.IsTokenBlacklistedFunc(ctx, fingerprint)
	}
	return false, nil
}

// MockTwoFactorRepository implements TwoFactorRepository for testing
type MockTwoFactorRepository struct {
	CreateFunc             func(ctx context.Context, secret *models.TwoFactorSecret) (*models.TwoFactorSecret, error)
	GetByUserIDFunc        func(ctx context.Context, userID string) (*models.TwoFactorSecret, error)
	ActivateFunc           func(ctx context.Context, userID string) error
	UpdateBackupCodesFunc  func(ctx context.Context, userID string, codes []models.BackupCodeEntry) error
	SetLastUsedFunc        func(ctx context.Context, userID string, usedAt time.Time) error
	DeleteFunc             func(ctx context.Context, userID string) error
	DeleteStalePendingFunc func(ctx context.Context, maxAge time.Duration) (int64, error)
}

func (m *MockTwoFactorRepository) Create(ctx context.Context, secret *models.TwoFactorSecret) (*models.TwoFactorSecret, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, secret)
	}
	secret.ID = "2fa_123"
	secret.CreatedAt = time.Now()
	return secret, nil
}

func (m *MockTwoFactorRepository) GetByUserID(ctx context.Context, userID string) (*models.TwoFactorSecret, error) {
	if m.GetByUserIDFunc != nil {
		return m.GetByUserIDFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockTwoFactorRepository) Activate(ctx context.Context, userID string) error {
	if m.ActivateFunc != nil {
		return m.ActivateFunc(ctx, userID)
	}
	return nil
}

func (m *MockTwoFactorRepository) UpdateBackupCodes(ctx context.Context, userID string, codes []models.BackupCodeEntry) error {
	if m.UpdateBackupCodesFunc != nil {
		return m.UpdateBackupCodesFunc(ctx, userID, codes)
	}
	return nil
}

func (m *MockTwoFactorRepository) SetLastUsed(ctx context.Context, userID string, usedAt time.Time) error {
	if m.SetLastUsedFunc != nil {
		return m.SetLastUsedFunc(ctx, userID, usedAt)
	}
	return nil
}

func (m *MockTwoFactorRepository) Delete(ctx context.Context, userID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID)
	}
	return nil
}

func (m *MockTwoFactorRepository) DeleteStalePending(ctx context.Context, maxAge time.Duration) (int64, error) {
	if m.DeleteStalePendingFunc != nil {
		return m.DeleteStalePendingFunc(ctx, maxAge)
	}
	return 0, nil
}

// MockOAuthRepository implements OAuthRepository for testing
type MockOAuthRepository struct {
	CreateFunc                func(ctx context.Context, conn *models.OAuthConnection) (*models.OAuthConnection, error)
	GetByProviderIdentityFunc func(ctx context.Context, provider, externalID string) (*models.OAuthConnection, error)
	GetByUserProviderFunc     func(ctx context.Context, userID, provider string) (*models.OAuthConnection, error)
	ListByUserIDFunc          func(ctx context.Context, userID string) ([]*models.OAuthConnection, error)
	CountByUserIDFunc         func(ctx context.Context, userID string) (int64, error)
	DeleteFunc                func(ctx context.Context, userID, provider string) error
}

func (m *MockOAuthRepository) Create(ctx context.Context, conn *models.OAuthConnection) (*models.OAuthConnection, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, conn)
	}
	conn.ID = "oauth_123"
	conn.CreatedAt = time.Now()
	return conn, nil
}

func (m *MockOAuthRepository) GetByProviderIdentity(ctx context.Context, provider, externalID string) (*models.OAuthConnection, error) {
	if m.GetByProviderIdentityFunc != nil {
		return m.GetByProviderIdentityFunc(ctx, provider, externalID)
	}
	return nil, models.ErrNotFound
}

func (m *MockOAuthRepository) GetByUserProvider(ctx context.Context, userID, provider string) (*models.OAuthConnection, error) {
	if m.GetByUserProviderFunc != nil {
		return m.GetByUserProviderFunc(ctx, userID, provider)
	}
	return nil, models.ErrNotFound
}

func (m *MockOAuthRepository) ListByUserID(ctx context.Context, userID string) ([]*models.OAuthConnection, error) {
	if m.ListByUserIDFunc != nil {
		return m.ListByUserIDFunc(ctx, userID)
	}
	return []*models.OAuthConnection{}, nil
}

func (m *MockOAuthRepository) CountByUserID(ctx context.Context, userID string) (int64, error) {
	if m.CountByUserIDFunc != nil {
		return m.CountByUserIDFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockOAuthRepository) Delete(ctx context.Context, userID, provider string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID, provider)
	}
	return nil
}

// MockUserDirectory implements UserDirectory for testing
type MockUserDirectory struct {
	FindOrCreateFunc        func(ctx context.Context, identifier string) (*models.DirectoryUser, bool, error)
	FindOrCreateByEmailFunc func(ctx context.Context, email, name string) (*models.DirectoryUser, bool, error)
	GetByIDFunc             func(ctx context.Context, userID string) (*models.DirectoryUser, error)
}

func (m *MockUserDirectory) FindOrCreate(ctx context.Context, identifier string) (*models.DirectoryUser, bool, error) {
	if m.FindOrCreateFunc != nil {
		return m.FindOrCreateFunc(ctx, identifier)
	}
	return &models.DirectoryUser{ID: "user_123", Identifier: identifier, Status: models.UserStatusActive}, false, nil
}

func (m *MockUserDirectory) FindOrCreateByEmail(ctx context.Context, email, name string) (*models.DirectoryUser, bool, error) {
	if m.FindOrCreateByEmailFunc != nil {
		return m.FindOrCreateByEmailFunc(ctx, email, name)
	}
	return &models.DirectoryUser{ID: "user_123", Email: email, Status: models.UserStatusActive}, false, nil
}

func (m *MockUserDirectory) GetByID(ctx context.Context, userID string) (*models.DirectoryUser, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, userID)
	}
	return &models.DirectoryUser{ID: userID, Status: models.UserStatusActive}, nil
}

// MockProviderVerifier implements ProviderVerifier for testing
type MockProviderVerifier struct {
	VerifyFunc func(ctx context.Context, assertion string) (*models.OAuthIdentity, error)
}

func (m *MockProviderVerifier) Verify(ctx context.Context, assertion string) (*models.OAuthIdentity, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, assertion)
	}
	return nil, models.ErrTokenInvalid
}

// MockBlockedIPRepository implements BlockedIPRepository for testing
type MockBlockedIPRepository struct {
	CreateFunc        func(ctx context.Context, entry *models.BlockedIP) (*models.BlockedIP, error)
	GetByIDFunc       func(ctx context.Context, id string) (*models.BlockedIP, error)
	GetByIPFunc       func(ctx context.Context, ip string) (*models.BlockedIP, error)
	ListFunc          func(ctx context.Context, limit, offset int) ([]*models.BlockedIP, error)
	CountActiveFunc   func(ctx context.Context) (int64, error)
	ListCIDRsFunc     func(ctx context.Context) ([]*models.BlockedIP, error)
	DeleteFunc        func(ctx context.Context, id string) error
	DeleteExpiredFunc func(ctx context.Context) ([]string, error)
}

func (m *MockBlockedIPRepository) Create(ctx context.Context, entry *models.BlockedIP) (*models.BlockedIP, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, entry)
	}
	entry.ID = "block_123"
	entry.CreatedAt = time.Now()
	return entry, nil
}

func (m *MockBlockedIPRepository) GetByID(ctx context.Context, id string) (*models.BlockedIP, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockBlockedIPRepository) GetByIP(ctx context.Context, ip string) (*models.BlockedIP, error) {
	if m.GetByIPFunc != nil {
		return m.GetByIPFunc(ctx, ip)
	}
	return nil, models.ErrNotFound
}

func (m *MockBlockedIPRepository) List(ctx context.Context, limit, offset int) ([]*models.BlockedIP, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.BlockedIP{}, nil
}

func (m *MockBlockedIPRepository) CountActive(ctx context.Context) (int64, error) {
	if m.CountActiveFunc != nil {
		return m.CountActiveFunc(ctx)
	}
	return 0, nil
}

func (m *MockBlockedIPRepository) ListCIDRs(ctx context.Context) ([]*models.BlockedIP, error) {
	if m.ListCIDRsFunc != nil {
		return m.ListCIDRsFunc(ctx)
	}
	return []*models.BlockedIP{}, nil
}

func (m *MockBlockedIPRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockBlockedIPRepository) DeleteExpired(ctx context.Context) ([]string, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx)
	}
	return nil, nil
}

// MockBlockVerdictCache implements BlockVerdictCache for testing
type MockBlockVerdictCache struct {
	CacheBlockedIPFunc    func(ctx context.Context, ip string, ttl time.Duration) error
	IsBlockedIPCachedFunc func(ctx context.Context, ip string) (bool, error)
	EvictBlockedIPFunc    func(ctx context.Context, ip string) error
}

func (m *MockBlockVerdictCache) CacheBlockedIP(ctx context.Context, ip string, ttl time.Duration) error {
	if m.CacheBlockedIPFunc != nil {
		return m.CacheBlockedIPFunc(ctx, ip, ttl)
	}
	return nil
}

func (m *MockBlockVerdictCache) IsBlockedIPCached(ctx context.Context, ip string) (bool, error) {
	if m.IsBlockedIPCachedFunc != nil {
		return m.IsBlockedIPCachedFunc(ctx, ip)
	}
	return false, nil
}

func (m *MockBlockVerdictCache) EvictBlockedIP(ctx context.Context, ip string) error {
	if m.EvictBlockedIPFunc != nil {
		return m.EvictBlockedIPFunc(ctx, ip)
	}
	return nil
}

// MockGeoRuleRepository implements GeoRuleRepository for testing
type MockGeoRuleRepository struct {
	CreateFunc              func(ctx context.Context, rule *models.GeoBlockRule) (*models.GeoBlockRule, error)
	ListFunc                func(ctx context.Context) ([]*models.GeoBlockRule, error)
	GetEnabledByCountryFunc func(ctx context.Context, countryCode string) (*models.GeoBlockRule, error)
	CountEnabledFunc        func(ctx context.Context) (int64, error)
	DeleteFunc              func(ctx context.Context, id string) error
}

func (m *MockGeoRuleRepository) Create(ctx context.Context, rule *models.GeoBlockRule) (*models.GeoBlockRule, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, rule)
	}
	rule.ID = "geo_123"
	rule.CreatedAt = time.Now()
	return rule, nil
}

func (m *MockGeoRuleRepository) List(ctx context.Context) ([]*models.GeoBlockRule, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []*models.GeoBlockRule{}, nil
}

func (m *MockGeoRuleRepository) GetEnabledByCountry(ctx context.Context, countryCode string) (*models.GeoBlockRule, error) {
	if m.GetEnabledByCountryFunc != nil {
		return m.GetEnabledByCountryFunc(ctx, countryCode)
	}
	return nil, models.ErrNotFound
}

func (m *MockGeoRuleRepository) CountEnabled(ctx context.Context) (int64, error) {
	if m.CountEnabledFunc != nil {
		return m.CountEnabledFunc(ctx)
	}
	return 0, nil
}

func (m *MockGeoRuleRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// MockThreatEventRepository implements ThreatEventRepository for testing
type MockThreatEventRepository struct {
	CreateFunc               func(ctx context.Context, event *models.ThreatEvent) (*models.ThreatEvent, error)
	GetByIDFunc              func(ctx context.Context, id string) (*models.ThreatEvent, error)
	ResolveFunc              func(ctx context.Context, id, resolvedBy string) (*models.ThreatEvent, error)
	ListFunc                 func(ctx context.Context, eventType, severity string, limit, offset int) ([]*models.ThreatEvent, error)
	CountBySourceSinceFunc   func(ctx context.Context, sourceIP, eventType string, since time.Time) (int64, error)
	CountSinceFunc           func(ctx context.Context, since time.Time) (int64, error)
	CountUnresolvedFunc      func(ctx context.Context) (int64, error)
	CountByTypeSinceFunc     func(ctx context.Context, since time.Time) (map[string]int64, error)
	CountBySeveritySinceFunc func(ctx context.Context, since time.Time) (map[string]int64, error)
	DeleteOlderThanFunc      func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *MockThreatEventRepository) Create(ctx context.Context, event *models.ThreatEvent) (*models.ThreatEvent, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, event)
	}
	event.ID = "event_123"
	event.CreatedAt = time.Now()
	return event, nil
}

func (m *MockThreatEventRepository) GetByID(ctx context.Context, id string) (*models.ThreatEvent, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockThreatEventRepository) Resolve(ctx context.Context, id, resolvedBy string) (*models.ThreatEvent, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, id, resolvedBy)
	}
	return nil, models.ErrNotFound
}

func (m *MockThreatEventRepository) List(ctx context.Context, eventType, severity string, limit, offset int) ([]*models.ThreatEvent, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, eventType, severity, limit, offset)
	}
	return []*models.ThreatEvent{}, nil
}

func (m *MockThreatEventRepository) CountBySourceSince(ctx context.Context, sourceIP, eventType string, since time.Time) (int64, error) {
	if m.CountBySourceSinceFunc != nil {
		return m.CountBySourceSinceFunc(ctx, sourceIP, eventType, since)
	}
	return 0, nil
}

func (m *MockThreatEventRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	if m.CountSinceFunc != nil {
		return m.CountSinceFunc(ctx, since)
	}
	return 0, nil
}

func (m *MockThreatEventRepository) CountUnresolved(ctx context.Context) (int64, error) {
	if m.CountUnresolvedFunc != nil {
		return m.CountUnresolvedFunc(ctx)
	}
	return 0, nil
}

func (m *MockThreatEventRepository) CountByTypeSince(ctx context.Context, since time.Time) (map[string]int64, error) {
	if m.CountByTypeSinceFunc != nil {
		return m.CountByTypeSinceFunc(ctx, since)
	}
	return map[string]int64{}, nil
}

func (m *MockThreatEventRepository) CountBySeveritySince(ctx context.Context, since time.Time) (map[string]int64, error) {
	if m.CountBySeveritySinceFunc != nil {
		return m.CountBySeveritySinceFunc(ctx, since)
	}
	return map[string]int64{}, nil
}

func (m *MockThreatEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteOlderThanFunc != nil {
		return m.DeleteOlderThanFunc(ctx, cutoff)
	}
	return 0, nil
}

// MockThreatRuleRepository implements ThreatRuleRepository for testing
type MockThreatRuleRepository struct {
	CreateFunc            func(ctx context.Context, rule *models.ThreatRule) (*models.ThreatRule, error)
	ListFunc              func(ctx context.Context) ([]*models.ThreatRule, error)
	ListEnabledByTypeFunc func(ctx context.Context, ruleType string) ([]*models.ThreatRule, error)
	DeleteFunc            func(ctx context.Context, id string) error
}

func (m *MockThreatRuleRepository) Create(ctx context.Context, rule *models.ThreatRule) (*models.ThreatRule, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, rule)
	}
	rule.ID = "rule_123"
	rule.CreatedAt = time.Now()
	return rule, nil
}

func (m *MockThreatRuleRepository) List(ctx context.Context) ([]*models.ThreatRule, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []*models.ThreatRule{}, nil
}

func (m *MockThreatRuleRepository) ListEnabledByType(ctx context.Context, ruleType string) ([]*models.ThreatRule, error) {
	if m.ListEnabledByTypeFunc != nil {
		return m.ListEnabledByTypeFunc(ctx, ruleType)
	}
	return []*models.ThreatRule{}, nil
}

func (m *MockThreatRuleRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// MockAutoBlocker implements AutoBlocker for testing
type MockAutoBlocker struct {
	AutoBlockFunc func(ctx context.Context, ip, reason string, hours int) error
}

func (m *MockAutoBlocker) AutoBlock(ctx context.Context, ip, reason string, hours int) error {
	if m.AutoBlockFunc != nil {
		return m.AutoBlockFunc(ctx, ip, reason, hours)
	}
	return nil
}

// MockWafRuleRepository implements WafRuleRepository for testing
type MockWafRuleRepository struct {
	CreateFunc             func(ctx context.Context, rule *models.WafRule) (*models.WafRule, error)
	GetByIDFunc            func(ctx context.Context, id string) (*models.WafRule, error)
	UpdateFunc             func(ctx context.Context, rule *models.WafRule) (*models.WafRule, error)
	SetEnabledFunc         func(ctx context.Context, id string, enabled bool) error
	ListFunc               func(ctx context.Context) ([]*models.WafRule, error)
	ListEnabledOrderedFunc func(ctx context.Context) ([]*models.WafRule, error)
	CountFunc              func(ctx context.Context) (int64, error)
	CountEnabledFunc       func(ctx context.Context) (int64, error)
	DeleteFunc             func(ctx context.Context, id string) error
}

func (m *MockWafRuleRepository) Create(ctx context.Context, rule *models.WafRule) (*models.WafRule, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, rule)
	}
	rule.ID = "waf_123"
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = rule.CreatedAt
	return rule, nil
}

func (m *MockWafRuleRepository) GetByID(ctx context.Context, id string) (*models.WafRule, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockWafRuleRepository) Update(ctx context.Context, rule *models.WafRule) (*models.WafRule, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, rule)
	}
	return rule, nil
}

func (m *MockWafRuleRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	if m.SetEnabledFunc != nil {
		return m.SetEnabledFunc(ctx, id, enabled)
	}
	return nil
}

func (m *MockWafRuleRepository) List(ctx context.Context) ([]*models.WafRule, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []*models.WafRule{}, nil
}

func (m *MockWafRuleRepository) ListEnabledOrdered(ctx context.Context) ([]*models.WafRule, error) {
	if m.ListEnabledOrderedFunc != nil {
		return m.ListEnabledOrderedFunc(ctx)
	}
	return []*models.WafRule{}, nil
}

func (m *MockWafRuleRepository) Count(ctx context.Context) (int64, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx)
	}
	return 0, nil
}

func (m *MockWafRuleRepository) CountEnabled(ctx context.Context) (int64, error) {
	if m.CountEnabledFunc != nil {
		return m.CountEnabledFunc(ctx)
	}
	return 0, nil
}

func (m *MockWafRuleRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// MockWafEventRepository implements WafEventRepository for testing
type MockWafEventRepository struct {
	CreateFunc               func(ctx context.Context, event *models.WafEvent) (*models.WafEvent, error)
	ListFunc                 func(ctx context.Context, category string, limit, offset int) ([]*models.WafEvent, error)
	CountSinceFunc           func(ctx context.Context, since time.Time) (int64, error)
	CountByCategorySinceFunc func(ctx context.Context, since time.Time) (map[string]int64, error)
	CountByActionSinceFunc   func(ctx context.Context, since time.Time) (map[string]int64, error)
	DeleteOlderThanFunc      func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *MockWafEventRepository) Create(ctx context.Context, event *models.WafEvent) (*models.WafEvent, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, event)
	}
	event.ID = "wafevent_123"
	event.CreatedAt = time.Now()
	return event, nil
}

func (m *MockWafEventRepository) List(ctx context.Context, category string, limit, offset int) ([]*models.WafEvent, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, category, limit, offset)
	}
	return []*models.WafEvent{}, nil
}

func (m *MockWafEventRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	if m.CountSinceFunc != nil {
		return m.CountSinceFunc(ctx, since)
	}
	return 0, nil
}

func (m *MockWafEventRepository) CountByCategorySince(ctx context.Context, since time.Time) (map[string]int64, error) {
	if m.CountByCategorySinceFunc != nil {
		return m.CountByCategorySinceFunc(ctx, since)
	}
	return map[string]int64{}, nil
}

func (m *MockWafEventRepository) CountByActionSince(ctx context.Context, since time.Time) (map[string]int64, error) {
	if m.CountByActionSinceFunc != nil {
		return m.CountByActionSinceFunc(ctx, since)
	}
	return map[string]int64{}, nil
}

func (m *MockWafEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteOlderThanFunc != nil {
		return m.DeleteOlderThanFunc(ctx, cutoff)
	}
	return 0, nil
}
