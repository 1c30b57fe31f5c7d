package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fastygo/schoolerp/domain"
	"github.com/fastygo/schoolerp/internal/cache"
	"github.com/fastygo/schoolerp/internal/ratelimit"
	"github.com/fastygo/schoolerp/repository"
	"github.com/fastygo/schoolerp/repository/memory"
	"github.com/fastygo/schoolerp/usecase/settings"
)

var admin = domain.Actor{ID: "u-admin", TenantID: "T1", IP: "10.0.0.7"}

type AuditSuite struct {
	suite.Suite
	ctx      context.Context
	store    *memory.Store
	local    *cache.LocalStore
	settings *settings.UseCase
	logs     *observer.ObservedLogs
	now      time.Time
	uc       *UseCase
}

func TestAuditSuite(t *testing.T) {
	suite.Run(t, new(AuditSuite))
}

func (s *AuditSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.NewStore()
	s.local = cache.NewLocalStore(1000)
	s.now = time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)

	core, logs := observer.New(zap.InfoLevel)
	s.logs = logs
	layer := cache.New(s.local, time.Second, nil)
	limiter := ratelimit.New(layer, nil).WithClock(func() time.Time { return s.now })
	s.settings = settings.New(s.store, layer, nil, nil, nil)
	s.uc = New(s.store, layer, limiter, s.settings, Limits{}, zap.New(core))
}

func (s *AuditSuite) TearDownTest() {
	s.local.Close()
}

func (s *AuditSuite) createSecurity(tenantID string) {
	var d domain.Document
	s.Require().NoError(json.Unmarshal([]byte(`{"encryption":{"standard":"AES-256"}}`), &d))
	_, err := s.settings.Create(s.ctx, domain.ModuleSecurityFramework, tenantID, domain.SettingsInput{Data: d}, admin)
	s.Require().NoError(err)
}

func (s *AuditSuite) TestHundredthQueryPassesAndNextIsLimited() {
	for i := 1; i <= 100; i++ {
		_, err := s.uc.GetAuditLog(s.ctx, "T1", domain.HistoryFilter{}, 1, 20)
		s.Require().NoError(err, "request %d", i)
	}
	_, err := s.uc.GetAuditLog(s.ctx, "T1", domain.HistoryFilter{}, 1, 20)
	s.Require().True(domain.IsDomainError(err, domain.ErrCodeRateLimited), err)

	// quotas are per tenant
	_, err = s.uc.GetAuditLog(s.ctx, "T2", domain.HistoryFilter{}, 1, 20)
	s.NoError(err)
}

func (s *AuditSuite) TestStatsQuota() {
	for i := 0; i < 50; i++ {
		_, err := s.uc.GetAuditLogStats(s.ctx, "T1", time.Time{}, time.Time{})
		s.Require().NoError(err)
	}
	_, err := s.uc.GetAuditLogStats(s.ctx, "T1", time.Time{}, time.Time{})
	s.True(domain.IsDomainError(err, domain.ErrCodeRateLimited))
}

func (s *AuditSuite) TestQueryIsCachedUntilNextMutation() {
	s.createSecurity("T1")

	page, err := s.uc.GetAuditLog(s.ctx, "T1", domain.HistoryFilter{}, 1, 20)
	s.Require().NoError(err)
	s.EqualValues(1, page.Total)
	s.Equal(1, s.local.Indexed(cache.AuditIndex("T1")))

	var d domain.Document
	s.Require().NoError(json.Unmarshal([]byte(`{"sessionTimeoutMinutes":30}`), &d))
	_, err = s.settings.Update(s.ctx, domain.ModuleSecurityFramework, "T1", d, nil, admin)
	s.Require().NoError(err)

	page, err = s.uc.GetAuditLog(s.ctx, "T1", domain.HistoryFilter{}, 1, 20)
	s.Require().NoError(err)
	s.EqualValues(2, page.Total)
	s.Equal(domain.ActionUpdate, page.Items[0].Action)
}

func (s *AuditSuite) TestFiltersAreSeparateCacheEntries() {
	s.createSecurity("T1")

	all, err := s.uc.GetAuditLog(s.ctx, "T1", domain.HistoryFilter{}, 1, 20)
	s.Require().NoError(err)
	roles, err := s.uc.GetAuditLog(s.ctx, "T1", domain.HistoryFilter{Module: domain.ModuleRole}, 1, 20)
	s.Require().NoError(err)

	s.EqualValues(1, all.Total)
	s.EqualValues(0, roles.Total)
	s.NotNil(roles.Items)
	s.Equal(2, s.local.Indexed(cache.AuditIndex("T1")))
}

func (s *AuditSuite) TestRejectsInvertedRange() {
	_, err := s.uc.GetAuditLogStats(s.ctx, "T1", s.now, s.now.Add(-time.Hour))
	s.True(domain.IsDomainError(err, domain.ErrCodeInvalid))
}

func (s *AuditSuite) TestStatsCountActions() {
	s.createSecurity("T1")
	s.Require().NoError(s.settings.Delete(s.ctx, domain.ModuleSecurityFramework, "T1", admin))

	stats, err := s.uc.GetAuditLogStats(s.ctx, "T1", time.Time{}, time.Time{})
	s.Require().NoError(err)
	s.Require().Len(stats, 2)
	for _, st := range stats {
		s.Equal(domain.ModuleSecurityFramework, st.Module)
		s.EqualValues(1, st.Count)
		s.EqualValues(1, st.DistinctActorCount)
	}
}

func (s *AuditSuite) TestDeleteLogsWithoutRecordingHistory() {
	s.createSecurity("T1")
	s.createSecurity("T2")

	_, err := s.uc.GetAuditLog(s.ctx, "T1", domain.HistoryFilter{}, 1, 20)
	s.Require().NoError(err)

	n, err := s.uc.DeleteAuditLogs(s.ctx, "T1", domain.HistoryFilter{Module: domain.ModuleSecurityFramework}, admin)
	s.Require().NoError(err)
	s.EqualValues(1, n)
	s.Equal(0, s.local.Indexed(cache.AuditIndex("T1")))

	page, err := s.uc.GetAuditLog(s.ctx, "T1", domain.HistoryFilter{}, 1, 20)
	s.Require().NoError(err)
	s.EqualValues(0, page.Total)

	other, err := s.uc.GetAuditLog(s.ctx, "T2", domain.HistoryFilter{}, 1, 20)
	s.Require().NoError(err)
	s.EqualValues(1, other.Total)

	s.Equal(1, s.logs.FilterMessage("audit logs deleted").Len())

	_, err = s.uc.DeleteAuditLogs(s.ctx, "T1", domain.HistoryFilter{}, admin)
	s.True(domain.IsDomainError(err, domain.ErrCodeNotFound))
}

func (s *AuditSuite) TestRollbackSettingsDelegates() {
	s.createSecurity("T1")
	s.Require().NoError(s.settings.Delete(s.ctx, domain.ModuleSecurityFramework, "T1", admin))

	page, err := s.uc.GetAuditLog(s.ctx, "T1", domain.HistoryFilter{Action: domain.ActionDelete}, 1, 20)
	s.Require().NoError(err)
	s.Require().Len(page.Items, 1)

	restored, err := s.uc.RollbackSettings(s.ctx, page.Items[0].ID, "T1", admin)
	s.Require().NoError(err)
	s.False(restored.IsDeleted)
}

func (s *AuditSuite) TestPurgeCache() {
	s.createSecurity("T1")
	_, err := s.settings.Get(s.ctx, domain.ModuleSecurityFramework, "T1")
	s.Require().NoError(err)
	_, err = s.uc.GetAuditLog(s.ctx, "T1", domain.HistoryFilter{}, 1, 20)
	s.Require().NoError(err)

	s.Require().NoError(s.uc.PurgeCache(s.ctx, "T1", admin))
	s.Equal(0, s.local.Indexed(cache.AuditIndex("T1")))
	s.Equal(0, s.local.Indexed(cache.ModuleIndex(domain.ModuleSecurityFramework, "T1")))

	page, err := s.uc.GetAuditLog(s.ctx, "T1", domain.HistoryFilter{Module: domain.ModuleAuditLog}, 1, 20)
	s.Require().NoError(err)
	s.Require().Len(page.Items, 1)
	purge := page.Items[0]
	s.Equal(domain.ActionPurgeCache, purge.Action)
	s.Equal(admin.ID, purge.ChangedBy)

	_, err = s.uc.RollbackSettings(s.ctx, purge.ID, "T1", admin)
	s.ErrorIs(err, domain.ErrInvalidRollbackModule)
}

// racingStore runs onQuery once, after a ledger query has loaded its page.
type racingStore struct {
	*memory.Store
	onQuery func()
}

func (s *racingStore) History() repository.HistoryRepository {
	return racingHistory{HistoryRepository: s.Store.History(), owner: s}
}

type racingHistory struct {
	repository.HistoryRepository
	owner *racingStore
}

func (r racingHistory) Query(ctx context.Context, tenantID string, filter domain.HistoryFilter, page, limit int) (domain.HistoryPage, error) {
	got, err := r.HistoryRepository.Query(ctx, tenantID, filter, page, limit)
	if hook := r.owner.onQuery; hook != nil {
		r.owner.onQuery = nil
		hook()
	}
	return got, err
}

func (s *AuditSuite) TestQueryOverlappingMutationIsNotCached() {
	s.createSecurity("T1")

	racing := &racingStore{Store: s.store}
	layer := cache.New(s.local, time.Second, nil)
	uc := New(racing, layer, nil, s.settings, Limits{}, nil)
	racing.onQuery = func() {
		s.Require().NoError(s.settings.Delete(s.ctx, domain.ModuleSecurityFramework, "T1", admin))
	}

	inFlight, err := uc.GetAuditLog(s.ctx, "T1", domain.HistoryFilter{}, 1, 20)
	s.Require().NoError(err)
	s.EqualValues(1, inFlight.Total)
	s.Equal(0, s.local.Indexed(cache.AuditIndex("T1")))

	next, err := uc.GetAuditLog(s.ctx, "T1", domain.HistoryFilter{}, 1, 20)
	s.Require().NoError(err)
	s.EqualValues(2, next.Total)
}
