package settings

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/fastygo/schoolerp/domain"
	"github.com/fastygo/schoolerp/internal/cache"
	"github.com/fastygo/schoolerp/repository/memory"
)

var (
	admin   = domain.Actor{ID: "u-admin", TenantID: "T1", IP: "10.0.0.1"}
	aes256  = `{"encryption":{"standard":"AES-256"},"passwordPolicy":{"minLength":12}}`
	rsaPtch = `{"encryption":{"standard":"RSA-2048"}}`
)

type SettingsSuite struct {
	suite.Suite
	ctx   context.Context
	store *memory.Store
	local *cache.LocalStore
	pub   *recordingPublisher
	uc    *UseCase
}

func TestSettingsSuite(t *testing.T) {
	suite.Run(t, new(SettingsSuite))
}

func (s *SettingsSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.NewStore()
	s.local = cache.NewLocalStore(1000)
	s.pub = &recordingPublisher{}
	s.uc = New(s.store, cache.New(s.local, time.Second, nil), s.pub, nil, nil)
}

func (s *SettingsSuite) TearDownTest() {
	s.local.Close()
}

func (s *SettingsSuite) history(tenantID string, module domain.Module) []domain.HistoryEntry {
	page, err := s.store.History().Query(s.ctx, tenantID, domain.HistoryFilter{Module: module}, 1, 100)
	s.Require().NoError(err)
	return page.Items
}

func (s *SettingsSuite) standard(tenantID string) string {
	got, err := s.uc.Get(s.ctx, domain.ModuleSecurityFramework, tenantID)
	s.Require().NoError(err)
	var cfg domain.SecurityFrameworkConfig
	s.Require().NoError(got.Decode(&cfg))
	return cfg.Encryption.Standard
}

func (s *SettingsSuite) requireCode(err error, code domain.ErrorCode) {
	s.Require().Error(err)
	s.Require().Truef(domain.IsDomainError(err, code), "want %s, got %v", code, err)
}

func (s *SettingsSuite) TestRegistryCoversEveryModule() {
	for _, m := range domain.Modules() {
		b, err := lookup(m, "T1")
		s.Require().NoError(err, m)
		s.NotNil(b.document, m)
		s.Equal(m.Collection(), b.entry != nil, m)
	}
	_, err := lookup(domain.ModuleAuditLog, "T1")
	s.requireCode(err, domain.ErrCodeInvalid)
}

func (s *SettingsSuite) TestSecurityFrameworkUpdateRollback() {
	_, err := s.uc.Create(s.ctx, domain.ModuleSecurityFramework, "T1", domain.SettingsInput{Data: doc(aes256)}, admin)
	s.Require().NoError(err)
	s.Equal(domain.EncryptionAES256, s.standard("T1"))

	updated, err := s.uc.Update(s.ctx, domain.ModuleSecurityFramework, "T1", doc(rsaPtch), nil, admin)
	s.Require().NoError(err)
	s.Equal(2, updated.Version)
	s.Equal(domain.EncryptionRSA2048, s.standard("T1"))

	hist := s.history("T1", domain.ModuleSecurityFramework)
	s.Require().Len(hist, 2)
	update := hist[0]
	s.Equal(domain.ActionUpdate, update.Action)

	restored, err := s.uc.Rollback(s.ctx, update.ID, "T1", admin)
	s.Require().NoError(err)
	s.Equal(3, restored.Version)
	s.Equal(domain.EncryptionAES256, s.standard("T1"))

	hist = s.history("T1", domain.ModuleSecurityFramework)
	s.Require().Len(hist, 3)
	rb := hist[0]
	s.Equal(domain.ActionRollback, rb.Action)
	s.Equal(update.ID, rb.Metadata["rolledBackEntry"])
	s.JSONEq(string(update.PreviousValue), string(rb.NewValue))
	s.JSONEq(string(update.NewValue), string(rb.PreviousValue))
}

func (s *SettingsSuite) TestRollbackRestoresExactPreviousState() {
	_, err := s.uc.Create(s.ctx, domain.ModuleCoreSystemConfig, "T1", domain.SettingsInput{Data: doc(`{"schoolName":"North High","dateFormat":"DD/MM/YYYY"}`)}, admin)
	s.Require().NoError(err)
	_, err = s.uc.Update(s.ctx, domain.ModuleCoreSystemConfig, "T1", doc(`{"schoolName":"North Academy"}`), nil, admin)
	s.Require().NoError(err)
	before, err := s.store.Settings().FindLive(s.ctx, domain.ModuleCoreSystemConfig, "T1")
	s.Require().NoError(err)

	_, err = s.uc.Update(s.ctx, domain.ModuleCoreSystemConfig, "T1", doc(`{"dateFormat":"YYYY-MM-DD","currency":"KES"}`), nil, admin)
	s.Require().NoError(err)
	last := s.history("T1", domain.ModuleCoreSystemConfig)[0]

	_, err = s.uc.Rollback(s.ctx, last.ID, "T1", admin)
	s.Require().NoError(err)
	after, err := s.store.Settings().FindLive(s.ctx, domain.ModuleCoreSystemConfig, "T1")
	s.Require().NoError(err)

	s.True(before.Data.Equal(after.Data))
	s.JSONEq(string(before.Snapshot().JSON()), string(after.Snapshot().JSON()))
}

func (s *SettingsSuite) TestFeatureFlagDuplicateAndToggle() {
	flag := EntryInput{Name: domain.FlagMultiFactorAuth, Enabled: boolPtr(true)}
	_, err := s.uc.AddEntry(s.ctx, domain.ModuleFeatureFlags, "T2", flag, admin)
	s.Require().NoError(err)

	_, err = s.uc.AddEntry(s.ctx, domain.ModuleFeatureFlags, "T2", flag, admin)
	s.requireCode(err, domain.ErrCodeAlreadyExists)

	// cached read before the toggle
	got, err := s.uc.Get(s.ctx, domain.ModuleFeatureFlags, "T2")
	s.Require().NoError(err)
	e, ok := got.LiveEntry(domain.FlagMultiFactorAuth)
	s.Require().True(ok)
	s.True(e.Enabled)

	_, err = s.uc.Toggle(s.ctx, domain.ModuleFeatureFlags, "T2", domain.FlagMultiFactorAuth, admin)
	s.Require().NoError(err)

	got, err = s.uc.Get(s.ctx, domain.ModuleFeatureFlags, "T2")
	s.Require().NoError(err)
	e, ok = got.LiveEntry(domain.FlagMultiFactorAuth)
	s.Require().True(ok)
	s.False(e.Enabled)

	actions := []domain.HistoryAction{}
	for _, h := range s.history("T2", domain.ModuleFeatureFlags) {
		actions = append(actions, h.Action)
	}
	s.Equal([]domain.HistoryAction{domain.ActionToggle, domain.ActionCreate}, actions)
}

func (s *SettingsSuite) TestBulkCreateFirstSeenWins() {
	items := []EntryInput{
		{Name: "admin", Data: doc(`{"description":"first","permissions":["settings:read"]}`)},
		{Name: "admin", Data: doc(`{"description":"second","permissions":["settings:write"]}`)},
	}
	res, err := s.uc.BulkCreate(s.ctx, domain.ModuleRole, "T3", items, admin)
	s.Require().NoError(err)
	s.Equal([]string{"admin"}, res.Inserted)
	s.Equal([]string{"admin"}, res.Skipped)
	s.Require().Len(res.Settings.Entries, 1)

	var attrs domain.RoleAttributes
	s.Require().NoError(domain.DecodeDocument(res.Settings.Entries[0].Data, &attrs))
	s.Equal("first", attrs.Description)
	s.Equal([]string{"settings:read"}, attrs.Permissions)

	hist := s.history("T3", domain.ModuleRole)
	s.Require().Len(hist, 1)
	s.Equal(domain.ActionBulkCreate, hist[0].Action)
	s.Equal("admin", hist[0].Metadata["inserted"])
	s.Equal("admin", hist[0].Metadata["skipped"])
}

func (s *SettingsSuite) TestBulkCreateSkipsLiveAndRejectsAllDuplicates() {
	_, err := s.uc.BulkCreate(s.ctx, domain.ModuleRole, "T3", []EntryInput{{Name: "teacher"}}, admin)
	s.Require().NoError(err)

	res, err := s.uc.BulkCreate(s.ctx, domain.ModuleRole, "T3", []EntryInput{{Name: "teacher"}, {Name: "parent"}}, admin)
	s.Require().NoError(err)
	s.Equal([]string{"parent"}, res.Inserted)
	s.Equal([]string{"teacher"}, res.Skipped)
	s.Len(res.Settings.Entries, 2)

	_, err = s.uc.BulkCreate(s.ctx, domain.ModuleRole, "T3", []EntryInput{{Name: "teacher"}, {Name: "parent"}}, admin)
	s.Require().ErrorIs(err, domain.ErrAllEntriesExist)
	s.requireCode(err, domain.ErrCodeInvalid)
	s.Len(s.history("T3", domain.ModuleRole), 2)
}

func (s *SettingsSuite) TestDeleteRollbackRevives() {
	_, err := s.uc.Create(s.ctx, domain.ModuleSecurityFramework, "T1", domain.SettingsInput{Data: doc(aes256)}, admin)
	s.Require().NoError(err)
	s.Equal(domain.EncryptionAES256, s.standard("T1"))

	s.Require().NoError(s.uc.Delete(s.ctx, domain.ModuleSecurityFramework, "T1", admin))
	_, err = s.uc.Get(s.ctx, domain.ModuleSecurityFramework, "T1")
	s.requireCode(err, domain.ErrCodeNotFound)

	del := s.history("T1", domain.ModuleSecurityFramework)[0]
	s.Equal(domain.ActionDelete, del.Action)
	s.JSONEq(`{}`, string(del.NewValue))

	restored, err := s.uc.Rollback(s.ctx, del.ID, "T1", admin)
	s.Require().NoError(err)
	s.False(restored.IsDeleted)
	s.Nil(restored.DeletedAt)
	s.Equal(domain.EncryptionAES256, s.standard("T1"))

	rb := s.history("T1", domain.ModuleSecurityFramework)[0]
	s.Equal(domain.ActionRollback, rb.Action)
	s.JSONEq(`{}`, string(rb.PreviousValue))
}

func (s *SettingsSuite) TestSecondDeleteIsNotFoundWithoutHistory() {
	_, err := s.uc.Create(s.ctx, domain.ModuleEnterpriseInfra, "T1", domain.SettingsInput{Data: doc(`{"backup":{"enabled":true,"frequency":"daily"}}`)}, admin)
	s.Require().NoError(err)
	s.Require().NoError(s.uc.Delete(s.ctx, domain.ModuleEnterpriseInfra, "T1", admin))

	err = s.uc.Delete(s.ctx, domain.ModuleEnterpriseInfra, "T1", admin)
	s.requireCode(err, domain.ErrCodeNotFound)
	s.Len(s.history("T1", domain.ModuleEnterpriseInfra), 2)
}

func (s *SettingsSuite) TestHistoryCarriesPrePostState() {
	created, err := s.uc.Create(s.ctx, domain.ModuleSecurityFramework, "T1", domain.SettingsInput{Data: doc(aes256)}, admin)
	s.Require().NoError(err)

	hist := s.history("T1", domain.ModuleSecurityFramework)
	s.Require().Len(hist, 1)
	s.JSONEq(`{}`, string(hist[0].PreviousValue))
	s.JSONEq(string(created.Snapshot().JSON()), string(hist[0].NewValue))
	s.Equal(admin.ID, hist[0].ChangedBy)
	s.Equal(admin.IP, hist[0].IPAddress)

	before, err := s.store.Settings().FindLive(s.ctx, domain.ModuleSecurityFramework, "T1")
	s.Require().NoError(err)
	_, err = s.uc.Update(s.ctx, domain.ModuleSecurityFramework, "T1", doc(`{"sessionTimeoutMinutes":30}`), nil, admin)
	s.Require().NoError(err)
	after, err := s.store.Settings().FindLive(s.ctx, domain.ModuleSecurityFramework, "T1")
	s.Require().NoError(err)

	hist = s.history("T1", domain.ModuleSecurityFramework)
	s.Require().Len(hist, 2)
	s.JSONEq(string(before.Snapshot().JSON()), string(hist[0].PreviousValue))
	s.JSONEq(string(after.Snapshot().JSON()), string(hist[0].NewValue))
}

func (s *SettingsSuite) TestCreateTwiceIsAlreadyExists() {
	_, err := s.uc.Create(s.ctx, domain.ModuleSecurityFramework, "T1", domain.SettingsInput{Data: doc(aes256)}, admin)
	s.Require().NoError(err)
	_, err = s.uc.Create(s.ctx, domain.ModuleSecurityFramework, "T1", domain.SettingsInput{Data: doc(aes256)}, admin)
	s.requireCode(err, domain.ErrCodeAlreadyExists)
	s.Len(s.history("T1", domain.ModuleSecurityFramework), 1)

	// another tenant is unaffected
	_, err = s.uc.Create(s.ctx, domain.ModuleSecurityFramework, "T9", domain.SettingsInput{Data: doc(aes256)}, admin)
	s.NoError(err)
}

func (s *SettingsSuite) TestValidationRunsBeforeWrites() {
	cases := map[string]string{
		"bad enum":    `{"encryption":{"standard":"DES"}}`,
		"missing":     `{"passwordPolicy":{"minLength":12}}`,
		"unknown key": `{"encryption":{"standard":"AES-256"},"colour":"blue"}`,
		"wrong type":  `{"encryption":{"standard":"AES-256"},"sessionTimeoutMinutes":"long"}`,
	}
	for name, raw := range cases {
		_, err := s.uc.Create(s.ctx, domain.ModuleSecurityFramework, "T1", domain.SettingsInput{Data: doc(raw)}, admin)
		s.requireCode(err, domain.ErrCodeInvalid)
		s.T().Log(name, err)
	}
	s.Empty(s.history("T1", domain.ModuleSecurityFramework))

	_, err := s.uc.Create(s.ctx, domain.ModuleSecurityFramework, "T1", domain.SettingsInput{Data: doc(aes256)}, admin)
	s.Require().NoError(err)
	_, err = s.uc.Update(s.ctx, domain.ModuleSecurityFramework, "T1", doc(`{"dataMasking":{"enabled":true,"policy":"Sometimes"}}`), nil, admin)
	s.requireCode(err, domain.ErrCodeInvalid)

	var dErr *domain.Error
	s.Require().True(errors.As(err, &dErr))
	s.Require().NotEmpty(dErr.Fields)
	s.Equal("data.dataMasking.policy", dErr.Fields[0].Field)
	s.Len(s.history("T1", domain.ModuleSecurityFramework), 1)
}

func (s *SettingsSuite) TestRoleEntriesRejectUnknownPermissions() {
	_, err := s.uc.AddEntry(s.ctx, domain.ModuleRole, "T1", EntryInput{Name: "auditor", Data: doc(`{"permissions":["audit:read","everything"]}`)}, admin)
	s.requireCode(err, domain.ErrCodeInvalid)

	_, err = s.uc.AddEntry(s.ctx, domain.ModuleRole, "T1", EntryInput{Name: "bad name!"}, admin)
	s.requireCode(err, domain.ErrCodeInvalid)
}

func (s *SettingsSuite) TestVersionConflict() {
	_, err := s.uc.Create(s.ctx, domain.ModuleCoreSystemConfig, "T1", domain.SettingsInput{Data: doc(`{"schoolName":"A"}`)}, admin)
	s.Require().NoError(err)

	_, err = s.uc.Update(s.ctx, domain.ModuleCoreSystemConfig, "T1", doc(`{"schoolName":"B"}`), intPtr(1), admin)
	s.Require().NoError(err)

	_, err = s.uc.Update(s.ctx, domain.ModuleCoreSystemConfig, "T1", doc(`{"schoolName":"C"}`), intPtr(1), admin)
	s.requireCode(err, domain.ErrCodeConflict)
	s.Len(s.history("T1", domain.ModuleCoreSystemConfig), 2)
}

func (s *SettingsSuite) TestHistoryFailureAbortsWrite() {
	s.store.FailHistory = errors.New("disk full")

	_, err := s.uc.Create(s.ctx, domain.ModuleSecurityFramework, "T1", domain.SettingsInput{Data: doc(aes256)}, admin)
	s.requireCode(err, domain.ErrCodeInternal)

	s.store.FailHistory = nil
	_, err = s.store.Settings().FindLive(s.ctx, domain.ModuleSecurityFramework, "T1")
	s.requireCode(err, domain.ErrCodeNotFound)
	s.Empty(s.pub.events)
}

func (s *SettingsSuite) TestEntryLifecycleKeepsCacheCoherent() {
	_, err := s.uc.BulkCreate(s.ctx, domain.ModuleFeatureFlags, "T2", []EntryInput{
		{Name: "online_fees", Data: doc(`{"rolloutPercentage":10}`)},
		{Name: "sms_alerts", Enabled: boolPtr(false)},
	}, admin)
	s.Require().NoError(err)

	got, err := s.uc.Get(s.ctx, domain.ModuleFeatureFlags, "T2")
	s.Require().NoError(err)
	s.Len(got.Entries, 2)

	_, err = s.uc.UpdateEntry(s.ctx, domain.ModuleFeatureFlags, "T2", "online_fees", EntryPatch{Data: doc(`{"rolloutPercentage":50}`)}, admin)
	s.Require().NoError(err)
	got, err = s.uc.Get(s.ctx, domain.ModuleFeatureFlags, "T2")
	s.Require().NoError(err)
	e, _ := got.LiveEntry("online_fees")
	var attrs domain.FeatureFlagAttributes
	s.Require().NoError(domain.DecodeDocument(e.Data, &attrs))
	s.Require().NotNil(attrs.RolloutPercentage)
	s.Equal(50, *attrs.RolloutPercentage)

	_, err = s.uc.UpdateEntry(s.ctx, domain.ModuleFeatureFlags, "T2", "online_fees", EntryPatch{Data: doc(`{"rolloutPercentage":150}`)}, admin)
	s.requireCode(err, domain.ErrCodeInvalid)

	_, err = s.uc.DeleteEntry(s.ctx, domain.ModuleFeatureFlags, "T2", "sms_alerts", admin)
	s.Require().NoError(err)
	got, err = s.uc.Get(s.ctx, domain.ModuleFeatureFlags, "T2")
	s.Require().NoError(err)
	s.Len(got.Entries, 1)

	_, err = s.uc.Toggle(s.ctx, domain.ModuleFeatureFlags, "T2", "sms_alerts", admin)
	s.requireCode(err, domain.ErrCodeNotFound)

	// a deleted name can be added again
	_, err = s.uc.AddEntry(s.ctx, domain.ModuleFeatureFlags, "T2", EntryInput{Name: "sms_alerts"}, admin)
	s.Require().NoError(err)

	last := s.history("T2", domain.ModuleFeatureFlags)[1]
	s.Equal(domain.ActionDelete, last.Action)
	s.Equal("sms_alerts", last.Metadata["entry"])
}

func (s *SettingsSuite) TestEmptyTenantOnlyForRoles() {
	_, err := s.uc.Get(s.ctx, domain.ModuleSecurityFramework, "")
	s.requireCode(err, domain.ErrCodeInvalid)
	s.ErrorIs(err, domain.ErrTenantRequired)

	_, err = s.uc.Create(s.ctx, domain.ModuleCoreSystemConfig, "", domain.SettingsInput{Data: doc(`{"schoolName":"A"}`)}, admin)
	s.requireCode(err, domain.ErrCodeInvalid)
	_, err = s.uc.Update(s.ctx, domain.ModuleCoreSystemConfig, "", doc(`{"schoolName":"B"}`), nil, admin)
	s.requireCode(err, domain.ErrCodeInvalid)
	s.requireCode(s.uc.Delete(s.ctx, domain.ModuleCoreSystemConfig, "", admin), domain.ErrCodeInvalid)
	_, err = s.uc.AddEntry(s.ctx, domain.ModuleFeatureFlags, "", EntryInput{Name: "sms_alerts"}, admin)
	s.requireCode(err, domain.ErrCodeInvalid)
	_, err = s.uc.Toggle(s.ctx, domain.ModuleFeatureFlags, "", "sms_alerts", admin)
	s.requireCode(err, domain.ErrCodeInvalid)
	_, err = s.uc.BulkCreate(s.ctx, domain.ModuleFeatureFlags, "", []EntryInput{{Name: "sms_alerts"}}, admin)
	s.requireCode(err, domain.ErrCodeInvalid)
	s.Empty(s.history("", domain.ModuleCoreSystemConfig))
	s.Empty(s.pub.events)

	_, err = s.uc.AddEntry(s.ctx, domain.ModuleRole, "", EntryInput{Name: "librarian", Data: doc(`{"permissions":["audit:read"]}`)}, admin)
	s.Require().NoError(err)
	roles, err := s.uc.Get(s.ctx, domain.ModuleRole, "")
	s.Require().NoError(err)
	s.Equal("", roles.TenantID)
}

func (s *SettingsSuite) TestReadOverlappingUpdateDoesNotCacheOldVersion() {
	_, err := s.uc.Create(s.ctx, domain.ModuleSecurityFramework, "T1", domain.SettingsInput{Data: doc(aes256)}, admin)
	s.Require().NoError(err)

	racing := &interleavedStore{Store: s.store}
	uc := New(racing, cache.New(s.local, time.Second, nil), s.pub, nil, nil)
	racing.onRead = func() {
		_, err := uc.Update(s.ctx, domain.ModuleSecurityFramework, "T1", doc(rsaPtch), nil, admin)
		s.Require().NoError(err)
	}

	inFlight, err := uc.Get(s.ctx, domain.ModuleSecurityFramework, "T1")
	s.Require().NoError(err)
	s.Equal(1, inFlight.Version)

	next, err := uc.Get(s.ctx, domain.ModuleSecurityFramework, "T1")
	s.Require().NoError(err)
	s.Equal(2, next.Version)
	s.Equal("RSA-2048", s.standard("T1"))
}

func (s *SettingsSuite) TestMutationsInvalidateAuditPages() {
	layer := cache.New(s.local, time.Second, nil)
	auditKey := cache.AuditKey("T1", domain.HistoryFilter{}, 1, 20)
	layer.Set(s.ctx, auditKey, []string{"stale"}, time.Minute, layer.Fence(s.ctx, cache.AuditIndex("T1")))
	s.Equal(1, s.local.Indexed(cache.AuditIndex("T1")))

	_, err := s.uc.Create(s.ctx, domain.ModuleSecurityFramework, "T1", domain.SettingsInput{Data: doc(aes256)}, admin)
	s.Require().NoError(err)

	var out []string
	s.False(layer.Get(s.ctx, auditKey, &out))
}

func (s *SettingsSuite) TestChangeEventsPublished() {
	_, err := s.uc.Create(s.ctx, domain.ModuleSecurityFramework, "T1", domain.SettingsInput{Data: doc(aes256)}, admin)
	s.Require().NoError(err)
	_, err = s.uc.Update(s.ctx, domain.ModuleSecurityFramework, "T1", doc(rsaPtch), nil, admin)
	s.Require().NoError(err)

	s.Len(s.pub.events, 2)
	ev := s.pub.last()
	s.Equal("T1", ev.TenantID)
	s.Equal(domain.ModuleSecurityFramework, ev.Module)
	s.Equal(domain.ActionUpdate, ev.Action)
	s.Equal(2, ev.Version)
}

func (s *SettingsSuite) TestRollbackRejections() {
	_, err := s.uc.Rollback(s.ctx, "missing", "T1", admin)
	s.requireCode(err, domain.ErrCodeNotFound)

	_, err = s.uc.Create(s.ctx, domain.ModuleSecurityFramework, "T1", domain.SettingsInput{Data: doc(aes256)}, admin)
	s.Require().NoError(err)
	create := s.history("T1", domain.ModuleSecurityFramework)[0]

	_, err = s.uc.Rollback(s.ctx, create.ID, "T2", admin)
	s.requireCode(err, domain.ErrCodeNotFound)

	_, err = s.uc.Rollback(s.ctx, create.ID, "T1", admin)
	s.Require().ErrorIs(err, domain.ErrNothingToRollback)

	_, err = s.uc.Update(s.ctx, domain.ModuleSecurityFramework, "T1", doc(rsaPtch), nil, admin)
	s.Require().NoError(err)
	update := s.history("T1", domain.ModuleSecurityFramework)[0]
	s.Require().NoError(s.uc.Delete(s.ctx, domain.ModuleSecurityFramework, "T1", admin))

	_, err = s.uc.Rollback(s.ctx, update.ID, "T1", admin)
	s.requireCode(err, domain.ErrCodeNotFound)
}

func (s *SettingsSuite) TestRollbackOfUnknownModule() {
	s.Require().NoError(s.store.History().Record(s.ctx, &domain.HistoryEntry{
		ID:            "h-purge",
		TenantID:      "T1",
		Module:        domain.ModuleAuditLog,
		Action:        domain.ActionPurgeCache,
		PreviousValue: json.RawMessage(`{}`),
		NewValue:      json.RawMessage(`{}`),
		CreatedAt:     time.Now(),
	}))
	_, err := s.uc.Rollback(s.ctx, "h-purge", "T1", admin)
	s.Require().ErrorIs(err, domain.ErrInvalidRollbackModule)
	s.Equal("Invalid module for rollback", err.Error())
}

func (s *SettingsSuite) TestNonCollectionModulesRejectEntries() {
	_, err := s.uc.AddEntry(s.ctx, domain.ModuleSecurityFramework, "T1", EntryInput{Name: "x"}, admin)
	s.Require().ErrorIs(err, domain.ErrNotCollection)

	_, err = s.uc.Create(s.ctx, domain.ModuleCoreSystemConfig, "T1", domain.SettingsInput{
		Entries: []domain.Entry{{Name: "x"}},
	}, admin)
	s.Require().ErrorIs(err, domain.ErrNotCollection)
}

func (s *SettingsSuite) TestSeedDefaultRolesIsIdempotent() {
	s.Require().NoError(s.uc.SeedDefaultRoles(s.ctx))
	s.Require().NoError(s.uc.SeedDefaultRoles(s.ctx))

	roles, err := s.uc.Get(s.ctx, domain.ModuleRole, "")
	s.Require().NoError(err)
	s.Len(roles.Entries, len(defaultRoles))

	sa, ok := roles.LiveEntry("super_admin")
	s.Require().True(ok)
	var attrs domain.RoleAttributes
	s.Require().NoError(domain.DecodeDocument(sa.Data, &attrs))
	s.True(attrs.IsSystem)
	s.Len(attrs.Permissions, len(domain.AllPermissions()))

	s.Len(s.history("", domain.ModuleRole), 1)
}

func TestDegradedCacheMatchesHealthyCache(t *testing.T) {
	run := func(store cache.Store) []byte {
		ctx := context.Background()
		clock := newStepClock()
		uc := New(memory.NewStore(), cache.New(store, 50*time.Millisecond, nil), nil, nil, nil,
			WithClock(clock.Now),
			WithIDGenerators(&seqIDs{prefix: "agg"}, &seqIDs{prefix: "hist"}))

		var out []any
		record := func(v any, err error) {
			if err != nil {
				out = append(out, err.Error())
				return
			}
			out = append(out, v)
		}

		record(uc.Create(ctx, domain.ModuleSecurityFramework, "T1", domain.SettingsInput{Data: doc(aes256)}, admin))
		record(uc.Get(ctx, domain.ModuleSecurityFramework, "T1"))
		record(uc.Update(ctx, domain.ModuleSecurityFramework, "T1", doc(rsaPtch), nil, admin))
		record(uc.Get(ctx, domain.ModuleSecurityFramework, "T1"))
		record(uc.AddEntry(ctx, domain.ModuleFeatureFlags, "T1", EntryInput{Name: domain.FlagMultiFactorAuth}, admin))
		record(uc.Get(ctx, domain.ModuleFeatureFlags, "T1"))
		record(uc.Toggle(ctx, domain.ModuleFeatureFlags, "T1", domain.FlagMultiFactorAuth, admin))
		record(uc.Get(ctx, domain.ModuleFeatureFlags, "T1"))
		record(uc.Rollback(ctx, "hist-0002", "T1", admin))
		record(uc.Get(ctx, domain.ModuleSecurityFramework, "T1"))
		record(nil, uc.Delete(ctx, domain.ModuleSecurityFramework, "T1", admin))
		record(uc.Get(ctx, domain.ModuleSecurityFramework, "T1"))

		raw, err := json.Marshal(out)
		if err != nil {
			t.Fatal(err)
		}
		return raw
	}

	local := cache.NewLocalStore(100)
	defer local.Close()

	healthy := run(local)
	degraded := run(brokenCacheStore{})
	if string(healthy) != string(degraded) {
		t.Fatalf("degraded run diverged\nhealthy:  %s\ndegraded: %s", healthy, degraded)
	}
}
