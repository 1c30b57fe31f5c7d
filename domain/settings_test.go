package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(t *testing.T, raw string) Document {
	t.Helper()
	var d Document
	require.NoError(t, json.Unmarshal([]byte(raw), &d))
	return d
}

func TestDocumentMergeIsShallow(t *testing.T) {
	base := doc(t, `{"encryption":{"standard":"AES-256","keyRotationDays":90},"schoolName":"A"}`)
	merged := base.Merge(doc(t, `{"encryption":{"standard":"RSA-2048"}}`))

	assert.JSONEq(t, `{"standard":"RSA-2048"}`, string(merged["encryption"]))
	assert.JSONEq(t, `"A"`, string(merged["schoolName"]))
	assert.JSONEq(t, `{"standard":"AES-256","keyRotationDays":90}`, string(base["encryption"]), "merge must not alias the source")
}

func TestDocumentEqualIgnoresWhitespace(t *testing.T) {
	a := Document{"k": json.RawMessage(`{"a": 1}`)}
	b := Document{"k": json.RawMessage(`{"a":1}`)}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(Document{"k": json.RawMessage(`{"a":2}`)}))
	assert.False(t, a.Equal(Document{}))
}

func TestSettingsEntries(t *testing.T) {
	now := time.Now()
	s := &Settings{Module: ModuleFeatureFlags}

	require.NoError(t, s.AppendEntry(Entry{Name: "mfa", Enabled: true}, now))
	assert.ErrorIs(t, s.AppendEntry(Entry{Name: "mfa"}, now), ErrEntryAlreadyExists)

	toggled, err := s.ToggleEntry("mfa", now)
	require.NoError(t, err)
	assert.False(t, toggled.Enabled)

	_, err = s.ToggleEntry("missing", now)
	assert.ErrorIs(t, err, ErrEntryNotFound)

	require.NoError(t, s.SoftDeleteEntry("mfa", now))
	assert.ErrorIs(t, s.SoftDeleteEntry("mfa", now), ErrEntryNotFound)

	// a tombstoned name can be reused
	require.NoError(t, s.AppendEntry(Entry{Name: "mfa", Enabled: true}, now))
	assert.Len(t, s.Entries, 2)
	assert.Len(t, s.View().Entries, 1)
}

func TestSettingsUpdateEntry(t *testing.T) {
	now := time.Now()
	s := &Settings{Module: ModuleRole}
	require.NoError(t, s.AppendEntry(Entry{Name: "teacher", Enabled: true, Data: doc(t, `{"description":"old"}`)}, now))

	disabled := false
	e, err := s.UpdateEntry("teacher", doc(t, `{"description":"new"}`), &disabled, now)
	require.NoError(t, err)
	assert.False(t, e.Enabled)
	assert.JSONEq(t, `"new"`, string(e.Data["description"]))
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	s := &Settings{Module: ModuleFeatureFlags, Data: doc(t, `{"description":"flags"}`)}
	require.NoError(t, s.AppendEntry(Entry{Name: "a", Enabled: true}, now))

	before := s.Snapshot()
	raw := before.JSON()

	s.Merge(doc(t, `{"description":"changed"}`))
	_, _ = s.ToggleEntry("a", now)
	s.SoftDelete(now)

	parsed, err := ParseSnapshot(raw)
	require.NoError(t, err)
	s.Restore(parsed)

	assert.False(t, s.IsDeleted)
	assert.Nil(t, s.DeletedAt)
	assert.True(t, s.Data.Equal(before.Data))
	require.Len(t, s.Entries, 1)
	assert.True(t, s.Entries[0].Enabled)
}

func TestParseSnapshotEmpty(t *testing.T) {
	for _, raw := range []string{"", "null", "{}"} {
		snap, err := ParseSnapshot(json.RawMessage(raw))
		require.NoError(t, err)
		assert.True(t, snap.Empty(), raw)
	}
	_, err := ParseSnapshot(json.RawMessage(`[1,2]`))
	assert.True(t, IsDomainError(err, ErrCodeInvalid))
}

func TestEmptySnapshotRendersAsObject(t *testing.T) {
	assert.JSONEq(t, `{}`, string(Snapshot{}.JSON()))
}

func TestParseModule(t *testing.T) {
	for _, m := range Modules() {
		parsed, err := ParseModule(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	_, err := ParseModule("billing")
	assert.True(t, IsDomainError(err, ErrCodeInvalid))
	assert.False(t, ModuleAuditLog.Valid())
	assert.Equal(t, "settings:featureFlags", ModuleFeatureFlags.Channel())
	assert.Equal(t, PermRolesWrite, ModulePermission(ModuleRole, true))
	assert.Equal(t, PermSettingsRead, ModulePermission(ModuleEnterpriseInfra, false))
}

func TestAsInternal(t *testing.T) {
	assert.NoError(t, AsInternal("x", nil))
	assert.Equal(t, ErrEntryNotFound, AsInternal("x", ErrEntryNotFound))
	assert.True(t, IsDomainError(AsInternal("x", assert.AnError), ErrCodeInternal))
}
