package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/schoolerp/domain"
)

func TestSecurityFrameworkRules(t *testing.T) {
	v := New()

	ok := domain.SecurityFrameworkConfig{Encryption: domain.EncryptionPolicy{Standard: domain.EncryptionAES256}}
	require.NoError(t, v.Struct(ok))

	bad := domain.SecurityFrameworkConfig{
		Encryption:  domain.EncryptionPolicy{Standard: "DES"},
		DataMasking: domain.MaskingPolicy{Enabled: true, Policy: "Sometimes"},
	}
	err := v.Struct(bad)
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	var dErr *domain.Error
	require.ErrorAs(t, err, &dErr)
	fields := map[string]string{}
	for _, f := range dErr.Fields {
		fields[f.Field] = f.Message
	}
	assert.Contains(t, fields, "encryption.standard")
	assert.Contains(t, fields, "dataMasking.policy")
}

func TestMissingStandardUsesCustomRequiredText(t *testing.T) {
	err := New().Struct(domain.SecurityFrameworkConfig{})
	var dErr *domain.Error
	require.ErrorAs(t, err, &dErr)
	require.Len(t, dErr.Fields, 1)
	assert.Equal(t, "encryption.standard", dErr.Fields[0].Field)
	assert.Equal(t, "standard is required", dErr.Fields[0].Message)
}

func TestPermissionTag(t *testing.T) {
	v := New()
	require.NoError(t, v.Struct(domain.RoleAttributes{Permissions: []string{"settings:read", "audit:rollback"}}))

	err := v.StructAt("entries[1].data", domain.RoleAttributes{Permissions: []string{"settings:read", "root"}})
	var dErr *domain.Error
	require.ErrorAs(t, err, &dErr)
	require.Len(t, dErr.Fields, 1)
	assert.Equal(t, "entries[1].data.permissions[1]", dErr.Fields[0].Field)
}

func TestEntryName(t *testing.T) {
	v := New()
	for _, name := range []string{"multi_factor_auth", "school-admin", "v1.2"} {
		assert.NoError(t, v.Var("name", name, "required,entryname"), name)
	}
	for _, name := range []string{"", "_lead", "has space", string(make([]byte, 70))} {
		assert.Error(t, v.Var("name", name, "required,entryname"), name)
	}
}
