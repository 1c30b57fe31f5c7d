package settings

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/fastygo/schoolerp/domain"
)

// SystemActor attributes changes made by the service itself.
var SystemActor = domain.Actor{ID: "system"}

type defaultRole struct {
	name        string
	description string
	permissions []domain.Permission
}

var defaultRoles = []defaultRole{
	{name: "super_admin", description: "Full access to every tenant setting", permissions: domain.AllPermissions()},
	{name: "school_admin", description: "Manages school configuration", permissions: []domain.Permission{
		domain.PermSettingsRead, domain.PermSettingsWrite,
		domain.PermFlagsRead, domain.PermFlagsWrite,
		domain.PermRolesRead, domain.PermRolesWrite,
		domain.PermAuditRead,
	}},
	{name: "teacher", description: "Reads school configuration", permissions: []domain.Permission{
		domain.PermSettingsRead, domain.PermFlagsRead,
	}},
	{name: "accountant", description: "Reads configuration and the audit trail", permissions: []domain.Permission{
		domain.PermSettingsRead, domain.PermAuditRead,
	}},
	{name: "parent", permissions: []domain.Permission{domain.PermSettingsRead}},
	{name: "student", permissions: []domain.Permission{domain.PermSettingsRead}},
}

// DefaultRoleInputs renders the built-in system roles as entries of the role module.
func DefaultRoleInputs() []EntryInput {
	out := make([]EntryInput, 0, len(defaultRoles))
	for _, r := range defaultRoles {
		perms := make([]string, len(r.permissions))
		for i, p := range r.permissions {
			perms[i] = string(p)
		}
		attrs := domain.RoleAttributes{Description: r.description, Permissions: perms, IsSystem: true}
		out = append(out, EntryInput{Name: r.name, Data: mustDocument(attrs)})
	}
	return out
}

// SeedDefaultRoles makes sure the global system roles exist. Running it again is a no-op.
func (uc *UseCase) SeedDefaultRoles(ctx context.Context) error {
	res, err := uc.BulkCreate(ctx, domain.ModuleRole, "", DefaultRoleInputs(), SystemActor)
	if err != nil {
		if errors.Is(err, domain.ErrAllEntriesExist) {
			uc.logger.Debug("default roles already present")
			return nil
		}
		return err
	}
	uc.logger.Info("default roles seeded", zap.Strings("inserted", res.Inserted))
	return nil
}

func mustDocument(v any) domain.Document {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var doc domain.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		panic(err)
	}
	return doc
}
