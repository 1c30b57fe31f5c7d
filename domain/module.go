package domain

import "fmt"

// Module identifies one family of tenant-scoped settings.
type Module string

const (
	ModuleSecurityFramework Module = "securityFramework"
	ModuleCoreSystemConfig  Module = "coreSystemConfig"
	ModuleEnterpriseInfra   Module = "enterpriseInfra"
	ModuleFeatureFlags      Module = "featureFlags"
	ModuleRole              Module = "role"

	// ModuleAuditLog tags ledger entries written by audit maintenance. It is not a settings module
	// and can never be rolled back.
	ModuleAuditLog Module = "auditLog"
)

var settingsModules = []Module{
	ModuleSecurityFramework,
	ModuleCoreSystemConfig,
	ModuleEnterpriseInfra,
	ModuleFeatureFlags,
	ModuleRole,
}

// Modules lists every settings module in a stable order.
func Modules() []Module {
	out := make([]Module, len(settingsModules))
	copy(out, settingsModules)
	return out
}

// ParseModule resolves a module name coming from the outside world.
func ParseModule(name string) (Module, error) {
	for _, m := range settingsModules {
		if string(m) == name {
			return m, nil
		}
	}
	return "", WrapError(ErrCodeInvalid, ErrInvalidModule.Message, fmt.Errorf("module %q", name))
}

// Valid reports whether m is one of the settings modules.
func (m Module) Valid() bool {
	_, err := ParseModule(string(m))
	return err == nil
}

// Collection reports whether the module stores a list of named entries.
func (m Module) Collection() bool {
	return m == ModuleFeatureFlags || m == ModuleRole
}

// Channel is the pub/sub channel change events for the module are published on.
func (m Module) Channel() string {
	return "settings:" + string(m)
}

// PermissionFamily returns the permission prefix guarding the module.
func (m Module) PermissionFamily() string {
	switch m {
	case ModuleFeatureFlags:
		return "flags"
	case ModuleRole:
		return "roles"
	default:
		return "settings"
	}
}

func (m Module) String() string { return string(m) }
