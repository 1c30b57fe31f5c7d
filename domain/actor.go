package domain

import "time"

// Permission guards an HTTP operation. Checks happen before the core is invoked.
type Permission string

const (
	PermSettingsRead  Permission = "settings:read"
	PermSettingsWrite Permission = "settings:write"
	PermFlagsRead     Permission = "flags:read"
	PermFlagsWrite    Permission = "flags:write"
	PermRolesRead     Permission = "roles:read"
	PermRolesWrite    Permission = "roles:write"
	PermAuditRead     Permission = "audit:read"
	PermAuditWrite    Permission = "audit:write"
	PermAuditRollback Permission = "audit:rollback"
)

// AllPermissions lists every known permission.
func AllPermissions() []Permission {
	return []Permission{
		PermSettingsRead, PermSettingsWrite,
		PermFlagsRead, PermFlagsWrite,
		PermRolesRead, PermRolesWrite,
		PermAuditRead, PermAuditWrite, PermAuditRollback,
	}
}

// IsKnownPermission reports whether p names a permission the service understands.
func IsKnownPermission(p string) bool {
	for _, known := range AllPermissions() {
		if string(known) == p {
			return true
		}
	}
	return false
}

// ModulePermission returns the read or write permission for the module.
func ModulePermission(m Module, write bool) Permission {
	suffix := ":read"
	if write {
		suffix = ":write"
	}
	return Permission(m.PermissionFamily() + suffix)
}

// Actor is the authenticated caller of a core operation.
type Actor struct {
	ID          string
	TenantID    string
	IP          string
	Permissions []string
}

// Can reports whether the actor holds p.
func (a Actor) Can(p Permission) bool {
	for _, granted := range a.Permissions {
		if granted == string(p) {
			return true
		}
	}
	return false
}

// OTPChallenge is a pending one-time password for an actor.
type OTPChallenge struct {
	TenantID  string    `json:"tenantId"`
	ActorID   string    `json:"actorId"`
	Channel   string    `json:"channel"`
	CodeHash  []byte    `json:"-"`
	Attempts  int       `json:"attempts"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Expired reports whether the challenge can no longer be verified.
func (c *OTPChallenge) Expired(now time.Time) bool {
	return c == nil || !c.ExpiresAt.After(now)
}
