package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/fastygo/schoolerp/domain"
)

const globalTenant = "_global"

func tenantPart(tenantID string) string {
	if tenantID == "" {
		return globalTenant
	}
	return tenantID
}

// SettingsKey addresses the live view of one module for one tenant.
func SettingsKey(module domain.Module, tenantID string) string {
	return "settings:" + string(module) + ":" + tenantPart(tenantID)
}

// ModuleIndex groups every key derived from one (module, tenant) aggregate.
func ModuleIndex(module domain.Module, tenantID string) string {
	return "cacheidx:" + string(module) + ":" + tenantPart(tenantID)
}

// AuditIndex groups every cached audit page of a tenant.
func AuditIndex(tenantID string) string {
	return "audit:" + tenantPart(tenantID)
}

// AuditKey covers every filter dimension so two different queries never share an entry.
func AuditKey(tenantID string, f domain.HistoryFilter, page, limit int) string {
	var b strings.Builder
	b.WriteString(AuditIndex(tenantID))
	fmt.Fprintf(&b, ":m=%s|a=%s|u=%s|f=%s|t=%s|p=%d|l=%d",
		f.Module, f.Action, f.ChangedBy, stamp(f.From), stamp(f.To), page, limit)
	return b.String()
}

// RateKey is the counter for subject in the fixed window that contains now.
func RateKey(name, subject string, now time.Time, window time.Duration) string {
	if window <= 0 {
		window = RateWindow
	}
	bucket := now.UnixNano() / int64(window)
	return fmt.Sprintf("ratelimit:%s:%s:%d", name, subject, bucket)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
