package security

import (
	"context"

	"github.com/fastygo/schoolerp/domain"
	"github.com/fastygo/schoolerp/internal/timesync"
)

// SyncTime queries the tenant's NTP servers in declared order, falling back to the service defaults
// when the tenant has none.
func (uc *UseCase) SyncTime(ctx context.Context, tenantID string) (timesync.Result, error) {
	servers := uc.cfg.NTPServers
	core, err := uc.settings.Get(ctx, domain.ModuleCoreSystemConfig, tenantID)
	switch {
	case err == nil:
		var cfg domain.CoreSystemConfig
		if err := core.Decode(&cfg); err != nil {
			return timesync.Result{}, domain.WrapError(domain.ErrCodeInternal, "decode core system config", err)
		}
		if declared := cfg.TimeSync.Servers(); len(declared) > 0 {
			servers = declared
		}
	case !domain.IsDomainError(err, domain.ErrCodeNotFound):
		return timesync.Result{}, err
	}

	res, err := uc.syncer.Sync(ctx, servers)
	if err != nil {
		return timesync.Result{}, domain.WrapError(domain.ErrCodeInternal, "every time server failed", err)
	}
	return res, nil
}
