// Package audit serves the history ledger to operators: paged queries, statistics, retention
// deletes, rollbacks and cache purges.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/schoolerp/domain"
	"github.com/fastygo/schoolerp/internal/cache"
	"github.com/fastygo/schoolerp/internal/ratelimit"
	"github.com/fastygo/schoolerp/pkg/idgen"
	"github.com/fastygo/schoolerp/repository"
)

// Rollbacker restores a settings aggregate from a history entry.
type Rollbacker interface {
	Rollback(ctx context.Context, historyID, tenantID string, actor domain.Actor) (*domain.Settings, error)
}

type Limits struct {
	QueriesPerHour int
	StatsPerHour   int
}

type UseCase struct {
	store    repository.Store
	cache    *cache.Layer
	limiter  *ratelimit.Limiter
	settings Rollbacker
	limits   Limits
	ttl      time.Duration
	ids      idgen.IDGenerator
	now      func() time.Time
	logger   *zap.Logger
}

func New(
	store repository.Store,
	cacheLayer *cache.Layer,
	limiter *ratelimit.Limiter,
	settings Rollbacker,
	limits Limits,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limits.QueriesPerHour <= 0 {
		limits.QueriesPerHour = 100
	}
	if limits.StatsPerHour <= 0 {
		limits.StatsPerHour = 50
	}
	return &UseCase{
		store:    store,
		cache:    cacheLayer,
		limiter:  limiter,
		settings: settings,
		limits:   limits,
		ttl:      cache.AuditTTL,
		ids:      idgen.NewULIDGenerator(),
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		logger:   logger.With(zap.String("component", "audit")),
	}
}

// WithClock replaces the time source.
func (uc *UseCase) WithClock(now func() time.Time) *UseCase {
	uc.now = now
	return uc
}

// WithIDGenerator replaces the generator of purge history ids.
func (uc *UseCase) WithIDGenerator(ids idgen.IDGenerator) *UseCase {
	uc.ids = ids
	return uc
}

// WithTTL overrides how long query pages stay cached.
func (uc *UseCase) WithTTL(ttl time.Duration) *UseCase {
	uc.ttl = ttl
	return uc
}

func (uc *UseCase) GetAuditLog(ctx context.Context, tenantID string, filter domain.HistoryFilter, page, limit int) (domain.HistoryPage, error) {
	rule := ratelimit.Rule{Name: "audit", Limit: uc.limits.QueriesPerHour, Window: time.Hour}
	if err := uc.limiter.Allow(ctx, rule, tenantID); err != nil {
		return domain.HistoryPage{}, err
	}
	if err := validRange(filter.From, filter.To); err != nil {
		return domain.HistoryPage{}, err
	}
	page, limit = repository.NormalizePage(page, limit)

	key := cache.AuditKey(tenantID, filter, page, limit)
	var cached domain.HistoryPage
	if uc.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	fence := uc.cache.Fence(ctx, cache.AuditIndex(tenantID))
	result, err := uc.store.History().Query(ctx, tenantID, filter, page, limit)
	if err != nil {
		return domain.HistoryPage{}, domain.AsInternal("query audit log", err)
	}
	if result.Items == nil {
		result.Items = []domain.HistoryEntry{}
	}
	uc.cache.Set(ctx, key, result, uc.ttl, fence)
	return result, nil
}

func (uc *UseCase) GetAuditLogStats(ctx context.Context, tenantID string, from, to time.Time) ([]domain.HistoryStat, error) {
	rule := ratelimit.Rule{Name: "audit_stats", Limit: uc.limits.StatsPerHour, Window: time.Hour}
	if err := uc.limiter.Allow(ctx, rule, tenantID); err != nil {
		return nil, err
	}
	if err := validRange(from, to); err != nil {
		return nil, err
	}

	stats, err := uc.store.History().Aggregate(ctx, tenantID, from, to)
	if err != nil {
		return nil, domain.AsInternal("aggregate audit log", err)
	}
	if stats == nil {
		stats = []domain.HistoryStat{}
	}
	return stats, nil
}

// DeleteAuditLogs removes matching ledger entries. The deletion itself is only logged, never
// recorded in the ledger.
func (uc *UseCase) DeleteAuditLogs(ctx context.Context, tenantID string, filter domain.HistoryFilter, actor domain.Actor) (int64, error) {
	if err := validRange(filter.From, filter.To); err != nil {
		return 0, err
	}

	n, err := uc.store.History().DeleteMany(ctx, tenantID, filter)
	if err != nil {
		return 0, domain.AsInternal("delete audit logs", err)
	}
	if n == 0 {
		return 0, domain.ErrAuditLogsNotFound
	}
	uc.cache.Invalidate(ctx, cache.AuditIndex(tenantID))

	uc.logger.Info("audit logs deleted",
		zap.String("tenant_id", tenantID),
		zap.String("actor_id", actor.ID),
		zap.String("ip", actor.IP),
		zap.String("module", filter.Module.String()),
		zap.String("action", string(filter.Action)),
		zap.Int64("deleted", n))
	return n, nil
}

func (uc *UseCase) RollbackSettings(ctx context.Context, historyID, tenantID string, actor domain.Actor) (*domain.Settings, error) {
	return uc.settings.Rollback(ctx, historyID, tenantID, actor)
}

// PurgeCache drops every cached view and audit page of the tenant and records the purge.
func (uc *UseCase) PurgeCache(ctx context.Context, tenantID string, actor domain.Actor) error {
	now := uc.now()
	entry := &domain.HistoryEntry{
		ID:            uc.ids.Make(now),
		TenantID:      tenantID,
		Module:        domain.ModuleAuditLog,
		Action:        domain.ActionPurgeCache,
		PreviousValue: domain.Snapshot{}.JSON(),
		NewValue:      domain.Snapshot{}.JSON(),
		ChangedBy:     actor.ID,
		IPAddress:     actor.IP,
		CreatedAt:     now,
	}
	err := uc.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.History().Record(ctx, entry)
	})
	if err != nil {
		return domain.AsInternal("record cache purge", err)
	}

	indexes := []string{cache.AuditIndex(tenantID)}
	keys := make([]string, 0, len(domain.Modules()))
	for _, m := range domain.Modules() {
		indexes = append(indexes, cache.ModuleIndex(m, tenantID))
		keys = append(keys, cache.SettingsKey(m, tenantID))
	}
	uc.cache.Delete(ctx, keys...)
	uc.cache.Invalidate(ctx, indexes...)

	uc.logger.Info("cache purged", zap.String("tenant_id", tenantID), zap.String("actor_id", actor.ID))
	return nil
}

func validRange(from, to time.Time) error {
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return domain.NewValidationError("validation failed", domain.FieldError{Field: "from", Message: "from must not be after to"})
	}
	return nil
}
