package settings

import (
	"context"

	"github.com/fastygo/schoolerp/domain"
	"github.com/fastygo/schoolerp/repository"
)

// Rollback restores the previous value recorded by a history entry and records the restore as a
// rollback entry of its own.
func (uc *UseCase) Rollback(ctx context.Context, historyID, tenantID string, actor domain.Actor) (*domain.Settings, error) {
	entry, err := uc.store.History().FindOne(ctx, tenantID, historyID)
	if err != nil {
		return nil, domain.AsInternal("load history entry", err)
	}
	b, ok := registry[entry.Module]
	if !ok {
		return nil, domain.ErrInvalidRollbackModule
	}

	snap, err := domain.ParseSnapshot(entry.PreviousValue)
	if err != nil {
		return nil, err
	}
	if entry.Action == domain.ActionPurgeCache || (entry.Action == domain.ActionCreate && snap.Empty()) {
		return nil, domain.ErrNothingToRollback
	}

	var out *domain.Settings
	err = uc.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		cur, err := uc.rollbackTarget(ctx, tx, entry)
		if err != nil {
			return err
		}

		next := cur.Clone()
		next.Restore(snap)
		if next.Data == nil {
			next.Data = domain.Document{}
		}
		if err := uc.validateAggregate(b, next); err != nil {
			return err
		}
		metadata := map[string]string{
			"rolledBackEntry":  entry.ID,
			"rolledBackAction": string(entry.Action),
		}
		if err := uc.commit(ctx, tx, cur, next, next.Snapshot(), domain.ActionRollback, actor, metadata); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, domain.AsInternal("rollback settings", err)
	}

	uc.changed(ctx, out, domain.ActionRollback)
	return out.View(), nil
}

// rollbackTarget is the live aggregate, or for a delete entry the latest soft-deleted one.
func (uc *UseCase) rollbackTarget(ctx context.Context, tx repository.Tx, entry *domain.HistoryEntry) (*domain.Settings, error) {
	cur, err := findLiveOrNil(ctx, tx, entry.Module, entry.TenantID)
	if err != nil || cur != nil {
		return cur, err
	}
	if entry.Action != domain.ActionDelete {
		return nil, domain.ErrSettingsNotFound
	}
	latest, err := tx.Settings().FindLatest(ctx, entry.Module, entry.TenantID)
	if err != nil {
		return nil, err
	}
	if !latest.IsDeleted {
		return nil, domain.ErrSettingsNotFound
	}
	return latest, nil
}
