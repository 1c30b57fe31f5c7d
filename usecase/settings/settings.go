// Package settings orchestrates the tenant configuration modules: every write goes through one
// transaction covering the aggregate and its history entry, then invalidates the cache and
// announces the change.
package settings

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/schoolerp/domain"
	"github.com/fastygo/schoolerp/internal/cache"
	"github.com/fastygo/schoolerp/internal/validation"
	"github.com/fastygo/schoolerp/pkg/idgen"
	"github.com/fastygo/schoolerp/repository"
)

// Publisher announces committed changes.
type Publisher interface {
	Publish(ctx context.Context, event domain.ChangeEvent)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, domain.ChangeEvent) {}

type UseCase struct {
	store     repository.Store
	cache     *cache.Layer
	publisher Publisher
	validator *validation.Validator
	logger    *zap.Logger

	now         func() time.Time
	ids         idgen.IDGenerator
	historyIDs  idgen.IDGenerator
	settingsTTL time.Duration
}

type Option func(*UseCase)

// WithClock replaces the time source used for timestamps and history ids.
func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) { uc.now = now }
}

func WithIDGenerators(aggregates, history idgen.IDGenerator) Option {
	return func(uc *UseCase) {
		uc.ids = aggregates
		uc.historyIDs = history
	}
}

func WithSettingsTTL(ttl time.Duration) Option {
	return func(uc *UseCase) { uc.settingsTTL = ttl }
}

func New(
	store repository.Store,
	cacheLayer *cache.Layer,
	publisher Publisher,
	validator *validation.Validator,
	logger *zap.Logger,
	opts ...Option,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if validator == nil {
		validator = validation.New()
	}
	uc := &UseCase{
		store:       store,
		cache:       cacheLayer,
		publisher:   publisher,
		validator:   validator,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		ids:         idgen.UUIDGenerator{},
		historyIDs:  idgen.NewULIDGenerator(),
		settingsTTL: cache.SettingsTTL,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Get returns the live aggregate without soft-deleted entries. Only hits are cached.
func (uc *UseCase) Get(ctx context.Context, module domain.Module, tenantID string) (*domain.Settings, error) {
	if _, err := lookup(module, tenantID); err != nil {
		return nil, err
	}
	key := cache.SettingsKey(module, tenantID)

	var cached domain.Settings
	if uc.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	fence := uc.cache.Fence(ctx, cache.ModuleIndex(module, tenantID))
	s, err := uc.store.Settings().FindLive(ctx, module, tenantID)
	if err != nil {
		return nil, domain.AsInternal("load settings", err)
	}
	view := s.View()
	uc.cache.Set(ctx, key, view, uc.settingsTTL, fence)
	return view, nil
}

func (uc *UseCase) Create(ctx context.Context, module domain.Module, tenantID string, in domain.SettingsInput, actor domain.Actor) (*domain.Settings, error) {
	b, err := lookup(module, tenantID)
	if err != nil {
		return nil, err
	}
	if len(in.Entries) > 0 && !module.Collection() {
		return nil, domain.ErrNotCollection
	}

	data, err := in.Data.Compact()
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = domain.Document{}
	}
	if err := uc.validateDocument(b, data); err != nil {
		return nil, err
	}

	now := uc.now()
	s := &domain.Settings{
		ID:       uc.ids.Make(now),
		TenantID: tenantID,
		Module:   module,
		Version:  1,
		Data:     data,
	}
	for i, e := range in.Entries {
		if e.Data, err = e.Data.Compact(); err != nil {
			return nil, err
		}
		if err := uc.validateEntry(b, entryPath(i), e.Name, e.Data); err != nil {
			return nil, err
		}
		if err := s.AppendEntry(e, now); err != nil {
			return nil, err
		}
	}
	s.Touch(now, actor.ID)

	err = uc.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.Settings().Insert(ctx, s); err != nil {
			return err
		}
		return uc.record(ctx, tx, s, domain.ActionCreate, domain.Snapshot{}, s.Snapshot(), actor, nil)
	})
	if err != nil {
		return nil, domain.AsInternal("create settings", err)
	}

	uc.changed(ctx, s, domain.ActionCreate)
	return s.View(), nil
}

// Update shallow-merges patch into the module document. A non-nil expectedVersion must match the
// stored version.
func (uc *UseCase) Update(ctx context.Context, module domain.Module, tenantID string, patch domain.Document, expectedVersion *int, actor domain.Actor) (*domain.Settings, error) {
	b, err := lookup(module, tenantID)
	if err != nil {
		return nil, err
	}
	if patch, err = patch.Compact(); err != nil {
		return nil, err
	}
	if len(patch) == 0 {
		return nil, domain.NewValidationError("update patch is empty", domain.FieldError{Field: "data", Message: "data must contain at least one key"})
	}

	var out *domain.Settings
	err = uc.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		cur, err := tx.Settings().FindLive(ctx, module, tenantID)
		if err != nil {
			return err
		}
		if expectedVersion != nil && *expectedVersion != cur.Version {
			return domain.ErrVersionConflict
		}

		next := cur.Clone()
		next.Merge(patch)
		if err := uc.validateDocument(b, next.Data); err != nil {
			return err
		}
		if err := uc.commit(ctx, tx, cur, next, next.Snapshot(), domain.ActionUpdate, actor, nil); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, domain.AsInternal("update settings", err)
	}

	uc.changed(ctx, out, domain.ActionUpdate)
	return out.View(), nil
}

// Delete soft-deletes the live aggregate. A second delete finds nothing and records nothing.
func (uc *UseCase) Delete(ctx context.Context, module domain.Module, tenantID string, actor domain.Actor) error {
	if _, err := lookup(module, tenantID); err != nil {
		return err
	}

	var out *domain.Settings
	err := uc.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		cur, err := tx.Settings().FindLive(ctx, module, tenantID)
		if err != nil {
			return err
		}
		next := cur.Clone()
		next.SoftDelete(uc.now())
		if err := uc.commit(ctx, tx, cur, next, domain.Snapshot{}, domain.ActionDelete, actor, nil); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return domain.AsInternal("delete settings", err)
	}

	uc.changed(ctx, out, domain.ActionDelete)
	return nil
}

// commit writes next over cur with a compare-and-swap on the version and records the transition.
func (uc *UseCase) commit(
	ctx context.Context,
	tx repository.Tx,
	cur, next *domain.Settings,
	after domain.Snapshot,
	action domain.HistoryAction,
	actor domain.Actor,
	metadata map[string]string,
) error {
	before := domain.Snapshot{}
	if !cur.IsDeleted {
		before = cur.Snapshot()
	}
	next.Version = cur.Version + 1
	next.Touch(uc.now(), actor.ID)
	if err := tx.Settings().Replace(ctx, next, cur.Version); err != nil {
		return err
	}
	return uc.record(ctx, tx, next, action, before, after, actor, metadata)
}

func (uc *UseCase) record(
	ctx context.Context,
	tx repository.Tx,
	s *domain.Settings,
	action domain.HistoryAction,
	before, after domain.Snapshot,
	actor domain.Actor,
	metadata map[string]string,
) error {
	now := uc.now()
	entry := &domain.HistoryEntry{
		ID:            uc.historyIDs.Make(now),
		TenantID:      s.TenantID,
		Module:        s.Module,
		Action:        action,
		PreviousValue: before.JSON(),
		NewValue:      after.JSON(),
		ChangedBy:     actor.ID,
		IPAddress:     actor.IP,
		Metadata:      metadata,
		CreatedAt:     now,
	}
	if err := tx.History().Record(ctx, entry); err != nil {
		return domain.AsInternal("record history", err)
	}
	return nil
}

// changed runs after commit: drop every cached view of the aggregate and the tenant's audit pages,
// then announce the change.
func (uc *UseCase) changed(ctx context.Context, s *domain.Settings, action domain.HistoryAction) {
	uc.cache.Delete(ctx, cache.SettingsKey(s.Module, s.TenantID))
	uc.cache.Invalidate(ctx, cache.ModuleIndex(s.Module, s.TenantID), cache.AuditIndex(s.TenantID))

	uc.publisher.Publish(ctx, domain.ChangeEvent{
		TenantID:   s.TenantID,
		Module:     s.Module,
		Action:     action,
		Version:    s.Version,
		OccurredAt: uc.now(),
	})
	uc.logger.Debug("settings changed",
		zap.String("module", s.Module.String()),
		zap.String("tenant_id", s.TenantID),
		zap.String("action", string(action)),
		zap.Int("version", s.Version))
}
