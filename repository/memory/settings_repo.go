package memory

import (
	"context"

	"github.com/fastygo/schoolerp/domain"
)

type settingsRepo struct {
	store *Store
	st    *state
}

func (r settingsRepo) Insert(ctx context.Context, s *domain.Settings) error {
	if s == nil || s.ID == "" {
		return domain.ErrInvalidPayload
	}
	return r.store.apply(r.st, func(st *state) error {
		if s.IsDeleted {
			st.settings[s.ID] = s.Clone()
			return nil
		}
		if findLive(st, s.Module, s.TenantID) != nil {
			return domain.ErrSettingsAlreadyExists
		}
		st.settings[s.ID] = s.Clone()
		return nil
	})
}

func (r settingsRepo) FindLive(ctx context.Context, module domain.Module, tenantID string) (*domain.Settings, error) {
	var out *domain.Settings
	err := r.store.apply(r.st, func(st *state) error {
		found := findLive(st, module, tenantID)
		if found == nil {
			return domain.ErrSettingsNotFound
		}
		out = found.Clone()
		return nil
	})
	return out, err
}

func (r settingsRepo) FindLatest(ctx context.Context, module domain.Module, tenantID string) (*domain.Settings, error) {
	var out *domain.Settings
	err := r.store.apply(r.st, func(st *state) error {
		var latest *domain.Settings
		for _, s := range st.settings {
			if s.Module != module || s.TenantID != tenantID {
				continue
			}
			if latest == nil || s.UpdatedAt.After(latest.UpdatedAt) {
				latest = s
			}
		}
		if latest == nil {
			return domain.ErrSettingsNotFound
		}
		out = latest.Clone()
		return nil
	})
	return out, err
}

func (r settingsRepo) Replace(ctx context.Context, s *domain.Settings, expectedVersion int) error {
	if s == nil || s.ID == "" {
		return domain.ErrInvalidPayload
	}
	return r.store.apply(r.st, func(st *state) error {
		current, ok := st.settings[s.ID]
		if !ok {
			return domain.ErrSettingsNotFound
		}
		if current.Version != expectedVersion {
			return domain.ErrVersionConflict
		}
		if !s.IsDeleted {
			if live := findLive(st, s.Module, s.TenantID); live != nil && live.ID != s.ID {
				return domain.ErrSettingsAlreadyExists
			}
		}
		st.settings[s.ID] = s.Clone()
		return nil
	})
}

func findLive(st *state, module domain.Module, tenantID string) *domain.Settings {
	for _, s := range st.settings {
		if s.Module == module && s.TenantID == tenantID && !s.IsDeleted {
			return s
		}
	}
	return nil
}
