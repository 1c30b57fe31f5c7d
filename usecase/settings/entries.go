package settings

import (
	"context"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/fastygo/schoolerp/domain"
	"github.com/fastygo/schoolerp/repository"
)

// EntryInput describes a new named entry of a collection module. Enabled defaults to true.
type EntryInput struct {
	Name    string          `json:"name"`
	Enabled *bool           `json:"enabled,omitempty"`
	Data    domain.Document `json:"data,omitempty"`
}

func (in EntryInput) entry() domain.Entry {
	enabled := true
	if in.Enabled != nil {
		enabled = *in.Enabled
	}
	return domain.Entry{Name: in.Name, Enabled: enabled, Data: in.Data}
}

// EntryPatch changes an existing entry. Data is merged key by key.
type EntryPatch struct {
	Enabled *bool           `json:"enabled,omitempty"`
	Data    domain.Document `json:"data,omitempty"`
}

// BulkResult reports which names a bulk create inserted and which it skipped as duplicates.
type BulkResult struct {
	Settings *domain.Settings `json:"settings"`
	Inserted []string         `json:"inserted"`
	Skipped  []string         `json:"skipped"`
}

func entryPath(i int) string {
	return fmt.Sprintf("entries[%d]", i)
}

func collection(module domain.Module, tenantID string) (binding, error) {
	b, err := lookup(module, tenantID)
	if err != nil {
		return b, err
	}
	if !module.Collection() {
		return b, domain.ErrNotCollection
	}
	return b, nil
}

func (uc *UseCase) prepareEntry(b binding, path string, in EntryInput) (EntryInput, error) {
	data, err := in.Data.Compact()
	if err != nil {
		return in, err
	}
	in.Data = data
	if err := uc.validateEntry(b, path, in.Name, in.Data); err != nil {
		return in, err
	}
	return in, nil
}

// AddEntry appends a named entry, creating the aggregate when the tenant has none yet.
func (uc *UseCase) AddEntry(ctx context.Context, module domain.Module, tenantID string, in EntryInput, actor domain.Actor) (*domain.Settings, error) {
	b, err := collection(module, tenantID)
	if err != nil {
		return nil, err
	}
	if in, err = uc.prepareEntry(b, "entry", in); err != nil {
		return nil, err
	}

	var out *domain.Settings
	err = uc.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		cur, err := findLiveOrNil(ctx, tx, module, tenantID)
		if err != nil {
			return err
		}
		if cur == nil {
			out, err = uc.insertWithEntries(ctx, tx, module, tenantID, []EntryInput{in}, domain.ActionCreate, actor, nil)
			return err
		}

		next := cur.Clone()
		if err := next.AppendEntry(in.entry(), uc.now()); err != nil {
			return err
		}
		if err := uc.commit(ctx, tx, cur, next, next.Snapshot(), domain.ActionCreate, actor, map[string]string{"entry": in.Name}); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, domain.AsInternal("add entry", err)
	}

	uc.changed(ctx, out, domain.ActionCreate)
	return out.View(), nil
}

func (uc *UseCase) UpdateEntry(ctx context.Context, module domain.Module, tenantID, name string, patch EntryPatch, actor domain.Actor) (*domain.Settings, error) {
	b, err := collection(module, tenantID)
	if err != nil {
		return nil, err
	}
	if patch.Data, err = patch.Data.Compact(); err != nil {
		return nil, err
	}
	if len(patch.Data) == 0 && patch.Enabled == nil {
		return nil, domain.NewValidationError("entry patch is empty", domain.FieldError{Field: "data", Message: "data or enabled is required"})
	}

	return uc.mutateEntry(ctx, module, tenantID, name, domain.ActionUpdate, actor, func(next *domain.Settings) error {
		e, err := next.UpdateEntry(name, patch.Data, patch.Enabled, uc.now())
		if err != nil {
			return err
		}
		return uc.validateEntry(b, "entry", e.Name, e.Data)
	})
}

// Toggle flips the enabled flag of a live entry.
func (uc *UseCase) Toggle(ctx context.Context, module domain.Module, tenantID, name string, actor domain.Actor) (*domain.Settings, error) {
	if _, err := collection(module, tenantID); err != nil {
		return nil, err
	}
	return uc.mutateEntry(ctx, module, tenantID, name, domain.ActionToggle, actor, func(next *domain.Settings) error {
		_, err := next.ToggleEntry(name, uc.now())
		return err
	})
}

func (uc *UseCase) DeleteEntry(ctx context.Context, module domain.Module, tenantID, name string, actor domain.Actor) (*domain.Settings, error) {
	if _, err := collection(module, tenantID); err != nil {
		return nil, err
	}
	return uc.mutateEntry(ctx, module, tenantID, name, domain.ActionDelete, actor, func(next *domain.Settings) error {
		return next.SoftDeleteEntry(name, uc.now())
	})
}

func (uc *UseCase) mutateEntry(
	ctx context.Context,
	module domain.Module,
	tenantID, name string,
	action domain.HistoryAction,
	actor domain.Actor,
	apply func(next *domain.Settings) error,
) (*domain.Settings, error) {
	var out *domain.Settings
	err := uc.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		cur, err := tx.Settings().FindLive(ctx, module, tenantID)
		if err != nil {
			return err
		}
		next := cur.Clone()
		if err := apply(next); err != nil {
			return err
		}
		if err := uc.commit(ctx, tx, cur, next, next.Snapshot(), action, actor, map[string]string{"entry": name}); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, domain.AsInternal(string(action)+" entry", err)
	}

	uc.changed(ctx, out, action)
	return out.View(), nil
}

// BulkCreate inserts every item whose name is not live yet. Within the batch the first item with a
// given name wins. It fails only when nothing would be inserted.
func (uc *UseCase) BulkCreate(ctx context.Context, module domain.Module, tenantID string, items []EntryInput, actor domain.Actor) (*BulkResult, error) {
	b, err := collection(module, tenantID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.NewValidationError("no entries supplied", domain.FieldError{Field: "entries", Message: "entries must not be empty"})
	}
	prepared := make([]EntryInput, len(items))
	for i, item := range items {
		if prepared[i], err = uc.prepareEntry(b, entryPath(i), item); err != nil {
			return nil, err
		}
	}

	result := &BulkResult{}
	err = uc.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		cur, err := findLiveOrNil(ctx, tx, module, tenantID)
		if err != nil {
			return err
		}

		seen := mapset.NewThreadUnsafeSet[string]()
		var accepted []EntryInput
		result.Inserted, result.Skipped = nil, nil
		for _, item := range prepared {
			dup := seen.Contains(item.Name)
			if !dup && cur != nil {
				_, dup = cur.LiveEntry(item.Name)
			}
			if dup {
				result.Skipped = append(result.Skipped, item.Name)
				continue
			}
			seen.Add(item.Name)
			accepted = append(accepted, item)
			result.Inserted = append(result.Inserted, item.Name)
		}
		if len(accepted) == 0 {
			return domain.ErrAllEntriesExist
		}

		metadata := map[string]string{
			"inserted": strings.Join(result.Inserted, ","),
			"skipped":  strings.Join(result.Skipped, ","),
		}
		if cur == nil {
			result.Settings, err = uc.insertWithEntries(ctx, tx, module, tenantID, accepted, domain.ActionBulkCreate, actor, metadata)
			return err
		}

		next := cur.Clone()
		now := uc.now()
		for _, item := range accepted {
			if err := next.AppendEntry(item.entry(), now); err != nil {
				return err
			}
		}
		if err := uc.commit(ctx, tx, cur, next, next.Snapshot(), domain.ActionBulkCreate, actor, metadata); err != nil {
			return err
		}
		result.Settings = next
		return nil
	})
	if err != nil {
		return nil, domain.AsInternal("bulk create entries", err)
	}

	uc.changed(ctx, result.Settings, domain.ActionBulkCreate)
	result.Settings = result.Settings.View()
	if result.Skipped == nil {
		result.Skipped = []string{}
	}
	return result, nil
}

// insertWithEntries creates a collection aggregate holding entries.
func (uc *UseCase) insertWithEntries(
	ctx context.Context,
	tx repository.Tx,
	module domain.Module,
	tenantID string,
	entries []EntryInput,
	action domain.HistoryAction,
	actor domain.Actor,
	metadata map[string]string,
) (*domain.Settings, error) {
	now := uc.now()
	s := &domain.Settings{
		ID:       uc.ids.Make(now),
		TenantID: tenantID,
		Module:   module,
		Version:  1,
		Data:     domain.Document{},
	}
	for _, in := range entries {
		if err := s.AppendEntry(in.entry(), now); err != nil {
			return nil, err
		}
	}
	s.Touch(now, actor.ID)

	if err := tx.Settings().Insert(ctx, s); err != nil {
		return nil, err
	}
	if err := uc.record(ctx, tx, s, action, domain.Snapshot{}, s.Snapshot(), actor, metadata); err != nil {
		return nil, err
	}
	return s, nil
}

func findLiveOrNil(ctx context.Context, tx repository.Tx, module domain.Module, tenantID string) (*domain.Settings, error) {
	cur, err := tx.Settings().FindLive(ctx, module, tenantID)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return cur, nil
}
