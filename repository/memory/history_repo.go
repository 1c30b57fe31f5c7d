package memory

import (
	"context"
	"sort"
	"time"

	"github.com/fastygo/schoolerp/domain"
	"github.com/fastygo/schoolerp/repository"
)

type historyRepo struct {
	store *Store
	st    *state
}

func (r historyRepo) Record(ctx context.Context, entry *domain.HistoryEntry) error {
	if entry == nil || entry.ID == "" {
		return domain.ErrInvalidPayload
	}
	if r.store.FailHistory != nil {
		return r.store.FailHistory
	}
	return r.store.apply(r.st, func(st *state) error {
		st.history = append(st.history, *entry)
		return nil
	})
}

func (r historyRepo) Query(ctx context.Context, tenantID string, filter domain.HistoryFilter, page, limit int) (domain.HistoryPage, error) {
	page, limit = repository.NormalizePage(page, limit)
	out := domain.HistoryPage{Page: page, Limit: limit, Items: []domain.HistoryEntry{}}

	err := r.store.apply(r.st, func(st *state) error {
		matched := matching(st.history, tenantID, filter)
		sort.SliceStable(matched, func(i, j int) bool {
			if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
				return matched[i].CreatedAt.After(matched[j].CreatedAt)
			}
			return matched[i].ID > matched[j].ID
		})
		out.Total = int64(len(matched))
		start := (page - 1) * limit
		if start >= len(matched) {
			return nil
		}
		end := start + limit
		if end > len(matched) {
			end = len(matched)
		}
		out.Items = append(out.Items, matched[start:end]...)
		return nil
	})
	return out, err
}

func (r historyRepo) Aggregate(ctx context.Context, tenantID string, from, to time.Time) ([]domain.HistoryStat, error) {
	type key struct {
		module domain.Module
		action domain.HistoryAction
	}
	counts := make(map[key]int64)
	actors := make(map[key]map[string]struct{})

	err := r.store.apply(r.st, func(st *state) error {
		for _, e := range matching(st.history, tenantID, domain.HistoryFilter{From: from, To: to}) {
			k := key{e.Module, e.Action}
			counts[k]++
			if actors[k] == nil {
				actors[k] = make(map[string]struct{})
			}
			actors[k][e.ChangedBy] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	stats := make([]domain.HistoryStat, 0, len(counts))
	for k, n := range counts {
		stats = append(stats, domain.HistoryStat{
			Module:             k.module,
			Action:             k.action,
			Count:              n,
			DistinctActorCount: int64(len(actors[k])),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Module != stats[j].Module {
			return stats[i].Module < stats[j].Module
		}
		return stats[i].Action < stats[j].Action
	})
	return stats, nil
}

func (r historyRepo) DeleteMany(ctx context.Context, tenantID string, filter domain.HistoryFilter) (int64, error) {
	var deleted int64
	err := r.store.apply(r.st, func(st *state) error {
		kept := st.history[:0:0]
		for _, e := range st.history {
			if matches(e, tenantID, filter) {
				deleted++
				continue
			}
			kept = append(kept, e)
		}
		st.history = kept
		return nil
	})
	if err != nil {
		return 0, err
	}
	if deleted == 0 {
		return 0, domain.ErrAuditLogsNotFound
	}
	return deleted, nil
}

func (r historyRepo) FindOne(ctx context.Context, tenantID, id string) (*domain.HistoryEntry, error) {
	var out *domain.HistoryEntry
	err := r.store.apply(r.st, func(st *state) error {
		for _, e := range st.history {
			if e.ID == id && e.TenantID == tenantID {
				found := e
				out = &found
				return nil
			}
		}
		return domain.ErrHistoryNotFound
	})
	return out, err
}

func matching(history []domain.HistoryEntry, tenantID string, filter domain.HistoryFilter) []domain.HistoryEntry {
	var out []domain.HistoryEntry
	for _, e := range history {
		if matches(e, tenantID, filter) {
			out = append(out, e)
		}
	}
	return out
}

func matches(e domain.HistoryEntry, tenantID string, f domain.HistoryFilter) bool {
	switch {
	case e.TenantID != tenantID:
		return false
	case f.Module != "" && e.Module != f.Module:
		return false
	case f.Action != "" && e.Action != f.Action:
		return false
	case f.ChangedBy != "" && e.ChangedBy != f.ChangedBy:
		return false
	case !f.From.IsZero() && e.CreatedAt.Before(f.From):
		return false
	case !f.To.IsZero() && e.CreatedAt.After(f.To):
		return false
	}
	return true
}
