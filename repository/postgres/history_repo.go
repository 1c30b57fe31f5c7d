package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fastygo/schoolerp/domain"
	"github.com/fastygo/schoolerp/repository"
)

const historyColumns = `id, tenant_id, module, action, previous_value, new_value, changed_by, ip_address, metadata, created_at`

type historyRepository struct {
	db querier
}

func (r *historyRepository) Record(ctx context.Context, e *domain.HistoryEntry) error {
	if e == nil || e.ID == "" {
		return domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO settings_history (` + historyColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, NOW()))
	RETURNING created_at
	`

	return r.db.QueryRow(ctx, query,
		e.ID,
		e.TenantID,
		string(e.Module),
		string(e.Action),
		rawOrEmpty(e.PreviousValue),
		rawOrEmpty(e.NewValue),
		e.ChangedBy,
		e.IPAddress,
		marshalMap(e.Metadata),
		nullTime(e.CreatedAt),
	).Scan(&e.CreatedAt)
}

func (r *historyRepository) Query(ctx context.Context, tenantID string, filter domain.HistoryFilter, page, limit int) (domain.HistoryPage, error) {
	page, limit = repository.NormalizePage(page, limit)
	out := domain.HistoryPage{Page: page, Limit: limit, Items: []domain.HistoryEntry{}}

	where, args := historyWhere(tenantID, filter)

	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM settings_history WHERE `+where, args...).Scan(&out.Total); err != nil {
		return out, err
	}

	query := fmt.Sprintf(`
	SELECT %s
	FROM settings_history
	WHERE %s
	ORDER BY created_at DESC, id DESC
	LIMIT $%d OFFSET $%d
	`, historyColumns, where, len(args)+1, len(args)+2)

	rows, err := r.db.Query(ctx, query, append(args, limit, (page-1)*limit)...)
	if err != nil {
		return out, err
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanHistory(rows)
		if err != nil {
			return out, err
		}
		out.Items = append(out.Items, *entry)
	}
	return out, rows.Err()
}

func (r *historyRepository) Aggregate(ctx context.Context, tenantID string, from, to time.Time) ([]domain.HistoryStat, error) {
	where, args := historyWhere(tenantID, domain.HistoryFilter{From: from, To: to})
	query := `
	SELECT module, action, COUNT(*), COUNT(DISTINCT changed_by)
	FROM settings_history
	WHERE ` + where + `
	GROUP BY module, action
	ORDER BY module, action
	`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []domain.HistoryStat{}
	for rows.Next() {
		var (
			stat   domain.HistoryStat
			module string
			action string
		)
		if err := rows.Scan(&module, &action, &stat.Count, &stat.DistinctActorCount); err != nil {
			return nil, err
		}
		stat.Module = domain.Module(module)
		stat.Action = domain.HistoryAction(action)
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

func (r *historyRepository) DeleteMany(ctx context.Context, tenantID string, filter domain.HistoryFilter) (int64, error) {
	where, args := historyWhere(tenantID, filter)
	tag, err := r.db.Exec(ctx, `DELETE FROM settings_history WHERE `+where, args...)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return 0, domain.ErrAuditLogsNotFound
	}
	return tag.RowsAffected(), nil
}

func (r *historyRepository) FindOne(ctx context.Context, tenantID, id string) (*domain.HistoryEntry, error) {
	const query = `
	SELECT ` + historyColumns + `
	FROM settings_history
	WHERE id = $1 AND tenant_id = $2
	`
	entry, err := scanHistory(r.db.QueryRow(ctx, query, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrHistoryNotFound
	}
	return entry, err
}

func historyWhere(tenantID string, f domain.HistoryFilter) (string, []any) {
	clauses := []string{"tenant_id = $1"}
	args := []any{tenantID}

	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.Module != "" {
		add("module = $%d", string(f.Module))
	}
	if f.Action != "" {
		add("action = $%d", string(f.Action))
	}
	if f.ChangedBy != "" {
		add("changed_by = $%d", f.ChangedBy)
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at <= $%d", f.To)
	}
	return strings.Join(clauses, " AND "), args
}

func scanHistory(row scanner) (*domain.HistoryEntry, error) {
	var (
		e        domain.HistoryEntry
		module   string
		action   string
		prev     []byte
		next     []byte
		metadata []byte
	)
	if err := row.Scan(
		&e.ID,
		&e.TenantID,
		&module,
		&action,
		&prev,
		&next,
		&e.ChangedBy,
		&e.IPAddress,
		&metadata,
		&e.CreatedAt,
	); err != nil {
		return nil, err
	}

	e.Module = domain.Module(module)
	e.Action = domain.HistoryAction(action)
	e.PreviousValue = append(json.RawMessage(nil), prev...)
	e.NewValue = append(json.RawMessage(nil), next...)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of history %s: %w", e.ID, err)
		}
	}
	return &e, nil
}
