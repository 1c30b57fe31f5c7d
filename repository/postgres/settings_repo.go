package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fastygo/schoolerp/domain"
)

const settingsColumns = `id, tenant_id, module, version, data, entries, is_deleted, deleted_at, created_by, updated_by, created_at, updated_at`

type settingsRepository struct {
	db querier
}

func (r *settingsRepository) Insert(ctx context.Context, s *domain.Settings) error {
	if s == nil || s.ID == "" {
		return domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO settings (` + settingsColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, NOW()), COALESCE($12, NOW()))
	RETURNING created_at, updated_at
	`

	if err := r.db.QueryRow(ctx, query,
		s.ID,
		s.TenantID,
		string(s.Module),
		s.Version,
		marshalJSON(s.Data, "{}"),
		marshalJSON(s.Entries, "[]"),
		s.IsDeleted,
		s.DeletedAt,
		s.CreatedBy,
		s.UpdatedBy,
		nullTime(s.CreatedAt),
		nullTime(s.UpdatedAt),
	).Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSettingsAlreadyExists
		}
		return err
	}
	return nil
}

func (r *settingsRepository) FindLive(ctx context.Context, module domain.Module, tenantID string) (*domain.Settings, error) {
	const query = `
	SELECT ` + settingsColumns + `
	FROM settings
	WHERE module = $1 AND tenant_id = $2 AND is_deleted = FALSE
	`
	return scanSettings(r.db.QueryRow(ctx, query, string(module), tenantID))
}

func (r *settingsRepository) FindLatest(ctx context.Context, module domain.Module, tenantID string) (*domain.Settings, error) {
	const query = `
	SELECT ` + settingsColumns + `
	FROM settings
	WHERE module = $1 AND tenant_id = $2
	ORDER BY updated_at DESC
	LIMIT 1
	`
	return scanSettings(r.db.QueryRow(ctx, query, string(module), tenantID))
}

func (r *settingsRepository) Replace(ctx context.Context, s *domain.Settings, expectedVersion int) error {
	if s == nil || s.ID == "" {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE settings
	SET version = $3,
		data = $4,
		entries = $5,
		is_deleted = $6,
		deleted_at = $7,
		updated_by = $8,
		updated_at = COALESCE($9, NOW())
	WHERE id = $1 AND version = $2
	RETURNING updated_at
	`

	var updatedAt time.Time
	err := r.db.QueryRow(ctx, query,
		s.ID,
		expectedVersion,
		s.Version,
		marshalJSON(s.Data, "{}"),
		marshalJSON(s.Entries, "[]"),
		s.IsDeleted,
		s.DeletedAt,
		s.UpdatedBy,
		nullTime(s.UpdatedAt),
	).Scan(&updatedAt)
	switch {
	case err == nil:
		s.UpdatedAt = updatedAt
		return nil
	case isUniqueViolation(err):
		return domain.ErrSettingsAlreadyExists
	case errors.Is(err, pgx.ErrNoRows):
		return r.missOrConflict(ctx, s.ID)
	default:
		return err
	}
}

func (r *settingsRepository) missOrConflict(ctx context.Context, id string) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM settings WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return domain.ErrVersionConflict
	}
	return domain.ErrSettingsNotFound
}

func scanSettings(row scanner) (*domain.Settings, error) {
	var (
		s       domain.Settings
		module  string
		data    []byte
		entries []byte
	)

	if err := row.Scan(
		&s.ID,
		&s.TenantID,
		&module,
		&s.Version,
		&data,
		&entries,
		&s.IsDeleted,
		&s.DeletedAt,
		&s.CreatedBy,
		&s.UpdatedBy,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSettingsNotFound
		}
		return nil, err
	}

	s.Module = domain.Module(module)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.Data); err != nil {
			return nil, err
		}
	}
	if len(entries) > 0 {
		if err := json.Unmarshal(entries, &s.Entries); err != nil {
			return nil, err
		}
	}
	if len(s.Entries) == 0 {
		s.Entries = nil
	}
	return &s, nil
}
