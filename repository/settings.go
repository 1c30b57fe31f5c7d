package repository

import (
	"context"
	"time"

	"github.com/fastygo/schoolerp/domain"
)

// SettingsRepository persists settings aggregates. Implementations enforce at most one live
// aggregate per (tenant, module).
type SettingsRepository interface {
	// Insert stores a new aggregate, failing with ErrSettingsAlreadyExists when a live one exists.
	Insert(ctx context.Context, s *domain.Settings) error
	// FindLive returns the non-deleted aggregate or ErrSettingsNotFound.
	FindLive(ctx context.Context, module domain.Module, tenantID string) (*domain.Settings, error)
	// FindLatest returns the most recently updated aggregate, deleted or not.
	FindLatest(ctx context.Context, module domain.Module, tenantID string) (*domain.Settings, error)
	// Replace overwrites the aggregate when its stored version still equals expectedVersion.
	Replace(ctx context.Context, s *domain.Settings, expectedVersion int) error
}

// HistoryRepository is the append-only change ledger.
type HistoryRepository interface {
	Record(ctx context.Context, entry *domain.HistoryEntry) error
	Query(ctx context.Context, tenantID string, filter domain.HistoryFilter, page, limit int) (domain.HistoryPage, error)
	Aggregate(ctx context.Context, tenantID string, from, to time.Time) ([]domain.HistoryStat, error)
	DeleteMany(ctx context.Context, tenantID string, filter domain.HistoryFilter) (int64, error)
	FindOne(ctx context.Context, tenantID, id string) (*domain.HistoryEntry, error)
}

// OTPRepository keeps one pending challenge per (tenant, actor).
type OTPRepository interface {
	Save(ctx context.Context, challenge *domain.OTPChallenge) error
	Get(ctx context.Context, tenantID, actorID string) (*domain.OTPChallenge, error)
	Delete(ctx context.Context, tenantID, actorID string) error
}

// Tx exposes repositories bound to one unit of work.
type Tx interface {
	Settings() SettingsRepository
	History() HistoryRepository
}

// Store is the durable backend of the service.
type Store interface {
	Tx
	OTP() OTPRepository
	// WithinTx runs fn atomically. Any error returned by fn discards every write made through tx.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NormalizePage applies paging defaults and bounds.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}
