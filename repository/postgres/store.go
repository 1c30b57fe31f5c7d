package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/schoolerp/repository"
)

type store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Postgres-backed repository.Store.
func NewStore(pool *pgxpool.Pool) repository.Store {
	return &store{pool: pool}
}

func (s *store) Settings() repository.SettingsRepository { return &settingsRepository{db: s.pool} }
func (s *store) History() repository.HistoryRepository   { return &historyRepository{db: s.pool} }
func (s *store) OTP() repository.OTPRepository           { return &otpRepository{db: s.pool} }

func (s *store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, txRepos{tx: tx})
	})
}

type txRepos struct {
	tx pgx.Tx
}

func (t txRepos) Settings() repository.SettingsRepository { return &settingsRepository{db: t.tx} }
func (t txRepos) History() repository.HistoryRepository   { return &historyRepository{db: t.tx} }
