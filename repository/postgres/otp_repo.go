package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/fastygo/schoolerp/domain"
)

type otpRepository struct {
	db querier
}

func (r *otpRepository) Save(ctx context.Context, c *domain.OTPChallenge) error {
	if c == nil || c.ActorID == "" {
		return domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO otp_challenges (tenant_id, actor_id, channel, code_hash, attempts, expires_at, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
	ON CONFLICT (tenant_id, actor_id) DO UPDATE
	SET channel = EXCLUDED.channel,
		code_hash = EXCLUDED.code_hash,
		attempts = EXCLUDED.attempts,
		expires_at = EXCLUDED.expires_at,
		created_at = EXCLUDED.created_at
	RETURNING created_at
	`

	return r.db.QueryRow(ctx, query,
		c.TenantID,
		c.ActorID,
		c.Channel,
		c.CodeHash,
		c.Attempts,
		c.ExpiresAt,
		nullTime(c.CreatedAt),
	).Scan(&c.CreatedAt)
}

func (r *otpRepository) Get(ctx context.Context, tenantID, actorID string) (*domain.OTPChallenge, error) {
	const query = `
	SELECT tenant_id, actor_id, channel, code_hash, attempts, expires_at, created_at
	FROM otp_challenges
	WHERE tenant_id = $1 AND actor_id = $2
	`
	var c domain.OTPChallenge
	if err := r.db.QueryRow(ctx, query, tenantID, actorID).Scan(
		&c.TenantID,
		&c.ActorID,
		&c.Channel,
		&c.CodeHash,
		&c.Attempts,
		&c.ExpiresAt,
		&c.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOTPNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *otpRepository) Delete(ctx context.Context, tenantID, actorID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM otp_challenges WHERE tenant_id = $1 AND actor_id = $2`, tenantID, actorID)
	return err
}
