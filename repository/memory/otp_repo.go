package memory

import (
	"context"

	"github.com/fastygo/schoolerp/domain"
)

type otpRepo struct {
	store *Store
}

func otpKey(tenantID, actorID string) string {
	return tenantID + "\x00" + actorID
}

func (r otpRepo) Save(ctx context.Context, c *domain.OTPChallenge) error {
	if c == nil || c.ActorID == "" {
		return domain.ErrInvalidPayload
	}
	return r.store.apply(nil, func(st *state) error {
		cp := *c
		cp.CodeHash = append([]byte(nil), c.CodeHash...)
		st.otps[otpKey(c.TenantID, c.ActorID)] = cp
		return nil
	})
}

func (r otpRepo) Get(ctx context.Context, tenantID, actorID string) (*domain.OTPChallenge, error) {
	var out *domain.OTPChallenge
	err := r.store.apply(nil, func(st *state) error {
		c, ok := st.otps[otpKey(tenantID, actorID)]
		if !ok {
			return domain.ErrOTPNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (r otpRepo) Delete(ctx context.Context, tenantID, actorID string) error {
	return r.store.apply(nil, func(st *state) error {
		delete(st.otps, otpKey(tenantID, actorID))
		return nil
	})
}
