// Package memory implements the repository contracts in process. It backs STORAGE_DRIVER=memory
// and the service tests.
package memory

import (
	"context"
	"sync"

	"github.com/fastygo/schoolerp/domain"
	"github.com/fastygo/schoolerp/repository"
)

type state struct {
	settings map[string]*domain.Settings
	history  []domain.HistoryEntry
	otps     map[string]domain.OTPChallenge
}

func newState() *state {
	return &state{
		settings: make(map[string]*domain.Settings),
		otps:     make(map[string]domain.OTPChallenge),
	}
}

func (s *state) clone() *state {
	out := &state{
		settings: make(map[string]*domain.Settings, len(s.settings)),
		history:  append([]domain.HistoryEntry(nil), s.history...),
		otps:     make(map[string]domain.OTPChallenge, len(s.otps)),
	}
	for k, v := range s.settings {
		out.settings[k] = v.Clone()
	}
	for k, v := range s.otps {
		out.otps[k] = v
	}
	return out
}

// Store keeps every table in maps guarded by a single mutex.
type Store struct {
	mu sync.Mutex
	st *state

	// FailHistory makes every ledger write fail. Used to exercise transactional rollback.
	FailHistory error
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{st: newState()}
}

func (s *Store) Settings() repository.SettingsRepository { return settingsRepo{store: s} }
func (s *Store) History() repository.HistoryRepository   { return historyRepo{store: s} }
func (s *Store) OTP() repository.OTPRepository           { return otpRepo{store: s} }

// WithinTx works on a copy of the state and publishes it only when fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, txView{store: s, st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// apply runs fn against the transaction state when st is set, otherwise under the store lock.
func (s *Store) apply(st *state, fn func(st *state) error) error {
	if st != nil {
		return fn(st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

type txView struct {
	store *Store
	st    *state
}

func (t txView) Settings() repository.SettingsRepository {
	return settingsRepo{store: t.store, st: t.st}
}

func (t txView) History() repository.HistoryRepository {
	return historyRepo{store: t.store, st: t.st}
}
