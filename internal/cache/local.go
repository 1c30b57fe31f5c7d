package cache

import (
	"context"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jellydator/ttlcache/v3"
)

// LocalStore is an in-process Store used when Redis is disabled and in tests.
type LocalStore struct {
	values   *ttlcache.Cache[string, []byte]
	counters *ttlcache.Cache[string, int64]

	mu          sync.Mutex
	indexes     map[string]mapset.Set[string]
	generations map[string]int64
}

var _ Store = (*LocalStore)(nil)

func NewLocalStore(capacity uint64) *LocalStore {
	if capacity == 0 {
		capacity = 10_000
	}
	s := &LocalStore{
		values: ttlcache.New(
			ttlcache.WithTTL[string, []byte](SettingsTTL),
			ttlcache.WithCapacity[string, []byte](capacity),
			ttlcache.WithDisableTouchOnHit[string, []byte](),
		),
		counters: ttlcache.New(
			ttlcache.WithTTL[string, int64](RateWindow),
			ttlcache.WithDisableTouchOnHit[string, int64](),
		),
		indexes:     make(map[string]mapset.Set[string]),
		generations: make(map[string]int64),
	}
	go s.values.Start()
	go s.counters.Start()
	return s
}

// Close stops the expiry loops.
func (s *LocalStore) Close() {
	s.values.Stop()
	s.counters.Stop()
}

func (s *LocalStore) Get(_ context.Context, key string) ([]byte, error) {
	item := s.values.Get(key)
	if item == nil || item.IsExpired() {
		return nil, ErrMiss
	}
	return append([]byte(nil), item.Value()...), nil
}

func (s *LocalStore) Generation(_ context.Context, index string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[index], nil
}

func (s *LocalStore) Set(_ context.Context, key string, value []byte, ttl time.Duration, index string, gen int64) (bool, error) {
	if ttl <= 0 {
		ttl = ttlcache.DefaultTTL
	}
	if index == "" {
		s.values.Set(key, append([]byte(nil), value...), ttl)
		return true, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[index] != gen {
		return false, nil
	}
	s.values.Set(key, append([]byte(nil), value...), ttl)
	set, ok := s.indexes[index]
	if !ok {
		set = mapset.NewThreadUnsafeSet[string]()
		s.indexes[index] = set
	}
	set.Add(key)
	return true, nil
}

func (s *LocalStore) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		s.values.Delete(key)
	}
	return nil
}

func (s *LocalStore) Invalidate(_ context.Context, index string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generations[index]++
	set, ok := s.indexes[index]
	if !ok {
		return nil
	}
	delete(s.indexes, index)
	for key := range set.Iter() {
		s.values.Delete(key)
	}
	return nil
}

func (s *LocalStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	if window <= 0 {
		window = RateWindow
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.counters.Get(key)
	if item == nil || item.IsExpired() {
		s.counters.Set(key, 1, window)
		return 1, nil
	}
	next := item.Value() + 1
	remaining := time.Until(item.ExpiresAt())
	if remaining <= 0 {
		remaining = time.Millisecond
	}
	s.counters.Set(key, next, remaining)
	return next, nil
}

// Indexed reports the number of keys currently registered under index.
func (s *LocalStore) Indexed(index string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.indexes[index]; ok {
		return set.Cardinality()
	}
	return 0
}
