// Package cache is the read-through, write-invalidate layer in front of the settings store.
// Backend failures never reach callers: reads degrade to misses and writes are dropped with a warning.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// ErrMiss is returned by a Store when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

const (
	SettingsTTL = 300 * time.Second
	AuditTTL    = 300 * time.Second
	RateWindow  = time.Hour

	defaultTimeout = 250 * time.Millisecond
)

// Store is a key-value backend with TTLs, per-index key sets and counters.
//
// Every index carries a generation that Invalidate bumps. An indexed Set is a check-and-set on that
// generation, so a value read from the database before an invalidation can never be written back
// after it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Generation returns the current generation of index; an index never invalidated is at 0.
	Generation(ctx context.Context, index string) (int64, error)
	// Set writes value and registers key in index when index is not empty. With an index the write
	// only happens while the index is still at gen; stored reports whether it did.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, index string, gen int64) (stored bool, err error)
	Delete(ctx context.Context, keys ...string) error
	// Invalidate bumps the generation of index, then deletes every key registered in it.
	Invalidate(ctx context.Context, index string) error
	// Incr bumps the counter at key. The window starts with the first increment.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Layer wraps a Store with JSON encoding, call timeouts and degraded-mode logging.
type Layer struct {
	store   Store
	timeout time.Duration
	logger  *zap.Logger
}

func New(store Store, timeout time.Duration, logger *zap.Logger) *Layer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Layer{store: store, timeout: timeout, logger: logger.With(zap.String("component", "cache"))}
}

// Get decodes the cached value into dest and reports a hit.
func (l *Layer) Get(ctx context.Context, key string, dest any) bool {
	if l == nil || l.store == nil {
		return false
	}
	callCtx, cancel := l.bound(ctx)
	defer cancel()

	raw, err := l.store.Get(callCtx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			l.degraded("get", key, err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		l.degraded("decode", key, err)
		return false
	}
	return true
}

// Fence is the generation of an index observed before a database read. The zero Fence writes
// without an index.
type Fence struct {
	index  string
	gen    int64
	broken bool
}

// Fence must be taken before the read whose result is later passed to Set.
func (l *Layer) Fence(ctx context.Context, index string) Fence {
	if l == nil || l.store == nil || index == "" {
		return Fence{index: index}
	}
	callCtx, cancel := l.bound(ctx)
	defer cancel()

	gen, err := l.store.Generation(callCtx, index)
	if err != nil {
		l.degraded("generation", index, err)
		return Fence{index: index, broken: true}
	}
	return Fence{index: index, gen: gen}
}

// Set caches value under key. The write is dropped when the fence's index was invalidated since
// the fence was taken, or when the fence could not be read.
func (l *Layer) Set(ctx context.Context, key string, value any, ttl time.Duration, fence Fence) {
	if l == nil || l.store == nil || fence.broken {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		l.degraded("encode", key, err)
		return
	}
	callCtx, cancel := l.bound(ctx)
	defer cancel()

	stored, err := l.store.Set(callCtx, key, raw, ttl, fence.index, fence.gen)
	if err != nil {
		l.degraded("set", key, err)
		return
	}
	if !stored {
		l.logger.Debug("stale cache write dropped", zap.String("key", key), zap.String("index", fence.index))
	}
}

func (l *Layer) Delete(ctx context.Context, keys ...string) {
	if l == nil || l.store == nil || len(keys) == 0 {
		return
	}
	callCtx, cancel := l.bound(ctx)
	defer cancel()

	if err := l.store.Delete(callCtx, keys...); err != nil {
		l.degraded("delete", keys[0], err)
	}
}

// Invalidate clears each index. Failures are logged per index and do not stop the rest.
func (l *Layer) Invalidate(ctx context.Context, indexes ...string) {
	if l == nil || l.store == nil {
		return
	}
	for _, index := range indexes {
		callCtx, cancel := l.bound(ctx)
		err := l.store.Invalidate(callCtx, index)
		cancel()
		if err != nil {
			l.degraded("invalidate", index, err)
		}
	}
}

// Incr returns the backend error so the rate limiter can decide how to fail.
func (l *Layer) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	if l == nil || l.store == nil {
		return 0, errors.New("cache: no backend configured")
	}
	callCtx, cancel := l.bound(ctx)
	defer cancel()
	return l.store.Incr(callCtx, key, window)
}

func (l *Layer) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, l.timeout)
}

func (l *Layer) degraded(op, key string, err error) {
	l.logger.Warn("cache degraded",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err))
}
