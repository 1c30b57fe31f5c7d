package settings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/fastygo/schoolerp/domain"
	"github.com/fastygo/schoolerp/repository"
	"github.com/fastygo/schoolerp/repository/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.ChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) last() domain.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return domain.ChangeEvent{}
	}
	return p.events[len(p.events)-1]
}

// stepClock advances one second on every reading.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type seqIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

func (g *seqIDs) Make(time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

type brokenCacheStore struct{}

func (brokenCacheStore) Get(context.Context, string) ([]byte, error) {
	return nil, fmt.Errorf("cache offline")
}
func (brokenCacheStore) Generation(context.Context, string) (int64, error) {
	return 0, fmt.Errorf("cache offline")
}
func (brokenCacheStore) Set(context.Context, string, []byte, time.Duration, string, int64) (bool, error) {
	return false, fmt.Errorf("cache offline")
}
func (brokenCacheStore) Delete(context.Context, ...string) error { return fmt.Errorf("cache offline") }
func (brokenCacheStore) Invalidate(context.Context, string) error {
	return fmt.Errorf("cache offline")
}
func (brokenCacheStore) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, fmt.Errorf("cache offline")
}

func doc(raw string) domain.Document {
	var d domain.Document
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		panic(err)
	}
	return d
}

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }

// interleavedStore runs onRead once, after a live read has loaded its result and before the read
// returns to the caller.
type interleavedStore struct {
	*memory.Store
	onRead func()
}

func (s *interleavedStore) Settings() repository.SettingsRepository {
	return interleavedSettings{SettingsRepository: s.Store.Settings(), owner: s}
}

type interleavedSettings struct {
	repository.SettingsRepository
	owner *interleavedStore
}

func (r interleavedSettings) FindLive(ctx context.Context, module domain.Module, tenantID string) (*domain.Settings, error) {
	got, err := r.SettingsRepository.FindLive(ctx, module, tenantID)
	if hook := r.owner.onRead; hook != nil {
		r.owner.onRead = nil
		hook()
	}
	return got, err
}
