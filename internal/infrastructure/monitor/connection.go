package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Check probes one dependency. A failing critical check makes the service unhealthy.
type Check struct {
	Name     string
	Critical bool
	Timeout  time.Duration
	Probe    func(ctx context.Context) error
}

func PostgresCheck(pool *pgxpool.Pool) Check {
	return Check{Name: "postgresql", Critical: true, Timeout: 3 * time.Second, Probe: pool.Ping}
}

func RedisCheck(client redislib.UniversalClient) Check {
	return Check{Name: "redis", Timeout: 2 * time.Second, Probe: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
}

// OutboxSizer reports the number of parked events.
type OutboxSizer interface {
	Size() (int, error)
}

type Monitor struct {
	checks []Check
	outbox OutboxSizer

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(checks []Check, box OutboxSizer, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		checks:   checks,
		outbox:   box,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger.With(zap.String("component", "monitor")),
	}
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// IsOnline reports whether every probed dependency is reachable.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.status.Components {
		if !c.Online {
			return false
		}
	}
	return !m.status.LastCheck.IsZero()
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.status
	out.Components = make(map[string]ComponentStatus, len(m.status.Components))
	for k, v := range m.status.Components {
		out.Components[k] = v
	}
	return out
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Refresh(context.Background())
	for {
		select {
		case <-ticker.C:
			m.Refresh(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Refresh runs every probe once and stores the result.
func (m *Monitor) Refresh(ctx context.Context) {
	status := Status{
		Components: make(map[string]ComponentStatus, len(m.checks)),
		LastCheck:  time.Now(),
	}
	for _, c := range m.checks {
		status.Components[c.Name] = m.probe(ctx, c)
	}
	status.Outbox, status.OutboxSize = m.checkOutbox()

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

func (m *Monitor) probe(ctx context.Context, c Check) ComponentStatus {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out := ComponentStatus{Critical: c.Critical, Online: true}
	if err := c.Probe(probeCtx); err != nil {
		m.logger.Warn("dependency probe failed", zap.String("dependency", c.Name), zap.Error(err))
		out.Online = false
		out.Error = err.Error()
	}
	return out
}

func (m *Monitor) checkOutbox() (bool, int) {
	if m.outbox == nil {
		return false, 0
	}
	size, err := m.outbox.Size()
	if err != nil {
		m.logger.Warn("outbox size check failed", zap.Error(err))
		return false, size
	}
	return true, size
}
