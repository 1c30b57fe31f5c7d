package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/schoolerp/internal/infrastructure/outbox"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// Deliverer re-sends a parked event to the live sinks.
type Deliverer interface {
	Deliver(ctx context.Context, channel string, payload []byte) error
}

// OutboxQueue is the persistence the processor drains.
type OutboxQueue interface {
	GetBatch(limit int) ([]outbox.Item, error)
	Remove(item outbox.Item) error
	Requeue(item outbox.Item) error
	Size() (int, error)
	Cleanup(olderThan time.Time) (int, error)
}

// ProcessorConfig controls how frequently the outbox is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
}

// OutboxProcessor retries change events that no sink accepted at publish time.
type OutboxProcessor struct {
	store     OutboxQueue
	monitor   ConnectionHealth
	deliverer Deliverer
	logger    *zap.Logger
	cron      *cron.Cron
	cfg       ProcessorConfig
}

func NewOutboxProcessor(
	store OutboxQueue,
	monitor ConnectionHealth,
	deliverer Deliverer,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *OutboxProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &OutboxProcessor{
		store:     store,
		monitor:   monitor,
		deliverer: deliverer,
		logger:    logger.With(zap.String("component", "outbox")),
		cfg:       cfg,
		cron:      cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = p.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := p.Drain(ctx); err != nil {
			p.logger.Error("outbox drain failed", zap.Error(err))
		}
	})
	_, _ = p.cron.AddFunc("@hourly", func() {
		if err := p.Cleanup(time.Now()); err != nil {
			p.logger.Error("outbox cleanup failed", zap.Error(err))
		}
	})

	return p
}

// Start launches the cron scheduler.
func (p *OutboxProcessor) Start() {
	if p == nil || p.cron == nil {
		return
	}
	p.cron.Start()
	p.logger.Info("outbox processor started")
}

// Stop gracefully stops the scheduler.
func (p *OutboxProcessor) Stop(ctx context.Context) {
	if p == nil || p.cron == nil {
		return
	}
	stopCtx := p.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	p.logger.Info("outbox processor stopped")
}

// Drain re-delivers one batch synchronously. It does nothing while the monitor reports offline.
func (p *OutboxProcessor) Drain(ctx context.Context) error {
	if p == nil || p.store == nil || p.deliverer == nil {
		return nil
	}
	if p.monitor != nil && !p.monitor.IsOnline() {
		p.logger.Debug("skipping outbox drain (offline)")
		return nil
	}

	items, err := p.store.GetBatch(p.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := p.deliverer.Deliver(ctx, item.Channel, item.Payload); err != nil {
			p.logger.Warn("outbox redelivery failed",
				zap.String("item_id", item.ID),
				zap.String("channel", item.Channel),
				zap.Error(err))

			item.Retries++
			if item.Retries >= p.cfg.MaxRetries {
				p.logger.Warn("dropping outbox item (max retries reached)", zap.String("item_id", item.ID))
				_ = p.store.Remove(item)
				continue
			}
			if err := p.store.Requeue(item); err != nil {
				p.logger.Error("failed to requeue outbox item", zap.Error(err))
			}
			continue
		}

		if err := p.store.Remove(item); err != nil {
			p.logger.Warn("failed to purge delivered outbox item", zap.Error(err))
		}
	}
	return nil
}

// Cleanup drops items older than the retention window.
func (p *OutboxProcessor) Cleanup(now time.Time) error {
	if p == nil || p.store == nil {
		return nil
	}
	removed, err := p.store.Cleanup(now.Add(-p.cfg.Retention))
	if err != nil {
		return err
	}
	if removed > 0 {
		p.logger.Info("expired outbox items removed", zap.Int("count", removed))
	}
	return nil
}

// Size returns the number of parked items.
func (p *OutboxProcessor) Size() int {
	if p == nil || p.store == nil {
		return 0
	}
	size, err := p.store.Size()
	if err != nil {
		return 0
	}
	return size
}
