// Package notifier broadcasts settings change events to every configured sink.
package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/fastygo/schoolerp/domain"
	"github.com/fastygo/schoolerp/internal/infrastructure/outbox"
)

// Outbox keeps undelivered events for a later retry.
type Outbox interface {
	Enqueue(item outbox.Item) error
}

type Notifier struct {
	sinks   []Sink
	outbox  Outbox
	timeout time.Duration
	logger  *zap.Logger
}

func New(sinks []Sink, box Outbox, timeout time.Duration, logger *zap.Logger) *Notifier {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		sinks:   sinks,
		outbox:  box,
		timeout: timeout,
		logger:  logger.With(zap.String("component", "notifier")),
	}
}

// Publish announces the change on the module channel. Failures are logged and parked in the outbox.
func (n *Notifier) Publish(ctx context.Context, event domain.ChangeEvent) {
	if n == nil || len(n.sinks) == 0 {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Warn("notifier degraded: encode event", zap.Error(err))
		return
	}
	channel := event.Module.Channel()

	if err := n.Deliver(ctx, channel, payload); err != nil {
		n.logger.Warn("notifier degraded",
			zap.String("channel", channel),
			zap.String("tenant_id", event.TenantID),
			zap.Error(err))
		n.park(channel, payload)
	}
}

// Deliver sends payload to every sink and returns the combined failures.
func (n *Notifier) Deliver(ctx context.Context, channel string, payload []byte) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var errs *multierror.Error
	for _, sink := range n.sinks {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		err := sink.Publish(callCtx, channel, payload)
		cancel()
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errs.ErrorOrNil()
}

func (n *Notifier) park(channel string, payload []byte) {
	if n.outbox == nil {
		return
	}
	if err := n.outbox.Enqueue(outbox.Item{Channel: channel, Payload: payload}); err != nil {
		n.logger.Error("outbox enqueue failed", zap.String("channel", channel), zap.Error(err))
	}
}
