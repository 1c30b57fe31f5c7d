package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownRunsHooksInReverse(t *testing.T) {
	m := New(time.Second, nil)
	var order []string
	for _, name := range []string{"postgres", "outbox", "http_server"} {
		name := name
		m.Register(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}
	m.Register("ignored", nil)

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, []string{"http_server", "outbox", "postgres"}, order)
}

func TestShutdownCollectsFailures(t *testing.T) {
	m := New(time.Second, nil)
	errRedis := errors.New("redis close")
	ran := false
	m.Register("redis", func(context.Context) error { return errRedis })
	m.Register("kafka", func(context.Context) error { return errors.New("kafka close") })
	m.Register("monitor", func(context.Context) error {
		ran = true
		return nil
	})

	err := m.Shutdown(context.Background())
	require.Error(t, err)
	assert.True(t, ran)
	assert.ErrorIs(t, err, errRedis)
	assert.Contains(t, err.Error(), "kafka: kafka close")
	assert.Contains(t, err.Error(), "redis: redis close")
}

func TestShutdownHooksSeeDeadline(t *testing.T) {
	m := New(50*time.Millisecond, nil)
	var deadline bool
	m.Register("server", func(ctx context.Context) error {
		_, deadline = ctx.Deadline()
		return nil
	})
	require.NoError(t, m.Shutdown(context.Background()))
	assert.True(t, deadline)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestCloserAndStopHelpers(t *testing.T) {
	m := New(time.Second, nil)
	var order []string
	m.RegisterCloser("outbox", closerFunc(func() error {
		order = append(order, "outbox")
		return nil
	}))
	m.RegisterStop("monitor", func() { order = append(order, "monitor") })
	m.RegisterCloser("nil", nil)

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, []string{"monitor", "outbox"}, order)
}
