package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoggerCarriesServiceAndRequest(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithSink(Config{Level: "debug", Service: "schoolerp-settings", Environment: "test"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	ctx := ContextWithTenant(ContextWithRequestID(context.Background(), "req-1"), "T1")
	WithRequestID(ctx, log).Debug("settings cache miss")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "settings cache miss", line["msg"])
	assert.Equal(t, "schoolerp-settings", line["service"])
	assert.Equal(t, "test", line["env"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "T1", line["tenant_id"])
	assert.Contains(t, line, "timestamp")
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithSink(Config{Level: "chatty"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	log.Debug("hidden")
	assert.Zero(t, buf.Len())
	log.Info("shown")
	assert.Contains(t, buf.String(), "shown")
	assert.Same(t, log, WithRequestID(context.Background(), log))
}
