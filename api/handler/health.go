package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/schoolerp/api/transport"
	"github.com/fastygo/schoolerp/internal/infrastructure/monitor"
	"github.com/fastygo/schoolerp/pkg/httpcontext"
)

// StatusReporter exposes the latest dependency probe.
type StatusReporter interface {
	GetStatus() monitor.Status
}

type HealthHandler struct {
	baseHandler
	monitor StatusReporter
}

func NewHealthHandler(mon StatusReporter, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
	}
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	payload := map[string]interface{}{
		"timestamp":  time.Now().UTC(),
		"lastCheck":  status.LastCheck,
		"components": status.Components,
		"outbox": map[string]interface{}{
			"online": status.Outbox,
			"size":   status.OutboxSize,
		},
	}

	if status.Healthy() {
		h.respondSuccess(ctx, http.StatusOK, "healthy", payload)
		return
	}
	env := transport.NewError(http.StatusServiceUnavailable, "DEGRADED", "dependencies unhealthy", nil)
	env.Data = payload
	h.respondJSON(ctx, http.StatusServiceUnavailable, env)
}
