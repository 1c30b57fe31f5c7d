package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/schoolerp/api/transport"
	"github.com/fastygo/schoolerp/domain"
	"github.com/fastygo/schoolerp/pkg/httpcontext"
	auditUC "github.com/fastygo/schoolerp/usecase/audit"
)

type AuditHandler struct {
	baseHandler
	uc *auditUC.UseCase
}

func NewAuditHandler(uc *auditUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Query the audit log
// @Tags audit
// @Router /api/v1/audit-logs [get]
func (h *AuditHandler) List(ctx *fasthttp.RequestCtx) {
	actor, ok := h.actor(ctx)
	if !ok {
		return
	}
	filter, ok := h.filter(ctx)
	if !ok {
		return
	}
	args := ctx.QueryArgs()
	page := parseInt(string(args.Peek("page")), 1)
	limit := parseInt(string(args.Peek("limit")), 0)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.uc.GetAuditLog(stdCtx, actor.TenantID, filter, page, limit)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondPage(ctx, result.Items, transport.PageMeta{Page: result.Page, Limit: result.Limit, Total: result.Total})
}

// @Summary Audit log statistics
// @Tags audit
// @Router /api/v1/audit-logs/stats [get]
func (h *AuditHandler) Stats(ctx *fasthttp.RequestCtx) {
	actor, ok := h.actor(ctx)
	if !ok {
		return
	}
	filter, ok := h.filter(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	stats, err := h.uc.GetAuditLogStats(stdCtx, actor.TenantID, filter.From, filter.To)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, "", stats)
}

// @Summary Delete audit log entries
// @Tags audit
// @Router /api/v1/audit-logs [delete]
func (h *AuditHandler) Delete(ctx *fasthttp.RequestCtx) {
	actor, ok := h.actor(ctx)
	if !ok {
		return
	}
	filter, ok := h.filter(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	n, err := h.uc.DeleteAuditLogs(stdCtx, actor.TenantID, filter, actor)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, "audit logs deleted", map[string]int64{"deleted": n})
}

// @Summary Roll settings back to the state before a history entry
// @Tags audit
// @Router /api/v1/audit-logs/{id}/rollback [post]
func (h *AuditHandler) Rollback(ctx *fasthttp.RequestCtx) {
	actor, ok := h.actor(ctx)
	if !ok {
		return
	}
	id, _ := ctx.UserValue("id").(string)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	restored, err := h.uc.RollbackSettings(stdCtx, id, actor.TenantID, actor)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, "settings rolled back", restored)
}

// @Summary Purge the tenant cache
// @Tags audit
// @Router /api/v1/audit-logs/cache/purge [post]
func (h *AuditHandler) PurgeCache(ctx *fasthttp.RequestCtx) {
	actor, ok := h.actor(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.PurgeCache(stdCtx, actor.TenantID, actor); err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, "cache purged", nil)
}

// filter reads module, action, changedBy, from and to from the query string.
func (h *AuditHandler) filter(ctx *fasthttp.RequestCtx) (domain.HistoryFilter, bool) {
	args := ctx.QueryArgs()
	f := domain.HistoryFilter{
		Module:    domain.Module(args.Peek("module")),
		Action:    domain.HistoryAction(args.Peek("action")),
		ChangedBy: string(args.Peek("changedBy")),
	}
	var fields []domain.FieldError
	if f.Module != "" && !f.Module.Valid() && f.Module != domain.ModuleAuditLog {
		fields = append(fields, domain.FieldError{Field: "module", Message: "unknown module"})
	}
	if f.Action != "" && !f.Action.Valid() {
		fields = append(fields, domain.FieldError{Field: "action", Message: "unknown action"})
	}
	for _, bound := range []struct {
		name string
		dst  *time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		raw := string(args.Peek(bound.name))
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			fields = append(fields, domain.FieldError{Field: bound.name, Message: bound.name + " must be an RFC3339 timestamp"})
			continue
		}
		*bound.dst = t.UTC()
	}
	if len(fields) > 0 {
		h.respondError(ctx, context.Background(), domain.NewValidationError("invalid audit filter", fields...))
		return f, false
	}
	return f, true
}
