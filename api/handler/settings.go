package handler

import (
	"context"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/schoolerp/api/transport"
	"github.com/fastygo/schoolerp/domain"
	"github.com/fastygo/schoolerp/pkg/httpcontext"
	settingsUC "github.com/fastygo/schoolerp/usecase/settings"
)

type SettingsHandler struct {
	baseHandler
	uc *settingsUC.UseCase
}

func NewSettingsHandler(uc *settingsUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// target resolves the caller and the {module} route parameter.
func (h *SettingsHandler) target(ctx *fasthttp.RequestCtx) (domain.Actor, domain.Module, bool) {
	actor, ok := h.actor(ctx)
	if !ok {
		return actor, "", false
	}
	name, _ := ctx.UserValue("module").(string)
	module, err := domain.ParseModule(name)
	if err != nil {
		h.respondError(ctx, context.Background(), err)
		return actor, "", false
	}
	return actor, module, true
}

func entryName(ctx *fasthttp.RequestCtx) string {
	name, _ := ctx.UserValue("name").(string)
	return name
}

func entryInputs(in []transport.EntryRequest) []settingsUC.EntryInput {
	out := make([]settingsUC.EntryInput, len(in))
	for i, e := range in {
		out[i] = settingsUC.EntryInput{Name: e.Name, Enabled: e.Enabled, Data: e.Data}
	}
	return out
}

// @Summary Create module settings
// @Tags settings
// @Router /api/v1/settings/{module} [post]
func (h *SettingsHandler) Create(ctx *fasthttp.RequestCtx) {
	actor, module, ok := h.target(ctx)
	if !ok {
		return
	}
	var req transport.CreateSettingsRequest
	if !h.decode(ctx, &req) {
		return
	}

	input := domain.SettingsInput{Data: req.Data}
	for _, e := range entryInputs(req.Entries) {
		enabled := true
		if e.Enabled != nil {
			enabled = *e.Enabled
		}
		input.Entries = append(input.Entries, domain.Entry{Name: e.Name, Enabled: enabled, Data: e.Data})
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.uc.Create(stdCtx, module, actor.TenantID, input, actor)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, "settings created", created)
}

// @Summary Get module settings
// @Tags settings
// @Router /api/v1/settings/{module} [get]
func (h *SettingsHandler) Get(ctx *fasthttp.RequestCtx) {
	actor, module, ok := h.target(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	s, err := h.uc.Get(stdCtx, module, actor.TenantID)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, "", s)
}

// @Summary Update module settings
// @Tags settings
// @Router /api/v1/settings/{module} [patch]
func (h *SettingsHandler) Update(ctx *fasthttp.RequestCtx) {
	actor, module, ok := h.target(ctx)
	if !ok {
		return
	}
	var req transport.UpdateSettingsRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	updated, err := h.uc.Update(stdCtx, module, actor.TenantID, req.Data, req.ExpectedVersion, actor)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, "settings updated", updated)
}

// @Summary Delete module settings
// @Tags settings
// @Router /api/v1/settings/{module} [delete]
func (h *SettingsHandler) Delete(ctx *fasthttp.RequestCtx) {
	actor, module, ok := h.target(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Delete(stdCtx, module, actor.TenantID, actor); err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, "settings deleted", nil)
}

// @Summary Add an entry
// @Tags settings
// @Router /api/v1/settings/{module}/entries [post]
func (h *SettingsHandler) AddEntry(ctx *fasthttp.RequestCtx) {
	actor, module, ok := h.target(ctx)
	if !ok {
		return
	}
	var req transport.EntryRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	s, err := h.uc.AddEntry(stdCtx, module, actor.TenantID, entryInputs([]transport.EntryRequest{req})[0], actor)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, "entry created", s)
}

// @Summary Bulk create entries
// @Tags settings
// @Router /api/v1/settings/{module}/entries/bulk [post]
func (h *SettingsHandler) BulkCreate(ctx *fasthttp.RequestCtx) {
	actor, module, ok := h.target(ctx)
	if !ok {
		return
	}
	var req transport.BulkEntriesRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	res, err := h.uc.BulkCreate(stdCtx, module, actor.TenantID, entryInputs(req.Entries), actor)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, "entries created", res)
}

// @Summary Update an entry
// @Tags settings
// @Router /api/v1/settings/{module}/entries/{name} [patch]
func (h *SettingsHandler) UpdateEntry(ctx *fasthttp.RequestCtx) {
	actor, module, ok := h.target(ctx)
	if !ok {
		return
	}
	var req transport.EntryPatchRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	s, err := h.uc.UpdateEntry(stdCtx, module, actor.TenantID, entryName(ctx), settingsUC.EntryPatch{Enabled: req.Enabled, Data: req.Data}, actor)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, "entry updated", s)
}

// @Summary Toggle an entry
// @Tags settings
// @Router /api/v1/settings/{module}/entries/{name}/toggle [post]
func (h *SettingsHandler) Toggle(ctx *fasthttp.RequestCtx) {
	actor, module, ok := h.target(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	s, err := h.uc.Toggle(stdCtx, module, actor.TenantID, entryName(ctx), actor)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, "entry toggled", s)
}

// @Summary Delete an entry
// @Tags settings
// @Router /api/v1/settings/{module}/entries/{name} [delete]
func (h *SettingsHandler) DeleteEntry(ctx *fasthttp.RequestCtx) {
	actor, module, ok := h.target(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	s, err := h.uc.DeleteEntry(stdCtx, module, actor.TenantID, entryName(ctx), actor)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, "entry deleted", s)
}
