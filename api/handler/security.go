package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/schoolerp/api/transport"
	"github.com/fastygo/schoolerp/pkg/httpcontext"
	securityUC "github.com/fastygo/schoolerp/usecase/security"
)

type SecurityHandler struct {
	baseHandler
	uc *securityUC.UseCase
}

func NewSecurityHandler(uc *securityUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *SecurityHandler {
	return &SecurityHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Send a one-time password
// @Tags security
// @Router /api/v1/security/otp/send [post]
func (h *SecurityHandler) SendOTP(ctx *fasthttp.RequestCtx) {
	actor, ok := h.actor(ctx)
	if !ok {
		return
	}
	var req transport.OTPSendRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	receipt, err := h.uc.SendOTP(stdCtx, actor, securityUC.OTPRequest{Channel: req.Channel, Destination: req.Destination})
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusAccepted, "otp sent", receipt)
}

// @Summary Verify a one-time password
// @Tags security
// @Router /api/v1/security/otp/verify [post]
func (h *SecurityHandler) VerifyOTP(ctx *fasthttp.RequestCtx) {
	actor, ok := h.actor(ctx)
	if !ok {
		return
	}
	var req transport.OTPVerifyRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.VerifyOTP(stdCtx, actor, req.Code); err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, "otp verified", map[string]bool{"verified": true})
}

// @Summary Mask a record with the tenant policy
// @Tags security
// @Router /api/v1/security/mask [post]
func (h *SecurityHandler) Mask(ctx *fasthttp.RequestCtx) {
	actor, ok := h.actor(ctx)
	if !ok {
		return
	}
	var req transport.MaskRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	masked, err := h.uc.Mask(stdCtx, actor.TenantID, req.Record)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, "", masked)
}

// @Summary Encrypt a value with the tenant key
// @Tags security
// @Router /api/v1/security/encrypt [post]
func (h *SecurityHandler) Encrypt(ctx *fasthttp.RequestCtx) {
	actor, ok := h.actor(ctx)
	if !ok {
		return
	}
	var req transport.CryptoRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	out, err := h.uc.Encrypt(stdCtx, actor.TenantID, req.Value)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, "", transport.CryptoRequest{Value: out})
}

// @Summary Decrypt a value with the tenant key
// @Tags security
// @Router /api/v1/security/decrypt [post]
func (h *SecurityHandler) Decrypt(ctx *fasthttp.RequestCtx) {
	actor, ok := h.actor(ctx)
	if !ok {
		return
	}
	var req transport.CryptoRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	out, err := h.uc.Decrypt(stdCtx, actor.TenantID, req.Value)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, "", transport.CryptoRequest{Value: out})
}

// @Summary Synchronise time against the tenant NTP servers
// @Tags system
// @Router /api/v1/system/time-sync [post]
func (h *SecurityHandler) SyncTime(ctx *fasthttp.RequestCtx) {
	actor, ok := h.actor(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	res, err := h.uc.SyncTime(stdCtx, actor.TenantID)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, "", res)
}

// @Summary Compliance report
// @Tags compliance
// @Router /api/v1/compliance/report [get]
func (h *SecurityHandler) ComplianceReport(ctx *fasthttp.RequestCtx) {
	actor, ok := h.actor(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	report, err := h.uc.ComplianceReport(stdCtx, actor.TenantID)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, "", report)
}
