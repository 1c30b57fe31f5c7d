package handler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/schoolerp/api/transport"
	"github.com/fastygo/schoolerp/domain"
	"github.com/fastygo/schoolerp/pkg/httpcontext"
	appLogger "github.com/fastygo/schoolerp/pkg/logger"
)

type baseHandler struct {
	adapter *httpcontext.Adapter
	logger  *zap.Logger
}

func newBaseHandler(adapter *httpcontext.Adapter, logger *zap.Logger) baseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseHandler{adapter: adapter, logger: logger}
}

func (h baseHandler) requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	if h.adapter != nil {
		return h.adapter.Attach(ctx)
	}
	return context.WithCancel(context.Background())
}

func (h baseHandler) respondJSON(ctx *fasthttp.RequestCtx, status int, payload transport.Envelope) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	body, _ := json.Marshal(payload)
	ctx.SetBody(body)
}

func (h baseHandler) respondSuccess(ctx *fasthttp.RequestCtx, status int, message string, data interface{}) {
	h.respondJSON(ctx, status, transport.NewSuccess(status, message, data, nil))
}

func (h baseHandler) respondPage(ctx *fasthttp.RequestCtx, data interface{}, meta transport.PageMeta) {
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(http.StatusOK, "", data, meta))
}

func (h baseHandler) respondError(ctx *fasthttp.RequestCtx, stdCtx context.Context, err error) {
	status, code := mapError(err)

	var dErr *domain.Error
	var fields []domain.FieldError
	message := err.Error()
	if errors.As(err, &dErr) {
		fields = dErr.Fields
		if status == http.StatusTooManyRequests && dErr.RetryAfter > 0 {
			ctx.Response.Header.Set("Retry-After", strconv.Itoa(int(math.Ceil(dErr.RetryAfter.Seconds()))))
		}
		if status == http.StatusInternalServerError {
			message = dErr.Message
		}
	} else {
		message = "internal error"
	}

	if status >= http.StatusInternalServerError {
		appLogger.WithRequestID(stdCtx, h.logger).Error("request failed",
			zap.String("path", string(ctx.Path())),
			zap.Error(err))
	}
	h.respondJSON(ctx, status, transport.NewError(status, code, message, fields))
}

// decode reads the JSON body into dst and answers 400 on malformed input.
func (h baseHandler) decode(ctx *fasthttp.RequestCtx, dst interface{}) bool {
	body := ctx.PostBody()
	if len(body) == 0 {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(http.StatusBadRequest, string(domain.ErrCodeInvalid), "invalid payload", nil))
		return false
	}
	return true
}

// actor returns the authenticated caller or answers 401.
func (h baseHandler) actor(ctx *fasthttp.RequestCtx) (domain.Actor, bool) {
	actor, ok := httpcontext.ActorFrom(ctx)
	if !ok || actor.ID == "" {
		h.respondJSON(ctx, http.StatusUnauthorized, transport.NewError(http.StatusUnauthorized, string(domain.ErrCodeUnauthorized), "unauthorized", nil))
		return domain.Actor{}, false
	}
	return actor, true
}

func mapError(err error) (int, string) {
	switch {
	case domain.IsDomainError(err, domain.ErrCodeUnauthorized):
		return http.StatusUnauthorized, string(domain.ErrCodeUnauthorized)
	case domain.IsDomainError(err, domain.ErrCodeForbidden):
		return http.StatusForbidden, string(domain.ErrCodeForbidden)
	case domain.IsDomainError(err, domain.ErrCodeInvalid):
		return http.StatusBadRequest, string(domain.ErrCodeInvalid)
	case domain.IsDomainError(err, domain.ErrCodeNotFound):
		return http.StatusNotFound, string(domain.ErrCodeNotFound)
	case domain.IsDomainError(err, domain.ErrCodeAlreadyExists):
		return http.StatusConflict, string(domain.ErrCodeAlreadyExists)
	case domain.IsDomainError(err, domain.ErrCodeConflict):
		return http.StatusConflict, string(domain.ErrCodeConflict)
	case domain.IsDomainError(err, domain.ErrCodeRateLimited):
		return http.StatusTooManyRequests, string(domain.ErrCodeRateLimited)
	default:
		return http.StatusInternalServerError, string(domain.ErrCodeInternal)
	}
}

func parseInt(value string, fallback int) int {
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}
