package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/schoolerp/api/handler"
	"github.com/fastygo/schoolerp/domain"
	"github.com/fastygo/schoolerp/internal/middleware"
)

type Handlers struct {
	Settings *apiHandler.SettingsHandler
	Security *apiHandler.SecurityHandler
	Audit    *apiHandler.AuditHandler
	Health   *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware middleware.Middleware) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	api := r.Group("/api/v1")

	read := func(h fasthttp.RequestHandler) fasthttp.RequestHandler {
		return middleware.Chain(h, authMiddleware, middleware.RequireModulePermission(false))
	}
	write := func(h fasthttp.RequestHandler) fasthttp.RequestHandler {
		return middleware.Chain(h, authMiddleware, middleware.RequireModulePermission(true))
	}
	with := func(perm domain.Permission, h fasthttp.RequestHandler) fasthttp.RequestHandler {
		return middleware.Chain(h, authMiddleware, middleware.RequirePermission(perm))
	}

	// Settings modules
	api.POST("/settings/{module}", write(handlers.Settings.Create))
	api.GET("/settings/{module}", read(handlers.Settings.Get))
	api.PATCH("/settings/{module}", write(handlers.Settings.Update))
	api.DELETE("/settings/{module}", write(handlers.Settings.Delete))
	api.POST("/settings/{module}/entries", write(handlers.Settings.AddEntry))
	api.POST("/settings/{module}/entries/bulk", write(handlers.Settings.BulkCreate))
	api.PATCH("/settings/{module}/entries/{name}", write(handlers.Settings.UpdateEntry))
	api.POST("/settings/{module}/entries/{name}/toggle", write(handlers.Settings.Toggle))
	api.DELETE("/settings/{module}/entries/{name}", write(handlers.Settings.DeleteEntry))

	// Security side operations
	api.POST("/security/otp/send", with(domain.PermSettingsRead, handlers.Security.SendOTP))
	api.POST("/security/otp/verify", with(domain.PermSettingsRead, handlers.Security.VerifyOTP))
	api.POST("/security/mask", with(domain.PermSettingsRead, handlers.Security.Mask))
	api.POST("/security/encrypt", with(domain.PermSettingsRead, handlers.Security.Encrypt))
	api.POST("/security/decrypt", with(domain.PermSettingsRead, handlers.Security.Decrypt))
	api.POST("/system/time-sync", with(domain.PermSettingsRead, handlers.Security.SyncTime))
	api.GET("/compliance/report", with(domain.PermSettingsRead, handlers.Security.ComplianceReport))

	// Audit log
	api.GET("/audit-logs", with(domain.PermAuditRead, handlers.Audit.List))
	api.GET("/audit-logs/stats", with(domain.PermAuditRead, handlers.Audit.Stats))
	api.DELETE("/audit-logs", with(domain.PermAuditWrite, handlers.Audit.Delete))
	api.POST("/audit-logs/cache/purge", with(domain.PermAuditWrite, handlers.Audit.PurgeCache))
	api.POST("/audit-logs/{id}/rollback", with(domain.PermAuditRollback, handlers.Audit.Rollback))

	return r
}
