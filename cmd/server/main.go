package main

import (
	"context"
	"log"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/schoolerp/api/handler"
	"github.com/fastygo/schoolerp/internal/cache"
	"github.com/fastygo/schoolerp/internal/config"
	"github.com/fastygo/schoolerp/internal/infrastructure/monitor"
	"github.com/fastygo/schoolerp/internal/infrastructure/outbox"
	"github.com/fastygo/schoolerp/internal/middleware"
	"github.com/fastygo/schoolerp/internal/notifier"
	"github.com/fastygo/schoolerp/internal/ratelimit"
	"github.com/fastygo/schoolerp/internal/router"
	"github.com/fastygo/schoolerp/internal/services"
	"github.com/fastygo/schoolerp/internal/services/lifecycle"
	"github.com/fastygo/schoolerp/internal/timesync"
	"github.com/fastygo/schoolerp/internal/validation"
	"github.com/fastygo/schoolerp/pkg/httpcontext"
	"github.com/fastygo/schoolerp/pkg/logger"
	auditUC "github.com/fastygo/schoolerp/usecase/audit"
	securityUC "github.com/fastygo/schoolerp/usecase/security"
	settingsUC "github.com/fastygo/schoolerp/usecase/settings"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:       cfg.Logger.Level,
		Encoding:    cfg.Logger.Encoding,
		Service:     cfg.AppName,
		Environment: cfg.Environment,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	store, checks := openStore(appCtx, cfg, manager, zapLogger)

	redisClient := openRedis(appCtx, cfg, manager, zapLogger)
	var cacheStore cache.Store
	if redisClient != nil {
		cacheStore = newRedisCacheStore(redisClient)
		checks = append(checks, monitor.RedisCheck(redisClient))
	} else {
		local := cache.NewLocalStore(cfg.Cache.LocalCapacity)
		manager.RegisterStop("local_cache", local.Close)
		cacheStore = local
	}
	cacheLayer := cache.New(cacheStore, cfg.Cache.Timeout, zapLogger)

	outboxStore, err := outbox.Open(cfg.Outbox.Path, "settings_events")
	if err != nil {
		zapLogger.Fatal("failed to open outbox", zap.Error(err))
	}
	manager.RegisterCloser("outbox", outboxStore)

	snsClient := loadAWS(appCtx, cfg, zapLogger)
	sinks := buildSinks(cfg, redisClient, snsClient, manager, zapLogger)
	changeNotifier := notifier.New(sinks, outboxStore, cfg.Notifier.Timeout, zapLogger)

	mon := monitor.New(checks, outboxStore, 0, zapLogger)
	mon.Start()
	manager.RegisterStop("monitor", mon.Stop)

	outboxProcessor := services.NewOutboxProcessor(
		outboxStore,
		mon,
		changeNotifier,
		zapLogger,
		services.ProcessorConfig{
			Interval:   cfg.Outbox.SyncInterval,
			BatchSize:  cfg.Outbox.BatchSize,
			MaxRetries: cfg.Outbox.MaxRetry,
			Retention:  hours(cfg.Outbox.RetentionHours),
		},
	)
	outboxProcessor.Start()
	manager.Register("outbox_processor", func(ctx context.Context) error {
		outboxProcessor.Stop(ctx)
		return nil
	})

	limiter := ratelimit.New(cacheLayer, zapLogger)
	validator := validation.New()

	settingsUseCase := settingsUC.New(store, cacheLayer, changeNotifier, validator, zapLogger,
		settingsUC.WithSettingsTTL(cfg.Cache.SettingsTTL))
	if err := settingsUseCase.SeedDefaultRoles(appCtx); err != nil {
		zapLogger.Fatal("failed to seed default roles", zap.Error(err))
	}

	securityUseCase := securityUC.New(
		settingsUseCase,
		store.OTP(),
		limiter,
		buildOTPSenders(cfg, snsClient, zapLogger),
		timesync.NewSyncer(timesync.NTPQuerier{Timeout: cfg.Time.NTPTimeout}, zapLogger),
		securityUC.Config{
			MasterKey:      cfg.Security.EncryptionKey,
			OTPTTL:         cfg.Security.OTPTTL,
			OTPMaxAttempts: cfg.Security.OTPMaxAttempts,
			OTPPerHour:     cfg.RateLimit.OTPPerHour,
			NTPServers:     cfg.Time.NTPServers,
		},
		zapLogger,
	)

	auditUseCase := auditUC.New(store, cacheLayer, limiter, settingsUseCase, auditUC.Limits{
		QueriesPerHour: cfg.RateLimit.AuditPerHour,
		StatsPerHour:   cfg.RateLimit.AuditStatsPerHour,
	}, zapLogger).WithTTL(cfg.Cache.AuditTTL)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Settings: apiHandler.NewSettingsHandler(settingsUseCase, ctxAdapter, zapLogger),
		Security: apiHandler.NewSecurityHandler(securityUseCase, ctxAdapter, zapLogger),
		Audit:    apiHandler.NewAuditHandler(auditUseCase, ctxAdapter, zapLogger),
		Health:   apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(cfg.JWT.Secret, cfg.JWT.Issuer, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:            r.Handler,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		Concurrency:        cfg.HTTP.MaxConn,
		Name:               cfg.AppName,
		MaxRequestBodySize: 4 << 20,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("storage", cfg.Storage.Driver),
			zap.Bool("redis", redisClient != nil),
			zap.Strings("sinks", cfg.Notifier.Sinks))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
