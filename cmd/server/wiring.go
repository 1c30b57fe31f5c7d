package main

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	goRedis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/schoolerp/internal/cache"
	"github.com/fastygo/schoolerp/internal/config"
	"github.com/fastygo/schoolerp/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/schoolerp/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/schoolerp/internal/infrastructure/redis"
	"github.com/fastygo/schoolerp/internal/notifier"
	"github.com/fastygo/schoolerp/internal/services/lifecycle"
	"github.com/fastygo/schoolerp/repository"
	"github.com/fastygo/schoolerp/repository/memory"
	"github.com/fastygo/schoolerp/repository/postgres"
	redisRepo "github.com/fastygo/schoolerp/repository/redis"
	securityUC "github.com/fastygo/schoolerp/usecase/security"
)

// openStore returns the persistence layer for the configured driver and the health checks it needs.
func openStore(ctx context.Context, cfg *config.Config, manager *lifecycle.Manager, logger *zap.Logger) (repository.Store, []monitor.Check) {
	if cfg.Storage.Driver == "memory" {
		logger.Warn("using in-memory storage; settings are lost on restart")
		return memory.NewStore(), nil
	}

	if err := pgInfra.RunMigrations(cfg, logger); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}
	pool, err := pgInfra.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pgInfra.Close(pool, logger)
		return nil
	})
	return postgres.NewStore(pool), []monitor.Check{monitor.PostgresCheck(pool)}
}

// openRedis returns nil when Redis is disabled or unreachable; the service then runs on the local cache.
func openRedis(ctx context.Context, cfg *config.Config, manager *lifecycle.Manager, logger *zap.Logger) *goRedis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	client, err := redisInfra.NewClient(ctx, cfg.Redis, cfg.Cache.Timeout)
	if err != nil {
		logger.Warn("redis unavailable, falling back to local cache", zap.Error(err))
		return nil
	}
	manager.RegisterCloser("redis", client)
	return client
}

func newRedisCacheStore(client *goRedis.Client) cache.Store {
	return redisRepo.NewCacheStore(client)
}

// loadAWS returns nil when neither SNS notifications nor SMS delivery are enabled.
func loadAWS(ctx context.Context, cfg *config.Config, logger *zap.Logger) *sns.Client {
	if !cfg.HasSink("sns") && !cfg.Security.SMSEnabled {
		return nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Fatal("aws config failed", zap.Error(err))
	}
	return sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
		}
	})
}

func buildSinks(cfg *config.Config, redisClient *goRedis.Client, snsClient *sns.Client, manager *lifecycle.Manager, logger *zap.Logger) []notifier.Sink {
	var sinks []notifier.Sink
	for _, name := range cfg.Notifier.Sinks {
		switch name {
		case "redis":
			if redisClient == nil {
				logger.Warn("redis sink configured without redis; sink disabled")
				continue
			}
			sinks = append(sinks, notifier.NewRedisSink(redisClient))
		case "kafka":
			sink := notifier.NewKafkaSink(notifier.NewKafkaWriter(cfg.Notifier.KafkaBrokers, cfg.Notifier.KafkaTopic))
			manager.RegisterCloser("kafka", sink)
			sinks = append(sinks, sink)
		case "sns":
			sinks = append(sinks, notifier.NewSNSSink(snsClient, cfg.Notifier.SNSTopicARN))
		}
	}
	if len(sinks) == 0 {
		logger.Warn("no live notifier sinks; change events are not published")
	}
	return sinks
}

func buildOTPSenders(cfg *config.Config, snsClient *sns.Client, logger *zap.Logger) []securityUC.Sender {
	var senders []securityUC.Sender
	if cfg.Security.SendGridAPIKey != "" {
		senders = append(senders, securityUC.NewEmailSender(cfg.Security.SendGridAPIKey, cfg.AppName, cfg.Security.MailFrom))
	}
	if cfg.Security.SMSEnabled && snsClient != nil {
		senders = append(senders, securityUC.NewSMSSender(snsClient, cfg.Security.SMSSenderID))
	}
	if len(senders) == 0 {
		logger.Warn("no OTP delivery channel configured")
	}
	return senders
}

func hours(n int) time.Duration {
	return time.Duration(n) * time.Hour
}
