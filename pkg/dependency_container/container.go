package dependency_container

import (
	"context"
	"errors"
	"fmt"

	"github.com/NeuralTrust/TrustBoundary/pkg/config"
	"github.com/NeuralTrust/TrustBoundary/pkg/encryption"
	handlers "github.com/NeuralTrust/TrustBoundary/pkg/handlers/http"
	"github.com/NeuralTrust/TrustBoundary/pkg/infra/auditlogs"
	auditKafka "github.com/NeuralTrust/TrustBoundary/pkg/infra/auditlogs/kafka"
	"github.com/NeuralTrust/TrustBoundary/pkg/infra/breaker"
	"github.com/NeuralTrust/TrustBoundary/pkg/infra/cache"
	"github.com/NeuralTrust/TrustBoundary/pkg/middleware"
	"github.com/NeuralTrust/TrustBoundary/pkg/ratelimit"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Container struct {
	RedisClient         *redis.Client
	RateLimitStore      ratelimit.Store
	Limiter             *ratelimit.Limiter
	EncryptionService   *encryption.Service
	AuditLogsService    auditlogs.Service
	MiddlewareTransport *middleware.Transport
	HandlerTransport    handlers.HandlerTransport
}

type ContainerDI struct {
	Cfg    *config.Config
	Logger *logrus.Logger
	// NewRedisClient defaults to cache.NewClient.
	NewRedisClient func(ctx context.Context, cfg cache.Config, logger *logrus.Logger) (*redis.Client, error)
	// NewKafkaSink defaults to the confluent producer.
	NewKafkaSink func(cfg auditKafka.Config) (auditlogs.Sink, error)
}

func NewContainer(ctx context.Context, di ContainerDI) (*Container, error) {
	if di.Cfg == nil || di.Logger == nil {
		return nil, errors.New("config and logger are required")
	}
	if di.NewRedisClient == nil {
		di.NewRedisClient = cache.NewClient
	}
	if di.NewKafkaSink == nil {
		di.NewKafkaSink = func(cfg auditKafka.Config) (auditlogs.Sink, error) {
			return auditKafka.NewSink(cfg)
		}
	}

	c := &Container{}

	store, err := c.rateLimitStore(ctx, di)
	if err != nil {
		return nil, err
	}
	c.RateLimitStore = store
	c.Limiter = ratelimit.NewLimiter(store, di.Logger, &ratelimit.LimiterOpts{
		Presets: di.Cfg.RateLimit.Presets,
	})

	c.EncryptionService = encryption.NewService(di.Cfg.Encryption.MasterKey, di.Logger)

	sinks := []auditlogs.Sink{auditlogs.NewLogSink(di.Logger)}
	if di.Cfg.Audit.Enabled && di.Cfg.Audit.Kafka.Enabled {
		sink, err := di.NewKafkaSink(auditKafka.Config{
			Host:  di.Cfg.Audit.Kafka.Host,
			Port:  di.Cfg.Audit.Kafka.Port,
			Topic: di.Cfg.Audit.Kafka.Topic,
		})
		if err != nil {
			c.closeRedis(di.Logger)
			return nil, fmt.Errorf("failed to initialize audit kafka sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	c.AuditLogsService = auditlogs.NewService(di.Logger, c.EncryptionService, di.Cfg.Audit.Enabled, sinks...)

	c.MiddlewareTransport = &middleware.Transport{
		PanicRecoverMiddleware: middleware.NewPanicRecoverMiddleware(di.Logger),
		RequestIDMiddleware:    middleware.NewRequestIDMiddleware(nil),
		MetricsMiddleware:      middleware.NewMetricsMiddleware(),
		AICommandRateLimitMiddleware: middleware.NewRateLimitMiddleware(
			di.Logger, c.Limiter, ratelimit.ActionAICommand, &middleware.RateLimitOpts{Audit: c.AuditLogsService},
		),
		FileUploadRateLimitMiddleware: middleware.NewRateLimitMiddleware(
			di.Logger, c.Limiter, ratelimit.ActionFileUpload, &middleware.RateLimitOpts{Audit: c.AuditLogsService},
		),
	}

	c.HandlerTransport = &handlers.HandlerTransportDTO{
		SanitizeHandler: handlers.NewSanitizeHandler(handlers.SanitizeHandlerDeps{
			Logger:       di.Logger,
			Options:      di.Cfg.Sanitizer,
			AuditService: c.AuditLogsService,
		}),
		SanitizeSystemPromptHandler: handlers.NewSanitizeSystemPromptHandler(di.Logger, di.Cfg.Sanitizer),
		ValidateUploadHandler: handlers.NewValidateUploadHandler(handlers.ValidateUploadHandlerDeps{
			Logger:       di.Logger,
			MaxSizeBytes: int64(di.Cfg.Upload.MaxSizeBytes),
			AuditService: c.AuditLogsService,
		}),
		RateLimitStatusHandler: handlers.NewRateLimitStatusHandler(di.Logger, c.Limiter),
		GetVersionHandler:      handlers.NewGetVersionHandler(),
	}

	return c, nil
}

// rateLimitStore returns a breaker-guarded redis store, or the in-process
// store when redis is not configured or cannot be reached.
func (c *Container) rateLimitStore(ctx context.Context, di ContainerDI) (ratelimit.Store, error) {
	cfg := di.Cfg
	if cfg.RateLimit.Backend == BackendMemory {
		di.Logger.Info("using in-memory rate limit store")
		return ratelimit.NewMemoryStore(), nil
	}
	if cfg.RateLimit.Backend != BackendRedis {
		return nil, fmt.Errorf("unknown rate limit backend %q", cfg.RateLimit.Backend)
	}

	tlsConfig, err := config.BuildClientTLSConfig(cfg.Redis.TLS)
	if err != nil {
		return nil, fmt.Errorf("failed to build redis TLS config: %w", err)
	}
	client, err := di.NewRedisClient(ctx, cache.Config{
		Host:      cfg.Redis.Host,
		Port:      cfg.Redis.Port,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		TLSConfig: tlsConfig,
	}, di.Logger)
	if err != nil {
		di.Logger.WithError(err).Warn("redis unavailable, falling back to in-memory rate limit store")
		return ratelimit.NewMemoryStore(), nil
	}
	c.RedisClient = client

	cb := breaker.NewCircuitBreaker("ratelimit-redis", cfg.RateLimit.BreakerTimeout, cfg.RateLimit.BreakerMaxFailures)
	return ratelimit.NewBreakerStore(ratelimit.NewRedisStore(client), cb), nil
}

func (c *Container) closeRedis(logger *logrus.Logger) {
	if c.RedisClient == nil {
		return
	}
	if err := c.RedisClient.Close(); err != nil {
		logger.WithError(err).Warn("failed to close redis client")
	}
}

// Close flushes audit sinks and releases the redis connection.
func (c *Container) Close(logger *logrus.Logger) {
	if c.AuditLogsService != nil {
		if err := c.AuditLogsService.Close(); err != nil {
			logger.WithError(err).Warn("failed to close audit sinks")
		}
	}
	c.closeRedis(logger)
}
