package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/NeuralTrust/TrustBoundary/pkg/config"
	"github.com/NeuralTrust/TrustBoundary/pkg/infra/prometheus"
	"github.com/NeuralTrust/TrustBoundary/pkg/server/router"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	HealthPath = "/health"
	PingPath   = "/__/ping"
)

type Server interface {
	Run() error
	Shutdown(ctx context.Context) error
}

type BaseServer struct {
	Config     *config.Config
	Logger     *logrus.Logger
	Router     *fiber.App
	metricsApp *fiber.App
}

func NewBaseServer(cfg *config.Config, logger *logrus.Logger) *BaseServer {
	bodyLimit := cfg.Upload.MaxSizeBytes
	if bodyLimit <= 0 {
		bodyLimit = fiber.DefaultBodyLimit
	}

	r := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReduceMemoryUsage:     true,
		Network:               fiber.NetworkTCP,
		BodyLimit:             bodyLimit,
		ReadTimeout:           60 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
		StreamRequestBody:     true,
	})

	r.Server().NoDefaultServerHeader = true
	r.Server().NoDefaultDate = true

	return &BaseServer{
		Config: cfg,
		Logger: logger,
		Router: r,
	}
}

func (s *BaseServer) setupHealthCheck() {
	s.Router.Get(HealthPath, func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	s.Router.Get(PingPath, func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "pong",
		})
	})
}

func (s *BaseServer) WithRouters(routers ...router.ServerRouter) *BaseServer {
	for _, r := range routers {
		if err := r.BuildRoutes(s.Router); err != nil {
			s.Logger.WithError(err).Error("failed to build routes")
		}
	}
	return s
}

func (s *BaseServer) setupMetricsEndpoint() {
	if !s.Config.Metrics.Enabled {
		s.Logger.Info("prometheus metrics are disabled by configuration")
		return
	}
	if s.metricsApp != nil {
		return
	}

	s.metricsApp = fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	s.metricsApp.Use(recover.New())

	handler := fasthttpadaptor.NewFastHTTPHandler(prometheus.Handler())
	s.metricsApp.Get("/metrics", func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	})

	go func() {
		addr := fmt.Sprintf(":%d", s.Config.Server.MetricsPort)
		if err := s.metricsApp.Listen(addr); err != nil {
			if !strings.Contains(err.Error(), "address already in use") {
				s.Logger.WithError(err).Error("failed to start metrics server")
			}
		}
	}()
}

// listen serves on the configured address, with TLS unless it is disabled.
func (s *BaseServer) listen() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	tlsConfig, err := config.BuildTLSConfig(&s.Config.Server.TLS)
	if err != nil {
		return fmt.Errorf("failed to build server TLS config: %w", err)
	}

	ln, err := net.Listen(fiber.NetworkTCP, addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}

	s.Logger.WithFields(logrus.Fields{
		"addr": addr,
		"tls":  tlsConfig != nil,
	}).Info("starting server")
	return s.Router.Listener(ln)
}

func (s *BaseServer) Shutdown(ctx context.Context) error {
	if s.metricsApp != nil {
		if err := s.metricsApp.ShutdownWithContext(ctx); err != nil {
			s.Logger.WithError(err).Warn("failed to stop metrics server")
		}
	}
	return s.Router.ShutdownWithContext(ctx)
}
