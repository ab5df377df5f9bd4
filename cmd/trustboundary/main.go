package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NeuralTrust/TrustBoundary/pkg/config"
	"github.com/NeuralTrust/TrustBoundary/pkg/dependency_container"
	infraLogger "github.com/NeuralTrust/TrustBoundary/pkg/infra/logger"
	"github.com/NeuralTrust/TrustBoundary/pkg/server"
	"github.com/NeuralTrust/TrustBoundary/pkg/server/router"
	"github.com/NeuralTrust/TrustBoundary/pkg/version"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	logger, logCloser := infraLogger.NewLogger("trustboundary")
	defer func() {
		_ = logCloser.Close()
	}()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config"
	}
	if err := config.Load(configPath); err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	cfg := config.GetConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := dependency_container.NewContainer(ctx, dependency_container.ContainerDI{
		Cfg:    cfg,
		Logger: logger,
	})
	if err != nil {
		logger.Fatalf("failed to initialize dependencies: %v", err)
	}
	defer container.Close(logger)

	srv := server.NewAPIServer(server.APIServerDI{
		Config: cfg,
		Logger: logger,
		Routers: []router.ServerRouter{
			router.NewAPIRouter(container.MiddlewareTransport, container.HandlerTransport),
		},
	})

	logger.WithField("version", version.Version).Info("starting " + version.AppName)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Run)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("server stopped with error")
		container.Close(logger)
		_ = logCloser.Close()
		os.Exit(1)
	}
	logger.Info("server gracefully stopped")
}
