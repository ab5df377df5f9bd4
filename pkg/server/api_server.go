package server

import (
	"github.com/NeuralTrust/TrustBoundary/pkg/config"
	"github.com/NeuralTrust/TrustBoundary/pkg/infra/prometheus"
	"github.com/NeuralTrust/TrustBoundary/pkg/server/router"
	"github.com/sirupsen/logrus"
)

type (
	APIServerDI struct {
		Config  *config.Config
		Logger  *logrus.Logger
		Routers []router.ServerRouter
	}
	APIServer struct {
		*BaseServer
	}
)

func NewAPIServer(di APIServerDI) *APIServer {
	prometheus.Initialize(prometheus.MetricsConfig{
		EnableLatency: di.Config.Metrics.EnableLatency,
		EnableProcess: di.Config.Metrics.Enabled,
	})

	s := &APIServer{BaseServer: NewBaseServer(di.Config, di.Logger)}
	s.setupHealthCheck()
	s.WithRouters(di.Routers...)
	return s
}

func (s *APIServer) Run() error {
	s.setupMetricsEndpoint()
	return s.listen()
}
