package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const defaultPingTimeout = 5 * time.Second

type Config struct {
	Host        string
	Port        int
	Password    string
	DB          int
	TLSConfig   *tls.Config
	PingTimeout time.Duration
}

// NewClient connects to redis and pings it once. The client is closed when the
// ping fails.
func NewClient(ctx context.Context, config Config, logger *logrus.Logger) (*redis.Client, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:      fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password:  config.Password,
		DB:        config.DB,
		TLSConfig: config.TLSConfig,
	})

	timeout := config.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.WithFields(logrus.Fields{
			"host":  config.Host,
			"port":  config.Port,
			"error": err.Error(),
		}).Error("failed to connect to redis")
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"host": config.Host,
		"port": config.Port,
		"db":   config.DB,
	}).Info("redis connected successfully")

	return redisClient, nil
}
