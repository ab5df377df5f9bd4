package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NeuralTrust/TrustBoundary/pkg/ratelimit"
	"github.com/NeuralTrust/TrustBoundary/pkg/sanitizer"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Metrics    MetricsConfig     `mapstructure:"metrics"`
	Redis      RedisConfig       `mapstructure:"redis"`
	Sanitizer  sanitizer.Options `mapstructure:"sanitizer"`
	RateLimit  RateLimitConfig   `mapstructure:"ratelimit"`
	Upload     UploadConfig      `mapstructure:"upload"`
	Encryption EncryptionConfig  `mapstructure:"encryption"`
	Audit      AuditConfig       `mapstructure:"audit"`
}

type ServerConfig struct {
	Port        int       `mapstructure:"port"`
	MetricsPort int       `mapstructure:"metrics_port"`
	Host        string    `mapstructure:"host"`
	TLS         TLSConfig `mapstructure:"tls"`
}

type MetricsConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	EnableLatency bool `mapstructure:"enable_latency"`
}

type RedisConfig struct {
	Host     string          `mapstructure:"host"`
	Port     int             `mapstructure:"port"`
	Password string          `mapstructure:"password"`
	DB       int             `mapstructure:"db"`
	TLS      ClientTLSConfig `mapstructure:"tls"`
}

type RateLimitConfig struct {
	// Backend is "redis" or "memory". Redis falls back to memory when the
	// server cannot be reached at startup.
	Backend            string                      `mapstructure:"backend"`
	BreakerTimeout     time.Duration               `mapstructure:"breaker_timeout"`
	BreakerMaxFailures uint32                      `mapstructure:"breaker_max_failures"`
	Presets            map[string]ratelimit.Policy `mapstructure:"-"`
}

type UploadConfig struct {
	MaxSizeBytes int `mapstructure:"max_size_bytes"`
}

type EncryptionConfig struct {
	MasterKey string `mapstructure:"master_key"`
}

type AuditConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Kafka   AuditKafkaConfig `mapstructure:"kafka"`
}

type AuditKafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    string `mapstructure:"port"`
	Topic   string `mapstructure:"topic"`
}

var globalConfig Config

// Load reads config.yaml from configPath (then ./config and .) with
// environment overrides. A missing file is not an error.
func Load(configPath string) error {
	cfg, err := LoadFrom(viper.New(), configPath)
	if err != nil {
		return err
	}
	globalConfig = *cfg
	return nil
}

func LoadFrom(v *viper.Viper, configPath string) (*Config, error) {
	setDefaultValues(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file config.yaml: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	presets, err := ratelimit.DecodePresets(v.GetStringMap("ratelimit.presets"))
	if err != nil {
		return nil, err
	}
	cfg.RateLimit.Presets = presets

	if cfg.Sanitizer.MaxLength <= 0 {
		cfg.Sanitizer.MaxLength = sanitizer.DefaultMaxLength
	}
	return &cfg, nil
}

func setDefaultValues(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.tls.disabled", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.enable_latency", true)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.tls.enabled", false)

	defaults := sanitizer.DefaultOptions()
	v.SetDefault("sanitizer.max_length", defaults.MaxLength)
	v.SetDefault("sanitizer.strip_html", defaults.StripHTML)
	v.SetDefault("sanitizer.normalize_unicode", defaults.NormalizeUnicode)
	v.SetDefault("sanitizer.detect_injection", defaults.DetectInjection)
	v.SetDefault("sanitizer.strict_mode", defaults.StrictMode)

	v.SetDefault("ratelimit.backend", "redis")
	v.SetDefault("ratelimit.breaker_timeout", 30*time.Second)
	v.SetDefault("ratelimit.breaker_max_failures", 5)

	v.SetDefault("upload.max_size_bytes", 8*1024*1024)

	v.SetDefault("encryption.master_key", "")

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.kafka.enabled", false)
	v.SetDefault("audit.kafka.port", "9092")
	v.SetDefault("audit.kafka.topic", "trustboundary.audit")
}

func GetConfig() *Config {
	return &globalConfig
}
