package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
)

// TLSConfig is the listener side of the API server.
type TLSConfig struct {
	Disabled            bool     `mapstructure:"disabled"`
	CertFile            string   `mapstructure:"cert_file"`
	KeyFile             string   `mapstructure:"key_file"`
	CACert              string   `mapstructure:"ca_cert"`
	EnableMTLS          bool     `mapstructure:"enable_mtls"`
	DisableSystemCAPool bool     `mapstructure:"disable_system_ca_pool"`
	MaxVersion          string   `mapstructure:"max_version"`
	CipherSuites        []uint16 `mapstructure:"cipher_suites"`
	CurvePreferences    []uint16 `mapstructure:"curve_preferences"`
}

// ClientTLSConfig is used for outbound connections such as redis.
type ClientTLSConfig struct {
	Enabled                  bool   `mapstructure:"enabled"`
	CACert                   string `mapstructure:"ca_cert"`
	CertFile                 string `mapstructure:"cert_file"`
	KeyFile                  string `mapstructure:"key_file"`
	DisableSystemCAPool      bool   `mapstructure:"disable_system_ca_pool"`
	AllowInsecureConnections bool   `mapstructure:"allow_insecure_connections"`
	MaxVersion               string `mapstructure:"max_version"`
}

func BuildTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	if cfg == nil || cfg.Disabled {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(resolvePath(cfg.CertFile), resolvePath(cfg.KeyFile))
	if err != nil {
		return nil, fmt.Errorf("load X509 key pair: %w", err)
	}

	rootCAs, err := certPool(cfg.DisableSystemCAPool, cfg.CACert)
	if err != nil {
		return nil, err
	}

	var curvePrefs []tls.CurveID
	for _, c := range cfg.CurvePreferences {
		curvePrefs = append(curvePrefs, tls.CurveID(c))
	}

	config := &tls.Config{
		Certificates:     []tls.Certificate{cert},
		MinVersion:       tls.VersionTLS12,
		MaxVersion:       tlsVersion(cfg.MaxVersion),
		CurvePreferences: curvePrefs,
		CipherSuites:     cfg.CipherSuites,
		ClientCAs:        rootCAs,
	}

	if cfg.EnableMTLS {
		config.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return config, nil
}

func BuildClientTLSConfig(cfg ClientTLSConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var certificates []tls.Certificate
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(resolvePath(cfg.CertFile), resolvePath(cfg.KeyFile))
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate/key: %w", err)
		}
		certificates = append(certificates, cert)
	}

	rootCAs, err := certPool(cfg.DisableSystemCAPool, cfg.CACert)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		RootCAs:            rootCAs,
		Certificates:       certificates,
		InsecureSkipVerify: cfg.AllowInsecureConnections, // #nosec G402
		MinVersion:         tls.VersionTLS12,
		MaxVersion:         tlsVersion(cfg.MaxVersion),
	}, nil
}

func certPool(disableSystem bool, caCert string) (*x509.CertPool, error) {
	var pool *x509.CertPool
	if disableSystem {
		pool = x509.NewCertPool()
	} else {
		var err error
		pool, err = x509.SystemCertPool()
		if err != nil {
			return nil, fmt.Errorf("failed to load system CA pool: %w", err)
		}
	}

	if caCert != "" {
		caBytes, err := os.ReadFile(resolvePath(caCert)) // #nosec G304
		if err != nil {
			return nil, fmt.Errorf("read CA cert: %w", err)
		}
		if ok := pool.AppendCertsFromPEM(caBytes); !ok {
			return nil, fmt.Errorf("failed to append CA certificate from %s", caCert)
		}
	}
	return pool, nil
}

// resolvePath cleans the path; relative paths are resolved from the working
// directory by the os package.
func resolvePath(path string) string {
	return filepath.Clean(path)
}

func tlsVersion(version string) uint16 {
	switch version {
	case "TLS12":
		return tls.VersionTLS12
	case "TLS13":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS13
	}
}
