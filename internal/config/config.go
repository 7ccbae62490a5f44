// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Sandbox root all file operations are confined to.
	DataDir string

	// Database (user accounts)
	DatabaseURL string

	// TLS (optional; if both set, server uses HTTPS)
	TLSCertFile string
	TLSKeyFile  string

	// Auth
	JWTSecret         string
	TokenTTLHours     int
	AllowRegistration bool

	// OIDC (optional; accept bearer tokens from an external issuer)
	OIDCIssuerURL  string
	OIDCClientID   string
	OIDCAdminClaim string
	OIDCAdminValue string

	// Uploads
	MaxUploadSize int64
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:        envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr:       envOr("METRICS_ADDR", ":9090"),
		LogLevel:          envOr("LOG_LEVEL", "info"),
		LogFormat:         envOr("LOG_FORMAT", "json"),
		DataDir:           envOr("DATA_DIR", "/data/files"),
		DatabaseURL:       envOr("DATABASE_URL", ""),
		TLSCertFile:       envOr("TLS_CERT_FILE", ""),
		TLSKeyFile:        envOr("TLS_KEY_FILE", ""),
		JWTSecret:         envOr("JWT_SECRET", ""),
		TokenTTLHours:     envInt("TOKEN_TTL_HOURS", 24*7),
		AllowRegistration: envBool("ALLOW_REGISTRATION", true),
		OIDCIssuerURL:     envOr("OIDC_ISSUER_URL", ""),
		OIDCClientID:      envOr("OIDC_CLIENT_ID", ""),
		OIDCAdminClaim:    envOr("OIDC_ADMIN_CLAIM", "is_admin"),
		OIDCAdminValue:    envOr("OIDC_ADMIN_VALUE", "true"),
		MaxUploadSize:     envInt64("MAX_UPLOAD_SIZE", 100*1024*1024), // 100MB default
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}
