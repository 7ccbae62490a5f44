// Fily Server
//
// Features:
// - Path-confined file browsing, upload and download
// - Directory downloads as streamed zip archives
// - JWT authentication with optional OIDC token validation
// - Prometheus metrics & structured logging (zap)
// - Embedded web app
package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fily/fily/internal/api"
	"github.com/fily/fily/internal/auth"
	"github.com/fily/fily/internal/config"
	"github.com/fily/fily/internal/fsops"
	"github.com/fily/fily/internal/logging"
	"github.com/fily/fily/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("Fily Server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr),
		zap.String("data_dir", cfg.DataDir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logging.Info("connecting to PostgreSQL...")
	store, err := auth.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal("database connection failed", zap.Error(err))
	}
	defer store.Close()

	if dir := findMigrationsDir(); dir != "" {
		logging.Info("running migrations...", zap.String("dir", dir))
		if err := store.Migrate(dir); err != nil {
			logging.Fatal("migration failed", zap.Error(err))
		}
	}

	authHandler := auth.New(store, auth.Options{
		JWTSecret:         cfg.JWTSecret,
		TokenTTL:          time.Duration(cfg.TokenTTLHours) * time.Hour,
		AllowRegistration: cfg.AllowRegistration,
	})
	if err := authHandler.EnsureDefaultAdmin(ctx); err != nil {
		logging.Error("failed to ensure default admin", zap.Error(err))
	}

	if cfg.OIDCIssuerURL != "" {
		provider, err := auth.NewOIDCProvider(ctx, auth.OIDCConfig{
			IssuerURL:  cfg.OIDCIssuerURL,
			ClientID:   cfg.OIDCClientID,
			AdminClaim: cfg.OIDCAdminClaim,
			AdminValue: cfg.OIDCAdminValue,
		})
		if err != nil {
			logging.Fatal("OIDC provider init failed", zap.Error(err))
		}
		authHandler.SetOIDCProvider(provider)
		logging.Info("OIDC token validation enabled", zap.String("issuer", cfg.OIDCIssuerURL))
	}

	root, err := fsops.OpenRoot(cfg.DataDir)
	if err != nil {
		logging.Fatal("data directory init failed", zap.Error(err))
	}

	srv := api.NewServer(root, authHandler, cfg.MaxUploadSize)

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	useTLS := cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""
	if useTLS {
		httpServer.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		httpServer.Shutdown(shutdownCtx)
		metricsServer.Close()
	}()

	if useTLS {
		logging.Info("server listening (TLS 1.3)",
			zap.String("addr", cfg.ListenAddr),
			zap.String("cert", cfg.TLSCertFile))
		if err := httpServer.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile); err != http.ErrServerClosed {
			logging.Fatal("server error", zap.Error(err))
		}
	} else {
		logging.Info("server listening (HTTP)", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Fatal("server error", zap.Error(err))
		}
	}
}

func findMigrationsDir() string {
	candidates := []string{
		"migrations",
		"../migrations",
	}

	exe, _ := os.Executable()
	if exe != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "migrations"))
	}

	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}
