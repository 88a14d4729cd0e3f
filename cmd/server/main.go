package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/csvclean/internal/audit"
	"github.com/JonMunkholm/csvclean/internal/config"
	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/logging"
	"github.com/JonMunkholm/csvclean/internal/metrics"
	"github.com/JonMunkholm/csvclean/internal/session"
	"github.com/JonMunkholm/csvclean/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	recorder, pool, err := setupAudit(ctx, cfg)
	if err != nil {
		slog.Error("failed to set up audit log", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New(cfg.Metrics.Namespace)
	}

	store := session.NewMemoryStore(slog.Default(), cfg.Session.TTL, cfg.Session.Max)
	service := core.NewService(core.Deps{
		Store:   store,
		Audit:   recorder,
		Metrics: collector,
	}, core.OptionsFromConfig(cfg))

	server := web.NewServer(service, cfg, collector)

	// Background jobs stop with jobCtx
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartSessionSweeper(jobCtx, cfg.Session.SweepInterval)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.Status(); status.Limiter.Active > 0 {
			slog.Info("waiting for uploads and runs to complete", "active", status.Limiter.Active)
			if err := service.WaitForRuns(shutdownCtx); err != nil {
				slog.Warn("uploads and runs did not complete in time", "error", err)
			} else {
				slog.Info("all uploads and runs completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// setupAudit always logs audit entries and also writes them to PostgreSQL
// when a database URL is configured.
func setupAudit(ctx context.Context, cfg *config.Config) (audit.Recorder, *pgxpool.Pool, error) {
	logRecorder := audit.NewLogRecorder(slog.Default())
	if !cfg.Database.Enabled() {
		slog.Info("no database configured, audit entries go to the log only")
		return logRecorder, nil, nil
	}

	pool, err := audit.Connect(ctx, audit.PoolConfig{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return nil, nil, err
	}

	pg := audit.NewPgRecorder(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to audit database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to audit database")
	}
	return audit.Multi{logRecorder, pg}, pool, nil
}
