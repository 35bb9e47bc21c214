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
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
	"github.com/JonMunkholm/catalogimport/internal/config"
	"github.com/JonMunkholm/catalogimport/internal/history"
	"github.com/JonMunkholm/catalogimport/internal/ingest"
	"github.com/JonMunkholm/catalogimport/internal/logging"
	"github.com/JonMunkholm/catalogimport/internal/web"
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

	aliases := catalog.DefaultAliases()
	if cfg.Convert.AliasFile != "" {
		aliases, err = catalog.LoadAliasFile(cfg.Convert.AliasFile, aliases)
		if err != nil {
			slog.Error("failed to load alias file", "error", err)
			os.Exit(1)
		}
		slog.Info("loaded header aliases", "file", cfg.Convert.AliasFile)
	}

	ctx := context.Background()

	var (
		pool  *pgxpool.Pool
		store *history.Store
	)
	if cfg.Database.Enabled() {
		pool, err = connect(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		store = history.NewStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to create history table", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("DATABASE_URL not set, conversion history disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := ingest.NewMetrics(reg)

	opts := ingest.Options{
		Aliases:              aliases,
		MaxFileSize:          cfg.Convert.MaxFileSize,
		MaxReportedErrors:    cfg.Convert.MaxReportedErrors,
		ContextCheckInterval: cfg.Convert.ContextCheckInterval,
		Metrics:              metrics,
	}
	deps := web.Deps{
		Limiter: ingest.NewLimiter(cfg.Convert.MaxConcurrent, cfg.Convert.MaxWaitTime, metrics),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}
	// Typed nils must not reach the optional interfaces.
	if store != nil {
		opts.Recorder = store
		deps.History = store
		deps.DB = pool
	}
	deps.Service = ingest.NewService(opts)

	server := web.NewServer(cfg, deps)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	if store != nil {
		go history.StartRetention(jobCtx, store, history.RetentionConfig{
			MaxAge:   time.Duration(cfg.Database.RetentionDays) * 24 * time.Hour,
			Interval: cfg.Database.PruneInterval,
		})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := deps.Limiter.Status(); status.Active > 0 {
			slog.Info("waiting for conversions to complete", "active", status.Active)
			if err := deps.Limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("conversions did not complete in time", "error", err)
			} else {
				slog.Info("all conversions completed")
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
	<-done
	slog.Info("server stopped")
}

// connect opens and verifies the history database pool.
func connect(ctx context.Context, dbCfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dbCfg.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(dbCfg.MaxConns)
	poolConfig.MinConns = int32(dbCfg.MinConns)
	poolConfig.MaxConnLifetime = dbCfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = dbCfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(dbCfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
