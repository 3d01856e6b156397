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

	"github.com/JonMunkholm/jsonlcopy/internal/compress"
	"github.com/JonMunkholm/jsonlcopy/internal/config"
	"github.com/JonMunkholm/jsonlcopy/internal/core"
	"github.com/JonMunkholm/jsonlcopy/internal/logging"
	"github.com/JonMunkholm/jsonlcopy/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"copy_max_concurrent", cfg.Copy.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"formats", core.Formats(),
	)
	slog.Debug("effective configuration", "config", cfg.String())

	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	// Apply pool configuration from config
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	// Connect to database
	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	limiter := core.NewCopyLimiter(cfg.Copy.MaxConcurrent, cfg.Copy.MaxWaitTime)
	service := core.NewService(pool, limiter, core.Options{
		Copy: core.CopyOptions{
			ChunkSize:        cfg.Copy.ChunkSize,
			MaxLineBytes:     cfg.Copy.MaxLineBytes,
			StrictTerminator: cfg.Copy.StrictTerminator,
			FlushBytes:       cfg.Copy.FlushBytes,
		},
		Timeout:     cfg.Copy.Timeout,
		HistorySize: cfg.Copy.HistorySize,
	})

	server := web.NewServer(service, cfg)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	if cfg.Export.Schedule != "" {
		codec, _ := compress.ParseType(cfg.Export.Compression) // checked by Validate
		scheduler, err := core.NewExportScheduler(service, core.ExportSchedule{
			Spec:   cfg.Export.Schedule,
			Tables: cfg.Export.Tables,
			Dir:    cfg.Export.Dir,
			Codec:  codec,
		})
		if err == nil {
			err = scheduler.Start(jobCtx)
		}
		if err != nil {
			slog.Error("failed to start export scheduler", "error", err)
			os.Exit(1)
		}
	}

	watchDone := make(chan struct{})
	if cfg.Watch.Dir != "" {
		watcher, err := core.NewImportWatcher(cfg.Watch.Dir, service, cfg.Watch.Debounce)
		if err != nil {
			slog.Error("failed to start import watcher", "error", err)
			os.Exit(1)
		}
		go func() {
			defer close(watchDone)
			watcher.Run(jobCtx)
		}()
	} else {
		close(watchDone)
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop accepting requests, then wait for copies still running
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		if active := limiter.ActiveCount(); active > 0 {
			slog.Info("waiting for copies to complete", "active", active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("copies did not complete in time", "error", err)
			} else {
				slog.Info("all copies completed")
			}
		}

		select {
		case <-watchDone:
		case <-shutdownCtx.Done():
			slog.Warn("import watcher did not stop in time")
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-watchDone
	slog.Info("server stopped")
}
