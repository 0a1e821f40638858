package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/tally/internal/activity"
	"github.com/dukerupert/tally/internal/backup"
	"github.com/dukerupert/tally/internal/config"
	"github.com/dukerupert/tally/internal/database"
	"github.com/dukerupert/tally/internal/logging"
	"github.com/dukerupert/tally/internal/server"
	"github.com/dukerupert/tally/internal/store"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Debug {
		slog.Warn("debug mode: verification codes are returned in API responses")
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var sinks []activity.Sink
	if cfg.AMQPURL != "" {
		amqpSink, err := activity.NewAMQPSink(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			slog.Error("failed to connect activity broker", "error", err)
			os.Exit(1)
		}
		defer amqpSink.Close()
		sinks = append(sinks, amqpSink)
		slog.Info("publishing activity", "exchange", cfg.AMQPExchange)
	}

	srv, err := server.New(db, cfg, reg, sinks, logger)
	if err != nil {
		slog.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				srv.Cleanup(now)
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	backups := backup.NewManager(backup.FromConfig(cfg), db, store.NewBackupStore(db), logger.With("component", "backup"))
	if backups.Enabled() {
		backups.Start(cleanupCtx)
		slog.Info("backups enabled", "bucket", cfg.BackupBucket, "interval", cfg.BackupInterval)
	}

	go func() {
		slog.Info("tally starting", "addr", ":"+cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cleanupCancel()
	backups.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
