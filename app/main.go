package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mlesyk/gradpipe/app/api"
	"github.com/mlesyk/gradpipe/app/cfg"
	"github.com/mlesyk/gradpipe/app/database"
	"github.com/mlesyk/gradpipe/app/queue"
	"github.com/mlesyk/gradpipe/app/scrape"
	"github.com/mlesyk/gradpipe/app/sources"
	"github.com/mlesyk/gradpipe/app/tasks"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if c == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if c.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	// One-shot publish mode: enqueue a task and exit without starting the
	// worker. Used by cron jobs and for manual backfills.
	if c.Publish != "" {
		if err := publishOnce(c); err != nil {
			slog.Error("Publish failed", "kind", c.Publish, "error", err)
			os.Exit(1)
		}
		return
	}

	slog.Info("Starting worker", "version", c.Version)

	db, err := database.NewConnection()
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "schema_version", version, "dirty", dirty)

	admissionRepo := database.NewAdmissionRepository(db)
	watermarkRepo := database.NewWatermarkRepository(db)

	if c.SeedFile != "" {
		seeder := database.NewSeeder(db, watermarkRepo, c.TargetTable, c.IDKey)
		if err := seeder.Run(c.SeedFile); err != nil {
			slog.Error("Seed load failed", "file", c.SeedFile, "error", err)
			os.Exit(1)
		}
	}

	profile, err := sources.NewLoader(c.SourcesFile).Load()
	if err != nil {
		slog.Error("Failed to load source profile", "file", c.SourcesFile, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := tasks.NewRegistry(db, profile, scrape.NewHTTPClient())
	consumer := queue.NewConsumer(registry)

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		consumer.Run(ctx)
	}()

	scheduler := tasks.NewScheduler(queue.NewPublisher())
	if err := scheduler.Start(); err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	handler := api.NewHandler(admissionRepo, watermarkRepo)
	httpServer := &http.Server{
		Addr:         ":" + c.Port,
		Handler:      api.NewServer(handler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", c.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	slog.Info("Worker started", "queue", queue.QueueName)

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErrChan:
		slog.Error("HTTP server error", "error", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		slog.Warn("Consumer did not stop before shutdown deadline")
	}

	slog.Info("Worker shutdown complete")
}

func publishOnce(c *cfg.Cfg) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	publisher := queue.NewPublisher()

	switch queue.TaskKind(c.Publish) {
	case queue.KindScrapeNewData:
		payload := queue.ScrapePayload{DBName: c.DBName, MaxPages: c.MaxPages}
		return publisher.Publish(ctx, queue.KindScrapeNewData, payload)
	case queue.KindRecomputeAnalytics:
		return publisher.Publish(ctx, queue.KindRecomputeAnalytics, nil)
	default:
		return fmt.Errorf("unknown task kind %q", c.Publish)
	}
}
