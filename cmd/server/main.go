package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dgallion1/epiprep/internal/api"
	"github.com/dgallion1/epiprep/internal/cache"
	"github.com/dgallion1/epiprep/internal/config"
	"github.com/dgallion1/epiprep/internal/metrics"
	"github.com/dgallion1/epiprep/internal/pipeline"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Initialize the result cache.
	results, err := cache.Open(ctx, cache.Config{
		Backend: cfg.CacheBackend,
		TTL:     cfg.CacheTTL,
		Redis: cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
	}, log)
	if err != nil {
		log.Error("cache unavailable", "backend", cfg.CacheBackend, "error", err)
		os.Exit(1)
	}

	// Initialize pipeline.
	runner := pipeline.NewRunner(results, cfg.CacheTTL, log, m)
	orch := pipeline.NewOrchestrator(pipeline.Options{
		WorkerCount:  cfg.WorkerCount,
		MaxQueueSize: cfg.MaxQueueSize,
		JobTTL:       cfg.JobTTL,
	}, runner, log, m)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, reg, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		if err := results.Close(); err != nil {
			log.Warn("cache close", "error", err)
		}
	}()

	log.Info("starting epiprep",
		"port", cfg.Port,
		"config_file", cfg.File,
		"cache", cfg.CacheBackend,
		"options", cfg.PreprocessOptions(),
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
