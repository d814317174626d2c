// Talon - Fraud-graph analytics for P2P payment networks.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opensource-finance/talon/internal/api"
	"github.com/opensource-finance/talon/internal/bus"
	"github.com/opensource-finance/talon/internal/cache"
	"github.com/opensource-finance/talon/internal/dataset"
	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/engine"
	"github.com/opensource-finance/talon/internal/graphstore"
	"github.com/opensource-finance/talon/internal/ingest"
	"github.com/opensource-finance/talon/internal/metrics"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Load configuration
	cfg := loadConfig()

	// Initialize structured logger
	setupLogger(cfg.Logging)

	// Log startup
	slog.Info("starting talon",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	slog.Info("configuration loaded",
		"graph", cfg.Graph.Backend,
		"dataset", cfg.Dataset.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"ingest", cfg.Ingest.Enabled,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize metrics
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// Initialize graph store
	store, err := graphstore.New(cfg.Graph)
	if err != nil {
		slog.Error("failed to initialize graph store", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("graph store initialized", "backend", cfg.Graph.Backend)

	// Initialize dataset store
	loader, err := dataset.OpenSQL(cfg.Dataset)
	if err != nil {
		slog.Error("failed to initialize dataset store", "error", err)
		os.Exit(1)
	}
	defer loader.Close()
	slog.Info("dataset store initialized", "driver", cfg.Dataset.Driver)

	// Initialize cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize event bus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize analysis service
	svc, err := engine.New(cfg.Analysis, store, busImpl, cacheImpl, collector)
	if err != nil {
		slog.Error("failed to initialize analysis service", "error", err)
		os.Exit(1)
	}
	slog.Info("analysis service initialized",
		"threshold", cfg.Analysis.Threshold,
		"alert_rule", cfg.Analysis.AlertRule,
	)

	// Initialize Kafka ingestion (cluster profile)
	var consumer *ingest.Consumer
	if cfg.Ingest.Enabled {
		consumer, err = ingest.NewConsumer(cfg.Ingest, svc, collector)
		if err != nil {
			slog.Error("failed to initialize ingest consumer", "error", err)
			os.Exit(1)
		}
		if err := consumer.Start(); err != nil {
			slog.Error("failed to start ingest consumer", "error", err)
			os.Exit(1)
		}
		slog.Info("ingest consumer started",
			"brokers", cfg.Ingest.Brokers,
			"group", cfg.Ingest.GroupID,
		)
	}

	// Initialize server
	srv := api.NewServer(cfg.Server, svc, store, loader, cacheImpl, busImpl, collector, registry, Version)

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("talon is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop the ingest consumer first so no pass starts mid-shutdown
	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			slog.Error("failed to stop ingest consumer", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("talon shutdown complete")
}

// loadConfig builds the configuration: the profile picks the base
// (single-node default or cluster), then TALON_* environment variables
// override individual settings. No other component reads the
// environment.
func loadConfig() *domain.Config {
	cfg := domain.DefaultConfig()
	if os.Getenv("TALON_PROFILE") == "cluster" {
		cfg = domain.ClusterConfig()
	}

	if v := os.Getenv("TALON_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("TALON_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TALON_GRAPH_BACKEND"); v != "" {
		cfg.Graph.Backend = v
	}
	if v := os.Getenv("TALON_NEO4J_URI"); v != "" {
		cfg.Graph.Neo4jURI = v
	}
	if v := os.Getenv("TALON_NEO4J_USER"); v != "" {
		cfg.Graph.Neo4jUser = v
	}
	if v := os.Getenv("TALON_NEO4J_PASSWORD"); v != "" {
		cfg.Graph.Neo4jPassword = v
	}
	if v := os.Getenv("TALON_DATASET_DRIVER"); v != "" {
		cfg.Dataset.Driver = v
	}
	if v := os.Getenv("TALON_SQLITE_PATH"); v != "" {
		cfg.Dataset.SQLitePath = v
	}
	if v := os.Getenv("TALON_POSTGRES_HOST"); v != "" {
		cfg.Dataset.PostgresHost = v
	}
	if v := os.Getenv("TALON_POSTGRES_USER"); v != "" {
		cfg.Dataset.PostgresUser = v
	}
	if v := os.Getenv("TALON_POSTGRES_PASSWORD"); v != "" {
		cfg.Dataset.PostgresPassword = v
	}
	if v := os.Getenv("TALON_POSTGRES_DB"); v != "" {
		cfg.Dataset.PostgresDB = v
	}
	if v := os.Getenv("TALON_CACHE_TYPE"); v != "" {
		cfg.Cache.Type = v
	}
	if v := os.Getenv("TALON_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("TALON_BUS_TYPE"); v != "" {
		cfg.EventBus.Type = v
	}
	if v := os.Getenv("TALON_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("TALON_KAFKA_BROKERS"); v != "" {
		cfg.Ingest.Enabled = true
		cfg.Ingest.Brokers = strings.Split(v, ",")
		if cfg.Ingest.GroupID == "" {
			cfg.Ingest.GroupID = "talon-ingest"
		}
	}
	if v := os.Getenv("TALON_ALERT_RULE"); v != "" {
		cfg.Analysis.AlertRule = v
	}
	if v := os.Getenv("TALON_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Analysis.Threshold = f
		}
	}
	if v := os.Getenv("TALON_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TALON_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	return cfg
}

// setupLogger installs the process-wide slog handler.
func setupLogger(cfg domain.LoggingConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 TALON                    ║")
	fmt.Println("  ║      Fraud-Graph Analytics Engine         ║")
	fmt.Println("  ║         Follow the money.                 ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Graph:    %s\n", cfg.Graph.Backend)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /analyze          - Run an analysis pass")
	fmt.Println("    GET  /report           - Full report of the last pass")
	fmt.Println("    POST /query            - Point query against the last pass")
	fmt.Println("    POST /dataset/generate - Generate and stage a synthetic dataset")
	fmt.Println("    GET  /rule             - Active alert rule expression")
	fmt.Println("    GET  /health           - Health check")
	fmt.Println("    GET  /metrics          - Prometheus metrics")
	fmt.Println()
}
