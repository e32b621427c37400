//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pgEdge/pgedge-rag-chat/internal/config"
	"github.com/pgEdge/pgedge-rag-chat/internal/events"
	"github.com/pgEdge/pgedge-rag-chat/internal/metrics"
	"github.com/pgEdge/pgedge-rag-chat/internal/pipeline"
	"github.com/pgEdge/pgedge-rag-chat/internal/ratelimit"
	"github.com/pgEdge/pgedge-rag-chat/internal/server"
)

// Version information - set via ldflags during build
var (
	version   = "1.0.0-alpha1"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help message")
		configPath  = flag.String("config", "", "Path to configuration file")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `pgEdge RAG Chat - conversational retrieval-augmented generation over websockets

Usage:
    pgedge-rag-chat [options]

Options:
    -config string
        Path to configuration file. If not specified, searches:
        1. /etc/pgedge/pgedge-rag-chat.yaml
        2. pgedge-rag-chat.yaml (in binary directory)
        Without a file, defaults and environment variables are used.

    -version
        Show version information and exit

    -help
        Show this help message and exit

For more information, visit: https://github.com/pgEdge/pgedge-rag-chat
`)
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		fmt.Printf("pgEdge RAG Chat\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Build Time: %s\n", buildTime)
		fmt.Printf("  Git Commit: %s\n", gitCommit)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("configuration loaded",
		"completion", cfg.CompletionLLM.Provider,
		"embedding", cfg.EmbeddingLLM.Provider,
		"rerank", cfg.Rerank.Provider,
		"vector_store", cfg.VectorStore.Provider)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	observers := []pipeline.TurnObserver{m}
	opts := []server.Option{server.WithMetrics(m)}

	if cfg.NATS.Enabled {
		nc, err := events.Connect(ctx, cfg.NATS, logger)
		if err != nil {
			return err
		}
		defer nc.Close()

		pub := events.NewPublisher(nc.JetStream(), cfg.NATS.Subject, events.DefaultQueueSize, logger)
		defer func() {
			// Flush queued events before the connection drains.
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := pub.Close(flushCtx); err != nil {
				logger.Warn("failed to flush turn events", "error", err)
			}
		}()
		observers = append(observers, pub)
	}

	if cfg.Redis.Enabled {
		rc, err := ratelimit.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func() {
			if err := rc.Close(); err != nil {
				logger.Error("failed to close redis client", "error", err)
			}
		}()
		opts = append(opts, server.WithRateLimiter(ratelimit.New(rc, cfg.RateLimit, logger)))
		logger.Info("connection rate limiting enabled",
			"max", cfg.RateLimit.MaxConnections,
			"window", cfg.RateLimit.Window)
	}

	// Create pipeline manager
	pm, err := pipeline.NewManager(ctx, pipeline.ManagerConfig{
		Config:    cfg,
		Logger:    logger,
		Observers: observers,
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline manager: %w", err)
	}
	defer func() {
		if err := pm.Close(); err != nil {
			logger.Error("failed to close pipeline manager", "error", err)
		}
	}()

	// Create and start server
	srv := server.New(cfg, pm, logger, opts...)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	}
}
