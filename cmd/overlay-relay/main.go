package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/zhenyouluo/video-text-relay/internal/config"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (.yaml or .toml)")
	uri := flag.String("uri", "", "Source URI (overrides source.uri)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Setup structured logger
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slog.Error("failed to load config", "error", err, "path", *configPath)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *uri != "" {
		cfg.Source.URI = *uri
	}
	if cfg.Source.URI == "" && flag.NArg() > 0 {
		cfg.Source.URI = flag.Arg(0)
	}

	slog.Info("starting overlay relay",
		"config", *configPath,
		"instance_id", cfg.InstanceID,
		"debug", *debug,
	)

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	svc, err := newService(cfg)
	if err != nil {
		slog.Error("failed to create relay service", "error", err)
		os.Exit(1)
	}

	if err := svc.Start(ctx); err != nil {
		slog.Error("failed to start relay service", "error", err)
		svc.Shutdown(context.Background())
		os.Exit(1)
	}

	// Wait for shutdown signal or the relay stopping on its own
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	case <-svc.Done():
		if err := svc.Err(); err != nil {
			slog.Error("relay stopped", "error", err)
		} else {
			slog.Info("relay stopped (end of stream)")
		}
	}

	// Graceful shutdown
	shutdownTimeout := svc.ShutdownTimeout()
	slog.Info("shutting down gracefully", "timeout", shutdownTimeout)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := svc.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
		os.Exit(1)
	}

	if err := svc.Err(); err != nil {
		os.Exit(1)
	}

	slog.Info("overlay relay stopped successfully")
}
