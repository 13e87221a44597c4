package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"stockroom/internal/logging"
	"stockroom/internal/shared/config"
	"stockroom/internal/shared/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.NewJSON(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry (if enabled)
	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  cfg.Telemetry.Environment,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  cfg.Telemetry.MetricsPort,
		}, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(shutdownCtx); err != nil {
				logger.Error(shutdownCtx, "telemetry shutdown failed", "error", err)
			}
		}()
	}

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	g, gctx := errgroup.WithContext(ctx)

	// Start the low stock alert watcher (if enabled)
	if deps.AlertWatcher != nil {
		deps.AlertDispatcher.Start()
		defer deps.AlertDispatcher.Shutdown(10 * time.Second)

		g.Go(func() error {
			for {
				err := deps.AlertWatcher.Run(gctx)
				if err == nil {
					return nil
				}
				logger.Error(gctx, "stock alert watcher stopped, restarting", "error", err)
				select {
				case <-gctx.Done():
					return nil
				case <-time.After(5 * time.Second):
				}
			}
		})
	}

	handler := SetupRoutes(deps, cfg, logger)

	errc := make(chan error, 1)
	srv, redirectSrv := StartServers(gctx, NewServerConfigFromConfig(handler, cfg), logger, errc)

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case err := <-errc:
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	<-gctx.Done()
	GracefulShutdown(srv, redirectSrv, logger, 30*time.Second)

	return g.Wait()
}
