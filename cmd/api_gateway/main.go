package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/provenance-ledger/internal/api_gateway"
	"github.com/provenance-ledger/internal/api_gateway/service"
	"github.com/provenance-ledger/internal/config"
	"github.com/provenance-ledger/internal/data"
	"github.com/provenance-ledger/internal/domain/shared"
	"github.com/provenance-ledger/internal/logger"
	"github.com/provenance-ledger/internal/telemetry_processor/outbox_poller"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize storage adapters with app context
	backends, err := data.Open(appCtx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize storage", "error", err, "driver", cfg.Storage.Driver)
		os.Exit(1)
	}

	// Initialize services
	core := backends.Core(cfg)
	retry := shared.RetryPolicy{MaxAttempts: cfg.Retry.MaxAttempts, Backoff: cfg.Retry.Backoff}
	productService := service.NewProductService(core, retry, log.With("service", "product"))
	recordService := service.NewRecordService(core, retry, log.With("service", "record"))
	traceService := service.NewTraceService(core, retry)

	// The memory outbox is only visible in this process, so drain it here
	if cfg.Storage.Driver == config.StorageDriverMemory {
		poller := outbox_poller.NewPoller(
			&cfg.Outbox,
			backends.Outbox,
			outbox_poller.NewRecordPublisher(backends.Outbox, backends.Archive, nil, log.With("component", "record_publisher")),
			log.With("component", "outbox_poller"),
		)
		go poller.Start(appCtx)
	}

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, backends, productService, recordService, traceService)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Stop accepting requests before the stores go away
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	// Cancel the application context
	cancelAppCtx()

	if closeErr := backends.Close(shutdownCtx); closeErr != nil {
		log.Error("Error closing storage connections", "error", closeErr)
		err = closeErr
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil || serverErr != nil {
		log.Error("Server shutdown completed with errors")
		os.Exit(1)
	}
	log.Info("Server shutdown completed successfully")
}
