package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/provenance-ledger/internal/config"
	"github.com/provenance-ledger/internal/data"
	"github.com/provenance-ledger/internal/logger"
	"github.com/provenance-ledger/internal/platform/messaging/consumers"
	"github.com/provenance-ledger/internal/platform/messaging/producers"
	"github.com/provenance-ledger/internal/telemetry_processor/components"
	"github.com/provenance-ledger/internal/telemetry_processor/consumer"
	"github.com/provenance-ledger/internal/telemetry_processor/outbox_poller"
	"github.com/provenance-ledger/internal/telemetry_processor/reconciler"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("telemetry_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Telemetry Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"storage", cfg.Storage.Driver,
	)

	// Initialize storage adapters with app context
	backends, err := data.Open(appCtx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	core := backends.Core(cfg)

	// Make sure the device feed exists before the consumer group joins it
	if err := producers.EnsureTopic(cfg.Kafka.Brokers, cfg.Kafka.TelemetryTopic, cfg.Kafka.NumPartitions, cfg.Kafka.ReplicationFactor, log); err != nil {
		log.Error("Failed to ensure telemetry topic", "topic", cfg.Kafka.TelemetryTopic, "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producers
	eventProducer, err := producers.NewLedgerEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize ledger events producer", "error", err)
		os.Exit(1)
	}

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	var deadLetters producers.DeadLetterPublisher
	if dlqProducer != nil {
		deadLetters = dlqProducer
	}

	// Initialize ingestion service
	ingestionService, shutdownPool, err := components.CreateIngestionService(core.Ingestor, log, cfg)
	if err != nil {
		log.Error("Failed to initialize ingestion service", "error", err)
		os.Exit(1)
	}

	// Initialize telemetry event handler
	telemetryEventHandler := consumer.NewTelemetryEventHandler(
		log.With("component", "telemetry_handler"),
		ingestionService,
		deadLetters,
	)
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log.With("component", "consumer"), &cfg.Kafka)

	// Initialize outbox poller
	recordPublisher := outbox_poller.NewRecordPublisher(
		backends.Outbox,
		backends.Archive,
		eventProducer,
		log.With("component", "record_publisher"),
	)
	poller := outbox_poller.NewPoller(
		&cfg.Outbox,
		backends.Outbox,
		recordPublisher,
		log.With("component", "outbox_poller"),
	)

	// Initialize consistency checker
	checker := reconciler.NewReconciler(
		&cfg.Consistency,
		backends.Store,
		core.Registry,
		log.With("component", "reconciler"),
	)

	// Create error channel for service errors
	errChan := make(chan error, 1)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumer
	log.Info("Starting Kafka consumer",
		"topic", cfg.Kafka.TelemetryTopic,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := kafkaConsumer.Subscribe(appCtx, telemetryEventHandler.HandleMessage); err != nil {
		errChan <- fmt.Errorf("kafka consumer error: %w", err)
	}

	// Start outbox poller in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()

	// Start consistency checker in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		checker.Start(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		<-kafkaConsumer.Done()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Drain in-flight samples before the stores close
	shutdownPool()

	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	if dlqProducer != nil {
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing ledger events producer", "error", err)
	}

	if err = backends.Close(shutdownCtx); err != nil {
		log.Error("Error closing storage connections", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Telemetry Processor shutdown with errors", "error", serviceErr)
		os.Exit(1)
	}
	log.Info("Telemetry Processor shutdown completed")
}
