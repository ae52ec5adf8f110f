package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erain9/tickorder/config"
	"github.com/erain9/tickorder/pkg/core"
	"github.com/erain9/tickorder/pkg/custody"
	"github.com/erain9/tickorder/pkg/db/queue"
	"github.com/erain9/tickorder/pkg/logging"
	"github.com/erain9/tickorder/pkg/messaging"
	"github.com/erain9/tickorder/pkg/messaging/kafka"
	"github.com/erain9/tickorder/pkg/otel"
	"github.com/erain9/tickorder/pkg/relayer"
	"github.com/erain9/tickorder/pkg/server"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure global logger
	logging.Setup(logging.Config{
		Level:  cfg.Server.LogLevel,
		Pretty: cfg.Server.LogFormat == "pretty",
		Output: os.Stdout,
	})
	logger := zlog.Logger

	// Create default context with logger
	ctx := logger.WithContext(context.Background())

	// Event publishing goes to Kafka when a producer can be created,
	// otherwise the server runs with events disabled.
	var sender messaging.EventSender
	switch cfg.Kafka.Client {
	case "kafka-go":
		kgoSender, err := kafka.NewKafkaEventSender(cfg.Kafka.BrokerAddr, cfg.Kafka.Topic)
		if err != nil {
			logger.Warn().Err(err).Msg("Kafka producer unavailable - running without event publishing")
		} else {
			sender = kgoSender
			defer kgoSender.Close()
		}
	default:
		kafkaSender, err := queue.NewQueueMessageSender()
		if err != nil {
			logger.Warn().Err(err).Msg("Kafka producer unavailable - running without event publishing")
		} else {
			sender = kafkaSender
			defer kafkaSender.Close()
		}
	}

	// Create the pool manager with a shared in-process ledger
	ledger := custody.NewMemoryLedger()
	manager := server.NewPoolManager(ledger, sender)
	defer manager.Close()

	// Create a default pool so the API is usable out of the box
	defaultPool := core.PoolKey{
		ID:          "eth-usdc",
		Token0:      "ETH",
		Token1:      "USDC",
		TickSpacing: 10,
	}
	if _, err := manager.CreateMemoryPool(ctx, defaultPool, 0); err != nil {
		logger.Fatal().Err(err).Msg("Failed to create default pool")
	}
	logger.Info().Str("pool_id", defaultPool.ID).Msg("Created default pool")

	// Initialize Kafka consumer (optional)
	// The consumer is for developer purpose which helps pretty print the
	// messages in the queue.
	kafkaConsumer, err := kafka.SetupConsumer(ctx, logger)
	if err == nil && kafkaConsumer != nil {
		defer kafkaConsumer.Close()
	}

	// Initialize OpenTelemetry
	cleanup, err := otel.Init(otel.Config{
		ServiceName:    "tickorder",
		ServiceVersion: "1.0.0",
		Endpoint:       "localhost:4317", // Change this to your collector endpoint
	})
	if err != nil {
		log.Fatalf("Failed to initialize OpenTelemetry: %v", err)
	}
	defer cleanup()

	// Start the in-process settlement relayer when enabled. It settles
	// crossed orders from its own ledger account at a configured price ratio.
	api := server.NewHTTPServer(manager)
	if os.Getenv("RELAYER_ENABLED") == "true" {
		relayerCfg, err := relayer.LoadConfig()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to load relayer configuration")
		}

		rel := relayer.New(relayerCfg, manager, ledger, logger)
		switch relayerCfg.Source {
		case relayer.SourceKafka:
			go func() {
				if err := rel.ConsumeCrossed(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error().Err(err).Msg("Relayer consumer stopped")
				}
			}()
		default:
			api.OnCrossedReport(rel.Submit)
		}

		go func() {
			if err := rel.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("Relayer stopped")
			}
		}()

		logger.Info().Str("settler", relayerCfg.SettlerAccount).Msg("Relayer enabled")
	}

	// Setup HTTP server
	httpServer := setupHTTPServer(ctx, cfg, api)

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("Server shutdown complete")
}

// setupHTTPServer initializes and starts the REST API server
func setupHTTPServer(ctx context.Context, cfg *config.Config, api *server.HTTPServer) *http.Server {
	logger := zerolog.Ctx(ctx)

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: api.Router(),
	}

	go func() {
		logger.Info().Str("addr", cfg.Server.HTTPAddr).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	return httpServer
}
