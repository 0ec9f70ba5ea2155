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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/logistimo/sms-command-gateway/internal/platform/config"
	"github.com/logistimo/sms-command-gateway/internal/platform/database"
	"github.com/logistimo/sms-command-gateway/internal/platform/logger"
	"github.com/logistimo/sms-command-gateway/internal/platform/messagebroker"

	"github.com/logistimo/sms-command-gateway/internal/command_service/adapters/smsprovider"
	"github.com/logistimo/sms-command-gateway/internal/command_service/app"
	"github.com/logistimo/sms-command-gateway/internal/command_service/auth"
	"github.com/logistimo/sms-command-gateway/internal/command_service/dedup"
	"github.com/logistimo/sms-command-gateway/internal/command_service/domain"
	"github.com/logistimo/sms-command-gateway/internal/command_service/executor"
	"github.com/logistimo/sms-command-gateway/internal/command_service/repository/postgres"
)

const (
	serviceName     = "command_processor_service"
	queueGroup      = "command_processor_group"
	dlrQueueGroup   = "command_dlr_group"
	shutdownTimeout = 10 * time.Second
)

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger = appLogger.With("service", serviceName)
	appLogger.Info("Starting service...")

	appLogger.Info("Configuration loaded",
		"log_level", cfg.LogLevel,
		"nats_url", cfg.NATSUrl,
		"postgres_dsn_present", cfg.PostgresDSN != "",
		"metrics_port", cfg.CommandProcessorMetricsPort,
		"dedup_stale_timeout_seconds", cfg.DedupStaleTimeoutSeconds,
		"dedup_retention_hours", cfg.DedupRetentionHours,
	)

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Database connection pool initialized")

	nc, err := messagebroker.NewNATSClient(cfg.NATSUrl, appLogger, serviceName)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer nc.Close()
	appLogger.Info("NATS connection initialized")

	recordStore := postgres.NewPgRecordStore(dbPool)
	accountRepo := postgres.NewPgAccountRepository(dbPool)
	outboxRepo := postgres.NewPgOutboxRepository(dbPool)

	coordinator := dedup.NewCoordinator(
		recordStore,
		time.Duration(cfg.DedupStaleTimeoutSeconds)*time.Second,
		time.Duration(cfg.DedupRetentionHours)*time.Hour,
		appLogger,
	)
	authenticator := auth.NewAuthenticator(accountRepo, cfg.SMSTokenSecret, appLogger)
	txExecutor := executor.NewHTTPExecutor(appLogger, cfg.ExecutorAPIURL, cfg.ExecutorAPIKey, nil)
	provider := smsprovider.NewMockProvider(appLogger, cfg.SMSProviderName, 0.0, 20, 80)
	devSink := app.NewNATSDevSink(nc, app.SubjectDevSink, appLogger)
	dispatcher := app.NewDispatcher(provider, outboxRepo, devSink, appLogger)
	processor := app.NewCommandProcessor(authenticator, coordinator, txExecutor, dispatcher, appLogger)

	inboundChan := make(chan domain.InboundMessage, 100)
	inboundConsumer := app.NewInboundConsumer(nc, appLogger, inboundChan)
	dlrProcessor := app.NewDeliveryStatusProcessor(outboxRepo, nc, appLogger)

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		return inboundConsumer.StartConsuming(groupCtx, app.SubjectInboundReceived, queueGroup)
	})

	g.Go(func() error {
		appLogger.Info("Starting inbound command processor worker...")
		for {
			select {
			case msg := <-inboundChan:
				if err := processor.Process(groupCtx, msg); err != nil {
					appLogger.Error("Failed to process inbound message",
						slog.Any("error", err),
						slog.String("address", msg.Address),
					)
				}
			case <-groupCtx.Done():
				appLogger.Info("Inbound command processor worker shutting down.")
				return groupCtx.Err()
			}
		}
	})

	g.Go(func() error {
		return dlrProcessor.StartConsuming(groupCtx, app.SubjectDeliveryStatus, dlrQueueGroup)
	})

	g.Go(func() error {
		interval := time.Duration(cfg.DedupPurgeIntervalMins) * time.Minute
		appLogger.Info("Starting idempotency record purge loop", "interval", interval.String())
		return coordinator.RunPurgeLoop(groupCtx, interval)
	})

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.CommandProcessorMetricsPort),
		Handler: promhttp.Handler(),
	}
	g.Go(func() error {
		appLogger.Info("Starting Prometheus metrics server", "port", cfg.CommandProcessorMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	appLogger.Info("Service components initialized and workers started. Service is ready.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var groupErr error
	select {
	case sig := <-sigCh:
		appLogger.Info("Received termination signal", "signal", sig.String())
	case groupErr = <-watchGroup(g):
		appLogger.Error("A critical component failed, initiating shutdown", "error", groupErr)
	}

	appLogger.Info("Attempting graceful shutdown...")
	mainCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Failed to shut down metrics server", "error", err)
	}

	if err := g.Wait(); err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		appLogger.Error("Error during graceful shutdown of components", "error", err)
	}

	appLogger.Info("Service shutdown complete.")
}

// watchGroup is a helper to monitor an errgroup for early exit.
func watchGroup(g *errgroup.Group) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- g.Wait()
	}()
	return errCh
}
