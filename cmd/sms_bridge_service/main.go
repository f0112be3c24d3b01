package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/aradsms/sms_bridge/internal/platform/config"
	"github.com/aradsms/sms_bridge/internal/platform/health"
	"github.com/aradsms/sms_bridge/internal/platform/logger"
	"github.com/aradsms/sms_bridge/internal/platform/messagebroker"
	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/adapters/layer"
	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/adapters/nexmo"
	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/app"
	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/domain"
	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/repository"
	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/repository/backend"
	httptransport "github.com/aradsms/sms_bridge/internal/sms_bridge_service/transport/http"
)

const (
	serviceName     = "sms_bridge_service"
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(serviceName, cfg.LogLevel)
	appLogger.Info("Starting service...",
		"store_backend", cfg.StoreBackend,
		"nats_url", cfg.NATSUrl,
		"pool_size", len(cfg.NexmoNumbers),
		"public_url", cfg.PublicURL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Error("Service stopped with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Service shutdown complete.")
}

func run(ctx context.Context, cfg *config.Config, appLogger *slog.Logger) error {
	nc, err := messagebroker.NewNATSClient(cfg.NATSUrl, appLogger, serviceName)
	if err != nil {
		return err
	}
	defer nc.Close()

	kv, closeStore, err := backend.Open(ctx, cfg, nc, appLogger)
	if err != nil {
		return fmt.Errorf("opening correlation store: %w", err)
	}
	defer closeStore()

	topology := app.NewQueueTopology(cfg.IntegrationName)
	if err := nc.EnsureStream(ctx, topology.Stream, topology.Subjects()); err != nil {
		return err
	}

	// Adapters
	nexmoClient := nexmo.NewClient(cfg.NexmoBaseURL, cfg.NexmoKey, cfg.NexmoSecret, appLogger,
		nexmo.WithSendRate(cfg.NexmoSendRate))
	layerClient := layer.NewClient(cfg.LayerBaseURL, cfg.LayerAppID, cfg.LayerBearerToken, nil, appLogger)

	// Application
	store := repository.NewCorrelationStore(kv, appLogger)
	allocator := app.NewAllocator(store, cfg.NexmoNumbers, appLogger, app.WithBindingTTL(cfg.NumberExpiration))
	renderer, err := app.NewMessageRenderer(cfg.MessageTemplate)
	if err != nil {
		return err
	}
	outboundOpts := []app.OutboundOption{app.WithRenderer(renderer)}
	if cfg.IntroduceConversations {
		outboundOpts = append(outboundOpts, app.WithIntroducer(layerClient))
	}
	outbound := app.NewOutboundRelay(layerClient, allocator, store, nexmoClient, appLogger, outboundOpts...)
	inbound := app.NewInboundRelay(store, layerClient, cfg.NumberExpiration, appLogger)
	reconciler := app.NewNumberReconciler(nexmoClient, cfg.NexmoNumbers, cfg.InboundSMSURL(), appLogger)

	outboundRunner := app.NewJobRunner("unread_message", outbound.Process,
		app.RetryPolicy{MaxAttempts: cfg.OutboundMaxAttempts, BaseDelay: cfg.OutboundBackoffBase, MaxDelay: cfg.JobBackoffMax}, appLogger)
	inboundRunner := app.NewJobRunner("inbound_sms", inbound.Process,
		app.RetryPolicy{MaxAttempts: cfg.InboundMaxAttempts, BaseDelay: cfg.InboundBackoffBase, MaxDelay: cfg.JobBackoffMax}, appLogger)

	// Startup registration. Failures are logged: the gateway and platform may
	// already be configured from a previous run.
	hook := domain.NewReceiptHookConfig(cfg.IntegrationName, cfg.LayerPath, cfg.ReceiptDelay, cfg.RecipientStatusFilter)
	if err := layer.NewWebhookRegistrar(layerClient, cfg.LayerWebhookSecret).Register(ctx, hook, cfg.ReceiptURL()); err != nil {
		appLogger.Error("Failed to register receipt webhook", "error", err)
	}
	if updated, err := reconciler.Reconcile(ctx); err != nil {
		appLogger.Error("Failed to reconcile number callbacks", "error", err)
	} else {
		appLogger.Info("Number callbacks reconciled", "updated", updated)
	}

	// Transport
	handler := httptransport.NewWebhookHandler(app.NewJobQueue(nc, topology), validator.New(), appLogger)
	router := httptransport.NewRouter(httptransport.RouterConfig{
		InboundSMSPath: cfg.NexmoPath,
		ReceiptPath:    cfg.LayerPath,
		WebhookSecret:  cfg.LayerWebhookSecret,
	}, handler, appLogger)

	healthServer := health.NewServer(appLogger, "outbound_relay", "inbound_relay")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return serveHTTP(gctx, "webhook", cfg.ServerPort, router, appLogger)
	})
	if cfg.MetricsPort > 0 {
		g.Go(func() error {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			return serveHTTP(gctx, "metrics", cfg.MetricsPort, mux, appLogger)
		})
	}
	if cfg.GRPCHealthPort > 0 {
		g.Go(func() error {
			return healthServer.ListenAndServe(gctx, cfg.GRPCHealthPort)
		})
	}

	g.Go(func() error {
		healthServer.SetServing("outbound_relay", true)
		defer healthServer.SetServing("outbound_relay", false)
		return nc.Consume(gctx, messagebroker.ConsumerSpec{
			Stream:      topology.Stream,
			Durable:     "unread_message",
			Subject:     topology.UnreadMessageSubject,
			Concurrency: cfg.OutboundConcurrency,
			MaxDeliver:  cfg.OutboundMaxAttempts,
		}, outboundRunner.Handle)
	})
	g.Go(func() error {
		healthServer.SetServing("inbound_relay", true)
		defer healthServer.SetServing("inbound_relay", false)
		return nc.Consume(gctx, messagebroker.ConsumerSpec{
			Stream:      topology.Stream,
			Durable:     "inbound_sms",
			Subject:     topology.InboundSubject,
			Concurrency: 1,
			MaxDeliver:  cfg.InboundMaxAttempts,
		}, inboundRunner.Handle)
	})
	g.Go(func() error {
		return reconciler.Run(gctx, cfg.NumberReconcileSchedule)
	})

	healthServer.SetServing("", true)
	appLogger.Info("Service components initialized. Service is ready.",
		"webhook_port", cfg.ServerPort, "inbound_sms_url", cfg.InboundSMSURL(), "receipt_url", cfg.ReceiptURL())

	err = g.Wait()
	healthServer.SetServing("", false)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func serveHTTP(ctx context.Context, name string, port int, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "server", name, "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s server: %w", name, err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown failed", "server", name, "error", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
