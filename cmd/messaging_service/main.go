package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/savpilot/messaging-service/internal/messaging_service/adapters/objectstorage"
	"github.com/savpilot/messaging-service/internal/messaging_service/adapters/smsprovider"
	"github.com/savpilot/messaging-service/internal/messaging_service/app"
	pgrepo "github.com/savpilot/messaging-service/internal/messaging_service/repository/postgres"
	httptransport "github.com/savpilot/messaging-service/internal/messaging_service/transport/http"
	"github.com/savpilot/messaging-service/internal/platform/cache"
	"github.com/savpilot/messaging-service/internal/platform/config"
	"github.com/savpilot/messaging-service/internal/platform/database"
	"github.com/savpilot/messaging-service/internal/platform/logger"
	"github.com/savpilot/messaging-service/internal/platform/messagebroker"
)

const serviceName = "messaging_service"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Messaging service starting...", "port", cfg.MessagingServicePort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewDBPool(ctx, cfg.PostgresDSN, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Connected to PostgreSQL database")

	// NATS is optional: append events degrade to polling when the broker is
	// unreachable, the conversation API itself stays up.
	var events messagebroker.Publisher
	natsClient, err := messagebroker.NewNATSClient(cfg.NATSURL, appLogger, serviceName)
	if err != nil {
		appLogger.Warn("NATS unavailable, append events disabled", "error", err)
	} else {
		defer natsClient.Close()
		events = natsClient
		appLogger.Info("Connected to NATS")
	}

	// Redis is optional too: with no cache every badge query hits Postgres.
	var badgeCache *cache.Client
	if cfg.RedisAddr != "" {
		badgeCache, err = cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, appLogger)
		if err != nil {
			appLogger.Warn("Redis unavailable, unread badge cache disabled", "error", err)
			badgeCache = nil
		} else {
			defer badgeCache.Close()
			appLogger.Info("Connected to Redis", "addr", cfg.RedisAddr)
		}
	}

	storage, err := objectstorage.NewLocalDiskStorage(cfg.AttachmentDir, cfg.AttachmentBaseURL, []byte(cfg.AttachmentURLSecret), appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize attachment storage", "error", err, "dir", cfg.AttachmentDir)
		os.Exit(1)
	}

	var provider smsprovider.Provider
	if cfg.SMSProviderName == "mock" || cfg.SMSGatewayAPIURL == "" {
		provider = smsprovider.NewMockProvider(appLogger, cfg.SMSProviderName, cfg.SMSMockFailRate)
		appLogger.Info("Using mock SMS provider", "fail_rate", cfg.SMSMockFailRate)
	} else {
		provider = smsprovider.NewHTTPProvider(appLogger, cfg.SMSProviderName, cfg.SMSGatewayAPIURL, cfg.SMSGatewayAPIKey, cfg.SMSGatewaySenderID, nil)
		appLogger.Info("Using HTTP SMS provider", "name", cfg.SMSProviderName)
	}

	messageRepo := pgrepo.NewPgMessageRepository(dbPool, appLogger)
	caseRepo := pgrepo.NewPgCaseRepository(dbPool, appLogger)
	shopConfigRepo := pgrepo.NewPgShopConfigRepository(dbPool, appLogger)

	attachmentService := app.NewAttachmentService(storage, appLogger)
	readTracker := app.NewReadTracker(messageRepo, badgeCache, appLogger)
	messageService := app.NewMessageService(messageRepo, caseRepo, shopConfigRepo, attachmentService, events, readTracker, appLogger)
	deliveryRouter := app.NewDeliveryRouter(messageRepo, caseRepo, shopConfigRepo, provider, messageService, appLogger)

	validate := validator.New()
	messageHandler := httptransport.NewMessageHandler(messageService, readTracker, deliveryRouter, appLogger, validate)
	trackingHandler := httptransport.NewTrackingHandler(messageService, storage, appLogger, validate)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(httptransport.PrometheusMetricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "Messaging service is healthy"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Shop-side API. Authentication is handled upstream by the platform's API
	// gateway; this service trusts the shop scope of incoming requests.
	r.Route("/api/v1", func(v1 chi.Router) {
		messageHandler.RegisterRoutes(v1)
	})

	// Public client surface: tracking routes and signed attachment URLs.
	trackingHandler.RegisterRoutes(r)

	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.MessagingServicePort), Handler: r}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLogger.Info(fmt.Sprintf("Messaging service listening on port %d", cfg.MessagingServicePort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		appLogger.Info("Shutdown signal received, shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("Messaging service exited with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Messaging service shut down gracefully.")
}
