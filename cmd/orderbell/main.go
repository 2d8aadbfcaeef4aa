package main

import (
	"context"
	"log"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/lapar/orderbell/internal/pkg/config"
	"github.com/lapar/orderbell/internal/pkg/database"
	"github.com/lapar/orderbell/internal/pkg/health"
	"github.com/lapar/orderbell/internal/pkg/logger"
	"github.com/lapar/orderbell/internal/pkg/middleware"
	natspkg "github.com/lapar/orderbell/internal/pkg/nats"
	nrpkg "github.com/lapar/orderbell/internal/pkg/newrelic"
	"github.com/lapar/orderbell/internal/pkg/server"
	"github.com/lapar/orderbell/services/notify/handler"
	httpHandler "github.com/lapar/orderbell/services/notify/handler/http"
	natsHandler "github.com/lapar/orderbell/services/notify/handler/nats"
	wsHandler "github.com/lapar/orderbell/services/notify/handler/websocket"
	"github.com/lapar/orderbell/services/notify/repository"
	"github.com/lapar/orderbell/services/notify/usecase"
)

func main() {
	appName := "notify-service"
	configPath := "config/orderbell.env"
	configs := config.InitConfig(configPath)

	// Initialize New Relic and Zap logger
	nrApp := nrpkg.InitNewRelic(configs)
	if nrApp != nil {
		if err := nrApp.WaitForConnection(10 * time.Second); err != nil {
			log.Printf("Warning: New Relic connection timeout: %v", err)
		}
	}

	zapLogger, err := logger.NewZapLogger(configs.Logger, nrApp)
	if err != nil {
		log.Fatalf("Failed to create Zap logger: %v", err)
	}
	defer zapLogger.Close()
	logger.SetGlobalLogger(zapLogger)

	zapLogger.Info("Starting application",
		zap.String("app", appName),
		zap.String("version", configs.App.Version),
		zap.String("environment", configs.App.Environment),
	)

	// Initialize Redis client
	redisClient, err := database.NewRedisClient(configs.Redis)
	if err != nil {
		zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	// Initialize NATS
	natsClient, err := natspkg.NewClient(configs.NATS.URL)
	if err != nil {
		zapLogger.Fatal("Failed to connect to NATS", zap.Error(err))
	}

	// Initialize repository
	notificationRepo := repository.NewNotificationRepo(redisClient.GetClient(), configs.Notify.HistoryLimit)

	// Initialize connection registry and use case
	registry := wsHandler.NewRegistry()
	notifyUC := usecase.NewNotifyUC(registry, notificationRepo)

	// Handlers for HTTP and WebSocket
	notificationHandler := httpHandler.NewNotificationHandler(notifyUC)
	websocketHandler := wsHandler.NewHandler(registry, configs.JWT)

	// Handlers for NATS
	ordersHandler := natsHandler.NewNatsHandler(notifyUC, natsClient)
	if err := ordersHandler.InitConsumers(); err != nil {
		zapLogger.Fatal("Failed to initialize NATS consumers", zap.Error(err))
	}

	// Component cleanup for graceful shutdown: stop consuming first,
	// then drop the broker and store connections.
	shutdownManager := server.NewShutdownManager(zapLogger)
	shutdownManager.Register(func(ctx context.Context) error {
		ordersHandler.Drain()
		return nil
	})
	shutdownManager.Register(func(ctx context.Context) error {
		natsClient.Close()
		return nil
	})
	shutdownManager.Register(func(ctx context.Context) error {
		return redisClient.Close()
	})

	// Initialize handlers
	h := handler.NewHandler(notificationHandler, websocketHandler, configs)

	// Initialize Echo router
	e := echo.New()
	e.HideBanner = true

	// Add middlewares
	e.Use(middleware.RequestIDMiddleware())
	e.Use(logger.EchoMiddleware(zapLogger))
	e.Use(middleware.PanicRecoveryMiddleware(zapLogger))

	// Register health endpoints
	health.RegisterHealthEndpoints(e, appName)

	// Register service routes
	h.RegisterRoutes(e)

	// Start server with graceful shutdown
	shutdownTimeout := time.Duration(configs.Server.ShutdownTimeout) * time.Second
	srv := server.NewGracefulServer(e, zapLogger, configs.Server.Port, shutdownTimeout)
	srv.OnShutdown(shutdownManager)
	if err := srv.Start(); err != nil {
		zapLogger.Fatal("Server stopped",
			zap.String("app", appName),
			zap.Error(err),
		)
	}
}
