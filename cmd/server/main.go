package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/sonnkraft/funnel-backend/internal/ai/openrouter"
	"github.com/sonnkraft/funnel-backend/internal/api"
	"github.com/sonnkraft/funnel-backend/internal/cache/redis"
	"github.com/sonnkraft/funnel-backend/internal/catalog"
	"github.com/sonnkraft/funnel-backend/internal/config"
	"github.com/sonnkraft/funnel-backend/internal/events"
	"github.com/sonnkraft/funnel-backend/internal/funnel"
	"github.com/sonnkraft/funnel-backend/internal/leads"
	"github.com/sonnkraft/funnel-backend/internal/maps"
	"github.com/sonnkraft/funnel-backend/internal/service"
	"github.com/sonnkraft/funnel-backend/internal/service/chat"
	"github.com/sonnkraft/funnel-backend/internal/session"
	"github.com/sonnkraft/funnel-backend/internal/storage/postgres"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}

	// Configure log format
	if cfg.LogFormat == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	logger.Info("starting funnel-backend server")

	ctx := context.Background()

	// Lead archive is optional; without a DSN submitted leads are only
	// forwarded to the lead backend.
	var archive funnel.LeadArchive
	if cfg.Database.DSN != "" {
		db, err := postgres.New(ctx, cfg.Database.DSN)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to database")
		}
		defer db.Close()
		archive = postgres.NewLeadRepository(db.Pool())
	} else {
		logger.Warn("lead archive disabled, no database configured")
	}

	// Initialize Redis client
	redisClient, err := redis.New(cfg.Redis.URI)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()

	// Initialize AI gateway. Without an API key the funnel runs degraded and
	// serves a static unavailability notice.
	var gateway funnel.Gateway
	if cfg.AI.APIKey != "" {
		gateway = openrouter.NewClient(cfg.AI, logger)
	} else {
		logger.Warn("no AI api key configured, chat runs in degraded mode")
	}

	// Initialize services
	authService := service.NewAuthService(cfg.Server.JWTSecret)
	leadsClient := leads.NewClient(cfg.Leads.BaseURL)
	mapsClient := maps.NewClient(cfg.Maps.BaseURL, cfg.Maps.APIKey)
	catalogService := catalog.NewService(leadsClient, redisClient, logger)
	snapshotStore := session.NewRedisStore(redisClient, cfg.Redis.SnapshotTTL)

	controller := funnel.NewController(gateway, leadsClient, mapsClient, catalogService, archive, cfg.Maps.ZoomLevels, logger)

	// Chat trigger bus; observers log how conversations get started.
	bus := events.NewBus()
	for _, trigger := range []events.Trigger{
		events.TriggerOpenChat, events.TriggerPromo, events.TriggerContext,
		events.TriggerComparison, events.TriggerService,
	} {
		bus.Subscribe(trigger, func(evt events.Event) {
			logger.WithFields(logrus.Fields{
				"trigger":         evt.Trigger,
				"conversation_id": evt.ConversationID,
			}).Info("chat trigger")
		})
	}

	chatService := chat.NewService(controller, snapshotStore, catalogService, bus, cfg.Language, logger)

	// Initialize API server
	server := api.NewServer(authService, chatService, logger)

	// Create Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Add middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
			}).Info("request")
			return nil
		},
	}))

	// Health check endpoint (public)
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	// Session creation is public; the stream endpoint authenticates via query
	// parameter because EventSource cannot set headers.
	e.POST("/chat/session", server.CreateSession)
	e.GET("/chat/stream", server.StreamMessage)

	// Chat routes (authenticated widget session)
	chatGroup := e.Group("/chat", server.SessionMiddleware)
	chatGroup.POST("/open", server.OpenChat)
	chatGroup.POST("/messages", server.SendMessage)
	chatGroup.POST("/back", server.GoBack)
	chatGroup.POST("/reset", server.ResetChat)
	chatGroup.POST("/confirm", server.ConfirmSubmit)
	chatGroup.POST("/triggers", server.Trigger)

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	go func() {
		logger.WithField("addr", addr).Info("server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown error")
	}

	logger.Info("server stopped")
}
