package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"

	"hive-backend/config"
	"hive-backend/internal/handlers"
	"hive-backend/internal/services"
	_ "hive-backend/migrations"
	"hive-backend/monitoring"
	"hive-backend/security"
	"hive-backend/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Initialize PubNub
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	pn := pubnub.NewPubNub(pnConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	notificationService := services.NewNotificationService(redisClient, pn)
	lifecycleService := services.NewLifecycleService(app, notificationService, cfg)
	rssService := services.NewRSSService(app, redisClient, cfg)

	// Initialize handlers
	eventHandler := handlers.NewEventHandler(app, lifecycleService)
	notificationHandler := handlers.NewNotificationHandler(app, notificationService)

	limiter := security.NewRateLimiter(redisClient, cfg.RateLimitMax, cfg.RateLimitWindow)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Scheduled jobs
	app.Cron().MustAdd("updateEventStates", cfg.AdvancerSchedule, func() {
		if err := lifecycleService.RunAdvancer(ctx); err != nil {
			slog.Error("Scheduled advancer run failed", "error", err)
		}
	})
	app.Cron().MustAdd("syncEventsFromFeed", cfg.FeedSyncSchedule, func() {
		if err := rssService.Sync(ctx); err != nil {
			slog.Error("Scheduled feed sync failed", "error", err)
		}
	})

	setupRecordHooks(app, lifecycleService, notificationService)

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		if cfg.EnableMetrics {
			monitoring.NewMonitor(app, cfg.MetricsInterval)
			e.Router.GET("/metrics", apis.WrapStdHandler(promhttp.Handler()))
		}

		// Event lifecycle endpoints
		e.Router.POST("/api/v1/events/{eventId}/transition", eventHandler.TransitionState).
			BindFunc(limiter.Middleware())
		e.Router.GET("/api/v1/events/{eventId}/state-history", eventHandler.GetStateHistory)

		// Notification endpoints
		e.Router.POST("/api/v1/notifications/register", notificationHandler.RegisterDevice)
		e.Router.POST("/api/v1/notifications/unregister", notificationHandler.UnregisterDevice)

		// Admin endpoints
		e.Router.POST("/api/v1/admin/advance-events", eventHandler.ForceAdvance)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		return err
	}
	return nil
}

func setupRecordHooks(app *pocketbase.PocketBase, lifecycle *services.LifecycleService, notifier *services.NotificationService) {
	// New events get their lifecycle state seeded exactly once.
	app.OnRecordAfterCreateSuccess("events").BindFunc(func(e *core.RecordEvent) error {
		if _, _, err := lifecycle.EnsureInitialState(e.Record); err != nil {
			return err
		}
		return e.Next()
	})

	// New chat messages notify the receiver.
	app.OnRecordAfterCreateSuccess("messages").BindFunc(func(e *core.RecordEvent) error {
		err := notifier.NotifyNewMessage(
			context.Background(),
			e.Record.Id,
			e.Record.GetString("sender"),
			e.Record.GetString("receiver"),
			e.Record.GetString("sender_name"),
			e.Record.GetString("text"),
		)
		if err != nil {
			slog.Error("Failed to notify message receiver", "messageID", e.Record.Id, "error", err)
		}
		return e.Next()
	})
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
