package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vhvplatform/go-reminder-engine/internal/broker"
	"github.com/vhvplatform/go-reminder-engine/internal/consumer"
	"github.com/vhvplatform/go-reminder-engine/internal/gateway"
	"github.com/vhvplatform/go-reminder-engine/internal/handler"
	"github.com/vhvplatform/go-reminder-engine/internal/repository"
	"github.com/vhvplatform/go-reminder-engine/internal/scheduler"
	"github.com/vhvplatform/go-reminder-engine/internal/shared/config"
	"github.com/vhvplatform/go-reminder-engine/internal/shared/logger"
	"github.com/vhvplatform/go-reminder-engine/internal/shared/mongodb"
	"github.com/vhvplatform/go-reminder-engine/internal/shared/rabbitmq"
)

func main() {
	// Initialize logger
	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting Reminder Engine...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration", "error", err)
	}

	// Initialize MongoDB
	mongoClient, err := mongodb.Connect(cfg.MongoDB.URI, cfg.MongoDB.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}
	defer mongoClient.Disconnect(context.Background())

	// Initialize RabbitMQ
	rabbitMQClient, err := rabbitmq.NewRabbitMQClient(cfg.RabbitMQ.URL)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ", "error", err)
	}
	defer rabbitMQClient.Close()

	// Initialize repositories
	reminderRepo := repository.NewReminderRepository(mongoClient)
	alarmRepo := repository.NewAlarmRepository(mongoClient)
	routineRepo := repository.NewRoutineRepository(mongoClient)
	entityRepo := repository.NewEntityRepository(mongoClient)
	notificationRepo := repository.NewNotificationRepository(mongoClient)
	preferencesRepo := repository.NewPreferencesRepository(mongoClient)

	// Initialize gateways
	pushGateway := gateway.NewHTTPPushGateway(gateway.PushConfig{
		URL:         cfg.Push.URL,
		APIKey:      cfg.Push.APIKey,
		RatePerUser: cfg.Push.RatePerUser,
		Burst:       cfg.Push.Burst,
		Timeout:     time.Duration(cfg.Push.TimeoutSec) * time.Second,
	}, log)
	emailGateway := gateway.NewSMTPEmailGateway(gateway.SMTPConfig{
		Host:      cfg.SMTP.Host,
		Port:      cfg.SMTP.Port,
		Username:  cfg.SMTP.Username,
		Password:  cfg.SMTP.Password,
		FromEmail: cfg.SMTP.FromEmail,
		FromName:  cfg.SMTP.FromName,
	}, log)
	planningGateway := gateway.NewHTTPPlanningGateway(gateway.PlanningConfig{
		URL:     cfg.Planning.URL,
		Timeout: time.Duration(cfg.Planning.TimeoutSec) * time.Second,
	}, log)

	// Initialize the delayed job broker and the scheduling engine
	jobBroker := broker.New(log)
	defer jobBroker.Close()

	engine := scheduler.NewEngine(scheduler.Deps{
		Reminders:     reminderRepo,
		Alarms:        alarmRepo,
		Routines:      routineRepo,
		Entities:      entityRepo,
		Preferences:   preferencesRepo,
		Notifications: notificationRepo,
		Dispatcher:    jobBroker,
		Push:          pushGateway,
		Email:         emailGateway,
		Planning:      planningGateway,
		Log:           log,
	})

	runtime, err := scheduler.NewRuntime(engine, jobBroker, cfg.Queues, log)
	if err != nil {
		log.Fatal("Failed to build scheduler runtime", "error", err)
	}
	if err := runtime.Start(context.Background()); err != nil {
		log.Fatal("Failed to start scheduler runtime", "error", err)
	}
	defer runtime.Stop()

	// Initialize HTTP handlers
	opsHandler := handler.NewOpsHandler(jobBroker, engine, notificationRepo, log)
	preferencesHandler := handler.NewPreferencesHandler(preferencesRepo, log)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	// Health check endpoints
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/ready", func(c *gin.Context) {
		if err := mongoClient.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	v1 := router.Group("/api/v1")
	{
		queues := v1.Group("/queues")
		{
			queues.GET("", opsHandler.GetQueues)
			queues.GET("/:queue/jobs", opsHandler.GetPendingJobs)
			queues.DELETE("/:queue/jobs/:id", opsHandler.RemovePendingJob)
		}

		alarms := v1.Group("/alarms")
		{
			alarms.DELETE("/:id/notifications", opsHandler.CancelAlarmNotifications)
		}
		v1.DELETE("/users/:user_id/alarm-notifications", opsHandler.CancelAllAlarmNotifications)

		notifications := v1.Group("/notifications")
		{
			notifications.GET("/:id", opsHandler.GetNotification)
		}

		preferences := v1.Group("/preferences")
		{
			preferences.GET("/:user_id", preferencesHandler.GetPreferences)
			preferences.PUT("/:user_id", preferencesHandler.UpdatePreferences)
		}
	}

	// Start RabbitMQ consumer
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	defer cancelConsumer()

	bestEffort := scheduler.NewBestEffort(8, log)
	eventConsumer := consumer.NewEventConsumer(rabbitMQClient, engine, bestEffort, log)
	go func() {
		if err := eventConsumer.Start(consumerCtx); err != nil {
			log.Error("Failed to start event consumer", "error", err)
		}
	}()

	// Start HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("Reminder Engine started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Reminder Engine...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	bestEffort.Wait()

	log.Info("Reminder Engine stopped")
}
