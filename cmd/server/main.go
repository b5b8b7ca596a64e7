package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/localserve/service-booking/internal/application"
	"github.com/localserve/service-booking/internal/catalog"
	"github.com/localserve/service-booking/internal/config"
	"github.com/localserve/service-booking/internal/events"
	"github.com/localserve/service-booking/internal/handler"
	"github.com/localserve/service-booking/internal/mailer"
	"github.com/localserve/service-booking/internal/notify"
	"github.com/localserve/service-booking/internal/platform/auth"
	"github.com/localserve/service-booking/internal/platform/database"
	"github.com/localserve/service-booking/internal/platform/kafka"
	"github.com/localserve/service-booking/internal/platform/logger"
	"github.com/localserve/service-booking/internal/platform/middleware"
	"github.com/localserve/service-booking/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.NewNamed(cfg.AppEnv, "service-booking")
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	db, err := database.Connect(cfg.DB, log)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	if err := db.AutoMigrate(&repository.BookingModel{}); err != nil {
		log.Fatal("auto-migration failed", zap.Error(err))
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	producer := kafka.NewProducer(cfg.KafkaBrokers, log)
	defer func() { _ = producer.Close() }()

	hub := notify.NewHub(log)
	defer hub.Close()

	var mail mailer.Mailer
	if cfg.SMTPHost != "" {
		mail = mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPPassword)
	}

	catalogClient := catalog.NewHTTPClient(cfg.CatalogURL, cfg.DirectoryURL)

	repo := repository.NewGormBookingRepository(db)
	bookingService := application.NewBookingService(
		repo, catalogClient, catalogClient, hub, mail, producer, log, cfg.OpsEmail,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	settlementConsumer := events.NewSettlementConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, bookingService, log)
	defer func() { _ = settlementConsumer.Close() }()
	go func() {
		if err := settlementConsumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("settlement consumer stopped", zap.Error(err))
		}
	}()

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.RequestIDMiddleware(),
		middleware.LoggerMiddleware(log),
		middleware.CORSMiddleware(),
		middleware.SecurityHeadersMiddleware(),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1", middleware.AuthMiddleware(jwtManager))
	handler.NewBookingHandler(bookingService).RegisterRoutes(api)
	handler.NewAdminHandler(bookingService).RegisterRoutes(api)

	wsHandler := handler.NewWSHandler(hub, log)
	router.GET("/ws", middleware.AuthMiddleware(jwtManager), wsHandler.Subscribe)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	os.Exit(0)
}
