package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"feedbacker/app/echo-server/router"
	"feedbacker/business/abuse"
	"feedbacker/business/alert"
	"feedbacker/business/analysis"
	feedbackService "feedbacker/business/feedback"
	settingsService "feedbacker/business/settings"
	"feedbacker/internal/middleware"
	"feedbacker/internal/repository/notification"
	psqlRepo "feedbacker/internal/repository/postgres"
	"feedbacker/internal/repository/storage"
	"feedbacker/internal/repository/transcription"
	"feedbacker/internal/rest"
	"feedbacker/pkg/config"
	"feedbacker/pkg/database"
	"feedbacker/pkg/logger"
	"feedbacker/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.App.Environment)
	logger.Info("Starting Feedbacker", "version", cfg.App.Version)

	db, err := database.InitPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	logger.Info("Database connected successfully")

	metrics.Init()

	// Init repo
	feedbackRepo := psqlRepo.NewFeedbackRepository(db)
	settingsRepo := psqlRepo.NewSettingsRepository(db)
	audioStore := storage.NewSupabaseRepository(cfg.Storage)
	telegramRepo := notification.NewTelegramRepository(cfg.Telegram)

	var transcriber feedbackService.Transcriber
	switch cfg.Transcription.Provider {
	case "whisper":
		transcriber = transcription.NewWhisperRepository(cfg.Transcription)
	default:
		transcriber = transcription.NewAssemblyAIRepository(cfg.Transcription)
	}

	// Init service
	limiter := abuse.NewLimiter(cfg.RateLimit)
	analyzer := analysis.NewAnalyzer(cfg.Sentiment, analysis.NewHFBackends(cfg.Sentiment))
	settings := settingsService.NewSettingsService(settingsRepo, cfg.Settings, cfg.Telegram.DefaultThreshold)
	alerts := alert.NewDispatcher(telegramRepo, settings, cfg.Telegram, cfg.App.PublicBaseURL)
	feedbacks := feedbackService.NewFeedbackService(
		feedbackRepo, audioStore, transcriber, analyzer, limiter, alerts,
		cfg.Audio, cfg.Sentiment.FitSizeRule,
	)

	// Init handler
	feedbackHandler := rest.NewFeedbackHandler(feedbacks, cfg.Audio)
	adminHandler := rest.NewAdminHandler(feedbacks, settings, cfg.Admin)

	// Init echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	// Setup routes
	adminAuth := middleware.AdminAuth(cfg.Admin.JWTSecret)
	router.SetupFeedbackRoutes(e, feedbackHandler)
	router.SetupAdminRoutes(e, adminHandler, adminAuth)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "version": cfg.App.Version})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Goroutine server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server starting", "address", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Server stopped")
}
