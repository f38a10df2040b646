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

	"golang-trade-sentry/internal/watcher/config"
	delivery "golang-trade-sentry/internal/watcher/delivery/http"
	_ "golang-trade-sentry/internal/watcher/docs"
	"golang-trade-sentry/internal/watcher/evaluator"
	"golang-trade-sentry/internal/watcher/repository"
	"golang-trade-sentry/internal/watcher/service"
	"golang-trade-sentry/pkg/logger"
	"golang-trade-sentry/pkg/postgres"
	"golang-trade-sentry/pkg/redis"
	"golang-trade-sentry/pkg/telegram"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	swagger "github.com/swaggo/echo-swagger"
	"google.golang.org/genai"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the watcher service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Watcher Service", logger.Field("name", cfg.App.Name))

	// Initialize database
	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Initialize Redis
	redisCfg := redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
	redisClient, err := redis.NewClient(redisCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", logger.ErrorField(err))
	}
	defer redisClient.Close()

	// Initialize repositories
	sourceRepo := repository.NewSourceRepository(db.DB)
	positionRepo := repository.NewPositionRepository(db.DB)
	alertEventRepo := repository.NewAlertEventRepository(db.DB)
	evaluationRepo := repository.NewEvaluationRepository(db.DB)
	queueRepo := repository.NewNotificationQueueRepository(db.DB)
	rateLimitRepo := repository.NewRateLimitRepository(db.DB)
	newsRepo := repository.NewNewsRepository(cfg, appLogger)

	collectorTimeout := parseDurationOr(cfg.Watcher.CollectorTimeout, 60*time.Second)
	collectorRepo := repository.NewFeedCollectorRepository(appLogger, cfg.Watcher.MaxRequestPerMinute, collectorTimeout)

	marketDataRepo, err := repository.NewMarketDataRepository(cfg, appLogger, redisClient)
	if err != nil {
		appLogger.Fatal("Failed to initialize market data repository", logger.ErrorField(err))
	}

	// Initialize evaluators
	evaluators := []evaluator.Evaluator{
		evaluator.NewMomentumEvaluator(cfg.Evaluators.MomentumWeight),
		evaluator.NewNewsEvaluator(cfg.Evaluators.NewsWeight),
	}
	if cfg.Gemini.APIKey != "" {
		genAiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey: cfg.Gemini.APIKey,
		})
		if err != nil {
			appLogger.Fatal("Failed to initialize Gemini AI client", logger.ErrorField(err))
		}
		evaluators = append(evaluators, evaluator.NewGeminiEvaluator(cfg.Evaluators.GeminiWeight, cfg, appLogger, genAiClient))
	}

	telegramNotifier, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if err != nil {
		appLogger.Fatal("Failed to initialize Telegram notifier", logger.ErrorField(err))
	}

	// Initialize services
	differSvc := service.NewDifferService(db.DB, positionRepo, alertEventRepo, appLogger)
	enrichmentSvc := service.NewEnrichmentService(marketDataRepo, newsRepo, appLogger)

	evaluatorTimeout := parseDurationOr(cfg.Evaluators.Timeout, 30*time.Second)
	consensusSvc, err := service.NewConsensusService(evaluators, evaluatorTimeout, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize consensus engine", logger.ErrorField(err))
	}

	dispatcherSvc := service.NewDispatcherService(
		service.DispatcherConfig{
			NotifyThreshold:   cfg.Dispatcher.NotifyThreshold,
			MaxSendsPerWindow: cfg.Dispatcher.MaxSendsPerWindow,
			WindowSize:        parseDurationOr(cfg.Dispatcher.WindowSize, time.Hour),
			MaxRetries:        cfg.Dispatcher.MaxRetries,
			RetryBackoff:      parseDurationOr(cfg.Dispatcher.RetryBackoff, 2*time.Minute),
		},
		queueRepo, rateLimitRepo, evaluationRepo, alertEventRepo, positionRepo,
		telegramNotifier, appLogger,
	)

	orchestratorSvc, err := service.NewOrchestratorService(
		cfg, appLogger,
		sourceRepo, collectorRepo, positionRepo, evaluationRepo,
		differSvc, enrichmentSvc, consensusSvc, dispatcherSvc,
		redisClient, telegramNotifier,
	)
	if err != nil {
		appLogger.Fatal("Failed to initialize orchestrator", logger.ErrorField(err))
	}

	sourceSvc := service.NewSourceService(sourceRepo, appLogger)
	queueSvc := service.NewQueueService(queueRepo, appLogger)

	// Start the cycle loop
	if err := orchestratorSvc.Start(); err != nil {
		appLogger.Fatal("Failed to start pipeline", logger.ErrorField(err))
	}

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true

	// Initialize handlers and routes
	apiV1 := e.Group("/api/v1")

	sourceHandler := delivery.NewSourceHandler(sourceSvc, appLogger)
	sourceHandler.RegisterRoutes(apiV1.Group("/sources"))

	queueHandler := delivery.NewQueueHandler(queueSvc, appLogger)
	queueHandler.RegisterRoutes(apiV1.Group("/queue"))

	pipelineHandler := delivery.NewPipelineHandler(orchestratorSvc, appLogger)
	pipelineHandler.RegisterRoutes(apiV1.Group("/pipeline"))

	e.GET("/swagger/*", swagger.WrapHandler)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop() // trigger shutdown
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	appLogger.Info("Shutting down server...")

	if err := orchestratorSvc.Stop(); err != nil {
		appLogger.Warn("Pipeline stop", logger.ErrorField(err))
	}

	// Gracefully shutdown the server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	appLogger.Info("Server exiting")
}

func parseDurationOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

// @title Trade Sentry API
// @version 1.0
// @description Operator API for the trade alert pipeline.
// @termsOfService http://swagger.io/terms/
// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io
// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html
// @BasePath /api/v1
func main() {
	rootCmd := &cobra.Command{Use: "watcher-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-watcher.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing watcher-service CLI: %s\n", err)
		os.Exit(1)
	}
}
