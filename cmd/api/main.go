package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/smilebright/dental-ai-platform/internal/api/router"
	"github.com/smilebright/dental-ai-platform/internal/appointments"
	"github.com/smilebright/dental-ai-platform/internal/assistant"
	appconfig "github.com/smilebright/dental-ai-platform/internal/config"
	"github.com/smilebright/dental-ai-platform/internal/http/handlers"
	"github.com/smilebright/dental-ai-platform/internal/observability/metrics"
	"github.com/smilebright/dental-ai-platform/internal/realtime"
	"github.com/smilebright/dental-ai-platform/internal/transcripts"
	"github.com/smilebright/dental-ai-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting dental-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Separate database/sql handle for the staff read views.
	staffDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open staff db handle", "error", err)
		os.Exit(1)
	}
	defer func() { _ = staffDB.Close() }()

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	llm, err := newLLMClient(ctx, cfg)
	if err != nil {
		logger.Error("failed to create LLM client", "error", err, "provider", cfg.LLMProvider)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	assistantMetrics := metrics.NewAssistantMetrics(registry)
	executorMetrics := metrics.NewExecutorMetrics(registry)

	hub := realtime.NewHub(logger)
	bridge := realtime.NewRedisBridge(redisClient, cfg.RealtimeRedisChannel, hub, logger)
	go func() {
		if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("redis bridge stopped", "error", err)
		}
	}()

	apptStore := appointments.NewStore(pool)
	transcriptStore := transcripts.NewStore(pool)
	updater := transcripts.NewUpdater(transcriptStore, bridge, logger)
	executor := appointments.NewExecutor(apptStore, bridge, updater, logger,
		appointments.WithSuggestionHour(cfg.RescheduleSuggestionHour),
		appointments.WithMetrics(executorMetrics))

	historyStore := assistant.NewHistoryStore(redisClient)
	assistantSvc := assistant.NewService(llm, historyStore, assistantMetrics, logger)

	aiHandler := handlers.NewAIHandler(assistantSvc, executor, apptStore, transcriptStore, bridge, logger)
	staffHandler := handlers.NewStaffHandler(staffDB, logger)
	realtimeHandler := realtime.NewHandler(hub, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		AIHandler:          aiHandler,
		StaffHandler:       staffHandler,
		RealtimeHandler:    realtimeHandler,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		PatientJWTSecret:   cfg.PatientJWTSecret,
		StaffJWTSecret:     cfg.StaffJWTSecret,
		AIRateLimit:        cfg.AIRateLimitPerMinute,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func newLLMClient(ctx context.Context, cfg *appconfig.Config) (assistant.LLMClient, error) {
	switch cfg.LLMProvider {
	case "openai":
		return assistant.NewOpenAILLMClient(cfg.OpenAIAPIKey, cfg.OpenAIModelID)
	default:
		return assistant.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
	}
}
