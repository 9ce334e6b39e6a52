package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/haulpass/cdl-backend/internal/bank"
	"github.com/haulpass/cdl-backend/internal/billing"
	"github.com/haulpass/cdl-backend/internal/config"
	"github.com/haulpass/cdl-backend/internal/database"
	"github.com/haulpass/cdl-backend/internal/handler"
	"github.com/haulpass/cdl-backend/internal/logger"
	"github.com/haulpass/cdl-backend/internal/repository"
	"github.com/haulpass/cdl-backend/internal/router"
	"github.com/haulpass/cdl-backend/internal/service"
	"github.com/haulpass/cdl-backend/internal/store"
	"github.com/haulpass/cdl-backend/internal/validator"
	"github.com/haulpass/cdl-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting HaulPass Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Load Question Catalog ─────────────────────────────────────────
	// The bank is read-only after startup; reseeding requires a restart.
	questionRepo := repository.NewQuestionRepository(pool)
	questions, err := questionRepo.LoadAll(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load question catalog")
	}
	if len(questions) == 0 {
		log.Fatal().Msg("Question catalog is empty, run seed-questions first")
	}
	questionBank := bank.New(questions)
	log.Info().Int("questions", questionBank.Size()).Msg("Question catalog loaded")

	// ─── Initialize Services ───────────────────────────────────────────
	kv := store.NewRedisStore(rdb)
	reportRepo := repository.NewReportRepository(pool)
	reportSink := worker.NewQueueReportSink(rdb, log)

	authService := service.NewAuthService(cfg)
	profileService := service.NewProfileService(kv, log)
	sessionManager := service.NewSessionManager(cfg, questionBank, kv, profileService, reportSink, log)
	dashboardService := service.NewDashboardService(kv, reportRepo, questionBank, log)
	accessChecker := billing.NewStoreAccessChecker(kv)

	// ─── Initialize Handlers ───────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:      handler.NewAuthHandler(authService),
		Profile:   handler.NewProfileHandler(profileService),
		Exam:      handler.NewExamHandler(sessionManager),
		Drill:     handler.NewDrillHandler(sessionManager),
		Catalog:   handler.NewCatalogHandler(questionBank, dashboardService),
		Dashboard: handler.NewDashboardHandler(dashboardService),
		WS:        handler.NewWSHandler(sessionManager, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ──────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	reportWorker := worker.NewReportWorker(pool, rdb, log)
	go reportWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, accessChecker, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Tear down live engines. Snapshots stay in Redis, so in-flight
	// sessions resume after restart.
	sessionManager.Shutdown()

	// 3. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
