package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/sinaptika/tryout-backend/internal/config"
	"github.com/sinaptika/tryout-backend/internal/database"
	"github.com/sinaptika/tryout-backend/internal/handler"
	"github.com/sinaptika/tryout-backend/internal/logger"
	"github.com/sinaptika/tryout-backend/internal/model"
	"github.com/sinaptika/tryout-backend/internal/repository"
	"github.com/sinaptika/tryout-backend/internal/router"
	"github.com/sinaptika/tryout-backend/internal/service"
	"github.com/sinaptika/tryout-backend/internal/sessionstore"
	"github.com/sinaptika/tryout-backend/internal/validator"
	"github.com/sinaptika/tryout-backend/internal/worker"
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
		Msg("Starting Tryout Backend")

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

	// ─── Initialize Repositories ───────────────────────────────────────
	participantRepo := repository.NewParticipantRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	formatRepo := repository.NewFormatRepository(pool)

	// ─── Initialize Session Stores ─────────────────────────────────────
	// Enrolled participants live in PostgreSQL; guests live entirely in
	// Redis and expire with their TTL.
	stores := service.Stores{
		model.IdentityParticipant: sessionstore.NewPostgresStore(pool, rdb),
		model.IdentityGuest:       sessionstore.NewRedisStore(rdb, cfg.GuestSessionTTL),
	}

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	tokenService := service.NewTokenService(rdb, cfg.PartTokenTTL)
	formatService := service.NewFormatService(formatRepo, rdb, log)
	scoringService := service.NewScoringService()
	answerService := service.NewAnswerService(stores, tokenService, questionRepo, log)
	violationService := service.NewViolationService(stores, tokenService, log)
	sessionService := service.NewExamSessionService(
		stores,
		tokenService,
		formatService,
		questionRepo,
		answerService,
		violationService,
		scoringService,
		log,
	)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:      handler.NewAuthHandler(authService, participantRepo),
		Exam:      handler.NewExamHandler(sessionService),
		Answer:    handler.NewAnswerHandler(answerService),
		Violation: handler.NewViolationHandler(violationService),
		Result:    handler.NewResultHandler(sessionService),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	auditWorker := worker.NewAuditWorker(pool, rdb, log)
	go auditWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

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

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
