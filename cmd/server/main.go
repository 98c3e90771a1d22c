package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/resumeintel/interview-backend/internal/chain"
	"github.com/resumeintel/interview-backend/internal/config"
	"github.com/resumeintel/interview-backend/internal/database"
	"github.com/resumeintel/interview-backend/internal/grader"
	"github.com/resumeintel/interview-backend/internal/handler"
	"github.com/resumeintel/interview-backend/internal/logger"
	"github.com/resumeintel/interview-backend/internal/repository"
	"github.com/resumeintel/interview-backend/internal/router"
	"github.com/resumeintel/interview-backend/internal/scoring"
	"github.com/resumeintel/interview-backend/internal/service"
	"github.com/resumeintel/interview-backend/internal/session"
	"github.com/resumeintel/interview-backend/internal/store"
	"github.com/resumeintel/interview-backend/internal/validator"
	"github.com/resumeintel/interview-backend/internal/worker"
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
		Msg("Starting Interview Backend")

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

	// ─── Durable Stores ────────────────────────────────────────────────
	sink, err := store.NewFileStore(cfg.SessionDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session store")
	}

	auditChain, err := chain.Open(cfg.ChainPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open audit chain")
	}

	// ─── Scoring Engine And Session Registry ───────────────────────────
	scoringCfg := scoring.DefaultConfig()
	scoringCfg.WarnThreshold = cfg.WarnThreshold
	scoringCfg.TerminateThreshold = cfg.TerminateThreshold
	scoringCfg.ConfidenceSlope = cfg.ConfidenceSlope
	scoringCfg.NoFaceGrace = cfg.NoFaceGrace
	scoringCfg.GazeGrace = cfg.GazeGrace
	scoringCfg.GazeFloor = cfg.GazeFloor

	registry := session.NewRegistry(scoring.NewEngine(scoringCfg))

	// ─── Answer Grader ─────────────────────────────────────────────────
	var answerGrader grader.Grader = grader.Heuristic{}
	if cfg.GraderAPIKey != "" {
		answerGrader = grader.NewLLM(cfg.GraderBaseURL, cfg.GraderAPIKey, cfg.GraderModel, log)
		log.Info().Str("model", cfg.GraderModel).Msg("Remote answer grader enabled")
	} else {
		log.Info().Msg("No grader API key set, using heuristic answer grader")
	}

	// ─── Initialize Services ──────────────────────────────────────────
	interviewService := service.NewInterviewService(registry, sink, auditChain, answerGrader, rdb, log)
	questionService := service.NewQuestionService(cfg.QuestionsDir, log)

	// ─── Initialize Repositories ───────────────────────────────────────
	archiveRepo := repository.NewArchiveRepository(pool)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Interview: handler.NewInterviewHandler(interviewService, questionService),
		Monitor:   handler.NewMonitorHandler(rdb, interviewService, archiveRepo, log),
		System:    handler.NewSystemHandler(rdb, interviewService, log),
		WS:        handler.NewWSHandler(interviewService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	eventWorker := worker.NewEventWorker(archiveRepo, rdb, log)
	summaryWorker := worker.NewSummaryWorker(archiveRepo, rdb, log)

	go eventWorker.Start(workerCtx)
	go summaryWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, cfg)

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
