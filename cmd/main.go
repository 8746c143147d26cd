package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Dosada05/playoff-scoring/brackets"
	"github.com/Dosada05/playoff-scoring/challenge"
	"github.com/Dosada05/playoff-scoring/config"
	"github.com/Dosada05/playoff-scoring/db"
	"github.com/Dosada05/playoff-scoring/handlers"
	"github.com/Dosada05/playoff-scoring/metrics"
	"github.com/Dosada05/playoff-scoring/repositories"
	api "github.com/Dosada05/playoff-scoring/routes"
	"github.com/Dosada05/playoff-scoring/services"
	"github.com/Dosada05/playoff-scoring/storage"
)

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Описание испытания
	desc, err := challenge.Load(cfg.ChallengeFile)
	if err != nil {
		logger.Error("failed to load challenge description", slog.String("file", cfg.ChallengeFile), slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("challenge description loaded",
		slog.String("title", desc.Title),
		slog.Int("subjective_categories", len(desc.Subjective)),
	)

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Метрики
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	// Архив сводок в Cloudflare R2 (опционально)
	var archive services.SummaryArchiver
	if cfg.ArchiveEnabled() {
		uploader, err := storage.NewCloudflareR2Uploader(ctx, storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		archive = storage.NewSummaryArchive(uploader)
		logger.Info("summary archive enabled", slog.String("bucket", cfg.R2BucketName))
	}

	// Инициализация WebSocket Hub
	wsHub := brackets.NewHub()
	go wsHub.Run(ctx)
	logger.Info("WebSocket Hub started")

	// Инициализация репозиториев
	transactor := repositories.NewTransactor(dbConn, logger)
	performanceRepo := repositories.NewPostgresPerformanceRepository(dbConn)
	subjectiveRepo := repositories.NewPostgresSubjectiveRepository(dbConn)
	playoffRepo := repositories.NewPostgresPlayoffRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	summaryRepo := repositories.NewPostgresSummaryRepository(dbConn)
	logger.Info("Repositories initialized")

	// Инициализация сервисов
	engine := services.NewPlayoffEngine(performanceRepo, playoffRepo, tournamentRepo, desc, appMetrics, logger)
	scoreService := services.NewScoreService(transactor, performanceRepo, tournamentRepo, engine, desc, wsHub, appMetrics, logger)
	rankingService := services.NewRankingService(performanceRepo, summaryRepo, teamRepo, tournamentRepo, desc, logger)
	bracketService := services.NewBracketService(playoffRepo, performanceRepo, logger)
	summarizer := services.NewSummarizerService(transactor, performanceRepo, subjectiveRepo, summaryRepo, teamRepo, tournamentRepo,
		desc, archive, appMetrics, logger)
	logger.Info("Services initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Score:     handlers.NewScoreHandler(scoreService),
		Ranking:   handlers.NewRankingHandler(rankingService),
		Bracket:   handlers.NewBracketHandler(bracketService),
		Summary:   handlers.NewSummaryHandler(summarizer),
		WebSocket: handlers.NewWebSocketHandler(wsHub),
	}, registry, cfg.CORSAllowedOrigins)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
