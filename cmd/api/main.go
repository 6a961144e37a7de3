package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/digischool/exam-api/internal/config"
	"github.com/digischool/exam-api/internal/database"
	"github.com/digischool/exam-api/internal/handler"
	"github.com/digischool/exam-api/internal/middleware"
	"github.com/digischool/exam-api/internal/repository"
	"github.com/digischool/exam-api/internal/router"
	"github.com/digischool/exam-api/internal/scheduler"
	"github.com/digischool/exam-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	examRepo := repository.NewExamRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	resultRepo := repository.NewResultRepository(db)
	assignmentRepo := repository.NewEvaluationAssignmentRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	atomic := repository.NewAtomic(db)

	activityService := service.NewActivityService(activityRepo, logger)
	events := service.NewResultEventPublisher(redisClient, natsConn, cfg.EventChannelBase, logger)

	releaseService := service.NewReleaseService(examRepo, submissionRepo, resultRepo, atomic, activityService, events, logger)
	submissionService := service.NewSubmissionService(examRepo, submissionRepo, atomic, validate, activityService, events, releaseService, logger)
	evaluationService := service.NewEvaluationService(examRepo, submissionRepo, resultRepo, assignmentRepo, releaseService, validate, activityService, logger)
	resultService := service.NewResultService(examRepo, resultRepo, submissionRepo, releaseService, redisClient, cfg.StatisticsCacheTTL, logger)

	submissionHandler := handler.NewSubmissionHandler(submissionService, logger)
	resultHandler := handler.NewResultHandler(resultService, logger)
	evaluationHandler := handler.NewEvaluationHandler(evaluationService, releaseService, logger)
	activityHandler := handler.NewActivityHandler(activityService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler: submissionHandler,
		ResultHandler:     resultHandler,
		EvaluationHandler: evaluationHandler,
		ActivityHandler:   activityHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.ReleaseEnabled {
		releaseScheduler := scheduler.NewReleaseScheduler(releaseService, cfg.ReleaseInterval, logger)
		go releaseScheduler.Start(ctx)
	}

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
