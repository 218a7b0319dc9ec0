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
	"github.com/rs/zerolog"

	"github.com/opengrade/grading-api/internal/config"
	"github.com/opengrade/grading-api/internal/database"
	"github.com/opengrade/grading-api/internal/events"
	"github.com/opengrade/grading-api/internal/handler"
	"github.com/opengrade/grading-api/internal/middleware"
	"github.com/opengrade/grading-api/internal/models"
	"github.com/opengrade/grading-api/internal/repository"
	"github.com/opengrade/grading-api/internal/router"
	"github.com/opengrade/grading-api/internal/service"
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

	if err := db.AutoMigrate(
		&models.Exam{},
		&models.ExamQuestion{},
		&models.AnswerSubmission{},
		&models.GradingAssignment{},
		&models.GradingTask{},
		&models.AbandonmentRecord{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	bus := events.NewBus(nil, "grading", logger)
	if cfg.NATSURL != "" {
		natsConn, err := database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
		bus = events.NewBus(natsConn, "grading", logger)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	taskRepo := repository.NewTaskRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	examRepo := repository.NewExamRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	abandonmentRepo := repository.NewAbandonmentRepository(db)

	plannerService := service.NewPlannerService(examRepo, submissionRepo, taskRepo, assignmentRepo, validate, logger)
	workQueueService := service.NewWorkQueueService(taskRepo, assignmentRepo, bus, validate, logger)
	reassignmentService := service.NewReassignmentService(abandonmentRepo, redisClient, cfg.AbandonFlagThreshold, logger)
	progressService := service.NewProgressService(taskRepo, examRepo, cfg.StatsLocation, cfg.ProgressWindow, logger)

	bus.SubscribeTaskAbandoned(reassignmentService.HandleAbandonment)

	assignmentHandler := handler.NewAssignmentHandler(plannerService, validate, logger)
	taskHandler := handler.NewTaskHandler(workQueueService, validate, logger)
	progressHandler := handler.NewProgressHandler(progressService, logger)
	abandonmentHandler := handler.NewAbandonmentHandler(reassignmentService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AssignmentHandler:  assignmentHandler,
		TaskHandler:        taskHandler,
		ProgressHandler:    progressHandler,
		AbandonmentHandler: abandonmentHandler,
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
