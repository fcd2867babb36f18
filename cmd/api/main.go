package main

import (
	"context"
	"errors"
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
	"gorm.io/gorm"

	"github.com/noah-isme/cbt-go-api/internal/config"
	"github.com/noah-isme/cbt-go-api/internal/database"
	"github.com/noah-isme/cbt-go-api/internal/handler"
	"github.com/noah-isme/cbt-go-api/internal/middleware"
	"github.com/noah-isme/cbt-go-api/internal/repository"
	"github.com/noah-isme/cbt-go-api/internal/router"
	"github.com/noah-isme/cbt-go-api/internal/service"
	cloud "github.com/noah-isme/cbt-go-api/pkg/cloudinary"
	"github.com/noah-isme/cbt-go-api/pkg/payment"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if !cfg.IsProduction() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL, logger)
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
	} else {
		logger.Warn().Msg("redis not configured; stats cache and cross-node fan-out disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	var uploader service.FileUploader
	cloudCfg := cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}
	if cloudCfg.Enabled() {
		cld, err := cloud.New(cloudCfg, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		uploader = cld
	} else {
		logger.Warn().Msg("cloudinary not configured; lesson plan attachments disabled")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	classRepo := repository.NewClassRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	examRepo := repository.NewExamRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	academicResultRepo := repository.NewAcademicResultRepository(db)
	lessonPlanRepo := repository.NewLessonPlanRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	activityService := service.NewActivityService(activityRepo, validate, logger)
	notificationService := service.NewNotificationService(notificationRepo, redisClient, cfg.RealtimeChannel, natsConn, validate, logger)
	monitorService := service.NewExamMonitorService(examRepo, redisClient, cfg.RealtimeChannel, natsConn, logger)
	resultService := service.NewExamResultService(examRepo, attemptRepo, redisClient, cfg.StatsCacheTTL, logger)

	authService := service.NewAuthService(userRepo, schoolRepo, studentRepo, teacherRepo, activityService, cfg.JWTSecret, cfg.JWTTTL, validate, logger)
	schoolService := service.NewSchoolService(schoolRepo, userRepo, notificationService, activityService, validate, logger)
	directoryService := service.NewDirectoryService(classRepo, teacherRepo, studentRepo, userRepo, activityService, validate, logger)
	examService := service.NewExamService(examRepo, attemptRepo, studentRepo, classRepo, monitorService, activityService, validate, logger)
	submissionService := service.NewExamSubmissionService(examRepo, attemptRepo, resultService, monitorService, validate, logger)
	controlService := service.NewExamControlService(examRepo, attemptRepo, resultService, monitorService, activityService, validate, logger)
	academicResultService := service.NewAcademicResultService(academicResultRepo, studentRepo, teacherRepo, classRepo, notificationService, activityService, validate, logger)
	lessonPlanService := service.NewLessonPlanService(lessonPlanRepo, teacherRepo, classRepo, uploader, notificationService, activityService, validate, logger)

	var paymentService service.PaymentService
	if cfg.MidtransServerKey != "" {
		gateway, err := payment.NewMidtrans(payment.Config{ServerKey: cfg.MidtransServerKey, Production: cfg.MidtransProduction}, logger)
		if err != nil {
			log.Fatalf("failed to create payment gateway: %v", err)
		}
		plans := make([]service.PaymentPlan, 0, len(cfg.PaymentPlans))
		for _, plan := range cfg.PaymentPlans {
			plans = append(plans, service.PaymentPlan{Code: plan.Code, Amount: plan.Amount, Days: plan.Days})
		}
		paymentService = service.NewPaymentService(paymentRepo, schoolRepo, userRepo, gateway, plans, cfg.PaymentCurrency, notificationService, activityService, validate, logger)
	} else {
		logger.Warn().Msg("midtrans not configured; payment endpoints disabled")
	}

	realtimeCtx, stopRealtime := context.WithCancel(context.Background())
	defer stopRealtime()
	notificationService.Start(realtimeCtx)
	monitorService.Start(realtimeCtx)

	deps := router.Dependencies{
		AuthHandler:           handler.NewAuthHandler(authService, logger),
		AdminHandler:          handler.NewAdminHandler(schoolService, paymentService, logger),
		ActivityHandler:       handler.NewAdminActivityHandler(activityService, logger),
		DirectoryHandler:      handler.NewDirectoryHandler(directoryService, logger),
		TeacherExamHandler:    handler.NewTeacherExamHandler(examService, controlService, resultService, monitorService, logger),
		StudentExamHandler:    handler.NewStudentExamHandler(examService, submissionService, resultService, logger),
		AcademicResultHandler: handler.NewAcademicResultHandler(academicResultService, logger),
		LessonPlanHandler:     handler.NewLessonPlanHandler(lessonPlanService, logger),
		NotificationHandler:   handler.NewNotificationHandler(notificationService, logger, cfg.SSEKeepAlive),
		HealthChecks:          healthChecks(db, redisClient, natsConn),
		JWTMiddleware:         middleware.JWTProtected(cfg.JWTSecret),
	}
	if paymentService != nil {
		deps.PaymentHandler = handler.NewPaymentHandler(paymentService, logger)
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    12 * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSOrigins,
		AccessLog:    !cfg.IsProduction(),
	})
	router.Register(app, cfg, deps)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, stopRealtime, logger)
}

func healthChecks(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) map[string]handler.HealthCheckFunc {
	checks := map[string]handler.HealthCheckFunc{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if natsConn != nil {
		checks["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		}
	}
	return checks
}

func waitForShutdown(app *fiber.App, stopRealtime context.CancelFunc, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopRealtime()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
