package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/campushq/registrar-api/api/swagger"
	"github.com/campushq/registrar-api/internal/handler"
	"github.com/campushq/registrar-api/internal/middleware"
	"github.com/campushq/registrar-api/internal/models"
	"github.com/campushq/registrar-api/internal/repository"
	"github.com/campushq/registrar-api/internal/service"
	"github.com/campushq/registrar-api/pkg/cache"
	"github.com/campushq/registrar-api/pkg/config"
	"github.com/campushq/registrar-api/pkg/database"
	"github.com/campushq/registrar-api/pkg/jobs"
	"github.com/campushq/registrar-api/pkg/logger"
	corsmiddleware "github.com/campushq/registrar-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campushq/registrar-api/pkg/middleware/requestid"
)

// @title Registrar API
// @version 1.0.0
// @description Course enrollment and admission control service
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(context.Background(), cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(context.Background(), cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, catalog caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	semesterRepo := repository.NewSemesterRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()

	notifierSvc := service.NewNotifierService(notificationRepo, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}, logr)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	eligibilitySvc := service.NewEligibilityService(enrollmentRepo, semesterRepo, cfg.Enrollment.MaxCredits, logr)
	courseSvc := service.NewCourseService(courseRepo, cacheRepo, metricsSvc, cfg.Enrollment.CatalogCacheTTL, validate, logr)
	semesterSvc := service.NewSemesterService(semesterRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, courseRepo, studentRepo, semesterRepo, eligibilitySvc, notifierSvc, metricsSvc, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	semesterHandler := handler.NewSemesterHandler(semesterSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	notificationHandler := handler.NewNotificationHandler(notifierSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	courses := api.Group("/courses", middleware.JWT(authSvc))
	{
		courses.GET("", courseHandler.List)
		courses.GET("/:id", courseHandler.Get)
		courses.POST("", middleware.RequireRoles(models.RoleAdmin), courseHandler.Create)
		courses.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), courseHandler.Update)
	}

	semesters := api.Group("/semesters", middleware.JWT(authSvc))
	{
		semesters.GET("", semesterHandler.List)
		semesters.GET("/active", semesterHandler.GetActive)
		semesters.GET("/:id", semesterHandler.Get)
		semesters.POST("", middleware.RequireRoles(models.RoleAdmin), semesterHandler.Create)
		semesters.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), semesterHandler.Update)
		semesters.POST("/:id/activate", middleware.RequireRoles(models.RoleAdmin), semesterHandler.Activate)
	}

	enrollments := api.Group("/enrollments", middleware.JWT(authSvc))
	{
		enrollments.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor), enrollmentHandler.List)
		enrollments.GET("/:id", enrollmentHandler.Get)
		enrollments.POST("", enrollmentHandler.Create)
		enrollments.POST("/:id/approve", middleware.RequireRoles(models.RoleAdmin), enrollmentHandler.Approve)
		enrollments.POST("/:id/drop", enrollmentHandler.Drop)
		enrollments.POST("/:id/complete", middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor), enrollmentHandler.Complete)
		enrollments.POST("/bulk-complete", middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor), enrollmentHandler.BulkComplete)
	}

	notifications := api.Group("/notifications", middleware.JWT(authSvc))
	{
		notifications.GET("", notificationHandler.List)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifierSvc.Start(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown failed", zap.Error(err))
	}
	notifierSvc.Stop()
	_ = cacheRepo.Close()
}
