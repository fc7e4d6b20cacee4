package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/accademia-musici/academy-api/api/swagger"
	"github.com/accademia-musici/academy-api/internal/handler"
	"github.com/accademia-musici/academy-api/internal/middleware"
	"github.com/accademia-musici/academy-api/internal/models"
	"github.com/accademia-musici/academy-api/internal/repository"
	"github.com/accademia-musici/academy-api/internal/service"
	"github.com/accademia-musici/academy-api/pkg/cache"
	"github.com/accademia-musici/academy-api/pkg/config"
	"github.com/accademia-musici/academy-api/pkg/database"
	"github.com/accademia-musici/academy-api/pkg/jobs"
	"github.com/accademia-musici/academy-api/pkg/logger"
	corsmiddleware "github.com/accademia-musici/academy-api/pkg/middleware/cors"
	reqidmiddleware "github.com/accademia-musici/academy-api/pkg/middleware/requestid"
	"github.com/accademia-musici/academy-api/pkg/storage"
)

// @title Academy API
// @version 1.0.0
// @description Administrative backend for a music academy
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	adminAccessRepo := repository.NewAdminAccessRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	slotRepo := repository.NewLessonSlotRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	requestRepo := repository.NewPaymentRequestRepository(db)
	rateRepo := repository.NewCompensationRateRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	secretaryRepo := repository.NewSecretaryRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	exportStore, err := storage.NewLocalStorage(cfg.Export.Dir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	exportSigner := storage.NewSignedURLSigner(cfg.Session.Secret, cfg.Export.ResultTTL)

	googleVerifier := service.NewGoogleIDTokenVerifier(cfg.GoogleAuth.ClientIDs)

	metricsService := service.NewMetricsService()
	authService := service.NewAuthService(userRepo, sessionRepo, adminAccessRepo, googleVerifier, validate, logr, service.AuthConfig{
		SessionSecret: cfg.Session.Secret,
		SessionTTL:    cfg.Session.TTL,
		PinStepTTL:    cfg.Session.PinStepTTL,
	})
	userService := service.NewUserService(userRepo, adminAccessRepo, validate, logr)
	courseService := service.NewCourseService(courseRepo, userRepo, validate, logr)
	lessonService := service.NewLessonService(lessonRepo, courseRepo, validate, logr)
	settingsService := service.NewSettingsService(settingsRepo, service.SettingsDefaults{
		PaymentDueDay:      cfg.Payments.DueDay,
		ToleranceDays:      cfg.Payments.ToleranceDays,
		MonthlyFee:         cfg.Payments.DefaultMonthly,
		ReminderWindowDays: cfg.Payments.ReminderWindowDays,
	}, validate, logr)
	notificationService := service.NewNotificationService(notificationRepo, paymentRepo, settingsService, validate, logr)
	slotService := service.NewSlotService(slotRepo, userRepo, notificationService, validate, logr)
	attendanceService := service.NewAttendanceService(attendanceRepo, validate, logr)
	paymentService := service.NewPaymentService(paymentRepo, userRepo, settingsService, validate, logr, service.PaymentConfig{
		DueDay:         cfg.Payments.DueDay,
		ToleranceDays:  cfg.Payments.ToleranceDays,
		DefaultMonthly: cfg.Payments.DefaultMonthly,
	})
	requestService := service.NewPaymentRequestService(requestRepo, userRepo, notificationService, validate, logr)
	compensationService := service.NewCompensationService(rateRepo, attendanceRepo, userRepo, validate, logr, cfg.Compensation.DefaultRate)
	assignmentService := service.NewAssignmentService(assignmentRepo, validate, logr)
	secretaryService := service.NewSecretaryService(secretaryRepo, userRepo, validate, logr)
	statsService := service.NewStatsService(statsRepo, cacheRepo, metricsService, logr, cfg.Stats.CacheTTL)

	exportService := service.NewExportService(paymentRepo, attendanceRepo, compensationService, userRepo, exportStore, exportSigner, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Export.ResultTTL,
	}, logr)
	reportWorker := service.NewReportWorker(reportRepo, exportService, cfg.Export.MaxRetries, logr)
	reportQueue := jobs.NewQueue("reports", reportWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Export.Workers,
		MaxRetries: cfg.Export.MaxRetries,
		Logger:     logr,
	})
	reportService := service.NewReportService(reportRepo, reportQueue, exportService, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Export.ResultTTL,
		CleanupInterval: cfg.Export.CleanupInterval,
	})

	authHandler := handler.NewAuthHandler(authService, cfg.Session)
	userHandler := handler.NewUserHandler(userService)
	courseHandler := handler.NewCourseHandler(courseService)
	lessonHandler := handler.NewLessonHandler(lessonService)
	slotHandler := handler.NewSlotHandler(slotService)
	attendanceHandler := handler.NewAttendanceHandler(attendanceService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	requestHandler := handler.NewPaymentRequestHandler(requestService)
	compensationHandler := handler.NewCompensationHandler(compensationService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	assignmentHandler := handler.NewAssignmentHandler(assignmentService)
	secretaryHandler := handler.NewSecretaryHandler(secretaryService)
	statsHandler := handler.NewStatsHandler(statsService)
	settingsHandler := handler.NewSettingsHandler(settingsService)
	automationHandler := handler.NewAutomationHandler(paymentService, notificationService, metricsService)
	reportHandler := handler.NewReportHandler(reportService)

	rootCtx, stopWorkers := context.WithCancel(context.Background())
	reportQueue.Start(rootCtx)
	reportService.RecoverPendingJobs(rootCtx)
	reportService.StartCleanup(rootCtx)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	session := middleware.Session(authService, cfg.Session.CookieName)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleSecretary)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/admin/pin", authHandler.AdminPin)
		auth.POST("/admin/google", authHandler.AdminGoogle)
		auth.POST("/logout", session, authHandler.Logout)
		auth.GET("/me", session, authHandler.Me)
		auth.PUT("/password", session, authHandler.ChangePassword)
	}

	users := api.Group("/users", session)
	{
		users.GET("", staff, userHandler.List)
		users.POST("", adminOnly, userHandler.Create)
		users.GET("/my-students", middleware.RequireRoles(models.RoleTeacher), userHandler.MyStudents)
		users.GET("/:id", middleware.RBAC("ADMIN", "SECRETARY", "SELF"), userHandler.Get)
		users.PUT("/:id", adminOnly, userHandler.Update)
		users.DELETE("/:id", adminOnly, userHandler.Delete)
		users.PUT("/:id/pin", adminOnly, userHandler.SetPin)
	}

	courses := api.Group("/courses", session)
	{
		courses.GET("", courseHandler.List)
		courses.GET("/:id", courseHandler.Get)
		courses.POST("", staff, courseHandler.Create)
		courses.PUT("/:id", staff, courseHandler.Update)
		courses.DELETE("/:id", adminOnly, courseHandler.Delete)
	}

	lessons := api.Group("/lessons", session)
	{
		lessons.GET("", lessonHandler.List)
		lessons.GET("/:id", lessonHandler.Get)
		lessons.POST("", staff, lessonHandler.Create)
		lessons.PUT("/:id", staff, lessonHandler.Update)
		lessons.DELETE("/:id", staff, lessonHandler.Delete)
	}

	slots := api.Group("/slots", session)
	{
		slots.GET("", slotHandler.List)
		slots.GET("/my-bookings", middleware.RequireRoles(models.RoleStudent), slotHandler.MyBookings)
		slots.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleSecretary, models.RoleTeacher), slotHandler.Create)
		slots.POST("/:id/book", middleware.RequireRoles(models.RoleStudent), slotHandler.Book)
		slots.POST("/:id/cancel", slotHandler.CancelBooking)
		slots.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleSecretary, models.RoleTeacher), slotHandler.Delete)
	}

	attendance := api.Group("/attendance", session)
	{
		attendance.GET("", attendanceHandler.List)
		attendance.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), attendanceHandler.Create)
		attendance.PUT("/:id", adminOnly, attendanceHandler.Update)
		attendance.DELETE("/:id", adminOnly, attendanceHandler.Delete)
	}

	payments := api.Group("/payments", session)
	{
		payments.GET("", paymentHandler.List)
		payments.GET("/export", staff, paymentHandler.Export)
		payments.GET("/expiring", staff, paymentHandler.Expiring)
		payments.POST("", staff, paymentHandler.Create)
		payments.POST("/cash", staff, paymentHandler.RegisterCash)
		payments.GET("/:id", paymentHandler.Get)
		payments.PUT("/:id", staff, paymentHandler.Update)
		payments.PUT("/:id/status", staff, paymentHandler.UpdateStatus)
		payments.DELETE("/:id", adminOnly, paymentHandler.Delete)
	}

	requests := api.Group("/payment-requests", session)
	{
		requests.GET("", requestHandler.List)
		requests.POST("", staff, requestHandler.Create)
		requests.GET("/:id", requestHandler.Get)
		requests.POST("/:id/confirm", requestHandler.Confirm)
		requests.POST("/:id/approve", adminOnly, requestHandler.Approve)
		requests.POST("/:id/reject", staff, requestHandler.Reject)
	}

	compensation := api.Group("/compensation", session)
	{
		compensation.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleSecretary, models.RoleTeacher), compensationHandler.Compute)
		compensation.GET("/statement", middleware.RequireRoles(models.RoleAdmin, models.RoleSecretary, models.RoleTeacher), compensationHandler.Statement)
		compensation.GET("/rates", staff, compensationHandler.ListRates)
		compensation.POST("/rates", adminOnly, compensationHandler.SetRate)
		compensation.PUT("/rates/:id", adminOnly, compensationHandler.UpdateRate)
		compensation.DELETE("/rates/:id", adminOnly, compensationHandler.DeleteRate)
	}

	notifications := api.Group("/notifications", session)
	{
		notifications.GET("", staff, notificationHandler.List)
		notifications.GET("/mine", notificationHandler.Mine)
		notifications.POST("", staff, notificationHandler.Create)
		notifications.GET("/:id", staff, notificationHandler.Get)
		notifications.PUT("/:id/active", staff, notificationHandler.SetActive)
		notifications.DELETE("/:id", adminOnly, notificationHandler.Delete)
	}

	assignments := api.Group("/assignments", session)
	{
		assignments.GET("", assignmentHandler.List)
		assignments.POST("", middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin), assignmentHandler.Create)
		assignments.PUT("/:id", assignmentHandler.Update)
		assignments.DELETE("/:id", assignmentHandler.Delete)
	}

	secretaries := api.Group("/secretaries", session)
	{
		secretaries.GET("/:id/permissions", middleware.RBAC("ADMIN", "SELF"), secretaryHandler.Get)
		secretaries.PUT("/:id/permissions", adminOnly, secretaryHandler.Update)
	}

	reports := api.Group("/reports", session)
	{
		reports.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleSecretary, models.RoleTeacher), reportHandler.Create)
		reports.GET("/:id", reportHandler.Status)
	}
	api.GET("/export/:token", reportHandler.Download)

	api.GET("/stats/admin", session, adminOnly, statsHandler.Admin)

	settings := api.Group("/settings", session, adminOnly)
	{
		settings.GET("", settingsHandler.Get)
		settings.PUT("", settingsHandler.Update)
	}

	automation := api.Group("/automation", session, adminOnly)
	{
		automation.POST("/payments/overdue", automationHandler.SweepOverdue)
		automation.POST("/payments/monthly", automationHandler.GenerateMonthly)
		automation.POST("/reminders/payments", automationHandler.PaymentReminders)
		automation.POST("/reminders/expiry", automationHandler.ExpiryReminders)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
	stopWorkers()
	reportQueue.Stop()
	if err := cacheRepo.Close(); err != nil {
		logr.Sugar().Warnw("redis close failed", "error", err)
	}
}
