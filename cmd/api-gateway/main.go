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
	"go.uber.org/zap"

	_ "github.com/noah-isme/admissions-crm/api/swagger"
	"github.com/noah-isme/admissions-crm/internal/handler"
	"github.com/noah-isme/admissions-crm/internal/middleware"
	"github.com/noah-isme/admissions-crm/internal/repository"
	"github.com/noah-isme/admissions-crm/internal/service"
	"github.com/noah-isme/admissions-crm/pkg/cache"
	"github.com/noah-isme/admissions-crm/pkg/config"
	"github.com/noah-isme/admissions-crm/pkg/database"
	"github.com/noah-isme/admissions-crm/pkg/jobs"
	"github.com/noah-isme/admissions-crm/pkg/logger"
	corsmiddleware "github.com/noah-isme/admissions-crm/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/admissions-crm/pkg/middleware/requestid"
	"github.com/noah-isme/admissions-crm/pkg/notify"
	"github.com/noah-isme/admissions-crm/pkg/storage"
)

// @title Admissions Telecalling API
// @version 1.0.0
// @description Lead management, assignment, interaction logging and analytics for admissions telecalling teams.
// @BasePath /
// @schemes http
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-auth-token

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

	if cfg.JWT.Secret == "" {
		logr.Fatal("JWT_SECRET must be set")
	}
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	metrics := service.NewMetricsService()
	validate := validator.New()

	var cacheRepo service.CacheRepository
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, analytics cache disabled", zap.Error(err))
		} else {
			repo := repository.NewCacheRepository(client, logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Analytics.CacheTTL, logr, cfg.Analytics.CacheEnabled)

	uploads, err := storage.NewLocalStorage(cfg.Uploads.TempDir)
	if err != nil {
		logr.Fatal("failed to prepare upload directory", zap.Error(err))
	}
	if removed, err := uploads.CleanupOlderThan(cfg.Uploads.MaxAge); err != nil {
		logr.Warn("failed to clean stale uploads", zap.Error(err))
	} else if len(removed) > 0 {
		logr.Info("removed stale uploads", zap.Int("count", len(removed)))
	}

	userRepo := repository.NewUserRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	interactionRepo := repository.NewInteractionRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)

	var notifier *service.NotificationService
	if cfg.Notifications.Enabled {
		mailer := notify.NewSMTPMailer(cfg.Notifications.SMTPHost, cfg.Notifications.SMTPPort,
			cfg.Notifications.Username, cfg.Notifications.Password, cfg.Notifications.From)
		notifier = service.NewNotificationService(mailer, metrics, logr)
		queue := jobs.NewQueue("notifications", notifier.Handle, jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			MaxRetries: cfg.Notifications.Retries,
			RetryDelay: 5 * time.Second,
			Logger:     logr,
		})
		notifier.AttachQueue(queue)
		queue.Start(ctx)
		defer queue.Stop()
	}

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: "admissions-crm",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	leadSvc := service.NewLeadService(leadRepo, userRepo, notifier, cacheSvc, metrics, validate, logr)
	interactionSvc := service.NewInteractionService(interactionRepo, leadRepo, userRepo, userRepo, cacheSvc, metrics, validate, logr)
	importSvc := service.NewImportService(uploads, leadRepo, userRepo, userRepo, cacheSvc, metrics, service.ImportConfig{
		MaxBytes:     cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Uploads.AllowedMIMEs,
	}, logr)
	exportSvc := service.NewExportService(leadRepo, cfg.Exports.PDFTitle, logr)
	analyticsSvc := service.NewAnalyticsService(analyticsRepo, cacheSvc, metrics, cfg.Analytics.DefaultRangeDays, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins, middleware.TokenHeader))
	r.Use(middleware.Metrics(metrics))

	system := handler.NewMetricsHandler(metrics, db)
	r.GET("/health", system.Health)
	r.GET("/ready", system.Ready)
	r.GET("/metrics", system.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Routes{
		Auth:         handler.NewAuthHandler(authSvc),
		Users:        handler.NewUserHandler(userSvc),
		Leads:        handler.NewLeadHandler(leadSvc, importSvc, exportSvc),
		Interactions: handler.NewInteractionHandler(interactionSvc),
		Analytics:    handler.NewAnalyticsHandler(analyticsSvc),
		Tokens:       authSvc,
		TokenHeader:  cfg.JWT.Header,
	}.Register(r.Group(cfg.APIPrefix))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("shutdown error", zap.Error(err))
	}
}
