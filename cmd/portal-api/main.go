package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/twoem/portal-api/api/swagger"
	"github.com/twoem/portal-api/internal/handler"
	"github.com/twoem/portal-api/internal/middleware"
	"github.com/twoem/portal-api/internal/models"
	"github.com/twoem/portal-api/internal/repository"
	"github.com/twoem/portal-api/internal/service"
	"github.com/twoem/portal-api/pkg/cache"
	"github.com/twoem/portal-api/pkg/config"
	"github.com/twoem/portal-api/pkg/crypto"
	"github.com/twoem/portal-api/pkg/database"
	"github.com/twoem/portal-api/pkg/export"
	"github.com/twoem/portal-api/pkg/jobs"
	"github.com/twoem/portal-api/pkg/logger"
	"github.com/twoem/portal-api/pkg/mail"
	corsmiddleware "github.com/twoem/portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/twoem/portal-api/pkg/middleware/requestid"
	"github.com/twoem/portal-api/pkg/storage"
)

// @title Portal API
// @version 1.0.0
// @description Role-based institutional portal: students, artifacts, resets and notifications
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	// Redis is optional: listings fall back to the database when it is down.
	var cacheSvc *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Artifacts.ListingCacheTTL, logr, false)
	} else {
		defer redisClient.Close()
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Artifacts.ListingCacheTTL, logr, true)
	}

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	artifactRepo := repository.NewArtifactRepository(db)
	resetRepo := repository.NewResetRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	contactRepo := repository.NewContactRepository(db)
	credentialRepo := repository.NewCredentialRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)

	expiryPolicy := service.NewExpiryPolicy(cfg.Artifacts.EulogyExpiryDays, cfg.Resets.CodeTTL)

	authSvc := service.NewAuthService(userRepo, studentRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	studentSvc := service.NewStudentService(studentRepo, userRepo, validate, logr)
	artifactSvc := service.NewArtifactService(artifactRepo, cacheSvc, expiryPolicy, service.ArtifactsPolicy{
		MaxFileSizeBytes: cfg.Artifacts.MaxFileSizeBytes,
		AllowedTypes:     cfg.Artifacts.AllowedTypes,
		ListingCacheTTL:  cfg.Artifacts.ListingCacheTTL,
	}, validate, logr)
	releaseSvc := service.NewReleaseService(artifactRepo, studentRepo, expiryPolicy, metricsSvc, logr)

	mailer := mail.New(cfg.Mail, logr)
	resetSvc := service.NewResetService(resetRepo, userRepo, mailer, expiryPolicy, cfg.Resets.CodeDigits, validate, logr)

	notificationSvc := service.NewNotificationService(notificationRepo, userRepo, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		Logger:     logr,
	}, validate, logr)
	contactSvc := service.NewContactService(contactRepo, validate, logr)

	sealer, err := crypto.NewSealer(cfg.Crypto.EncryptionKey)
	if err != nil {
		logr.Sugar().Fatalw("failed to init credential sealer", "error", err)
	}
	credentialSvc := service.NewCredentialService(credentialRepo, sealer, validate, logr)
	catalogSvc := service.NewCatalogService(catalogRepo, logr)

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	exportSigner := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(studentRepo, exportStore, exportSigner, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr, export.NewCSVExporter(), export.NewPDFExporter())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := seedStartupData(ctx, cfg, userRepo, catalogSvc, logr); err != nil {
		logr.Sugar().Fatalw("startup seeding failed", "error", err)
	}

	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	go runExportCleanup(ctx, exportSvc, cfg.Exports.CleanupInterval, cfg.Exports.SignedURLTTL, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	registerRoutes(r, cfg, routeDeps{
		auth:          authSvc,
		metrics:       metricsSvc,
		authHandler:   handler.NewAuthHandler(authSvc),
		students:      handler.NewStudentHandler(studentSvc),
		artifacts:     handler.NewArtifactHandler(artifactSvc, releaseSvc),
		resets:        handler.NewResetHandler(resetSvc),
		notifications: handler.NewNotificationHandler(notificationSvc),
		contact:       handler.NewContactHandler(contactSvc),
		credentials:   handler.NewCredentialHandler(credentialSvc),
		catalog:       handler.NewCatalogHandler(catalogSvc),
		exports:       handler.NewExportHandler(exportSvc),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}

type routeDeps struct {
	auth    *service.AuthService
	metrics *service.MetricsService

	authHandler   *handler.AuthHandler
	students      *handler.StudentHandler
	artifacts     *handler.ArtifactHandler
	resets        *handler.ResetHandler
	notifications *handler.NotificationHandler
	contact       *handler.ContactHandler
	credentials   *handler.CredentialHandler
	catalog       *handler.CatalogHandler
	exports       *handler.ExportHandler
}

func registerRoutes(r *gin.Engine, cfg *config.Config, d routeDeps) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(d.metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Public surface. Downloads carry optional auth so eligibility and
	// ownership rules can apply when a token is present.
	api.POST("/auth/register", d.authHandler.Register)
	api.POST("/auth/login", d.authHandler.Login)
	api.GET("/files", d.artifacts.ListPublicFiles)
	api.GET("/files/:id", middleware.OptionalJWT(d.auth), d.artifacts.Download)
	api.GET("/eulogies", d.artifacts.ListPublicEulogies)
	api.GET("/eulogies/:id", middleware.OptionalJWT(d.auth), d.artifacts.Download)
	api.GET("/artifacts/:id/download", middleware.OptionalJWT(d.auth), d.artifacts.Download)
	api.GET("/services", d.catalog.List)
	api.POST("/contact", d.contact.Submit)
	api.POST("/resets/request", d.resets.Request)
	api.POST("/resets/complete", d.resets.Complete)
	// Export downloads are gated by the signed token in the URL, not a session.
	api.GET("/admin/exports/download", d.exports.Download)

	authed := api.Group("", middleware.JWT(d.auth))
	authed.GET("/auth/me", d.authHandler.Me)
	authed.POST("/auth/change-password", d.authHandler.ChangePassword)
	authed.GET("/students/me", d.students.GetOwn)
	authed.GET("/students/me/certificate", d.artifacts.DownloadOwnCertificate)
	authed.GET("/students/:id", d.students.Get)
	authed.GET("/students/:id/eligibility", d.students.Eligibility)
	authed.POST("/files", d.artifacts.UploadFile)
	authed.GET("/files/mine", d.artifacts.ListMyFiles)
	authed.PATCH("/artifacts/:id", d.artifacts.Patch)
	authed.DELETE("/artifacts/:id", d.artifacts.Delete)
	authed.GET("/notifications/inbox", d.notifications.Inbox)
	authed.GET("/notifications/unread-count", d.notifications.UnreadCount)
	authed.POST("/notifications/inbox/:id/read", d.notifications.MarkRead)

	admin := api.Group("", middleware.JWT(d.auth), middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/students", d.students.Create)
	admin.GET("/students", d.students.List)
	admin.PATCH("/students/:id", d.students.Patch)
	admin.DELETE("/students/:id", d.students.Delete)
	admin.PATCH("/students/:id/academics", d.students.PatchAcademic)
	admin.PATCH("/students/:id/finance", d.students.PatchFinance)
	admin.PUT("/students/:id/certificate", d.students.UploadCertificate)
	admin.POST("/eulogies", d.artifacts.UploadEulogy)
	admin.GET("/admin/artifacts", d.artifacts.ListAll)
	admin.POST("/admin/artifacts/purge-expired", d.artifacts.PurgeExpired)
	admin.GET("/admin/resets", d.resets.List)
	admin.POST("/admin/resets/:id/approve", d.resets.Approve)
	admin.POST("/admin/resets/:id/reject", d.resets.Reject)
	admin.POST("/notifications", d.notifications.Create)
	admin.GET("/admin/contact", d.contact.List)
	admin.POST("/admin/contact/:id/read", d.contact.MarkRead)
	admin.POST("/admin/credentials", d.credentials.Create)
	admin.GET("/admin/credentials", d.credentials.List)
	admin.PATCH("/admin/services/:id", d.catalog.Patch)
	admin.POST("/admin/exports", d.exports.Generate)
}

// seedStartupData provisions the bootstrap admin account and the default
// service catalog on first boot. Both are idempotent.
func seedStartupData(ctx context.Context, cfg *config.Config, users *repository.UserRepository, catalog *service.CatalogService, logr *zap.Logger) error {
	if err := catalog.Seed(ctx); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}

	if cfg.Bootstrap.AdminEmail == "" || cfg.Bootstrap.AdminPassword == "" {
		logr.Warn("bootstrap admin not configured, skipping")
		return nil
	}

	_, err := users.FindByEmail(ctx, cfg.Bootstrap.AdminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("lookup bootstrap admin: %w", err)
	}

	hash, err := crypto.HashPassword(cfg.Bootstrap.AdminPassword)
	if err != nil {
		return fmt.Errorf("hash bootstrap admin password: %w", err)
	}
	now := time.Now().UTC()
	admin := &models.User{
		ID:           uuid.NewString(),
		Email:        cfg.Bootstrap.AdminEmail,
		PasswordHash: hash,
		FullName:     cfg.Bootstrap.AdminName,
		Role:         models.RoleAdmin,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := users.Create(ctx, admin); err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}
	logr.Info("bootstrap admin created", zap.String("email", admin.Email))
	return nil
}

func runExportCleanup(ctx context.Context, exports *service.ExportService, interval, ttl time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := exports.Cleanup(ttl)
			if err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				logr.Info("expired exports removed", zap.Int("count", len(removed)))
			}
		}
	}
}
