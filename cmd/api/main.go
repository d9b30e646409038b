package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/uext/extensions-api/api/swagger"
	"github.com/uext/extensions-api/internal/handler"
	"github.com/uext/extensions-api/internal/middleware"
	"github.com/uext/extensions-api/internal/models"
	"github.com/uext/extensions-api/internal/repository"
	"github.com/uext/extensions-api/internal/service"
	"github.com/uext/extensions-api/pkg/cache"
	"github.com/uext/extensions-api/pkg/config"
	"github.com/uext/extensions-api/pkg/database"
	"github.com/uext/extensions-api/pkg/export"
	"github.com/uext/extensions-api/pkg/jobs"
	"github.com/uext/extensions-api/pkg/logger"
	corsmiddleware "github.com/uext/extensions-api/pkg/middleware/cors"
	reqidmiddleware "github.com/uext/extensions-api/pkg/middleware/requestid"
	"github.com/uext/extensions-api/pkg/storage"
)

// @title University Extensions API
// @version 1.0.0
// @description Registration, catalog, enrollment and reporting for university extension programs
// @BasePath /api/v1
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	// Redis is optional: without it the API runs with caching disabled.
	var cacheRepo service.CacheRepository
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
	} else {
		defer redisClient.Close() //nolint:errcheck
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}

	store, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare uploads directory", "error", err)
	}

	mirrorQueue := jobs.NewQueue("upload-mirror", func(_ context.Context, job jobs.Job) error {
		payload, ok := job.Payload.(service.ProofMirrorPayload)
		if !ok {
			return fmt.Errorf("unexpected payload for job %s", job.ID)
		}
		prefix := "proofs"
		if job.Type == "mirror_document" {
			prefix = "documents"
		}
		name := filepath.Join(prefix, payload.EnrollmentID+"-"+filepath.Base(payload.Filename))
		_, err := store.Save(name, payload.Data)
		return err
	}, jobs.QueueConfig{Workers: cfg.Uploads.MirrorWorkers, Logger: logr})
	mirrorQueue.Start(ctx)
	defer mirrorQueue.Stop()

	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := store.CleanupOlderThan(cfg.Uploads.MirrorRetention)
				if err != nil {
					logr.Sugar().Warnw("mirror cleanup failed", "error", err)
					continue
				}
				if len(removed) > 0 {
					logr.Sugar().Infow("mirror cleanup", "removed", len(removed))
				}
			}
		}
	}()

	accountRepo := repository.NewAccountRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	offeringRepo := repository.NewOfferingRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	changeRequestRepo := repository.NewChangeRequestRepository(db)
	reportRepo := repository.NewReportRepository(db)

	metricsService := service.NewMetricsService()
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Eligibility.CacheTTL, logr, cfg.Eligibility.CacheEnabled && cacheRepo != nil)

	authService := service.NewAuthService(accountRepo, catalogRepo, nil, logr, service.AuthConfig{
		Secret:              cfg.JWT.Secret,
		Expiration:          cfg.JWT.Expiration,
		Issuer:              cfg.JWT.Issuer,
		InstitutionalDomain: cfg.Registration.InstitutionalDomain,
	})
	accountService := service.NewAccountService(accountRepo, catalogRepo, nil, logr)
	catalogService := service.NewCatalogService(catalogRepo, nil, logr)
	offeringService := service.NewOfferingService(offeringRepo, cacheService, nil, logr)
	eligibilityService := service.NewEligibilityService(offeringRepo, accountRepo, cacheService, cfg.Eligibility, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, accountRepo, offeringRepo, cacheService, metricsService, mirrorQueue, nil, logr)
	documentService := service.NewDocumentService(documentRepo, accountRepo, mirrorQueue, logr)
	reportService := service.NewReportService(reportRepo, export.NewPDFExporter(), export.NewCSVExporter(), logr)
	changeRequestService := service.NewChangeRequestService(changeRequestRepo, nil, logr)

	authHandler := handler.NewAuthHandler(authService)
	accountHandler := handler.NewAccountHandler(accountService)
	catalogHandler := handler.NewCatalogHandler(catalogService)
	offeringHandler := handler.NewOfferingHandler(offeringService, eligibilityService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService, cfg.Uploads)
	documentHandler := handler.NewDocumentHandler(documentService, cfg.Uploads)
	reportHandler := handler.NewReportHandler(reportService)
	changeRequestHandler := handler.NewChangeRequestHandler(changeRequestService)

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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	requireAuth := middleware.JWT(authService)
	requireAdmin := middleware.RequireRoles(models.RoleAdmin, models.RoleMaster)

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.GET("/me", requireAuth, authHandler.Me)
		}

		api.GET("/programs", catalogHandler.ListPrograms)
		api.POST("/programs", requireAuth, requireAdmin, catalogHandler.CreateProgram)
		api.PUT("/programs/:id", requireAuth, requireAdmin, catalogHandler.UpdateProgram)
		api.DELETE("/programs/:id", requireAuth, requireAdmin, catalogHandler.DeleteProgram)

		api.GET("/categories", catalogHandler.ListCategories)
		api.POST("/categories", requireAuth, requireAdmin, catalogHandler.CreateCategory)
		api.PUT("/categories/:id", requireAuth, requireAdmin, catalogHandler.UpdateCategory)
		api.DELETE("/categories/:id", requireAuth, requireAdmin, catalogHandler.DeleteCategory)

		api.GET("/organizers", catalogHandler.ListOrganizers)
		api.POST("/organizers", requireAuth, requireAdmin, catalogHandler.CreateOrganizer)
		api.PUT("/organizers/:id", requireAuth, requireAdmin, catalogHandler.UpdateOrganizer)
		api.DELETE("/organizers/:id", requireAuth, requireAdmin, catalogHandler.DeleteOrganizer)

		offerings := api.Group("/offerings")
		{
			offerings.GET("", offeringHandler.List)
			offerings.GET("/available", requireAuth, offeringHandler.ListAvailable)
			offerings.GET("/:id", offeringHandler.Get)
			offerings.POST("", requireAuth, requireAdmin, offeringHandler.Create)
			offerings.PUT("/:id", requireAuth, requireAdmin, offeringHandler.Update)
			offerings.DELETE("/:id", requireAuth, requireAdmin, offeringHandler.Delete)
		}

		enrollments := api.Group("/enrollments", requireAuth)
		{
			enrollments.POST("", enrollmentHandler.Create)
			enrollments.GET("/mine", enrollmentHandler.ListMine)
			enrollments.GET("", requireAdmin, enrollmentHandler.List)
			enrollments.PUT("/:id/resolve", requireAdmin, enrollmentHandler.Resolve)
			enrollments.GET("/:id/proof", requireAdmin, enrollmentHandler.DownloadProof)
		}

		documents := api.Group("/documents", requireAuth)
		{
			documents.POST("", documentHandler.Upload)
			documents.GET("/mine", documentHandler.ListMine)
			documents.GET("/:id/download", requireAdmin, documentHandler.Download)
		}

		accounts := api.Group("/accounts", requireAuth, requireAdmin)
		{
			accounts.GET("", accountHandler.List)
			accounts.PUT("/:id", accountHandler.Update)
			accounts.GET("/:id/documents", documentHandler.ListForAccount)
			accounts.PUT("/:id/verify-documents", documentHandler.Verify)
		}

		reports := api.Group("/reports", requireAuth, requireAdmin)
		{
			reports.GET("/financial", reportHandler.Financial)
			reports.GET("/users", reportHandler.Users)
		}

		changeRequests := api.Group("/change-requests", requireAuth)
		{
			changeRequests.POST("", changeRequestHandler.Create)
			changeRequests.GET("/mine", changeRequestHandler.ListMine)
			changeRequests.GET("", requireAdmin, changeRequestHandler.List)
			changeRequests.PUT("/:id/status", requireAdmin, changeRequestHandler.UpdateStatus)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
