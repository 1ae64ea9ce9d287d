package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/sparkprog/go-crmsync-backend/internal/api/handlers"
	"github.com/sparkprog/go-crmsync-backend/internal/api/middleware"
	"github.com/sparkprog/go-crmsync-backend/internal/config"
	"github.com/sparkprog/go-crmsync-backend/internal/crm"
	"github.com/sparkprog/go-crmsync-backend/internal/repository"
	"github.com/sparkprog/go-crmsync-backend/internal/syncer"
)

func main() {

	// LOAD ENV
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		panic("failed load config: " + err.Error())
	}

	// LOGGER
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if cfg.AppEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// FIELD MAP SANITY CHECK
	if err := syncer.ValidateFieldMaps(); err != nil {
		logger.Fatal().Err(err).Msg("field map validation failed")
	}

	// INIT DB
	repo, err := repository.NewPostgresRepo(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}

	// MIGRATIONS
	if err := repo.RunMigrations(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("migration error")
	}

	// ADMIN SEED
	hashed, _ := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err := repo.UpsertAdmin(context.Background(), cfg.AdminUsername, string(hashed)); err != nil {
		logger.Error().Err(err).Msg("failed seeding admin")
	} else {
		logger.Info().Msg("admin seeded OK")
	}

	// SERVICES
	crmClient := crm.NewHTTPClient(cfg.CRMBaseURL, cfg.CRMToken)
	syncService := syncer.New(repo, crmClient, cfg, logger)

	// SCHEDULER
	if cfg.SchedulerInterval > 0 {
		scheduler := syncer.NewScheduler(syncService, cfg.SchedulerInterval, logger)
		if err := scheduler.Start(context.Background()); err != nil {
			logger.Fatal().Err(err).Msg("scheduler start failed")
		}
		defer scheduler.Stop()
	}

	// HANDLERS
	authHandler := handlers.NewAuthHandler(repo, cfg.JWTSecret)
	syncHandler := handlers.NewSyncHandler(syncService, repo, logger)

	// ROUTER
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	api := r.Group("/api/v1")

	// AUTH ROUTES
	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
	}

	// SYNC ROUTES
	sync := api.Group("/sync", middleware.Auth(cfg.JWTSecret))
	{
		sync.GET("/history", syncHandler.GetSyncHistory)
		sync.GET("/watermarks", syncHandler.GetWatermarks)
		sync.POST("/:entityType", syncHandler.TriggerSync)
		sync.POST("/:entityType/cancel", syncHandler.CancelSync)
	}
	api.POST("/sync-all", middleware.Auth(cfg.JWTSecret), syncHandler.TriggerSyncAll)

	// AUDIT ROUTES
	api.POST("/audit/fuzzy", middleware.Auth(cfg.JWTSecret), syncHandler.FuzzyAudit)

	// START SERVER
	logger.Info().Str("port", cfg.Port).Msg("server running")
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
