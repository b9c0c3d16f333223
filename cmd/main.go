package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/entheodex/entheodex-backend/internal/clients/cache"
	"github.com/entheodex/entheodex-backend/internal/clients/psywiki"
	"github.com/entheodex/entheodex-backend/internal/clients/wikidata"
	"github.com/entheodex/entheodex-backend/internal/db"
	"github.com/entheodex/entheodex-backend/internal/handlers"
	"github.com/entheodex/entheodex-backend/internal/middleware"
	"github.com/entheodex/entheodex-backend/internal/pkg/logger"
	"github.com/entheodex/entheodex-backend/internal/repos"
	"github.com/entheodex/entheodex-backend/internal/server"
	"github.com/entheodex/entheodex-backend/internal/services"
	"github.com/entheodex/entheodex-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Database. The catalog store is an optional capability: when the backing
	// store cannot be reached the server still starts and mutating endpoints
	// answer STORE_UNCONFIGURED.
	var catalogRepo repos.CatalogRepo
	var runRepo repos.ImportRunRepo
	var audit services.AuditSink

	database, err := db.New(log)
	if err != nil {
		log.Warn("Database init failed, catalog store capability absent", "error", err)
	} else {
		if err := database.AutoMigrateAll(); err != nil {
			log.Error("Auto migration failed", "error", err)
			os.Exit(1)
		}
		gdb := database.DB()
		catalogRepo = repos.NewCatalogRepo(gdb, log)
		runRepo = repos.NewImportRunRepo(gdb, log)
		audit = services.NewAuditSink(runRepo, log)
	}

	// Lookup cache (optional capability, resolved once here)
	lookupCache, err := cache.NewRedisCache(log)
	if err != nil {
		log.Warn("Redis cache init failed, continuing without lookup cache", "error", err)
		lookupCache = nil
	}

	// Source adapters
	log.Info("Setting up source adapters...")
	psywikiClient := psywiki.NewClient(log, lookupCache)
	wikidataClient := wikidata.NewClient(log, lookupCache)

	// Services
	log.Info("Setting up services...")
	importer := services.NewImporterService(log, psywikiClient, wikidataClient, catalogRepo, audit, services.ImporterConfig{
		Concurrency:  utils.GetEnvAsInt("IMPORT_CONCURRENCY", 4, log),
		BatchTimeout: time.Duration(utils.GetEnvAsInt("IMPORT_TIMEOUT_SECONDS", 55, log)) * time.Second,
	})

	// Handlers
	log.Info("Setting up handlers...")
	importHandler := handlers.NewImportHandler(log, importer, runRepo)

	// Middleware
	authSecret := utils.GetEnv("ADMIN_JWT_SECRET", "", log)
	if authSecret == "" {
		log.Error("ADMIN_JWT_SECRET is required")
		os.Exit(1)
	}
	authMiddleware := middleware.NewAuthMiddleware(log, authSecret)

	// Router
	log.Info("Setting up router...")
	origins := strings.Split(utils.GetEnv("CORS_ORIGINS", "http://localhost:3000", log), ",")
	router := server.NewRouter(server.RouterConfig{
		ImportHandler:  importHandler,
		AuthMiddleware: authMiddleware,
		AllowOrigins:   origins,
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
