package main

import (
	"beacon/internal/config"
	"beacon/internal/database"
	"beacon/internal/handlers"
	"beacon/internal/logging"
	"beacon/internal/middleware"
	"beacon/internal/services"
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Beacon collector...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	}

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s)", cfg.Port)

	if cfg.MongoURI == "" {
		log.Fatal("❌ MONGODB_URI environment variable is required (mongodb://host:port/dbname)")
	}

	mongoDB, err := database.NewMongoDB(cfg.MongoURI)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	defer mongoDB.Close(context.Background())

	if err := mongoDB.Initialize(context.Background()); err != nil {
		log.Fatalf("❌ Failed to initialize MongoDB indexes: %v", err)
	}

	if cfg.AdminKey == "" {
		log.Println("⚠️ ADMIN_KEY not set - stats, lookup and export endpoints will reject every request")
	}

	// Redis is optional; without it rate limiting falls back to in-memory
	var redisService *services.RedisService
	if cfg.RedisURL != "" {
		redisService, err = services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Failed to connect to Redis: %v (using in-memory rate limiting)", err)
			redisService = nil
		}
	} else {
		log.Println("⚠️ REDIS_URL not set - using in-memory rate limiting")
	}

	var geoService *services.GeoService
	if cfg.GeoLookupEnabled {
		geoService = services.NewGeoService(cfg.GeoLookupURL)
		log.Printf("🌍 Geolocation enrichment enabled (%s)", cfg.GeoLookupURL)
	} else {
		log.Println("⚠️ Geolocation enrichment disabled")
	}

	visitService := services.NewVisitService(mongoDB, geoService)
	statsService := services.NewStatsService(mongoDB)

	app := fiber.New(fiber.Config{
		AppName:      "Beacon v1.0",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		BodyLimit:    1 * 1024 * 1024, // beacons and transcripts are small
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("beacon")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	// Fiber's CORS middleware does not allow AllowCredentials with wildcard
	// origins. Beacons are credential-less, so wildcard mode just drops it.
	allowCredentials := cfg.AllowedOrigins != "*"
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,x-admin-key",
		AllowCredentials: allowCredentials,
	}))

	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Track: %d per %s per IP", rateLimitConfig.TrackMax, rateLimitConfig.TrackExpiration)

	// Handlers
	healthHandler := handlers.NewHealthHandler()
	trackHandler := handlers.NewTrackHandler(visitService)
	conversationHandler := handlers.NewConversationHandler(visitService)
	statsHandler := handlers.NewStatsHandler(statsService)
	visitHandler := handlers.NewVisitHandler(visitService)
	exportHandler := handlers.NewExportHandler(statsService)

	adminGate := middleware.AdminKeyMiddleware(cfg.AdminKey)

	// Routes
	app.Get("/", healthHandler.Handle)
	app.Post("/track", middleware.TrackRateLimiter(rateLimitConfig, redisService), trackHandler.Handle)
	app.Post("/save_messages", conversationHandler.SaveMessages)
	app.Get("/visit/:id", adminGate, visitHandler.Get)
	app.Get("/stats", adminGate, statsHandler.Global)
	// Must be registered before /stats/:site or "conversations" is captured
	// as a site name.
	app.Get("/stats/conversations", adminGate, statsHandler.Conversations)
	app.Get("/stats/:site", adminGate, statsHandler.Site)
	app.Get("/admin/export", adminGate, exportHandler.Handle)

	// JSON 404 for unmatched routes
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	})

	log.Printf("🌐 Beacon collector listening on port %s", cfg.Port)
	log.Printf("📡 Health check: http://localhost:%s/", cfg.Port)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		if redisService != nil {
			if err := redisService.Close(); err != nil {
				log.Printf("⚠️ Error closing Redis: %v", err)
			}
		}

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
