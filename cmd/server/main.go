package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/faforge/coordinator/internal/api"
	"github.com/faforge/coordinator/internal/config"
	"github.com/faforge/coordinator/internal/database"
	"github.com/faforge/coordinator/internal/game"
	"github.com/faforge/coordinator/internal/migrations"
	"github.com/faforge/coordinator/internal/player"
	"github.com/faforge/coordinator/internal/rating"
	"github.com/faforge/coordinator/internal/redis"
	"github.com/faforge/coordinator/internal/repository"
	"github.com/faforge/coordinator/internal/stats"
	"github.com/faforge/coordinator/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations on start if requested
	if os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("↗ Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Initialize Redis
	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	// Wire the websocket layer
	hub := ws.NewHub()
	clientService := ws.NewClientService(hub, rdb)
	ws.StartGameEventSubscriber(context.Background(), rdb, hub)

	// Wire the domain services
	directory := player.NewDirectory()
	gameRepository := repository.NewGameRepository(db)
	mapService := repository.NewMapService(db)
	modService, err := repository.NewModService(db)
	if err != nil {
		log.Fatalf("Failed to load featured mods: %v", err)
	}
	ratingService := rating.NewService(db)
	divisionService := rating.NewDivisionService(db)
	armyStatisticsService := stats.NewService(db)

	engine, err := game.NewEngine(cfg, gameRepository, clientService, mapService, modService,
		directory, ratingService, divisionService, armyStatisticsService)
	if err != nil {
		log.Fatalf("Failed to initialize game engine: %v", err)
	}

	// Games a previous process left unfinished can no longer be rated
	if err := engine.UpdateUnfinishedGamesValidity(game.ValidityServerShutdown); err != nil {
		log.Printf("Failed to mark unfinished games: %v", err)
	}

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Initialize API handlers
	api.SetupRoutes(router, db, rdb, cfg, engine, directory, hub)

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting coordinator on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
