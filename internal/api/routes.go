package api

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/faforge/coordinator/internal/api/handlers"
	"github.com/faforge/coordinator/internal/config"
	"github.com/faforge/coordinator/internal/game"
	"github.com/faforge/coordinator/internal/middleware"
	"github.com/faforge/coordinator/internal/player"
	"github.com/faforge/coordinator/internal/ws"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, db *sqlx.DB, rdb *redis.Client, cfg *config.Config,
	engine *game.Engine, directory *player.Directory, hub *ws.Hub) {

	router.Use(middleware.CORSMiddleware(cfg))

	// No-cache middleware in development so the game list is never stale
	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Println("[DEV MODE] Aggressive no-cache headers enabled for all routes")
	}

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)

		// Session endpoint; authenticated clients speak the game protocol here
		v1.GET("/ws", ws.HandleWebSocket(cfg, engine, directory, hub))

		auth := v1.Group("/auth")
		{
			auth.POST("/register", handlers.Register(db, cfg))
			auth.POST("/login", handlers.Login(db, cfg))
		}

		games := v1.Group("/games")
		{
			games.GET("", handlers.ListGames(engine))
			games.GET("/:id", handlers.GetGame(engine, db))
			games.GET("/:id/stats", handlers.GetGamePlayerStats(db))
		}

		players := v1.Group("/players")
		{
			players.GET("/:login", handlers.GetPlayerProfile(db))
		}
	}
}
