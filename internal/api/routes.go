package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/playarena/backend/internal/api/handlers"
	"github.com/playarena/backend/internal/config"
	"github.com/playarena/backend/internal/game"
	"github.com/playarena/backend/internal/middleware"
	"github.com/playarena/backend/internal/store"
	"github.com/playarena/backend/internal/ws"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, cfg *config.Config, players *store.PlayerStore, queue *store.QueueStore, sessions *game.SessionManager, gateway *ws.Gateway) {
	router.Use(middleware.CORSMiddleware(cfg))

	tick := time.Duration(cfg.MatchmakerTickMS) * time.Millisecond

	router.GET("/health", handlers.HealthCheck)
	router.GET("/ws", gateway.HandleWebSocket)

	api := router.Group("/api")
	{
		api.POST("/players", handlers.CreatePlayer(players))
		api.GET("/players/:id", handlers.GetPlayer(players))

		api.GET("/queue/status", handlers.QueueStatus(queue, tick))
		api.GET("/games/:id", handlers.GetGame(sessions))
		api.GET("/leaderboard/:mode", handlers.Leaderboard(players))
	}
}
