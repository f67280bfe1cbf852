package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/playarena/backend/internal/api"
	"github.com/playarena/backend/internal/bus"
	"github.com/playarena/backend/internal/config"
	"github.com/playarena/backend/internal/events"
	"github.com/playarena/backend/internal/game"
	"github.com/playarena/backend/internal/redis"
	"github.com/playarena/backend/internal/store"
	"github.com/playarena/backend/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize Redis
	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	// Initialize the event bus (retries internally; fatal on exhaustion)
	publisher, err := bus.Connect(cfg.AmqpURL)
	if err != nil {
		log.Fatalf("Failed to connect to event bus: %v", err)
	}
	defer publisher.Close()

	// Stores
	players := store.NewPlayerStore(rdb, game.Modes(), cfg.RatingKFactor)
	queue := store.NewQueueStore(rdb, game.Modes())
	games := store.NewGameStore(rdb)

	// Transport hub and event fan-out
	hub := ws.NewHub()
	go hub.Run()
	fanout := events.NewFanout(hub, publisher)

	// Session manager and matchmaking engine
	sessions := game.NewSessionManager(players, games, fanout,
		time.Duration(cfg.StartDelaySeconds)*time.Second,
		time.Duration(cfg.EvictDelaySeconds)*time.Second)
	engine := game.NewEngine(queue, sessions, fanout,
		time.Duration(cfg.MatchmakerTickMS)*time.Millisecond)
	go engine.Run(context.Background())

	// Transport gateway
	gateway := ws.NewGateway(hub, players, queue, sessions, fanout)

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	api.SetupRoutes(router, cfg, players, queue, sessions, gateway)

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting PlayArena server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
