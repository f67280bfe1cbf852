package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/playarena/backend/internal/models"
	"github.com/playarena/backend/internal/store"
)

// CreatePlayer registers a new player with default ratings in every mode
func CreatePlayer(players *store.PlayerStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			GameMode string `json:"gameMode" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and gameMode required"})
			return
		}

		player, err := players.Create(c.Request.Context(), req.Username, req.GameMode)
		if err != nil {
			if errors.Is(err, models.ErrInvalidInput) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			log.Printf("[API] Player create failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create player"})
			return
		}

		c.JSON(http.StatusCreated, player)
	}
}

// GetPlayer returns a player record by id
func GetPlayer(players *store.PlayerStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		player, err := players.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "player not found"})
				return
			}
			log.Printf("[API] Player load failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load player"})
			return
		}
		c.JSON(http.StatusOK, player)
	}
}

// Leaderboard returns the top entries for a mode (or "global")
func Leaderboard(players *store.PlayerStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 10
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		entries, err := players.Leaderboard(c.Request.Context(), c.Param("mode"), limit)
		if err != nil {
			log.Printf("[API] Leaderboard read failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read leaderboard"})
			return
		}
		if entries == nil {
			entries = []models.LeaderboardEntry{}
		}
		c.JSON(http.StatusOK, gin.H{"mode": c.Param("mode"), "entries": entries})
	}
}
