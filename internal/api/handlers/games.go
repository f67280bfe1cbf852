package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/playarena/backend/internal/game"
	"github.com/playarena/backend/internal/models"
)

// GetGame returns a match snapshot by id, from memory or the store
func GetGame(sessions *game.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, err := sessions.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
				return
			}
			log.Printf("[API] Game load failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load game"})
			return
		}
		c.JSON(http.StatusOK, m)
	}
}
