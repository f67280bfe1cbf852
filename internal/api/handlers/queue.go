package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/playarena/backend/internal/game"
	"github.com/playarena/backend/internal/store"
)

// QueueStatus reports per-mode queue depth and wait estimates
func QueueStatus(queue *store.QueueStore, tick time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := make(map[string]gin.H, len(game.Modes()))
		now := time.Now()

		for _, mode := range game.Modes() {
			entries, err := queue.Snapshot(c.Request.Context(), mode)
			if err != nil {
				log.Printf("[API] Queue snapshot failed for %s: %v", mode, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read queue status"})
				return
			}

			avgWait := 0
			if len(entries) > 0 {
				var total time.Duration
				for _, e := range entries {
					total += now.Sub(e.JoinedAt)
				}
				avgWait = int(total.Seconds()) / len(entries)
			}

			status[mode] = gin.H{
				"playersInQueue":     len(entries),
				"averageWaitTime":    avgWait,
				"estimatedMatchTime": avgWait + int(tick.Seconds()),
			}
		}

		c.JSON(http.StatusOK, status)
	}
}
