package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	sweeper "github.com/phillip/crowdfund-backend/sweeper"
)

// ---------------- SWEEPER ----------------
func StartSweeper(sw *sweeper.Sweeper) gin.HandlerFunc {
	return func(c *gin.Context) {
		sw.Start()
		c.JSON(http.StatusOK, gin.H{"message": "sweeper running"})
	}
}

func StopSweeper(sw *sweeper.Sweeper) gin.HandlerFunc {
	return func(c *gin.Context) {
		sw.Stop()
		c.JSON(http.StatusOK, gin.H{"message": "sweeper stopped"})
	}
}

func SweeperStats(sw *sweeper.Sweeper) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := sw.Stats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not collect stats"})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
