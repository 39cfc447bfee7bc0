package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veriledger/veriledger/internal/health"
)

// Healthz is the liveness probe. It always succeeds while the process runs.
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz returns the readiness handler. It serves the checker's cached
// snapshot: store connectivity plus the total event count, degraded with a
// 503 when the store is unreachable.
func Readyz(checker *health.Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := checker.Snapshot()
		if !snap.Ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "degraded",
				"store":      "unreachable",
				"checked_at": snap.CheckedAt,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"total_events": snap.TotalEvents,
			"checked_at":   snap.CheckedAt,
		})
	}
}
