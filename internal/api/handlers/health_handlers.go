package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harvest-service/harvest_service/pkg/logger"
)

// Pinger reports backend connectivity
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandlers serves liveness and readiness probes
type HealthHandlers struct {
	db     Pinger
	logger *logger.Logger
}

// NewHealthHandlers creates a new HealthHandlers instance
func NewHealthHandlers(db Pinger, logger *logger.Logger) *HealthHandlers {
	return &HealthHandlers{db: db, logger: logger}
}

// Health handles GET /health
func (h *HealthHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// Ready handles GET /health/ready
func (h *HealthHandlers) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Warn("readiness probe failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"reason": "database unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
