package handler

import (
	"context"
	"net/http"
	"time"

	"bookstore/internal/apperr"
	"bookstore/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger reports whether the database is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	db  Pinger
	log *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db Pinger, log *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, log: log}
}

// Health always answers while the process is up
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "bookstore-api"})
}

// Ready answers 503 until the database responds
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		middleware.RespondError(c, h.log, apperr.Wrap(apperr.ServiceUnavailable, "Database service temporarily unavailable. Please try again later.", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "database": "healthy"})
}

// RegisterHealthRoutes registers /health and /ready
func (h *HealthHandler) RegisterHealthRoutes(r gin.IRoutes) {
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
}
