package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"contact-service/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Pinger is satisfied by *bun.DB and *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	db      Pinger
	metrics *metrics.HealthMetrics
	logger  *slog.Logger
	timeout time.Duration
}

func NewHandler(db Pinger, m *metrics.HealthMetrics, logger *slog.Logger) *Handler {
	return &Handler{
		db:      db,
		metrics: m,
		logger:  logger,
		timeout: 2 * time.Second,
	}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}

type HealthResponse struct {
	Status string `json:"status"`
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready reports 503 while the database is unreachable.
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	start := time.Now()
	err := h.db.PingContext(ctx)
	h.metrics.RecordCheck(ctx, "database", time.Since(start), err == nil)

	if err != nil {
		h.logger.WarnContext(ctx, "readiness check failed", "dependency", "database", "error", err)
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
		return
	}

	c.JSON(http.StatusOK, HealthResponse{Status: "ready"})
}
