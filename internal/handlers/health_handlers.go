package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/openpayflow/orchestrator/internal/config"
)

// HealthHandler serves GET /healthz and GET /readyz.
type HealthHandler struct {
	db        *gorm.DB
	redis     *redis.Client
	cfg       *config.Config
	startedAt time.Time
}

func NewHealthHandler(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, cfg: cfg, startedAt: time.Now()}
}

// Healthz reports liveness unconditionally: if the process can answer, it
// is healthy. Never checks a dependency.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startedAt).String(),
	})
}

// Readyz reports per-dependency state and 503s if any is down.
func (h *HealthHandler) Readyz(c echo.Context) error {
	ctx := c.Request().Context()
	deps := map[string]string{}
	ready := true

	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		deps["database"] = "down"
		ready = false
	} else {
		deps["database"] = "up"
	}

	if err := h.redis.Ping(ctx).Err(); err != nil {
		deps["redis"] = "down"
		ready = false
	} else {
		deps["redis"] = "up"
	}

	if err := h.cfg.Validate(); err != nil {
		deps["gateways"] = err.Error()
		ready = false
	} else {
		deps["gateways"] = "up"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, map[string]interface{}{
		"ready":        ready,
		"dependencies": deps,
	})
}
