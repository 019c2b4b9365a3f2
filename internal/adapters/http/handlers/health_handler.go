package handlers

import (
	"coop-ledger/internal/config"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	subscribers func() int
}

// NewHealthHandler creates a new health handler. subscribers reports open event streams.
func NewHealthHandler(subscribers func() int) *HealthHandler {
	return &HealthHandler{subscribers: subscribers}
}

// Root handles root endpoint
// @Summary Root endpoint
// @Description Returns API status
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	mode := ""
	if config.AppConfig != nil {
		mode = config.AppConfig.AppMode
	}
	return c.JSON(fiber.Map{
		"status":  "running",
		"message": "🚀 Coop Ledger API v1.0 is running",
		"mode":    mode,
		"docs":    "/swagger/index.html",
	})
}

// HealthCheck handles health check
// @Summary Health check
// @Description Check API and ledger store health
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	status, overall, storeStatus := fiber.StatusOK, "ok", "healthy"
	if err := config.HealthCheck(); err != nil {
		status, overall, storeStatus = fiber.StatusServiceUnavailable, "degraded", "unhealthy"
	}

	checks := fiber.Map{
		"api":   "healthy",
		"store": storeStatus,
	}
	if h.subscribers != nil {
		checks["stream_subscribers"] = h.subscribers()
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": checks,
	})
}

// APIInfo handles API v1 info
func (h *HealthHandler) APIInfo(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Coop Ledger API v1.0",
		"version": "1.0.0",
	})
}
