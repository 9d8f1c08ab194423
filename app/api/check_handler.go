package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// CheckHandler reports liveness together with the job store in use.
type CheckHandler struct {
	started time.Time
	store   string
}

func NewCheckHandler(store string) *CheckHandler {
	return &CheckHandler{
		started: time.Now(),
		store:   store,
	}
}

func (h *CheckHandler) HandleHealthy(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"result": "ok",
		"store":  h.store,
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}
