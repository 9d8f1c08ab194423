package middleware

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RequestLogger logs every request under prefix with its status and
// duration. Errors are handed to the app's ErrorHandler first so the
// logged status is the one the client sees.
func RequestLogger(logger *slog.Logger, prefix string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		if err := c.Next(); err != nil {
			if herr := c.App().Config().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		path := c.Path()
		if !strings.HasPrefix(path, prefix) {
			return nil
		}
		logger.Info("request",
			"method", c.Method(),
			"path", path,
			"status", c.Response().StatusCode(),
			"duration", time.Since(start),
			"job", c.GetRespHeader("X-Job-ID"),
		)
		return nil
	}
}
