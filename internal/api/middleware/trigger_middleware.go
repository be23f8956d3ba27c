package middleware

import (
	"crypto/subtle"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	config "github.com/maheshrc27/repostflow/configs"
)

type TriggerMiddleware struct {
	cfg config.Config
}

func NewTriggerMiddleware(cfg config.Config) *TriggerMiddleware {
	return &TriggerMiddleware{cfg: cfg}
}

// RequireTriggerKey gates manual packaging behind the X-Trigger-Key header.
// A server without a configured key refuses the route outright.
func (m *TriggerMiddleware) RequireTriggerKey() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m.cfg.TriggerAPIKey == "" {
			slog.Error("TRIGGER_API_KEY not configured, trigger endpoint disabled")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Server misconfigured. TRIGGER_API_KEY must be set.",
			})
		}

		provided := c.Get("X-Trigger-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(m.cfg.TriggerAPIKey)) != 1 {
			slog.Warn("unauthorized trigger-package attempt", "ip", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized. Provide valid X-Trigger-Key header.",
			})
		}

		return c.Next()
	}
}
