package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	UserIDHeader = "X-User-ID"
	UserIDLocal  = "user_id"
)

// RequireUser reads the initiating user from the X-User-ID header. It
// identifies who a run belongs to; it does not authenticate.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get(UserIDHeader))
		if userID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing " + UserIDHeader + " header",
			})
		}
		c.Locals(UserIDLocal, userID)
		return c.Next()
	}
}
