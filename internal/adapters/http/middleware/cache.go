package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// NoStore marks responses as uncacheable. Balances, tokens and event streams go through it.
func NoStore() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderCacheControl, "no-store, no-cache, must-revalidate")
		c.Set(fiber.HeaderPragma, "no-cache")
		c.Set(fiber.HeaderExpires, "0")
		return c.Next()
	}
}

// PrivateCache lets the client cache successful GETs for maxAge. Used for the rate table.
func PrivateCache(maxAge time.Duration) fiber.Handler {
	value := "private, max-age=" + strconv.Itoa(int(maxAge.Seconds()))
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() == fiber.MethodGet && c.Response().StatusCode() == fiber.StatusOK {
			c.Set(fiber.HeaderCacheControl, value)
		}
		return err
	}
}
