package middleware

import (
	"strings"
	"time"

	"coop-ledger/internal/config"
	"coop-ledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// StreamPath is the long-lived SSE endpoint
const StreamPath = "/api/v1/stream"

func isStream(c *fiber.Ctx) bool {
	return c.Path() == StreamPath
}

// Setup configures all middlewares for the application
func Setup(app *fiber.App, cfg *config.Config) {
	app.Use(recover.New())

	// gzip would buffer the event stream
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
		Next:  isStream,
	}))

	app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		ReferrerPolicy:            "no-referrer",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-site",
		PermissionPolicy:          "geolocation=(), microphone=(), camera=()",
	}))

	// 100 requests per minute per IP. Open streams and health probes are not counted.
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return isStream(c) || c.Path() == "/health"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return response.Error(c, fiber.StatusTooManyRequests, "Too many requests, please slow down")
		},
	}))

	// userID is set by AuthMiddleware, so ledger writes are attributable in the access log
	format := "${time} | ${status} | ${latency} | ${ip} | ${locals:userID} | ${method} | ${path}\n"
	if cfg.IsProd() {
		format = "${time} | ${status} | ${latency} | ${ip} | ${locals:userID} | ${method} | ${path} | ${error}\n"
	}
	app.Use(logger.New(logger.Config{
		Format:     format,
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   timeZone(cfg),
	}))

	app.Use(cors.New(corsConfig(cfg)))
}

func timeZone(cfg *config.Config) string {
	if cfg.Jobs.Timezone != "" {
		return cfg.Jobs.Timezone
	}
	return "Local"
}

// corsConfig: any origin without credentials in dev, the configured list with cookies in prod
func corsConfig(cfg *config.Config) cors.Config {
	c := cors.Config{
		AllowMethods:  "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,Authorization,Cache-Control",
		ExposeHeaders: "Content-Disposition",
	}
	origins := strings.TrimSpace(cfg.GetAllowedOrigins())
	if cfg.IsDev() || origins == "" || origins == "*" {
		c.AllowOrigins = "*"
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}

// AuthRateLimiter slows down password guessing: 5 login attempts per minute per IP
func AuthRateLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        5,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "-auth"
		},
		LimitReached: func(c *fiber.Ctx) error {
			return response.Error(c, fiber.StatusTooManyRequests, "Too many login attempts, wait a minute")
		},
	})
}

// CustomErrorHandler renders fiber errors (unknown routes, body limits, panics) in the response envelope
func CustomErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return response.Error(c, code, message)
}
