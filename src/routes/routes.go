package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
	"github.com/sugawarayuuta/sonnet"

	"orderbook-arena/src/config"
	"orderbook-arena/src/handlers"
	"orderbook-arena/src/metrics"
	"orderbook-arena/src/middleware"
	"orderbook-arena/src/models"
)

// NewApp builds the fiber app with the JSON codec, error handler and all
// routes installed.
func NewApp(cfg config.Config, h *handlers.MarketHandler, m *metrics.Metrics) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "orderbook-arena",
		DisableStartupMessage: true,
		JSONEncoder:           sonnet.Marshal,
		JSONDecoder:           sonnet.Unmarshal,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Error().
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("status", code).
				Str("error", err.Error()).
				Msg("Request error")

			return c.Status(code).JSON(models.ErrorResponse{Error: err.Error()})
		},
	})

	app.Use(recover.New())
	SetupRoutes(app, cfg, h, m)
	return app
}

func SetupRoutes(app *fiber.App, cfg config.Config, h *handlers.MarketHandler, m *metrics.Metrics) {
	serviceAvailability := middleware.NewServiceAvailability(cfg.MaxConcurrentRequests, cfg.MaintenanceMode)
	app.Use(middleware.RequestID())
	app.Use(m.Middleware())
	app.Use(serviceAvailability.Middleware())
	app.Use(middleware.RequestLogger(cfg.RequestLoggingDisabled))

	api := app.Group("/api/v1")

	if !cfg.RateLimit.Disabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
		api.Use(rateLimiter.Middleware())
	}

	api.Get("/shapes", h.Shapes)

	api.Post("/markets", h.CreateMarket)
	api.Get("/markets", h.ListMarkets)
	api.Get("/markets/:name", h.GetMarket)
	api.Delete("/markets/:name", h.DeleteMarket)

	api.Get("/markets/:name/ladder", h.GetLadder)
	api.Get("/markets/:name/ladder/ui", h.GetUILadder)

	api.Get("/markets/:name/books/:side", h.GetOrders)
	api.Post("/markets/:name/orders", h.RestOrder)
	api.Get("/markets/:name/orders/:price/:seq", h.GetOrder)
	api.Delete("/markets/:name/orders/:price/:seq", h.CancelOrder)
	api.Post("/markets/:name/orders/:price/:seq/reduce", h.ReduceOrder)

	api.Get("/markets/:name/traders", h.ListTraders)
	api.Post("/markets/:name/traders", h.RegisterTrader)
	api.Get("/markets/:name/traders/:trader", h.GetTrader)

	app.Get("/health", h.HealthCheck)
	app.Get("/metrics", m.Handler())
}

// Endpoints lists the registered API surface for the startup log.
func Endpoints() []string {
	return []string{
		"GET    /api/v1/shapes",
		"POST   /api/v1/markets",
		"GET    /api/v1/markets",
		"GET    /api/v1/markets/:name",
		"DELETE /api/v1/markets/:name",
		"GET    /api/v1/markets/:name/ladder",
		"GET    /api/v1/markets/:name/ladder/ui",
		"GET    /api/v1/markets/:name/books/:side",
		"POST   /api/v1/markets/:name/orders",
		"GET    /api/v1/markets/:name/orders/:price/:seq",
		"DELETE /api/v1/markets/:name/orders/:price/:seq",
		"POST   /api/v1/markets/:name/orders/:price/:seq/reduce",
		"GET    /api/v1/markets/:name/traders",
		"POST   /api/v1/markets/:name/traders",
		"GET    /api/v1/markets/:name/traders/:trader",
		"GET    /health",
		"GET    /metrics",
	}
}
