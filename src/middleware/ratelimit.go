package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"orderbook-arena/src/models"
)

// window counts the requests of one client in the current fixed window.
type window struct {
	start time.Time
	count int
}

type RateLimiter struct {
	maxRequests    int
	windowDuration time.Duration
	now            func() time.Time

	mu      sync.Mutex
	clients map[string]*window
	swept   time.Time
}

func NewRateLimiter(maxRequests int, windowDuration time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests:    maxRequests,
		windowDuration: windowDuration,
		now:            time.Now,
		clients:        make(map[string]*window),
	}
}

func clientID(c *fiber.Ctx) string {
	if ip := c.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := c.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return c.IP()
}

// Allow records one request from client and reports whether it fits in the
// client's current window.
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	w, ok := rl.clients[client]
	if !ok || now.Sub(w.start) >= rl.windowDuration {
		rl.clients[client] = &window{start: now, count: 1}
		return true
	}
	if w.count >= rl.maxRequests {
		return false
	}
	w.count++
	return true
}

// sweep drops expired windows at most once per window duration.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.swept) < rl.windowDuration {
		return
	}
	for client, w := range rl.clients {
		if now.Sub(w.start) >= rl.windowDuration {
			delete(rl.clients, client)
		}
	}
	rl.swept = now
}

func (rl *RateLimiter) Middleware() fiber.Handler {
	limit := strconv.Itoa(rl.maxRequests)
	windowStr := rl.windowDuration.String()

	return func(c *fiber.Ctx) error {
		client := clientID(c)

		if !rl.Allow(client) {
			log.Warn().
				Str("client_ip", client).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("max_requests", rl.maxRequests).
				Msg("Rate limit exceeded")
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Rate limit exceeded: too many requests, please try again later",
			})
		}

		c.Set("X-RateLimit-Limit", limit)
		c.Set("X-RateLimit-Window", windowStr)
		return c.Next()
	}
}
