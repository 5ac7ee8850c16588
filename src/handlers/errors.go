package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"orderbook-arena/src/arena"
	"orderbook-arena/src/market"
	"orderbook-arena/src/models"
	"orderbook-arena/src/store"
)

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// OrderNotFoundError is returned when no resting order has the given key.
type OrderNotFoundError struct {
	PriceInTicks   uint64
	SequenceNumber uint64
}

func (e *OrderNotFoundError) Error() string {
	return "order not found"
}

// TraderNotFoundError is returned for a trader without a seat.
type TraderNotFoundError struct {
	Trader string
}

func (e *TraderNotFoundError) Error() string {
	return "trader not found: " + e.Trader
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var validation *ValidationError
	var marketNotFound *store.MarketNotFoundError
	var orderNotFound *OrderNotFoundError
	var traderNotFound *TraderNotFoundError

	switch {
	case errors.As(err, &validation),
		errors.Is(err, store.ErrInvalidName),
		errors.Is(err, market.ErrZeroSize):
		return fiber.StatusBadRequest
	case errors.As(err, &marketNotFound),
		errors.As(err, &orderNotFound),
		errors.As(err, &traderNotFound),
		errors.Is(err, market.ErrTraderNotRegistered):
		return fiber.StatusNotFound
	case errors.Is(err, store.ErrMarketExists),
		errors.Is(err, arena.ErrCapacityExceeded):
		return fiber.StatusConflict
	case errors.Is(err, market.ErrUnsupportedShape):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, store.ErrClosed):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func writeError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	message := err.Error()
	if code == fiber.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("path", c.Path()).
			Str("method", c.Method()).
			Msg("Request failed")
		// edge case: do not leak buffer details to clients
		message = "Internal server error"
	} else {
		log.Warn().
			Err(err).
			Str("path", c.Path()).
			Str("method", c.Method()).
			Int("status", code).
			Msg("Request rejected")
	}
	return c.Status(code).JSON(models.ErrorResponse{Error: message})
}
