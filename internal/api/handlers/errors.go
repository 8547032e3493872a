/**
 * @description
 * Shared mapping from service-layer domain errors to HTTP responses.
 * Handlers never leak stack traces: clients get {error: message} with the
 * status implied by the error class.
 */

package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/klassik-exchange/backend/internal/services"
)

// respondError converts a domain error into a JSON error response
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		status = fiber.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized):
		status = fiber.StatusUnauthorized
	case errors.Is(err, services.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrConflict), errors.Is(err, services.ErrInvalidTransition):
		status = fiber.StatusConflict
	}

	message := err.Error()
	if status == fiber.StatusInternalServerError {
		// Do not leak internals on unexpected failures
		message = "Internal server error"
	}

	return c.Status(status).JSON(fiber.Map{"error": message})
}
