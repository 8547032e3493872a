/**
 * @description
 * User API Handlers.
 * Profile retrieval for the authenticated wallet.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - internal/services: AuthService
 */

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/klassik-exchange/backend/internal/api/middleware"
	"github.com/klassik-exchange/backend/internal/services"
)

type UserHandler struct {
	Auth *services.AuthService
}

func NewUserHandler(auth *services.AuthService) *UserHandler {
	return &UserHandler{Auth: auth}
}

// GetMe returns the authenticated user's profile
// GET /api/user/me
func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	user, err := h.Auth.GetUser(c.Context(), userID.String())
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"user": user})
}
