/**
 * @description
 * Product API Handlers.
 * Public shop catalog listing.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - internal/services: OrderService
 */

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/klassik-exchange/backend/internal/services"
)

type ProductHandler struct {
	Orders *services.OrderService
}

func NewProductHandler(orders *services.OrderService) *ProductHandler {
	return &ProductHandler{Orders: orders}
}

// ListProducts returns the active catalog
// GET /api/products
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	products, err := h.Orders.ListActiveProducts(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"products": products})
}
