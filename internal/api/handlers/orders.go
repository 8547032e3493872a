/**
 * @description
 * Order API Handlers.
 * Swap order creation (returning deposit instructions), owner-scoped reads and
 * paged listing.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - internal/services: OrderService
 */

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/klassik-exchange/backend/internal/api/middleware"
	"github.com/klassik-exchange/backend/internal/logger"
	"github.com/klassik-exchange/backend/internal/services"
)

type OrderHandler struct {
	Orders *services.OrderService
}

func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{Orders: orders}
}

// CreateOrder creates a swap order and returns deposit instructions
// POST /api/orders
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req services.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	order, instructions, err := h.Orders.CreateOrder(c.Context(), userID, req)
	if err != nil {
		return respondError(c, err)
	}

	logger.Info("📦 Order %s created: %.8f %s -> %s", order.ID, order.FromAmount, order.FromChain, order.ToChain)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"orderId":             order.ID,
		"depositInstructions": instructions,
		"estimatedTime":       "5-15 minutes",
		"status":              order.Status,
	})
}

// GetOrder returns one of the caller's orders with deposit and swap status
// GET /api/orders/:id
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Order not found"})
	}

	order, err := h.Orders.GetOrder(c.Context(), orderID, userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(order)
}

// ListOrders returns a page of the caller's orders, newest first
// GET /api/orders?status=&limit=&offset=
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	status := c.Query("status")
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	orders, err := h.Orders.ListOrders(c.Context(), userID, status, limit, offset)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"orders": orders})
}
