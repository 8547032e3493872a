/**
 * @description
 * Payment API Handlers for shop orders.
 * Creates NOWPayments invoices and processes IPN webhook callbacks, advancing
 * the order through the ledger's status machine (created -> paid/failed/
 * expired/refunded).
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - internal/integrations/nowpayments
 * - internal/services: OrderService
 * - gorm.io/gorm: payment record persistence
 */

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/klassik-exchange/backend/internal/api/middleware"
	"github.com/klassik-exchange/backend/internal/integrations/nowpayments"
	"github.com/klassik-exchange/backend/internal/logger"
	"github.com/klassik-exchange/backend/internal/models"
	"github.com/klassik-exchange/backend/internal/services"
	"gorm.io/gorm"
)

type PaymentHandler struct {
	DB          *gorm.DB
	Orders      *services.OrderService
	Gateway     *nowpayments.Client
	CallbackURL string
}

func NewPaymentHandler(db *gorm.DB, orders *services.OrderService, gateway *nowpayments.Client, callbackURL string) *PaymentHandler {
	return &PaymentHandler{
		DB:          db,
		Orders:      orders,
		Gateway:     gateway,
		CallbackURL: callbackURL,
	}
}

// CreateInvoiceRequest defines payload for shop checkout
type CreateInvoiceRequest struct {
	Items        []services.ShopItem `json:"items"`
	BuyerAddress string              `json:"buyerAddress"`
}

// CreateInvoice builds a shop order and opens a gateway invoice for it
// POST /api/payments/invoice
func (h *PaymentHandler) CreateInvoice(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	if !h.Gateway.Configured() {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Payment gateway not configured"})
	}

	var req CreateInvoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	order, err := h.Orders.CreateShopOrder(c.Context(), userID, req.Items, req.BuyerAddress)
	if err != nil {
		return respondError(c, err)
	}

	invoice, err := h.Gateway.CreateInvoice(c.Context(), nowpayments.InvoiceRequest{
		PriceAmount:      order.TotalAmount,
		PriceCurrency:    "usd",
		PayCurrency:      "eth",
		IPNCallbackURL:   fmt.Sprintf("%s/api/payments/webhook", h.CallbackURL),
		OrderID:          order.ID.String(),
		OrderDescription: fmt.Sprintf("Klassik Shop Order #%s", order.ID),
	})
	if err != nil {
		logger.Error("Failed to create invoice for order %s: %v", order.ID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to create payment invoice"})
	}

	payment := &models.Payment{
		OrderID:       order.ID,
		PaymentID:     invoice.ID,
		InvoiceURL:    invoice.InvoiceURL,
		PayAddress:    invoice.PayAddress,
		PayAmount:     invoice.PayAmount,
		PayCurrency:   invoice.PayCurrency,
		PriceAmount:   invoice.PriceAmount,
		PriceCurrency: invoice.PriceCurrency,
		PaymentStatus: "waiting",
	}
	if err := h.DB.WithContext(c.Context()).Create(payment).Error; err != nil {
		logger.Error("Failed to persist payment for order %s: %v", order.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to record payment"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"orderId":     order.ID,
		"payment_id":  invoice.ID,
		"invoice_url": invoice.InvoiceURL,
		"pay_address": invoice.PayAddress,
		"pay_amount":  invoice.PayAmount,
		"status":      "waiting",
	})
}

// HandleWebhook processes a NOWPayments IPN callback
// POST /api/payments/webhook
func (h *PaymentHandler) HandleWebhook(c *fiber.Ctx) error {
	rawBody := c.Body()
	signature := c.Get("x-nowpayments-sig")

	if !h.Gateway.VerifyIPNSignature(rawBody, signature) {
		logger.Error("Invalid webhook signature")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid signature"})
	}

	var payload nowpayments.IPNPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payload"})
	}
	if payload.PaymentID.String() == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "payment_id required"})
	}

	var payment models.Payment
	err := h.DB.WithContext(c.Context()).Where("payment_id = ?", payload.PaymentID.String()).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Payment not found: %s", payload.PaymentID)
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Payment not found"})
		}
		return respondError(c, err)
	}

	updates := map[string]interface{}{
		"payment_status": payload.PaymentStatus,
		"actually_paid":  payload.ActuallyPaid,
	}
	if err := h.DB.WithContext(c.Context()).Model(&payment).Updates(updates).Error; err != nil {
		return respondError(c, err)
	}

	// Advance the order through the ledger; losing the CAS means a duplicate
	// webhook delivery and is absorbed silently.
	if target, ok := orderStatusForPayment(payload.PaymentStatus); ok {
		applied, err := h.Orders.TransitionStatus(c.Context(), payment.OrderID, models.OrderStatusCreated, target)
		if err != nil {
			logger.Error("Webhook transition failed for order %s: %v", payment.OrderID, err)
		} else if !applied {
			logger.Info("Order %s already past created, webhook ignored", payment.OrderID)
		}
	}

	logger.Info("✅ Webhook processed: order %s payment %s status %s", payment.OrderID, payload.PaymentID, payload.PaymentStatus)
	return c.JSON(fiber.Map{"success": true})
}

// orderStatusForPayment maps gateway payment states to order statuses
func orderStatusForPayment(paymentStatus string) (models.OrderStatus, bool) {
	switch paymentStatus {
	case "finished", "partially_paid":
		return models.OrderStatusPaid, true
	case "failed":
		return models.OrderStatusFailed, true
	case "expired":
		return models.OrderStatusExpired, true
	case "refunded":
		return models.OrderStatusRefunded, true
	default:
		return "", false
	}
}
