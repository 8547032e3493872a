/**
 * @description
 * Wallet Authentication API Handlers.
 * Nonce issuance, registration, login and wallet-registration checks.
 *
 * Flow: GET /auth/nonce -> user signs the challenge in their wallet ->
 * POST /auth/register or /auth/login with the signature -> JWT.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - internal/services: AuthService
 */

package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/klassik-exchange/backend/internal/logger"
	"github.com/klassik-exchange/backend/internal/services"
)

type AuthHandler struct {
	Auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// RegisterRequest defines payload for wallet registration
type RegisterRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
	Username  string `json:"username"`
}

// LoginRequest defines payload for wallet login
type LoginRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

// GetNonce issues a signing challenge for an address
// GET /api/auth/nonce?address=0x...
func (h *AuthHandler) GetNonce(c *fiber.Ctx) error {
	address := c.Query("address")

	challenge, err := h.Auth.RequestNonce(c.Context(), address)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"nonce":     challenge.Nonce,
		"message":   challenge.Message(),
		"expiresAt": challenge.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Check reports whether a wallet is registered
// GET /api/auth/check?address=0x...
func (h *AuthHandler) Check(c *fiber.Ctx) error {
	address := c.Query("address")

	user, err := h.Auth.FindByAddress(c.Context(), address)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return c.JSON(fiber.Map{"registered": false})
		}
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"registered": true,
		"user":       user,
	})
}

// Register creates a new wallet user
// POST /api/auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Address == "" || req.Signature == "" || req.Username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "address, signature and username are required"})
	}

	result, err := h.Auth.Register(c.Context(), req.Address, req.Signature, req.Username)
	if err != nil {
		logger.Error("Register failed for %s: %v", req.Address, err)
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":   "Registration successful",
		"user":      result.User,
		"token":     result.Token,
		"expiresIn": int64(result.ExpiresIn.Seconds()),
	})
}

// Login authenticates a registered wallet
// POST /api/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Address == "" || req.Signature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "address and signature are required"})
	}

	result, err := h.Auth.Login(c.Context(), req.Address, req.Signature)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"user":      result.User,
		"token":     result.Token,
		"expiresIn": int64(result.ExpiresIn.Seconds()),
	})
}
