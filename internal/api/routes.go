/**
 * @description
 * API Route definitions.
 * Sets up the router groups and assigns handlers.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/api/handlers
 * - backend/internal/api/middleware
 * - backend/internal/services
 * - backend/internal/integrations/nowpayments
 */

package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/klassik-exchange/backend/internal/api/handlers"
	"github.com/klassik-exchange/backend/internal/api/middleware"
	"github.com/klassik-exchange/backend/internal/config"
	"github.com/klassik-exchange/backend/internal/integrations/nowpayments"
	"github.com/klassik-exchange/backend/internal/services"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, db *gorm.DB, rdb *redis.Client, cfg *config.Config) {
	// 1. Initialize Services
	nonceStore := services.NewNonceStore(rdb, cfg.Auth.NonceTTL)
	verifier := services.NewSignatureVerifier()
	authService := services.NewAuthService(db, nonceStore, verifier, cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry)
	orderService := services.NewOrderService(db, cfg.Chain.EscrowAddress, cfg.Chain.KaspaHotWallet)
	gateway := nowpayments.NewClient(cfg.Payments.APIURL, cfg.Payments.APIKey, cfg.Payments.IPNSecret)

	// 2. Initialize Handlers
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(authService)
	orderHandler := handlers.NewOrderHandler(orderService)
	productHandler := handlers.NewProductHandler(orderService)
	paymentHandler := handlers.NewPaymentHandler(db, orderService, gateway, cfg.Payments.CallbackURL)

	// 3. Middleware
	protected := middleware.Protected([]byte(cfg.Auth.JWTSecret))
	authLimit := middleware.RateLimit(rdb, cfg.Server.RateLimitWindow, cfg.Server.RateLimitMax)

	// 4. Define Routes
	api := app.Group("/api")

	// Health Check
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Auth Routes (Public, rate limited)
	auth := api.Group("/auth", authLimit)
	auth.Get("/nonce", authHandler.GetNonce)
	auth.Get("/check", authHandler.Check)
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	// User Routes (Protected)
	user := api.Group("/user", protected)
	user.Get("/me", userHandler.GetMe)

	// Order Routes (Protected)
	orders := api.Group("/orders", protected)
	orders.Post("/", orderHandler.CreateOrder)
	orders.Get("/", orderHandler.ListOrders)
	orders.Get("/:id", orderHandler.GetOrder)

	// Shop Routes
	api.Get("/products", productHandler.ListProducts)
	payments := api.Group("/payments")
	payments.Post("/invoice", protected, paymentHandler.CreateInvoice)
	payments.Post("/webhook", paymentHandler.HandleWebhook) // gateway callback, signature-verified
}
