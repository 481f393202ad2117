package routes

import (
	"github.com/globalcarry/globalcarry/handlers"
	"github.com/gofiber/fiber/v2"
)

func PaymentRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	// Unauthenticated: authenticity comes from the payload signature.
	api.Post("/payments/webhook", handlers.HandleStripeWebhook)
}
