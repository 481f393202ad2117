package routes

import (
	"github.com/globalcarry/globalcarry/handlers"
	"github.com/globalcarry/globalcarry/middleware"
	"github.com/gofiber/fiber/v2"
)

func AdminRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	admin := api.Group("/admin", middleware.Protected(), middleware.AdminRequired())
	admin.Get("/users", handlers.AdminGetAllUsers)
	admin.Patch("/users/:userId/kyc", handlers.AdminReviewKyc)
	admin.Patch("/users/:userId/status", handlers.AdminToggleUserStatus)
	admin.Get("/bookings", handlers.AdminGetAllBookings)
	admin.Get("/payments", handlers.AdminGetPayments)
	admin.Post("/bookings/:bookingId/refund", handlers.AdminForceRefund)
}
