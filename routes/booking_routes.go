package routes

import (
	"github.com/globalcarry/globalcarry/handlers"
	"github.com/globalcarry/globalcarry/middleware"
	"github.com/gofiber/fiber/v2"
)

func BookingRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	api.Post("/trips/:tripId/bookings", middleware.Protected(), handlers.CreateBooking)

	booking := api.Group("/bookings", middleware.Protected())
	booking.Get("/me", handlers.GetMyBookings)
	booking.Get("/carrier", handlers.GetCarrierBookings)
	booking.Get("/:bookingId", handlers.GetBooking)
	booking.Post("/:bookingId/checkout", handlers.BeginCheckout)
	booking.Post("/:bookingId/confirm-payment", handlers.ConfirmPayment)
	booking.Post("/:bookingId/accept", handlers.AcceptBooking)
	booking.Post("/:bookingId/reject", handlers.RejectBooking)
	booking.Post("/:bookingId/in-transit", handlers.MarkInTransit)
	booking.Post("/:bookingId/confirm-delivery", handlers.ConfirmDelivery)
	booking.Post("/:bookingId/refund", handlers.RefundBooking)
}
