package routes

import (
	"github.com/globalcarry/globalcarry/handlers"
	"github.com/globalcarry/globalcarry/middleware"
	"github.com/gofiber/fiber/v2"
)

func TripRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	api.Get("/trips", handlers.ListTrips)
	api.Get("/trips/:tripId", handlers.GetTrip)

	trips := api.Group("/trips", middleware.Protected())
	trips.Post("", handlers.CreateTrip)
	trips.Delete("/:tripId", handlers.DeactivateTrip)

	api.Get("/carrier/trips", middleware.Protected(), handlers.GetMyTrips)
}
