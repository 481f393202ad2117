package handlers

import (
	"time"

	"github.com/globalcarry/globalcarry/database"
	"github.com/globalcarry/globalcarry/middleware"
	"github.com/globalcarry/globalcarry/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type CreateTripRequest struct {
	Origin        string  `json:"origin" validate:"required,min=2"`
	Destination   string  `json:"destination" validate:"required,min=2"`
	TravelDate    string  `json:"travel_date" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	TotalWeightKg float64 `json:"total_weight_kg" validate:"required,gt=0,lte=100"`
	PricePerKg    float64 `json:"price_per_kg" validate:"required,gt=0"`
}

func CreateTrip(c *fiber.Ctx) error {
	carrierID := middleware.UserID(c)

	var req CreateTripRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	travelDate, _ := time.Parse(time.RFC3339, req.TravelDate)
	if travelDate.Before(time.Now()) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Travel date cannot be in the past"})
	}

	trip := models.Trip{
		ID:                uuid.New(),
		CarrierID:         carrierID,
		Origin:            req.Origin,
		Destination:       req.Destination,
		TravelDate:        travelDate,
		TotalWeightKg:     req.TotalWeightKg,
		AvailableWeightKg: req.TotalWeightKg,
		PricePerKg:        req.PricePerKg,
		IsActive:          true,
	}
	if err := database.DB.Create(&trip).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create trip"})
	}

	return c.Status(fiber.StatusCreated).JSON(trip)
}

func ListTrips(c *fiber.Ctx) error {
	query := database.DB.
		Preload("Carrier").
		Where("is_active = ? AND travel_date > ?", true, time.Now())

	if origin := c.Query("origin"); origin != "" {
		query = query.Where("origin ILIKE ?", "%"+origin+"%")
	}
	if destination := c.Query("destination"); destination != "" {
		query = query.Where("destination ILIKE ?", "%"+destination+"%")
	}
	if date := c.Query("date"); date != "" {
		day, err := time.Parse("2006-01-02", date)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid date filter, expected YYYY-MM-DD"})
		}
		query = query.Where("travel_date >= ? AND travel_date < ?", day, day.AddDate(0, 0, 1))
	}
	if minWeight := c.QueryFloat("min_weight"); minWeight > 0 {
		query = query.Where("available_weight_kg >= ?", minWeight)
	}

	var trips []models.Trip
	if err := query.Order("travel_date asc").Find(&trips).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to search trips"})
	}

	return c.JSON(trips)
}

func GetTrip(c *fiber.Ctx) error {
	tripID := c.Params("tripId")

	var trip models.Trip
	if err := database.DB.Preload("Carrier").First(&trip, "id = ?", tripID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Trip not found"})
	}

	return c.JSON(fiber.Map{
		"trip":             trip,
		"carrier_verified": trip.Carrier.Verified(),
	})
}

func GetMyTrips(c *fiber.Ctx) error {
	carrierID := middleware.UserID(c)

	var trips []models.Trip
	database.DB.Where("carrier_id = ?", carrierID).Order("travel_date desc").Find(&trips)
	return c.JSON(trips)
}

// DeactivateTrip hides a trip from search. Existing bookings keep their
// course; capacity accounting is untouched.
func DeactivateTrip(c *fiber.Ctx) error {
	carrierID := middleware.UserID(c)
	tripID := c.Params("tripId")

	res := database.DB.Model(&models.Trip{}).
		Where("id = ? AND carrier_id = ?", tripID, carrierID).
		Update("is_active", false)
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to deactivate trip"})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Trip not found or not yours"})
	}

	return c.JSON(fiber.Map{"message": "Trip deactivated"})
}
