package handlers

import (
	"errors"
	"log"

	"github.com/globalcarry/globalcarry/database"
	"github.com/globalcarry/globalcarry/escrow"
	"github.com/globalcarry/globalcarry/middleware"
	"github.com/globalcarry/globalcarry/models"
	"github.com/globalcarry/globalcarry/notifications"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type CreateBookingRequest struct {
	WeightKg    float64 `json:"weight_kg" validate:"required,gt=0"`
	Title       string  `json:"title" validate:"required,min=3,max=255"`
	Description string  `json:"description,omitempty"`
}

type ConfirmDeliveryRequest struct {
	Pin string `json:"pin" validate:"required,len=4,numeric"`
}

type RefundRequest struct {
	Reason string `json:"reason,omitempty"`
}

// escrowError maps engine errors onto HTTP responses. Idempotent no-ops
// come back as plain 200s so client and processor retry loops stay quiet.
func escrowError(c *fiber.Ctx, err error) error {
	var gw *escrow.GatewayError

	switch {
	case escrow.AlreadyApplied(err):
		return c.JSON(fiber.Map{"success": true, "message": "Already processed"})
	case errors.Is(err, escrow.ErrCapacityExceeded),
		errors.Is(err, escrow.ErrTripInactive),
		errors.Is(err, escrow.ErrOwnTrip),
		errors.Is(err, escrow.ErrInvalidPin):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, escrow.ErrNotCarrier), errors.Is(err, escrow.ErrNotSender):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, escrow.ErrPreconditionFailed),
		errors.Is(err, escrow.ErrPaymentNotHeld),
		errors.Is(err, escrow.ErrAlreadyPaid),
		errors.Is(err, escrow.ErrCannotRefundReleased):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &gw):
		log.Printf("🔥 Payment gateway failure: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Payment provider is unavailable, please try again"})
	case escrow.IsNotFound(err):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Booking not found"})
	default:
		log.Printf("🔥 Booking operation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
}

func parcelParam(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("bookingId"))
	if err != nil {
		return uuid.Nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking ID format"})
	}
	return id, nil
}

func CreateBooking(c *fiber.Ctx) error {
	senderID := middleware.UserID(c)

	tripID, err := uuid.Parse(c.Params("tripId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trip ID format"})
	}

	var req CreateBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	booking, err := Engine.CreateBooking(senderID, tripID, req.WeightKg, req.Title, req.Description)
	if err != nil {
		if escrow.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Trip not found"})
		}
		return escrowError(c, err)
	}

	// The plaintext PIN exists only in this response. It is shown to the
	// sender once and cannot be recovered afterwards.
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"booking":      booking.Parcel,
		"delivery_pin": booking.Pin,
	})
}

func BeginCheckout(c *fiber.Ctx) error {
	parcelID, err := parcelParam(c)
	if err != nil {
		return err
	}

	redirectURL, err := Engine.BeginPayment(parcelID, middleware.UserID(c))
	if err != nil {
		return escrowError(c, err)
	}

	return c.JSON(fiber.Map{"url": redirectURL})
}

func ConfirmPayment(c *fiber.Ctx) error {
	parcelID, err := parcelParam(c)
	if err != nil {
		return err
	}

	if err := Engine.ConfirmPayment(parcelID, middleware.UserID(c)); err != nil {
		return escrowError(c, err)
	}

	go notifyParcelEvent(parcelID, "payment_confirmed")

	return c.JSON(fiber.Map{"success": true, "message": "Payment confirmed! Waiting for carrier to accept."})
}

func AcceptBooking(c *fiber.Ctx) error {
	parcelID, err := parcelParam(c)
	if err != nil {
		return err
	}

	if err := Engine.Accept(parcelID, middleware.UserID(c)); err != nil {
		return escrowError(c, err)
	}

	go notifyParcelEvent(parcelID, "accepted")

	return c.JSON(fiber.Map{"success": true, "message": "Booking accepted. Payment stays in escrow until delivery."})
}

func RejectBooking(c *fiber.Ctx) error {
	parcelID, err := parcelParam(c)
	if err != nil {
		return err
	}

	if err := Engine.Reject(parcelID, middleware.UserID(c)); err != nil {
		return escrowError(c, err)
	}

	go notifyParcelEvent(parcelID, "rejected")

	return c.JSON(fiber.Map{"success": true, "message": "Booking rejected. Any held payment has been refunded."})
}

func MarkInTransit(c *fiber.Ctx) error {
	parcelID, err := parcelParam(c)
	if err != nil {
		return err
	}

	if err := Engine.MarkInTransit(parcelID, middleware.UserID(c)); err != nil {
		return escrowError(c, err)
	}

	go notifyParcelEvent(parcelID, "in_transit")

	return c.JSON(fiber.Map{"success": true, "message": "Parcel marked as in transit."})
}

func ConfirmDelivery(c *fiber.Ctx) error {
	parcelID, err := parcelParam(c)
	if err != nil {
		return err
	}

	var req ConfirmDeliveryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	settlement, err := Engine.ConfirmDelivery(parcelID, middleware.UserID(c), req.Pin)
	if err != nil {
		return escrowError(c, err)
	}

	go notifyParcelEvent(parcelID, "delivered")

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Delivery confirmed. Payment released to carrier.",
		"payout": fiber.Map{
			"total_cents":          settlement.TotalCents,
			"platform_fee_cents":   settlement.PlatformFeeCents,
			"carrier_payout_cents": settlement.CarrierPayoutCents,
		},
	})
}

func RefundBooking(c *fiber.Ctx) error {
	parcelID, err := parcelParam(c)
	if err != nil {
		return err
	}

	var req RefundRequest
	_ = c.BodyParser(&req)

	initiator := escrow.Initiator{UserID: middleware.UserID(c), Admin: middleware.IsAdmin(c)}
	if err := Engine.Refund(parcelID, initiator, req.Reason); err != nil {
		return escrowError(c, err)
	}

	go notifyParcelEvent(parcelID, "refunded")

	return c.JSON(fiber.Map{"success": true, "message": "Refund processed successfully"})
}

func GetMyBookings(c *fiber.Ctx) error {
	senderID := middleware.UserID(c)

	var parcels []models.Parcel
	database.DB.
		Preload("Trip").Preload("Carrier").
		Where("sender_id = ?", senderID).
		Order("created_at desc").
		Find(&parcels)

	return c.JSON(parcels)
}

func GetCarrierBookings(c *fiber.Ctx) error {
	carrierID := middleware.UserID(c)

	var parcels []models.Parcel
	database.DB.
		Preload("Trip").Preload("Sender").
		Where("carrier_id = ?", carrierID).
		Order("created_at desc").
		Find(&parcels)

	return c.JSON(parcels)
}

func GetBooking(c *fiber.Ctx) error {
	parcelID, err := parcelParam(c)
	if err != nil {
		return err
	}
	userID := middleware.UserID(c)

	var parcel models.Parcel
	if err := database.DB.Preload("Trip").Preload("Sender").Preload("Carrier").First(&parcel, "id = ?", parcelID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Booking not found"})
	}
	if parcel.SenderID != userID && parcel.CarrierID != userID && !middleware.IsAdmin(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "This is not your booking"})
	}

	return c.JSON(parcel)
}

// notifyParcelEvent dispatches the lifecycle email for an event.
// Best-effort: runs in a goroutine, failures are logged inside the email
// client and never reach the request path.
func notifyParcelEvent(parcelID uuid.UUID, event string) {
	var parcel models.Parcel
	if err := database.DB.Preload("Sender").Preload("Carrier").First(&parcel, "id = ?", parcelID).Error; err != nil {
		log.Printf("notify: could not load parcel %s: %v", parcelID, err)
		return
	}

	switch event {
	case "payment_confirmed":
		notifications.NotifyPaymentConfirmed(parcel.Carrier.FullName, parcel.Carrier.Email, parcel.Title, parcel.Sender.FullName)
	case "accepted":
		notifications.NotifyBookingAccepted(parcel.Sender.FullName, parcel.Sender.Email, parcel.Title)
	case "rejected", "refunded":
		notifications.NotifyBookingRejected(parcel.Sender.FullName, parcel.Sender.Email, parcel.Title)
	case "in_transit":
		notifications.NotifyInTransit(parcel.Sender.FullName, parcel.Sender.Email, parcel.Title)
	case "delivered":
		settlement := Engine.SettleParcel(&parcel)
		notifications.NotifyDelivered(parcel.Carrier.FullName, parcel.Carrier.Email, parcel.Title, settlement.CarrierPayoutCents)
	}
}
