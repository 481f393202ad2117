package handlers

import (
	"github.com/globalcarry/globalcarry/database"
	"github.com/globalcarry/globalcarry/escrow"
	"github.com/globalcarry/globalcarry/middleware"
	"github.com/globalcarry/globalcarry/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func AdminGetAllUsers(c *fiber.Ctx) error {
	var users []models.User
	database.DB.Order("created_at desc").Find(&users)
	return c.JSON(users)
}

type KycDecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=verified rejected"`
}

func AdminReviewKyc(c *fiber.Ctx) error {
	userID := c.Params("userId")

	var req KycDecisionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	res := database.DB.Model(&models.User{}).
		Where("id = ? AND kyc_status = ?", userID, models.KycStatusPending).
		Update("kyc_status", req.Decision)
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update verification status"})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No pending verification request for this user"})
	}

	return c.JSON(fiber.Map{"message": "Verification decision recorded"})
}

func AdminToggleUserStatus(c *fiber.Ctx) error {
	userID := c.Params("userId")

	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}

	if err := database.DB.Model(&user).Update("is_active", !user.IsActive).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update user status"})
	}

	return c.JSON(fiber.Map{"message": "User status updated", "is_active": !user.IsActive})
}

func AdminGetAllBookings(c *fiber.Ctx) error {
	query := database.DB.Preload("Trip").Preload("Sender").Preload("Carrier")

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if escrowStatus := c.Query("escrow_status"); escrowStatus != "" {
		query = query.Where("escrow_status = ?", escrowStatus)
	}

	var parcels []models.Parcel
	query.Order("created_at desc").Find(&parcels)
	return c.JSON(parcels)
}

// AdminGetPayments lists the ledger. Rows are append-only, so this listing
// is the financial reconciliation view.
func AdminGetPayments(c *fiber.Ctx) error {
	query := database.DB.Preload("Parcel")

	if txnType := c.Query("type"); txnType != "" {
		query = query.Where("type = ?", txnType)
	}

	var transactions []models.PaymentTransaction
	query.Order("created_at desc").Find(&transactions)
	return c.JSON(transactions)
}

// AdminForceRefund refunds any non-released booking regardless of who
// initiated it, through the same idempotent engine path as user refunds.
func AdminForceRefund(c *fiber.Ctx) error {
	parcelID, err := uuid.Parse(c.Params("bookingId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking ID format"})
	}

	var req RefundRequest
	_ = c.BodyParser(&req)

	initiator := escrow.Initiator{UserID: middleware.UserID(c), Admin: true}
	if err := Engine.Refund(parcelID, initiator, req.Reason); err != nil {
		return escrowError(c, err)
	}

	go notifyParcelEvent(parcelID, "refunded")

	return c.JSON(fiber.Map{"success": true, "message": "Refund processed successfully"})
}
