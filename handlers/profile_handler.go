package handlers

import (
	"github.com/globalcarry/globalcarry/database"
	"github.com/globalcarry/globalcarry/middleware"
	"github.com/globalcarry/globalcarry/models"
	"github.com/gofiber/fiber/v2"
)

func GetMyProfile(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
	}

	return c.JSON(fiber.Map{
		"id":         user.ID,
		"full_name":  user.FullName,
		"email":      user.Email,
		"phone":      user.Phone,
		"role":       user.Role,
		"kyc_status": user.KycStatus,
		"verified":   user.Verified(),
		"created_at": user.CreatedAt,
	})
}

type UpdateProfileRequest struct {
	FullName string  `json:"full_name" validate:"required,min=3"`
	Phone    *string `json:"phone,omitempty"`
}

func UpdateMyProfile(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	res := database.DB.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{"full_name": req.FullName, "phone": req.Phone})
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update profile"})
	}

	return c.JSON(fiber.Map{"message": "Profile updated successfully"})
}

// SubmitKyc marks the profile as awaiting identity review. Document upload
// and storage happen in a separate service; this engine only tracks the
// resulting status.
func SubmitKyc(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	res := database.DB.Model(&models.User{}).
		Where("id = ? AND kyc_status IN ?", userID, []string{models.KycStatusNone, models.KycStatusRejected}).
		Update("kyc_status", models.KycStatusPending)
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to submit verification request"})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "A verification request is already pending or approved"})
	}

	return c.JSON(fiber.Map{"message": "Verification request submitted. An admin will review it shortly."})
}
