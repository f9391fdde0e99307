package controller

import (
	"github.com/gofiber/fiber/v2"

	"coachpage_backend/internal/model"
	"coachpage_backend/pkg/database"
)

func InitCoachController() {}

type CoachInput struct {
	Name                 string  `json:"name" validate:"required"`
	Email                string  `json:"email" validate:"required,email"`
	CommissionPercentage float64 `json:"commission_percentage"`
	Status               string  `json:"status"`
	Bio                  string  `json:"bio"`
}

type AssignCoachInput struct {
	UserID  uint  `json:"user_id" validate:"required"`
	CoachID *uint `json:"coach_id"`
}

func ListCoaches(c *fiber.Ctx) error {
	var coaches []model.Coach
	if err := database.GetDB().Find(&coaches).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch coaches",
		})
	}

	return c.JSON(coaches)
}

func CreateCoach(c *fiber.Ctx) error {
	input := new(CoachInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	if input.CommissionPercentage < 0 || input.CommissionPercentage > 100 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Commission percentage must be between 0 and 100",
		})
	}

	status := input.Status
	if status == "" {
		status = model.CoachStatusActive
	}

	coach := model.Coach{
		Name:                 input.Name,
		Email:                input.Email,
		CommissionPercentage: input.CommissionPercentage,
		Status:               status,
		Bio:                  input.Bio,
	}

	if err := database.GetDB().Create(&coach).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create coach",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(coach)
}

func UpdateCoach(c *fiber.Ctx) error {
	var coach model.Coach
	if err := database.GetDB().First(&coach, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Coach not found",
		})
	}

	input := new(CoachInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	if input.CommissionPercentage < 0 || input.CommissionPercentage > 100 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Commission percentage must be between 0 and 100",
		})
	}

	// Updating the percentage only affects future payments; commission
	// snapshots on existing subscriptions are untouched.
	updates := map[string]interface{}{
		"name":                  input.Name,
		"email":                 input.Email,
		"commission_percentage": input.CommissionPercentage,
		"bio":                   input.Bio,
	}
	if input.Status != "" {
		updates["status"] = input.Status
	}

	if err := database.GetDB().Model(&coach).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update coach",
		})
	}

	return c.JSON(coach)
}

func DeleteCoach(c *fiber.Ctx) error {
	var coach model.Coach
	if err := database.GetDB().First(&coach, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Coach not found",
		})
	}

	if err := database.GetDB().Model(&model.User{}).
		Where("coach_id = ?", coach.ID).
		Update("coach_id", nil).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not unassign users",
		})
	}

	if err := database.GetDB().Delete(&coach).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not delete coach",
		})
	}

	return c.JSON(fiber.Map{"message": "Coach deleted successfully"})
}

// AssignCoach links (or with a null coach_id, unlinks) a user to a coach.
func AssignCoach(c *fiber.Ctx) error {
	input := new(AssignCoachInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	var user model.User
	if err := database.GetDB().First(&user, input.UserID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	if input.CoachID != nil {
		var coach model.Coach
		if err := database.GetDB().First(&coach, *input.CoachID).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Coach not found",
			})
		}
	}

	if err := database.GetDB().Model(&user).Update("coach_id", input.CoachID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not assign coach",
		})
	}

	return c.JSON(fiber.Map{"message": "Coach assignment updated"})
}
