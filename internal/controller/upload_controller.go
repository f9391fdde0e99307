package controller

import (
	"github.com/gofiber/fiber/v2"

	"coachpage_backend/internal/model"
	"coachpage_backend/pkg/database"
	"coachpage_backend/pkg/utils/image"
	"coachpage_backend/pkg/utils/jwt"
	"coachpage_backend/pkg/utils/storage"
)

func InitUploadController() {}

// UploadStrategyCover processes and stores a strategy's cover image.
func UploadStrategyCover(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid strategy ID",
		})
	}

	var strategy model.Strategy
	if err := database.GetDB().First(&strategy, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Strategy not found",
		})
	}

	file, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No image file provided",
		})
	}

	processed, contentType, err := image.ProcessImage(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	result, err := storage.Upload(storage.UploadConfig{
		Data:        processed,
		ContentType: contentType,
		Folder:      "strategies",
		Name:        strategy.Slug,
		Filename:    file.Filename,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not upload image",
		})
	}

	if err := database.GetDB().Model(&strategy).Update("cover_image", result.URL).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update strategy",
		})
	}

	return c.JSON(fiber.Map{
		"cover_image": result.URL,
	})
}

// UploadAvatar stores the caller's profile picture.
func UploadAvatar(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	file, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No image file provided",
		})
	}

	processed, contentType, err := image.ProcessImage(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	result, err := storage.Upload(storage.UploadConfig{
		Data:        processed,
		ContentType: contentType,
		Folder:      "avatars",
		Name:        claims.Email,
		Filename:    file.Filename,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not upload image",
		})
	}

	if err := database.GetDB().Model(&model.User{}).Where("id = ?", claims.UserID).
		Update("avatar", result.URL).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update avatar",
		})
	}

	return c.JSON(fiber.Map{
		"avatar": result.URL,
	})
}
