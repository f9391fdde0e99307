package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"

	"coachpage_backend/internal/model"
	"coachpage_backend/pkg/database"
)

func InitStrategyController() {}

type StrategyInput struct {
	Name         string  `json:"name" validate:"required"`
	Description  string  `json:"description"`
	Price        float64 `json:"price" validate:"required"`
	RenewalPrice float64 `json:"renewal_price"`
	DurationDays float64 `json:"duration_days"`
}

type StrategyVideoInput struct {
	Title           string `json:"title" validate:"required"`
	OrderIndex      int    `json:"order_index"`
	CDNVideoID      string `json:"cdn_video_id"`
	DurationSeconds int    `json:"duration_seconds"`
}

// ListStrategies is the public catalogue.
func ListStrategies(c *fiber.Ctx) error {
	var strategies []model.Strategy
	if err := database.GetDB().Find(&strategies).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch strategies",
		})
	}

	return c.JSON(strategies)
}

func GetStrategyBySlug(c *fiber.Ctx) error {
	var strategy model.Strategy
	err := database.GetDB().Preload("Videos").
		Where("slug = ?", c.Params("slug")).
		First(&strategy).Error
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Strategy not found",
		})
	}

	return c.JSON(strategy)
}

func CreateStrategy(c *fiber.Ctx) error {
	input := new(StrategyInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	durationDays := input.DurationDays
	if durationDays <= 0 {
		durationDays = 30
	}

	strategy := model.Strategy{
		Name:         input.Name,
		Slug:         slug.Make(input.Name),
		Description:  input.Description,
		Price:        input.Price,
		RenewalPrice: input.RenewalPrice,
		DurationDays: durationDays,
	}

	if err := database.GetDB().Create(&strategy).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create strategy",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(strategy)
}

func UpdateStrategy(c *fiber.Ctx) error {
	var strategy model.Strategy
	if err := database.GetDB().First(&strategy, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Strategy not found",
		})
	}

	input := new(StrategyInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	updates := map[string]interface{}{
		"name":          input.Name,
		"slug":          slug.Make(input.Name),
		"description":   input.Description,
		"price":         input.Price,
		"renewal_price": input.RenewalPrice,
	}
	if input.DurationDays > 0 {
		updates["duration_days"] = input.DurationDays
	}

	if err := database.GetDB().Model(&strategy).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update strategy",
		})
	}

	return c.JSON(strategy)
}

func DeleteStrategy(c *fiber.Ctx) error {
	var strategy model.Strategy
	if err := database.GetDB().First(&strategy, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Strategy not found",
		})
	}

	// Existing subscription snapshots keep their own copy of the name and
	// price, so deleting the catalogue entry does not rewrite history.
	if err := database.GetDB().Delete(&strategy).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not delete strategy",
		})
	}

	return c.JSON(fiber.Map{"message": "Strategy deleted successfully"})
}

func AddStrategyVideo(c *fiber.Ctx) error {
	var strategy model.Strategy
	if err := database.GetDB().Preload("Videos").First(&strategy, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Strategy not found",
		})
	}

	input := new(StrategyVideoInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	orderIndex := input.OrderIndex
	if orderIndex == 0 {
		orderIndex = len(strategy.Videos) + 1
	}

	video := model.StrategyVideo{
		StrategyID:      strategy.ID,
		Title:           input.Title,
		OrderIndex:      orderIndex,
		CDNVideoID:      input.CDNVideoID,
		DurationSeconds: input.DurationSeconds,
	}

	if err := database.GetDB().Create(&video).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create video",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(video)
}

func UpdateStrategyVideo(c *fiber.Ctx) error {
	var video model.StrategyVideo
	if err := database.GetDB().First(&video, c.Params("video_id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Video not found",
		})
	}

	input := new(StrategyVideoInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	updates := map[string]interface{}{
		"title":            input.Title,
		"cdn_video_id":     input.CDNVideoID,
		"duration_seconds": input.DurationSeconds,
	}
	if input.OrderIndex > 0 {
		updates["order_index"] = input.OrderIndex
	}

	if err := database.GetDB().Model(&video).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update video",
		})
	}

	return c.JSON(video)
}

func DeleteStrategyVideo(c *fiber.Ctx) error {
	var video model.StrategyVideo
	if err := database.GetDB().First(&video, c.Params("video_id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Video not found",
		})
	}

	if err := database.GetDB().Delete(&video).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not delete video",
		})
	}

	return c.JSON(fiber.Map{"message": "Video deleted successfully"})
}
