package controller

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm/clause"

	"coachpage_backend/internal/model"
	"coachpage_backend/pkg/database"
)

func InitSettingsController() {}

type SettingInput struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value"`
}

type PaymentSettingInput struct {
	Provider    model.PaymentProvider `json:"provider" validate:"required"`
	APIKey      string                `json:"api_key"`
	IPNSecret   string                `json:"ipn_secret"`
	CallbackURL string                `json:"callback_url"`
	Mode        string                `json:"mode"`
	Enabled     *bool                 `json:"enabled"`
}

func ListSettings(c *fiber.Ctx) error {
	var settings []model.Setting
	if err := database.GetDB().Order("key").Find(&settings).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch settings",
		})
	}

	return c.JSON(settings)
}

func UpsertSetting(c *fiber.Ctx) error {
	input := new(SettingInput)
	if err := c.BodyParser(input); err != nil || input.Key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	setting := model.Setting{Key: input.Key, Value: input.Value}
	err := database.GetDB().Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not save setting",
		})
	}

	return c.JSON(setting)
}

func ListPaymentSettings(c *fiber.Ctx) error {
	var settings []model.PaymentSetting
	if err := database.GetDB().Order("provider").Find(&settings).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch payment settings",
		})
	}

	return c.JSON(settings)
}

// UpsertPaymentSetting saves per-provider gateway config. Secret fields are
// only overwritten when a non-empty value is sent.
func UpsertPaymentSetting(c *fiber.Ctx) error {
	input := new(PaymentSettingInput)
	if err := c.BodyParser(input); err != nil || input.Provider == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	db := database.GetDB()

	var setting model.PaymentSetting
	if err := db.Where("provider = ?", input.Provider).First(&setting).Error; err != nil {
		setting = model.PaymentSetting{Provider: input.Provider}
	}

	if input.APIKey != "" {
		setting.APIKey = input.APIKey
	}
	if input.IPNSecret != "" {
		setting.IPNSecret = input.IPNSecret
	}
	if input.CallbackURL != "" {
		setting.CallbackURL = input.CallbackURL
	}
	if input.Mode != "" {
		setting.Mode = input.Mode
	}
	if input.Enabled != nil {
		setting.Enabled = *input.Enabled
	}

	if err := db.Save(&setting).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not save payment setting",
		})
	}

	return c.JSON(setting)
}
