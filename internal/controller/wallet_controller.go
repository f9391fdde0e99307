package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"coachpage_backend/internal/model"
	"coachpage_backend/pkg/config"
	"coachpage_backend/pkg/database"
	"coachpage_backend/pkg/email"
	"coachpage_backend/pkg/wallet"
)

var (
	walletLedger *wallet.Ledger
	walletMode   config.PaymentMode
)

func InitWalletController(ledger *wallet.Ledger, mode config.PaymentMode) {
	walletLedger = ledger
	walletMode = mode
}

type CashoutInput struct {
	Amount             float64 `json:"amount" validate:"required"`
	DestinationAddress string  `json:"destination_address" validate:"required"`
	Currency           string  `json:"currency"`
}

func ListWallets(c *fiber.Ctx) error {
	var wallets []model.Wallet
	if err := database.GetDB().Order("owner_type, owner_id").Find(&wallets).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch wallets",
		})
	}

	return c.JSON(wallets)
}

func GetWallet(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid wallet ID",
		})
	}

	var w model.Wallet
	if err := database.GetDB().First(&w, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Wallet not found",
		})
	}

	return c.JSON(w)
}

func GetWalletTransactions(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid wallet ID",
		})
	}

	var w model.Wallet
	if err := database.GetDB().First(&w, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Wallet not found",
		})
	}

	var txs []model.WalletTransaction
	if err := database.GetDB().Where("wallet_id = ?", w.ID).Order("created_at DESC").Find(&txs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch wallet transactions",
		})
	}

	return c.JSON(fiber.Map{
		"wallet":       w,
		"transactions": txs,
	})
}

func ListCoachCommissions(c *fiber.Ctx) error {
	var commissions []model.CoachCommission
	query := database.GetDB().Order("created_at DESC")

	if coachID := c.QueryInt("coach_id"); coachID > 0 {
		query = query.Where("coach_id = ?", coachID)
	}

	if err := query.Find(&commissions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch commissions",
		})
	}

	return c.JSON(commissions)
}

// Cashout pays out from a wallet to an external crypto address. Production
// payouts are gated until the provider's payout API is wired.
func Cashout(c *fiber.Ctx) error {
	walletID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid wallet ID",
		})
	}

	input := new(CashoutInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	currency := input.Currency
	if currency == "" {
		currency = "usdt"
	}

	result, err := walletLedger.ProcessCashout(
		uint(walletID),
		input.Amount,
		input.DestinationAddress,
		currency,
		walletMode == config.PaymentModeTest,
	)
	if err != nil {
		status := fiber.StatusBadRequest
		switch {
		case errors.Is(err, wallet.ErrWalletNotFound):
			status = fiber.StatusNotFound
		case errors.Is(err, wallet.ErrPayoutNotConfigured):
			status = fiber.StatusNotImplemented
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	sendCashoutEmail(uint(walletID), result, input.DestinationAddress)

	return c.JSON(result)
}

func sendCashoutEmail(walletID uint, result *wallet.CashoutResult, destination string) {
	if email.GlobalEmailService == nil {
		return
	}

	var w model.Wallet
	if err := database.GetDB().First(&w, walletID).Error; err != nil {
		return
	}
	if w.OwnerType != model.WalletOwnerCoach {
		return
	}

	var coach model.Coach
	if err := database.GetDB().Where("id = ?", w.OwnerID).First(&coach).Error; err != nil {
		return
	}

	err := email.GlobalEmailService.SendCashoutProcessedEmail(
		coach.Email,
		coach.Name,
		result.Amount,
		result.Currency,
		destination,
		result.PayoutID,
	)
	if err != nil {
		log.Printf("Could not send cashout email: %v", err)
	}
}
