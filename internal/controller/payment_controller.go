package controller

import (
	"encoding/json"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v74/webhook"

	"coachpage_backend/internal/model"
	"coachpage_backend/pkg/config"
	"coachpage_backend/pkg/database"
	"coachpage_backend/pkg/email"
	"coachpage_backend/pkg/payment/nowpayments"
)

var (
	paymentCfg        config.PaymentConfig
	nowPaymentsClient *nowpayments.Client
)

func InitPaymentController(cfg config.PaymentConfig, np *nowpayments.Client) {
	paymentCfg = cfg
	nowPaymentsClient = np
}

// logPaymentCallback keeps the raw provider payload for audit. Failures here
// never block payment processing.
func logPaymentCallback(provider model.PaymentProvider, externalID, status string, amount float64, payload []byte) {
	tx := model.PaymentTransaction{
		Provider:   provider,
		ExternalID: externalID,
		Amount:     amount,
		Currency:   "usd",
		Status:     status,
		Payload:    payload,
	}
	if err := database.GetDB().Create(&tx).Error; err != nil {
		log.Printf("Could not log %s callback: %v", provider, err)
	}
}

type threePayCallback struct {
	TransactionID string  `json:"transaction_id"`
	Status        string  `json:"status"`
	Amount        float64 `json:"amount"`
}

// Handle3PayWebhook processes the 3Pay payment callback. The payload only
// locates the pending payment; confirmation re-verifies with the provider.
func Handle3PayWebhook(c *fiber.Ctx) error {
	payload := c.Body()

	callback := new(threePayCallback)
	if err := json.Unmarshal(payload, callback); err != nil || callback.TransactionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid callback payload",
		})
	}

	logPaymentCallback(model.PaymentProviderThreePay, callback.TransactionID, callback.Status, callback.Amount, payload)

	if _, err := subscriptionSvc.ConfirmPayment(callback.TransactionID); err != nil {
		// Replays and still-unpaid callbacks are acknowledged so the
		// provider stops retrying; real failures are logged.
		log.Printf("3Pay callback for %s not applied: %v", callback.TransactionID, err)
	}

	sendPaymentReceivedEmail(callback.TransactionID)

	return c.SendStatus(fiber.StatusOK)
}

type nowPaymentsIPN struct {
	PaymentID     json.Number `json:"payment_id"`
	InvoiceID     json.Number `json:"invoice_id"`
	PaymentStatus string      `json:"payment_status"`
	PriceAmount   float64     `json:"price_amount"`
}

// HandleNowPaymentsIPN processes the NOWPayments IPN. The HMAC signature
// gates the request; payment state itself is still re-fetched from the API.
func HandleNowPaymentsIPN(c *fiber.Ctx) error {
	payload := c.Body()
	signature := c.Get("x-nowpayments-sig")

	if !nowPaymentsClient.VerifyIPNSignature(payload, signature) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid IPN signature",
		})
	}

	ipn := new(nowPaymentsIPN)
	if err := json.Unmarshal(payload, ipn); err != nil || ipn.InvoiceID.String() == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid IPN payload",
		})
	}

	logPaymentCallback(model.PaymentProviderNowPayments, ipn.InvoiceID.String(), ipn.PaymentStatus, ipn.PriceAmount, payload)

	if _, err := subscriptionSvc.ConfirmPayment(ipn.InvoiceID.String()); err != nil {
		log.Printf("NOWPayments IPN for %s not applied: %v", ipn.InvoiceID.String(), err)
	}

	sendPaymentReceivedEmail(ipn.InvoiceID.String())

	return c.SendStatus(fiber.StatusOK)
}

// HandleStripeWebhook processes Stripe checkout events. The session ID is the
// pending payment's transaction handle.
func HandleStripeWebhook(c *fiber.Ctx) error {
	payload := c.Body()
	signatureHeader := c.Get("Stripe-Signature")

	event, err := webhook.ConstructEvent(payload, signatureHeader, paymentCfg.StripeWebhookSecret)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook signature",
		})
	}

	log.Printf("Processing Stripe webhook event: %s", event.Type)

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		var sessionData struct {
			ID          string `json:"id"`
			AmountTotal int64  `json:"amount_total"`
		}
		if err := json.Unmarshal(event.Data.Raw, &sessionData); err != nil {
			return c.Status(fiber.StatusBadRequest).Send(nil)
		}

		logPaymentCallback(model.PaymentProviderStripe, sessionData.ID, string(event.Type),
			float64(sessionData.AmountTotal)/100, event.Data.Raw)

		if _, err := subscriptionSvc.ConfirmPayment(sessionData.ID); err != nil {
			log.Printf("Stripe webhook for %s not applied: %v", sessionData.ID, err)
		}

		sendPaymentReceivedEmail(sessionData.ID)
	}

	return c.SendStatus(fiber.StatusOK)
}

// GetPaymentStatus lets the frontend poll a pending payment it initiated.
func GetPaymentStatus(c *fiber.Ctx) error {
	paymentID := c.Params("payment_id")

	var pending model.PendingPayment
	if err := database.GetDB().Where("payment_id = ?", paymentID).First(&pending).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Payment not found",
		})
	}

	return c.JSON(fiber.Map{
		"payment_id":      pending.PaymentID,
		"provider":        pending.Provider,
		"type":            pending.Type,
		"status":          pending.Status,
		"amount":          pending.Amount,
		"subscription_id": pending.SubscriptionID,
		"completed_at":    pending.CompletedAt,
	})
}

func sendPaymentReceivedEmail(paymentID string) {
	if email.GlobalEmailService == nil {
		return
	}

	db := database.GetDB()

	var pending model.PendingPayment
	if err := db.Where("payment_id = ? AND status = ?", paymentID, model.PendingPaymentCompleted).First(&pending).Error; err != nil {
		return
	}

	var user model.User
	if err := db.First(&user, pending.UserID).Error; err != nil {
		return
	}

	var strategy model.Strategy
	if err := db.First(&strategy, pending.StrategyID).Error; err != nil {
		return
	}

	err := email.GlobalEmailService.SendPaymentReceivedEmail(user.Email, user.Name, strategy.Name, pending.Amount, "USD")
	if err != nil {
		log.Printf("Could not send payment received email: %v", err)
	}
}
