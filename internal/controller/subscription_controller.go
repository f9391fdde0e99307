package controller

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"coachpage_backend/internal/model"
	"coachpage_backend/pkg/config"
	"coachpage_backend/pkg/database"
	"coachpage_backend/pkg/email"
	"coachpage_backend/pkg/subscription"
	"coachpage_backend/pkg/utils/jwt"
	"coachpage_backend/pkg/utils/video"
)

var (
	subscriptionSvc *subscription.Service
	videoCfg        config.VideoConfig
)

func InitSubscriptionController(svc *subscription.Service, vCfg config.VideoConfig) {
	subscriptionSvc = svc
	videoCfg = vCfg
}

type CreateSubscriptionInput struct {
	UserID        uint   `json:"user_id" validate:"required"`
	StrategyID    uint   `json:"strategy_id" validate:"required"`
	PaymentMethod string `json:"payment_method"`
}

type ChangeStrategyInput struct {
	StrategyID uint                  `json:"strategy_id" validate:"required"`
	Provider   model.PaymentProvider `json:"provider"`
}

type InitiateInput struct {
	StrategyID uint                  `json:"strategy_id" validate:"required"`
	Provider   model.PaymentProvider `json:"provider"`
}

type ConfirmPaymentInput struct {
	PaymentID string `json:"payment_id" validate:"required"`
}

type VideoProgressInput struct {
	VideoID uint `json:"video_id" validate:"required"`
}

type ProviderInput struct {
	Provider model.PaymentProvider `json:"provider"`
}

// subscriptionResponse serializes a subscription with the derived progress
// fields computed on read, never from stored values.
func subscriptionResponse(sub *model.Subscription) fiber.Map {
	var strategy model.Strategy
	order := []uint{}
	if err := database.GetDB().Preload("Videos").First(&strategy, sub.StrategyID).Error; err == nil {
		order = strategy.OrderedVideoIDs()
	}
	completed := subscription.NormalizeCompleted(sub.CompletedVideos, order)

	completedIDs := make([]uint, 0, len(completed))
	for _, id := range order {
		if completed[id] {
			completedIDs = append(completedIDs, id)
		}
	}

	return fiber.Map{
		"id":                          sub.ID,
		"user_id":                     sub.UserID,
		"strategy_id":                 sub.StrategyID,
		"strategy_name":               sub.StrategyName,
		"status":                      sub.EffectiveStatus(),
		"start_date":                  sub.StartDate,
		"end_date":                    sub.EndDate,
		"duration_days":               sub.DurationDays,
		"renewal_count":               sub.RenewalCount,
		"completed_videos":            completedIDs,
		"total_videos":                len(order),
		"progress_percentage":         subscription.ProgressPercentage(completed, len(order)),
		"current_video_id":            subscription.CurrentVideoID(completed, order),
		"strategy_price":              sub.StrategyPrice,
		"amount_paid":                 sub.AmountPaid,
		"coach_commission_percentage": sub.CoachCommissionPercentage,
		"payment_method":              sub.PaymentMethod,
		"expired_at":                  sub.ExpiredAt,
		"cancelled_at":                sub.CancelledAt,
	}
}

func subscriptionErrorStatus(err error) int {
	switch {
	case errors.Is(err, subscription.ErrSubscriptionNotFound),
		errors.Is(err, subscription.ErrUserNotFound),
		errors.Is(err, subscription.ErrStrategyNotFound),
		errors.Is(err, subscription.ErrPaymentNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, subscription.ErrActiveSubscriptionExists),
		errors.Is(err, subscription.ErrSubscriptionCancelled),
		errors.Is(err, subscription.ErrSubscriptionNotActive),
		errors.Is(err, subscription.ErrSameStrategy),
		errors.Is(err, subscription.ErrNoPaymentRequired),
		errors.Is(err, subscription.ErrVideoLocked),
		errors.Is(err, subscription.ErrVideoNotInStrategy),
		errors.Is(err, subscription.ErrPaymentFailed),
		errors.Is(err, subscription.ErrPaymentNotConfirmed),
		errors.Is(err, subscription.ErrPaymentInProgress):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func defaultProvider(p model.PaymentProvider) model.PaymentProvider {
	if p == "" {
		return model.PaymentProviderThreePay
	}
	return p
}

// CreateSubscription is the admin's manual path; payment is taken outside
// the platform, so no gateway is involved.
func CreateSubscription(c *fiber.Ctx) error {
	input := new(CreateSubscriptionInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	paymentMethod := input.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = string(model.PaymentProviderManual)
	}

	sub, err := subscriptionSvc.Create(input.UserID, input.StrategyID, subscription.PaymentContext{
		InitiatedBy:   subscription.InitiatedByAdmin,
		PaymentMethod: paymentMethod,
	})
	if err != nil {
		return c.Status(subscriptionErrorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	sendSubscriptionStartedEmail(sub, false)

	return c.Status(fiber.StatusCreated).JSON(subscriptionResponse(sub))
}

func GetSubscription(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid subscription ID",
		})
	}

	sub, err := subscriptionSvc.Get(uint(id))
	if err != nil {
		return c.Status(subscriptionErrorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(subscriptionResponse(sub))
}

func ListUserSubscriptions(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("userId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid user ID",
		})
	}

	var subs []model.Subscription
	if err := database.GetDB().Where("user_id = ?", userID).Order("created_at DESC").Find(&subs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch subscriptions",
		})
	}

	responses := make([]fiber.Map, len(subs))
	for i := range subs {
		responses[i] = subscriptionResponse(&subs[i])
	}
	return c.JSON(responses)
}

// RenewSubscription is the admin's manual renewal.
func RenewSubscription(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid subscription ID",
		})
	}

	sub, err := subscriptionSvc.Renew(uint(id), subscription.PaymentContext{
		InitiatedBy:   subscription.InitiatedByAdmin,
		PaymentMethod: string(model.PaymentProviderManual),
	})
	if err != nil {
		return c.Status(subscriptionErrorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	sendSubscriptionStartedEmail(sub, true)

	return c.JSON(subscriptionResponse(sub))
}

// ChangeSubscriptionStrategy is the admin's manual upgrade/downgrade.
func ChangeSubscriptionStrategy(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid subscription ID",
		})
	}

	input := new(ChangeStrategyInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	sub, err := subscriptionSvc.ChangeStrategy(uint(id), input.StrategyID, subscription.PaymentContext{
		InitiatedBy:   subscription.InitiatedByAdmin,
		PaymentMethod: string(model.PaymentProviderManual),
	})
	if err != nil {
		return c.Status(subscriptionErrorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(subscriptionResponse(sub))
}

func CancelSubscription(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid subscription ID",
		})
	}

	sub, err := subscriptionSvc.Cancel(uint(id))
	if err != nil {
		return c.Status(subscriptionErrorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(subscriptionResponse(sub))
}

func SetPendingSubscription(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid subscription ID",
		})
	}

	sub, err := subscriptionSvc.SetPending(uint(id))
	if err != nil {
		return c.Status(subscriptionErrorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(subscriptionResponse(sub))
}

// UpdateVideoProgress lets an admin mark any video complete, bypassing the
// sequential gate.
func UpdateVideoProgress(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid subscription ID",
		})
	}

	input := new(VideoProgressInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	sub, err := subscriptionSvc.CompleteVideo(uint(id), input.VideoID, true)
	if err != nil {
		return c.Status(subscriptionErrorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(subscriptionResponse(sub))
}

// InitiateSubscription starts a gateway payment for a new subscription and
// returns the provider's payment URL.
func InitiateSubscription(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(InitiateInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	pending, err := subscriptionSvc.InitiatePayment(subscription.InitiateParams{
		UserID:     claims.UserID,
		StrategyID: input.StrategyID,
		Type:       model.PendingPaymentSubscription,
		Provider:   defaultProvider(input.Provider),
	})
	if err != nil {
		return c.Status(subscriptionErrorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"payment_id":  pending.PaymentID,
		"payment_url": pending.PaymentURL,
		"amount":      pending.Amount,
	})
}

// ConfirmPayment applies the pending payment's transition. Safe to call
// repeatedly; replays return the already-created subscription.
func ConfirmPayment(c *fiber.Ctx) error {
	input := new(ConfirmPaymentInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	sub, err := subscriptionSvc.ConfirmPayment(input.PaymentID)
	if err != nil {
		return c.Status(subscriptionErrorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(subscriptionResponse(sub))
}

func GetMySubscription(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	sub, err := subscriptionSvc.CurrentForUser(claims.UserID)
	if err != nil {
		return c.Status(subscriptionErrorStatus(err)).JSON(fiber.Map{
			"error": "No active subscription found",
		})
	}

	return c.JSON(subscriptionResponse(sub))
}

// RenewMySubscription starts a gateway payment for renewing the caller's
// subscription.
func RenewMySubscription(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(ProviderInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	pending, err := subscriptionSvc.InitiatePayment(subscription.InitiateParams{
		UserID:   claims.UserID,
		Type:     model.PendingPaymentRenewal,
		Provider: defaultProvider(input.Provider),
	})
	if err != nil {
		return c.Status(subscriptionErrorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"payment_id":  pending.PaymentID,
		"payment_url": pending.PaymentURL,
		"amount":      pending.Amount,
	})
}

// UpgradeMySubscription prices the strategy switch and either starts a
// payment or, for an equal-priced switch, applies it immediately for free.
func UpgradeMySubscription(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(ChangeStrategyInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	pending, err := subscriptionSvc.InitiatePayment(subscription.InitiateParams{
		UserID:     claims.UserID,
		StrategyID: input.StrategyID,
		Type:       model.PendingPaymentUpgrade,
		Provider:   defaultProvider(input.Provider),
	})
	if errors.Is(err, subscription.ErrNoPaymentRequired) {
		sub, err := subscriptionSvc.CurrentForUser(claims.UserID)
		if err != nil {
			return c.Status(subscriptionErrorStatus(err)).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		sub, err = subscriptionSvc.ChangeStrategy(sub.ID, input.StrategyID, subscription.PaymentContext{
			InitiatedBy:   subscription.InitiatedByUser,
			PaymentMethod: sub.PaymentMethod,
		})
		if err != nil {
			return c.Status(subscriptionErrorStatus(err)).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(subscriptionResponse(sub))
	}
	if err != nil {
		return c.Status(subscriptionErrorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"payment_id":  pending.PaymentID,
		"payment_url": pending.PaymentURL,
		"amount":      pending.Amount,
		"type":        pending.Type,
	})
}

func CancelMySubscription(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	sub, err := subscriptionSvc.CurrentForUser(claims.UserID)
	if err != nil {
		return c.Status(subscriptionErrorStatus(err)).JSON(fiber.Map{
			"error": "No active subscription found",
		})
	}

	sub, err = subscriptionSvc.Cancel(sub.ID)
	if err != nil {
		return c.Status(subscriptionErrorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message":      "Subscription cancelled successfully",
		"subscription": subscriptionResponse(sub),
	})
}

// CompleteMyVideo marks a video complete for the caller, enforcing the
// sequential gate.
func CompleteMyVideo(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(VideoProgressInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	sub, err := subscriptionSvc.CurrentForUser(claims.UserID)
	if err != nil {
		return c.Status(subscriptionErrorStatus(err)).JSON(fiber.Map{
			"error": "No active subscription found",
		})
	}

	sub, err = subscriptionSvc.CompleteVideo(sub.ID, input.VideoID, false)
	if err != nil {
		return c.Status(subscriptionErrorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(subscriptionResponse(sub))
}

// GetVideoPlayback returns a short-lived signed embed URL for a video the
// caller's subscription has unlocked.
func GetVideoPlayback(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	videoID, err := c.ParamsInt("video_id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid video ID",
		})
	}

	sub, err := subscriptionSvc.CurrentForUser(claims.UserID)
	if err != nil {
		return c.Status(subscriptionErrorStatus(err)).JSON(fiber.Map{
			"error": "No active subscription found",
		})
	}

	allowed, err := subscriptionSvc.CanAccessSubscriptionVideo(sub, uint(videoID), claims.Role == model.RoleAdmin)
	if err != nil {
		return c.Status(subscriptionErrorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if !allowed {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Video is locked, complete the previous video first",
		})
	}

	var v model.StrategyVideo
	if err := database.GetDB().First(&v, videoID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Video not found",
		})
	}

	return c.JSON(fiber.Map{
		"video_id":     v.ID,
		"title":        v.Title,
		"playback_url": video.SignedEmbedURL(videoCfg, v.CDNVideoID, 4*time.Hour),
	})
}

func sendSubscriptionStartedEmail(sub *model.Subscription, isRenewal bool) {
	if email.GlobalEmailService == nil {
		return
	}

	var user model.User
	if err := database.GetDB().First(&user, sub.UserID).Error; err != nil {
		return
	}

	err := email.GlobalEmailService.SendSubscriptionStartedEmail(
		user.Email,
		user.Name,
		sub.StrategyName,
		sub.DurationDays,
		sub.AmountPaid,
		"USD",
		sub.EndDate,
		isRenewal,
	)
	if err != nil {
		log.Printf("Could not send subscription email: %v", err)
	}
}
