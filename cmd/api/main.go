package main

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"coachpage_backend/internal/controller"
	"coachpage_backend/internal/middleware"
	"coachpage_backend/internal/model"
	"coachpage_backend/pkg/config"
	"coachpage_backend/pkg/cron"
	"coachpage_backend/pkg/database"
	"coachpage_backend/pkg/email"
	"coachpage_backend/pkg/payment/nowpayments"
	"coachpage_backend/pkg/payment/stripepay"
	"coachpage_backend/pkg/payment/threepay"
	"coachpage_backend/pkg/seed"
	"coachpage_backend/pkg/subscription"
	"coachpage_backend/pkg/wallet"
)

func setupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Auth Routes
	auth := api.Group("/auth")
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)
	auth.Post("/request-reset", controller.RequestPasswordReset)
	auth.Post("/reset-password", controller.ResetPassword)

	// Public strategy catalog
	api.Get("/strategies", controller.ListStrategies)
	api.Get("/strategies/:slug", controller.GetStrategyBySlug)

	// Payment provider webhooks (no auth, providers sign their requests)
	payments := api.Group("/payments")
	payments.Post("/webhook", controller.HandleNowPaymentsIPN)
	payments.Post("/webhook/3pay", controller.Handle3PayWebhook)
	payments.Post("/webhook/stripe", controller.HandleStripeWebhook)

	// Protected Routes
	protected := api.Group("/", middleware.AuthMiddleware())
	protected.Get("/me", controller.GetMe)
	protected.Post("/me/avatar", controller.UploadAvatar)
	protected.Get("/payments/:payment_id", controller.GetPaymentStatus)

	// User subscription flow
	subs := api.Group("/subscriptions", middleware.AuthMiddleware())
	subs.Post("/initiate", controller.InitiateSubscription)
	subs.Post("/confirm-payment", controller.ConfirmPayment)

	my := subs.Group("/my-subscription")
	my.Get("/", controller.GetMySubscription)
	my.Post("/renew", controller.RenewMySubscription)
	my.Post("/upgrade", controller.UpgradeMySubscription)
	my.Post("/cancel", controller.CancelMySubscription)
	my.Post("/complete-video", controller.CompleteMyVideo)
	my.Get("/videos/:video_id/playback", controller.GetVideoPlayback)

	// Admin Routes
	admin := api.Group("/admin", middleware.AuthMiddleware(), middleware.RequireAdmin())

	adminStrategies := admin.Group("/strategies")
	adminStrategies.Post("/", controller.CreateStrategy)
	adminStrategies.Put("/:id", controller.UpdateStrategy)
	adminStrategies.Delete("/:id", controller.DeleteStrategy)
	adminStrategies.Post("/:id/cover", controller.UploadStrategyCover)
	adminStrategies.Post("/:id/videos", controller.AddStrategyVideo)
	adminStrategies.Put("/:id/videos/:video_id", controller.UpdateStrategyVideo)
	adminStrategies.Delete("/:id/videos/:video_id", controller.DeleteStrategyVideo)

	adminCoaches := admin.Group("/coaches")
	adminCoaches.Get("/", controller.ListCoaches)
	adminCoaches.Post("/", controller.CreateCoach)
	adminCoaches.Put("/:id", controller.UpdateCoach)
	adminCoaches.Delete("/:id", controller.DeleteCoach)
	adminCoaches.Post("/assign", controller.AssignCoach)

	adminSubs := admin.Group("/subscriptions")
	adminSubs.Post("/", controller.CreateSubscription)
	adminSubs.Get("/:id", controller.GetSubscription)
	adminSubs.Get("/user/:userId", controller.ListUserSubscriptions)
	adminSubs.Post("/:id/renew", controller.RenewSubscription)
	adminSubs.Post("/:id/change-strategy", controller.ChangeSubscriptionStrategy)
	adminSubs.Patch("/:id/cancel", controller.CancelSubscription)
	adminSubs.Patch("/:id/set-pending", controller.SetPendingSubscription)
	adminSubs.Patch("/:id/video-progress", controller.UpdateVideoProgress)

	adminWallets := admin.Group("/wallets")
	adminWallets.Get("/", controller.ListWallets)
	adminWallets.Get("/:id", controller.GetWallet)
	adminWallets.Get("/:id/transactions", controller.GetWalletTransactions)
	adminWallets.Post("/:id/cashout", controller.Cashout)
	admin.Get("/commissions", controller.ListCoachCommissions)

	adminSettings := admin.Group("/settings")
	adminSettings.Get("/", controller.ListSettings)
	adminSettings.Put("/", controller.UpsertSetting)
	adminSettings.Get("/payments", controller.ListPaymentSettings)
	adminSettings.Put("/payments", controller.UpsertPaymentSetting)
}

func main() {
	cfg := config.Load()

	if err := email.InitEmailService(os.Getenv("RESEND_API_KEY")); err != nil {
		log.Printf("Email service disabled: %v", err)
	}

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is not set in .env")
	}

	database.InitDB(cfg.Database.URL)
	err := database.MigrateDatabase(
		&model.User{},
		&model.Coach{},
		&model.Strategy{},
		&model.StrategyVideo{},
		&model.Subscription{},
		&model.Wallet{},
		&model.WalletTransaction{},
		&model.CoachCommission{},
		&model.PendingPayment{},
		&model.PaymentTransaction{},
		&model.Setting{},
		&model.PaymentSetting{},
	)
	if err != nil {
		log.Printf("Migration warning: %v", err)
	}

	db := database.GetDB()
	seed.SeedAdminUser(db)
	seed.SeedStrategies(db)
	seed.SeedSettings(db)

	ledger := wallet.NewLedger(db)

	nowPayments := nowpayments.New(
		cfg.Payment.NowPaymentsAPIKey,
		cfg.Payment.NowPaymentsIPNSecret,
		cfg.Payment.NowPaymentsBaseURL,
	)

	gateways := map[model.PaymentProvider]subscription.Gateway{
		model.PaymentProviderThreePay:    threepay.New(cfg.Payment),
		model.PaymentProviderNowPayments: nowPayments,
		model.PaymentProviderStripe:      stripepay.New(cfg.Payment, cfg.Server.PublicURL),
	}

	subscriptionSvc := subscription.NewService(db, ledger, gateways, cfg.Server.PublicURL+"/api/webhooks")

	controller.InitAuthController()
	controller.InitStrategyController()
	controller.InitCoachController()
	controller.InitSubscriptionController(subscriptionSvc, cfg.Video)
	controller.InitPaymentController(cfg.Payment, nowPayments)
	controller.InitWalletController(ledger, cfg.Payment.Mode)
	controller.InitSettingsController()
	controller.InitUploadController()

	cron.InitSubscriptionExpiryCron(subscriptionSvc)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New())

	setupRoutes(app)

	log.Printf("Server is running on port %s", cfg.Server.Port)
	log.Fatal(app.Listen(":" + cfg.Server.Port))
}
