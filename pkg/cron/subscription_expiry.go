package cron

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"coachpage_backend/internal/model"
	"coachpage_backend/pkg/database"
	"coachpage_backend/pkg/email"
	"coachpage_backend/pkg/subscription"
)

// InitSubscriptionExpiryCron starts the expiry sweep (every 10 minutes) and
// the daily expiry-warning emails.
func InitSubscriptionExpiryCron(svc *subscription.Service) {
	c := cron.New()

	_, err := c.AddFunc("*/10 * * * *", func() {
		sweepExpiredSubscriptions(svc)
	})
	if err != nil {
		log.Printf("Could not initialize subscription expiry cron: %v", err)
		return
	}

	_, err = c.AddFunc("0 9 * * *", func() {
		checkExpiringSubscriptions()
	})
	if err != nil {
		log.Printf("Could not initialize expiry warning cron: %v", err)
		return
	}

	c.Start()
}

func sweepExpiredSubscriptions(svc *subscription.Service) {
	count, err := svc.CheckExpiredSubscriptions()
	if err != nil {
		log.Printf("Expiry sweep failed: %v", err)
		return
	}
	if count > 0 {
		log.Printf("Expiry sweep moved %d subscriptions to pending", count)
	}
}

func checkExpiringSubscriptions() {
	log.Println("Checking for expiring subscriptions...")

	warningDays := []int{7, 3}

	for _, days := range warningDays {
		var subs []model.Subscription
		windowStart := time.Now().AddDate(0, 0, days).Truncate(24 * time.Hour)
		windowEnd := windowStart.Add(24 * time.Hour)

		err := database.DB.
			Where("status = ? AND end_date >= ? AND end_date < ?", model.SubscriptionStatusActive, windowStart, windowEnd).
			Preload("User").
			Find(&subs).Error
		if err != nil {
			log.Printf("Error fetching expiring subscriptions: %v", err)
			continue
		}

		log.Printf("Found %d subscriptions expiring in %d days", len(subs), days)

		for _, sub := range subs {
			if email.GlobalEmailService == nil {
				continue
			}
			err := email.GlobalEmailService.SendSubscriptionExpiryWarning(
				sub.User.Email,
				sub.User.Name,
				sub.StrategyName,
				sub.EndDate,
				days,
			)
			if err != nil {
				log.Printf("Error sending expiry warning to %s: %v", sub.User.Email, err)
			}
		}
	}
}
