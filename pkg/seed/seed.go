package seed

import (
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"coachpage_backend/internal/model"
)

// SeedAdminUser makes sure one admin account exists so a fresh deploy is
// reachable. Credentials come from the environment.
func SeedAdminUser(db *gorm.DB) {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminEmail == "" || adminPassword == "" {
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Error hashing admin password: %v", err)
		return
	}

	admin := model.User{
		Email:    adminEmail,
		Password: string(hashed),
		Name:     "Platform Admin",
		Role:     model.RoleAdmin,
	}
	result := db.Where(model.User{Email: adminEmail}).FirstOrCreate(&admin)
	if result.Error != nil {
		log.Printf("Error seeding admin user: %v", result.Error)
		return
	}

	log.Println("Admin user seeded successfully!")
}

// SeedStrategies creates the demo catalogue for development environments.
func SeedStrategies(db *gorm.DB) {
	strategies := []model.Strategy{
		{
			Name:         "Momentum Basics",
			Slug:         "momentum-basics",
			Description:  "Entry-level momentum trading course",
			Price:        50,
			DurationDays: 30,
		},
		{
			Name:         "Swing Trading Pro",
			Slug:         "swing-trading-pro",
			Description:  "Intermediate swing setups and risk management",
			Price:        100,
			RenewalPrice: 80,
			DurationDays: 30,
		},
		{
			Name:         "Elite Scalping",
			Slug:         "elite-scalping",
			Description:  "Advanced intraday execution",
			Price:        150,
			RenewalPrice: 120,
			DurationDays: 30,
		},
	}

	for _, strategy := range strategies {
		result := db.FirstOrCreate(&strategy, model.Strategy{Slug: strategy.Slug})
		if result.Error != nil {
			log.Printf("Error creating strategy %s: %v", strategy.Name, result.Error)
		}
	}

	log.Println("Strategies seeded successfully!")
}

// SeedSettings writes the default platform settings once.
func SeedSettings(db *gorm.DB) {
	defaults := map[string]string{
		"default_currency":       "USD",
		"support_email":          "support@coachpage.io",
		"default_commission_pct": "30",
	}

	for key, value := range defaults {
		setting := model.Setting{Key: key, Value: value}
		result := db.FirstOrCreate(&setting, model.Setting{Key: key})
		if result.Error != nil {
			log.Printf("Error creating setting %s: %v", key, result.Error)
		}
	}

	log.Println("Settings seeded successfully!")
}
