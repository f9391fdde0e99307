package config

import (
	"os"

	"github.com/joho/godotenv"
)

type PaymentMode string

const (
	PaymentModeTest       PaymentMode = "test"
	PaymentModeProduction PaymentMode = "production"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Payment  PaymentConfig
	Video    VideoConfig
}

type ServerConfig struct {
	Port string
	// Base URL the payment providers call back to.
	PublicURL string
}

type DatabaseConfig struct {
	URL string
}

type JWTConfig struct {
	Secret string
}

// PaymentConfig carries the gateway mode explicitly instead of scattering
// test-mode flags through business logic.
type PaymentConfig struct {
	Mode PaymentMode

	ThreePayAPIKey     string
	ThreePayMerchantID string
	ThreePayBaseURL    string

	NowPaymentsAPIKey    string
	NowPaymentsIPNSecret string
	NowPaymentsBaseURL   string

	StripeSecretKey     string
	StripeWebhookSecret string
}

type VideoConfig struct {
	LibraryID    string
	SigningKey   string
	EmbedBaseURL string
}

func Load() *Config {
	godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:      getEnv("PORT", "3000"),
			PublicURL: getEnv("PUBLIC_URL", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "coachpage-dev-secret"),
		},
		Payment: PaymentConfig{
			Mode:                 PaymentMode(getEnv("PAYMENT_MODE", string(PaymentModeTest))),
			ThreePayAPIKey:       getEnv("THREEPAY_API_KEY", ""),
			ThreePayMerchantID:   getEnv("THREEPAY_MERCHANT_ID", ""),
			ThreePayBaseURL:      getEnv("THREEPAY_BASE_URL", "https://api.3pay.io"),
			NowPaymentsAPIKey:    getEnv("NOWPAYMENTS_API_KEY", ""),
			NowPaymentsIPNSecret: getEnv("NOWPAYMENTS_IPN_SECRET", ""),
			NowPaymentsBaseURL:   getEnv("NOWPAYMENTS_BASE_URL", "https://api.nowpayments.io"),
			StripeSecretKey:      getEnv("STRIPE_SECRET_KEY", ""),
			StripeWebhookSecret:  getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		Video: VideoConfig{
			LibraryID:    getEnv("VIDEO_LIBRARY_ID", ""),
			SigningKey:   getEnv("VIDEO_SIGNING_KEY", ""),
			EmbedBaseURL: getEnv("VIDEO_EMBED_BASE_URL", "https://iframe.mediadelivery.net/embed"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
